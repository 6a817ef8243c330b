package diagnosis

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/conectaribas/conectaribas/internal/platform/websocket"
)

type Handler struct {
	svc    *Service
	logger zerolog.Logger
}

func NewHandler(svc *Service, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/diagnosis")
	g.POST("/sessions", h.CreateSession)
	g.GET("/sessions/:id", h.GetSession)
	g.POST("/sessions/:id/answers", h.SubmitAnswer)
	g.POST("/sessions/:id/back", h.Back)
	g.POST("/sessions/:id/reset", h.Reset)
	g.DELETE("/sessions/:id", h.DeleteSession)

	g.GET("/questions", h.ListQuestions)
	g.GET("/questions/watch", h.WatchQuestions)
	g.GET("/questionnaire", h.Questionnaire)
	g.POST("/classify", h.Classify)
	g.POST("/manual", h.SaveManual)
	g.GET("/tree/report", h.TreeReport)
}

type createSessionRequest struct {
	PatientName *string `json:"patient_name"`
}

type submitRequest struct {
	AnswerID uuid.UUID `json:"answer_id"`
}

type manualRequest struct {
	PatientName *string  `json:"patient_name"`
	Answers     []string `json:"answers"`
}

// snapshotStatus maps a snapshot to its HTTP status. A failed walk is a
// valid session state and is reported with 200.
func snapshotStatus(snap Snapshot, ok int) int {
	if snap.Err == nil || snap.State == StateFailed {
		return ok
	}
	switch {
	case errors.Is(snap.Err, ErrUnknownAnswer):
		return http.StatusUnprocessableEntity
	case errors.Is(snap.Err, ErrNotAwaitingAnswer), errors.Is(snap.Err, ErrAlreadyStarted):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (h *Handler) session(c echo.Context) (*Session, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	sess, err := h.svc.Session(id)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, "diagnosis session not found")
	}
	return sess, nil
}

// CreateSession registers a session and starts it.
func (h *Handler) CreateSession(c echo.Context) error {
	var req createSessionRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	sess := h.svc.NewSession(req.PatientName)
	snap := sess.Start(c.Request().Context())
	return c.JSON(snapshotStatus(snap, http.StatusCreated), snap)
}

func (h *Handler) GetSession(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sess.Snapshot())
}

func (h *Handler) SubmitAnswer(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	var req submitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.AnswerID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "answer_id is required")
	}
	snap := sess.Submit(c.Request().Context(), req.AnswerID)
	return c.JSON(snapshotStatus(snap, http.StatusOK), snap)
}

func (h *Handler) Back(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	snap := sess.Back(c.Request().Context())
	return c.JSON(snapshotStatus(snap, http.StatusOK), snap)
}

func (h *Handler) Reset(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sess.Reset())
}

func (h *Handler) DeleteSession(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.EndSession(id); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "diagnosis session not found")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListQuestions(c echo.Context) error {
	items, err := h.svc.ListQuestions(c.Request().Context(), c.QueryParam("category"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []*Question{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) Questionnaire(c echo.Context) error {
	return c.JSON(http.StatusOK, ManualQuestionnaire())
}

// Classify runs the manual rule without storing anything.
func (h *Handler) Classify(c echo.Context) error {
	var req manualRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, Classify(req.Answers))
}

func (h *Handler) SaveManual(c echo.Context) error {
	var req manualRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rec, res, err := h.svc.SaveManual(c.Request().Context(), req.PatientName, req.Answers)
	if err != nil {
		if errors.Is(err, ErrNoAnswers) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"record": rec,
		"result": res,
	})
}

func (h *Handler) TreeReport(c echo.Context) error {
	rep, err := h.svc.Tree().Validate(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"ok":       rep.OK(),
		"report":   rep,
		"problems": rep.Problems(),
	})
}

// WatchQuestions upgrades to a WebSocket and pushes the questions, filtered
// by the optional category, on every change to the tree.
func (h *Handler) WatchQuestions(c echo.Context) error {
	sub := h.svc.WatchQuestions(c.Request().Context(), c.QueryParam("category"))
	return websocket.Serve(c, h.logger, Topic, sub)
}
