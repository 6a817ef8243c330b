package history

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/conectaribas/conectaribas/internal/domain/severity"
	"github.com/conectaribas/conectaribas/internal/platform/websocket"
	"github.com/conectaribas/conectaribas/pkg/pagination"
)

type Handler struct {
	svc    *Service
	logger zerolog.Logger
}

func NewHandler(svc *Service, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/history")
	g.GET("", h.ListRecords)
	g.GET("/export", h.ExportRecords)
	g.GET("/watch", h.WatchRecords)
	g.GET("/:id", h.GetRecord)
	g.POST("", h.CreateRecord)
	g.POST("/import", h.ImportRecords)
	g.DELETE("/:id", h.DeleteRecord)
	g.DELETE("", h.DeleteAllRecords)
}

type createRequest struct {
	PatientName     *string           `json:"patient_name"`
	Symptoms        string            `json:"symptoms"`
	Diagnosis       severity.Severity `json:"diagnosis"`
	Recommendations string            `json:"recommendations"`
}

func (h *Handler) CreateRecord(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	r := &SymptomRecord{
		PatientName:     req.PatientName,
		Symptoms:        req.Symptoms,
		Diagnosis:       req.Diagnosis,
		Recommendations: req.Recommendations,
	}
	if err := h.svc.Create(c.Request().Context(), r); err != nil {
		return writeError(err)
	}
	return c.JSON(http.StatusCreated, r)
}

func (h *Handler) GetRecord(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	r, err := h.svc.Get(c.Request().Context(), id)
	if errors.Is(err, ErrRecordNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "symptom record not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) ListRecords(c echo.Context) error {
	f, err := FilterFromContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []*SymptomRecord{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset).WithLinks(c.Request().URL.Path))
}

func (h *Handler) DeleteRecord(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	err = h.svc.Delete(c.Request().Context(), id)
	if errors.Is(err, ErrRecordNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "symptom record not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) DeleteAllRecords(c echo.Context) error {
	n, err := h.svc.DeleteAll(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]int64{"deleted": n})
}

func (h *Handler) ExportRecords(c echo.Context) error {
	exp, err := h.svc.Export(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="conectaribas-history-%s.json"`, exp.ExportedAt.Format("20060102")))
	return c.JSON(http.StatusOK, exp)
}

func (h *Handler) ImportRecords(c echo.Context) error {
	var exp Export
	if err := c.Bind(&exp); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	n, err := h.svc.Import(c.Request().Context(), &exp)
	if err != nil {
		return writeError(err)
	}
	return c.JSON(http.StatusOK, map[string]int{"imported": n, "skipped": len(exp.Records) - n})
}

// writeError maps rejected input to 400 and storage failures to 500.
func writeError(err error) error {
	if errors.Is(err, ErrInvalidRecord) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

// WatchRecords upgrades to a WebSocket and pushes the filtered history on
// every change until the client disconnects.
func (h *Handler) WatchRecords(c echo.Context) error {
	f, err := FilterFromContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sub := h.svc.WatchFiltered(c.Request().Context(), f)
	return websocket.Serve(c, h.logger, Topic, sub)
}

// FilterFromContext reads from, to, patient and diagnosis query parameters.
// Dates accept RFC 3339 or YYYY-MM-DD; a bare "to" date covers the whole day.
func FilterFromContext(c echo.Context) (Filter, error) {
	var f Filter
	if v := c.QueryParam("from"); v != "" {
		t, _, err := parseDate(v)
		if err != nil {
			return f, fmt.Errorf("invalid from: %w", err)
		}
		f.From = &t
	}
	if v := c.QueryParam("to"); v != "" {
		t, dateOnly, err := parseDate(v)
		if err != nil {
			return f, fmt.Errorf("invalid to: %w", err)
		}
		if dateOnly {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		f.To = &t
	}
	f.Patient = c.QueryParam("patient")
	if v := c.QueryParam("diagnosis"); v != "" {
		sev, err := severity.Parse(v)
		if err != nil {
			return f, err
		}
		f.Diagnosis = sev
	}
	return f, nil
}

func parseDate(v string) (time.Time, bool, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, false, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}
