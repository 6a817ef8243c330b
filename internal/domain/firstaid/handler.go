package firstaid

import (
	"errors"
	"net/http"
	"strconv"

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
	g := api.Group("/first-aid")
	g.GET("", h.ListGuides)
	g.GET("/categories", h.ListCategories)
	g.GET("/watch", h.WatchGuides)
	g.GET("/:id", h.GetGuide)
}

// guideView adds the parsed step and warning lists to a guide.
type guideView struct {
	*Guide
	Steps    []string `json:"steps"`
	Warnings []string `json:"warnings"`
}

func view(g *Guide) guideView {
	return guideView{Guide: g, Steps: g.Steps(), Warnings: g.Warnings()}
}

func filterFromContext(c echo.Context) Filter {
	emergency, _ := strconv.ParseBool(c.QueryParam("emergency"))
	return Filter{
		Category:      c.QueryParam("category"),
		Query:         c.QueryParam("q"),
		EmergencyOnly: emergency,
	}
}

func (h *Handler) ListGuides(c echo.Context) error {
	items, err := h.svc.List(c.Request().Context(), filterFromContext(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	out := make([]guideView, 0, len(items))
	for _, g := range items {
		out = append(out, view(g))
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) GetGuide(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	g, err := h.svc.Get(c.Request().Context(), id)
	if errors.Is(err, ErrGuideNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "first aid guide not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, view(g))
}

func (h *Handler) ListCategories(c echo.Context) error {
	cats, err := h.svc.Categories(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if cats == nil {
		cats = []string{}
	}
	return c.JSON(http.StatusOK, cats)
}

func (h *Handler) WatchGuides(c echo.Context) error {
	sub := h.svc.Watch(c.Request().Context(), filterFromContext(c))
	return websocket.Serve(c, h.logger, Topic, sub)
}
