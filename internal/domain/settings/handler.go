package settings

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/settings")
	g.GET("", h.GetSettings)
	g.PUT("", h.UpdateSettings)
	g.GET("/languages", h.ListLanguages)
	g.DELETE("/data", h.ClearAllData)
}

func (h *Handler) GetSettings(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.Get())
}

func (h *Handler) UpdateSettings(c echo.Context) error {
	var u Update
	if err := c.Bind(&u); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	prefs, err := h.svc.Update(u)
	if errors.Is(err, ErrUnsupportedLanguage) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, prefs)
}

func (h *Handler) ListLanguages(c echo.Context) error {
	return c.JSON(http.StatusOK, AvailableLanguages())
}

func (h *Handler) ClearAllData(c echo.Context) error {
	if err := h.svc.ClearAllData(c.Request().Context()); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
