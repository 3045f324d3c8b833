package laboratory

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

type Handler struct {
	svc    *Service
	logger zerolog.Logger
}

func NewHandler(svc *Service, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("", h.Get)
	g.PUT("", h.Update)
}

func (h *Handler) Get(c echo.Context) error {
	lab, err := h.svc.Get(c.Request().Context())
	if err != nil {
		return h.mapError(err)
	}
	return c.JSON(http.StatusOK, lab)
}

func (h *Handler) Update(c echo.Context) error {
	var in UpdateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	lab, err := h.svc.Update(c.Request().Context(), in)
	if err != nil {
		return h.mapError(err)
	}
	return c.JSON(http.StatusOK, lab)
}

func (h *Handler) mapError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "laboratory record not found")
	case errors.Is(err, ErrMissingName):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		h.logger.Error().Err(err).Msg("laboratory operation failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}
