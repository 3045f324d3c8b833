package callcenter

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/labflow/labflow/pkg/pagination"
)

type Handler struct {
	svc    *Service
	logger zerolog.Logger
}

func NewHandler(svc *Service, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
	g.POST("/:id/resolve", h.Resolve)
}

func (h *Handler) List(c echo.Context) error {
	p := pagination.FromContext(c)
	rows, total, err := h.svc.List(c.Request().Context(), c.QueryParam("status"), p)
	if err != nil {
		return h.mapError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(rows, total, p))
}

func (h *Handler) Get(c echo.Context) error {
	cl, err := h.svc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.mapError(err)
	}
	return c.JSON(http.StatusOK, cl)
}

func (h *Handler) Create(c echo.Context) error {
	var in Input
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	cl, err := h.svc.Create(c.Request().Context(), in)
	if err != nil {
		return h.mapError(err)
	}
	return c.JSON(http.StatusCreated, cl)
}

func (h *Handler) Resolve(c echo.Context) error {
	var body struct {
		Notes string `json:"notes"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	cl, err := h.svc.Resolve(c.Request().Context(), c.Param("id"), body.Notes)
	if err != nil {
		return h.mapError(err)
	}
	return c.JSON(http.StatusOK, cl)
}

func (h *Handler) mapError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "call log not found")
	case errors.Is(err, ErrMissingCaller):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		h.logger.Error().Err(err).Msg("call center operation failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}
