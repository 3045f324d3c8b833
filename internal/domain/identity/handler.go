package identity

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/labflow/labflow/internal/platform/auth"
)

// ForceSignoutHeader tells the client to discard its session immediately.
// Set when authentication succeeded but the profile row no longer exists.
const ForceSignoutHeader = "X-Force-Signout"

type Handler struct {
	svc    *Service
	logger zerolog.Logger
}

func NewHandler(svc *Service, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/me", h.Me)
	g.PATCH("/me/branding", h.UpdateBranding)
	g.POST("/profiles", h.Create)
}

func (h *Handler) Me(c echo.Context) error {
	p, err := h.svc.Me(c.Request().Context())
	if err != nil {
		return h.mapError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdateBranding(c echo.Context) error {
	var b Branding
	if err := c.Bind(&b); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	p, err := h.svc.UpdateBranding(c.Request().Context(), b)
	if err != nil {
		return h.mapError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Create(c echo.Context) error {
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	p, err := h.svc.Create(c.Request().Context(), in)
	if err != nil {
		return h.mapError(c, err)
	}
	return c.JSON(http.StatusCreated, p)
}

// mapError turns a missing profile into a forced signout: 401 with the
// signout header and the entry path, so a stale session heals itself
// instead of looping on errors.
func (h *Handler) mapError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, ErrProfileNotFound):
		c.Response().Header().Set(ForceSignoutHeader, "1")
		return c.JSON(http.StatusUnauthorized, map[string]string{
			"error":    "session has no profile",
			"redirect": auth.EntryPath,
		})
	case errors.Is(err, ErrNoSession):
		return echo.NewHTTPError(http.StatusUnauthorized, "no session")
	case errors.Is(err, ErrMissingEmail), errors.Is(err, ErrInvalidRole),
		errors.Is(err, ErrBrandingTooBig):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		h.logger.Error().Err(err).Msg("identity operation failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}
