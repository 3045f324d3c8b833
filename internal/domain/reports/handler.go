package reports

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/labflow/labflow/internal/domain/cases"
	"github.com/labflow/labflow/internal/platform/export"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Handler struct {
	svc    *Service
	logger zerolog.Logger
}

func NewHandler(svc *Service, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/:id/deliver", h.Deliver)
}

// RegisterExportRoutes mounts the spreadsheet download; gated separately by
// the export feature flag.
func (h *Handler) RegisterExportRoutes(g *echo.Group) {
	g.GET("/export", h.ExportCases)
}

func (h *Handler) Deliver(c echo.Context) error {
	var body struct {
		Email string `json:"email"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	result, err := h.svc.Deliver(c.Request().Context(), c.Param("id"), body.Email)
	if err != nil {
		return h.mapError(err)
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) ExportCases(c echo.Context) error {
	rows, err := h.svc.ExportRows(c.Request().Context())
	if err != nil {
		return h.mapError(err)
	}

	c.Response().Header().Set(echo.HeaderContentType, xlsxContentType)
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="casos.xlsx"`)
	c.Response().WriteHeader(http.StatusOK)
	return export.WriteCaseSheet(c.Response(), rows)
}

func (h *Handler) mapError(err error) error {
	switch {
	case errors.Is(err, cases.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "case not found")
	case errors.Is(err, ErrNoRecipient):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrPDFNotReady):
		return echo.NewHTTPError(http.StatusGatewayTimeout, err.Error())
	case errors.Is(err, ErrNotConfigured):
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	case errors.Is(err, cases.ErrNoSession):
		return echo.NewHTTPError(http.StatusUnauthorized, "no role resolved for session")
	default:
		h.logger.Error().Err(err).Msg("report operation failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}
