package billing

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

// RegisterRoutes mounts invoices and payments; the insurance sub-resource
// is mounted separately so its feature flag can gate it independently.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/invoices", h.ListInvoices)
	g.POST("/invoices", h.CreateInvoice)
	g.GET("/invoices/:id", h.GetInvoice)
	g.POST("/invoices/:id/payments", h.RecordPayment)
	g.POST("/invoices/:id/cancel", h.CancelInvoice)
}

// RegisterInsuranceRoutes mounts the policy endpoints.
func (h *Handler) RegisterInsuranceRoutes(g *echo.Group) {
	g.GET("/policies", h.ListPolicies)
	g.POST("/policies", h.CreatePolicy)
}

func (h *Handler) ListInvoices(c echo.Context) error {
	p := pagination.FromContext(c)
	rows, total, err := h.svc.ListInvoices(c.Request().Context(), c.QueryParam("status"), p)
	if err != nil {
		return h.mapError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(rows, total, p))
}

func (h *Handler) GetInvoice(c echo.Context) error {
	detail, err := h.svc.GetInvoice(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.mapError(err)
	}
	return c.JSON(http.StatusOK, detail)
}

func (h *Handler) CreateInvoice(c echo.Context) error {
	var in CreateInvoiceInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	inv, err := h.svc.CreateInvoice(c.Request().Context(), in)
	if err != nil {
		return h.mapError(err)
	}
	return c.JSON(http.StatusCreated, inv)
}

func (h *Handler) RecordPayment(c echo.Context) error {
	var in PaymentInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	detail, err := h.svc.RecordPayment(c.Request().Context(), c.Param("id"), in)
	if err != nil {
		return h.mapError(err)
	}
	return c.JSON(http.StatusOK, detail)
}

func (h *Handler) CancelInvoice(c echo.Context) error {
	inv, err := h.svc.CancelInvoice(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.mapError(err)
	}
	return c.JSON(http.StatusOK, inv)
}

func (h *Handler) ListPolicies(c echo.Context) error {
	policies, err := h.svc.ListPolicies(c.Request().Context(), c.QueryParam("patient_id"))
	if err != nil {
		return h.mapError(err)
	}
	return c.JSON(http.StatusOK, policies)
}

func (h *Handler) CreatePolicy(c echo.Context) error {
	var in PolicyInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	pol, err := h.svc.CreatePolicy(c.Request().Context(), in)
	if err != nil {
		return h.mapError(err)
	}
	return c.JSON(http.StatusCreated, pol)
}

func (h *Handler) mapError(err error) error {
	switch {
	case errors.Is(err, ErrInvoiceNotFound), errors.Is(err, ErrPolicyNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrInvalidMethod),
		errors.Is(err, ErrMissingPolicy), errors.Is(err, ErrInvalidCoverage):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrInvoiceClosed), errors.Is(err, ErrOverpayment):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		h.logger.Error().Err(err).Msg("billing operation failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}
