package cases

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/labflow/labflow/pkg/pagination"
)

const dateParamLayout = "2006-01-02"

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
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
	g.POST("/:id/pdf", h.MarkPDF)
}

func (h *Handler) List(c echo.Context) error {
	q, err := queryFromRequest(c)
	if err != nil {
		return err
	}

	rows, total, err := h.svc.List(c.Request().Context(), q)
	if err != nil {
		return h.mapError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(rows, total, q.Params))
}

func queryFromRequest(c echo.Context) (Query, error) {
	q := Query{Params: pagination.FromContext(c)}
	q.Search = c.QueryParam("search")
	q.DocStatus = c.QueryParam("doc_status")
	q.PDFStatus = c.QueryParam("pdf_status")
	q.CytologyStatus = c.QueryParam("cytology_status")
	q.Branch = c.QueryParam("branch")
	q.PaymentStatus = c.QueryParam("payment_status")
	q.Doctors = c.QueryParams()["doctor"]
	q.Origins = c.QueryParams()["origin"]

	if raw := c.QueryParam("exam_type"); raw != "" {
		et, ok := ParseExamType(raw)
		if !ok {
			return q, echo.NewHTTPError(http.StatusBadRequest, "unknown exam type")
		}
		q.ExamType = et
	}

	var err error
	if q.DateFrom, err = dateParam(c, "date_from"); err != nil {
		return q, err
	}
	if q.DateTo, err = dateParam(c, "date_to"); err != nil {
		return q, err
	}
	return q, nil
}

func dateParam(c echo.Context, name string) (*time.Time, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(dateParamLayout, raw)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, name+" must be YYYY-MM-DD")
	}
	return &t, nil
}

func (h *Handler) Get(c echo.Context) error {
	found, err := h.svc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.mapError(err)
	}
	return c.JSON(http.StatusOK, found)
}

func (h *Handler) Create(c echo.Context) error {
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	created, err := h.svc.Create(c.Request().Context(), in)
	if err != nil {
		return h.mapError(err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) Update(c echo.Context) error {
	var in UpdateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	updated, err := h.svc.Update(c.Request().Context(), c.Param("id"), in)
	if err != nil {
		return h.mapError(err)
	}
	return c.JSON(http.StatusOK, updated)
}

// MarkPDF records the generated report URL once the PDF pipeline finishes.
func (h *Handler) MarkPDF(c echo.Context) error {
	var body struct {
		URL string `json:"url"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if body.URL == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "pdf url is required")
	}

	updated, err := h.svc.MarkPDFReady(c.Request().Context(), c.Param("id"), body.URL)
	if err != nil {
		return h.mapError(err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) Delete(c echo.Context) error {
	if err := h.svc.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return h.mapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) mapError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "case not found")
	case errors.Is(err, ErrInvalidExamType), errors.Is(err, ErrMissingPatient):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNoSession):
		return echo.NewHTTPError(http.StatusUnauthorized, "no role resolved for session")
	default:
		h.logger.Error().Err(err).Msg("case operation failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}
