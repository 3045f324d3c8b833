package email

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// SendEmailRequest is the /api/send-email payload. All four fields are
// required.
type SendEmailRequest struct {
	PatientEmail string `json:"patientEmail"`
	PatientName  string `json:"patientName"`
	CaseCode     string `json:"caseCode"`
	PDFURL       string `json:"pdfUrl"`
}

// SendEmailResponse mirrors the serverless endpoint contract.
type SendEmailResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	MessageID string `json:"messageId,omitempty"`
	Provider  string `json:"provider"`
}

// Handler serves the email side-channel endpoints.
type Handler struct {
	client    *Client
	templates *TemplateEngine
	labName   string
	env       string
	logger    zerolog.Logger
}

func NewHandler(client *Client, templates *TemplateEngine, labName, env string, logger zerolog.Logger) *Handler {
	return &Handler{client: client, templates: templates, labName: labName, env: env, logger: logger}
}

// RegisterRoutes mounts the endpoints. Echo answers 405 for non-POST on
// /api/send-email since only POST is registered.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/send-email", h.SendEmail)
	api.GET("/test-config", h.TestConfig)
}

func (h *Handler) SendEmail(c echo.Context) error {
	var req SendEmailRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, SendEmailResponse{
			Success: false, Error: "invalid JSON body", Provider: Provider,
		})
	}

	var missing []string
	if strings.TrimSpace(req.PatientEmail) == "" {
		missing = append(missing, "patientEmail")
	}
	if strings.TrimSpace(req.PatientName) == "" {
		missing = append(missing, "patientName")
	}
	if strings.TrimSpace(req.CaseCode) == "" {
		missing = append(missing, "caseCode")
	}
	if strings.TrimSpace(req.PDFURL) == "" {
		missing = append(missing, "pdfUrl")
	}
	if len(missing) > 0 {
		return c.JSON(http.StatusBadRequest, SendEmailResponse{
			Success:  false,
			Error:    "Missing required fields: " + strings.Join(missing, ", "),
			Provider: Provider,
		})
	}

	if !h.client.Configured() {
		h.logger.Error().Msg("send-email called without provider credentials")
		return c.JSON(http.StatusInternalServerError, SendEmailResponse{
			Success: false, Error: "Email provider credentials are not configured", Provider: Provider,
		})
	}

	subject, html, err := h.templates.Render(TemplateReportReady, map[string]string{
		"patient_name": req.PatientName,
		"case_code":    req.CaseCode,
		"pdf_url":      req.PDFURL,
		"lab_name":     h.labName,
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("render report email")
		return c.JSON(http.StatusInternalServerError, SendEmailResponse{
			Success: false, Error: "failed to render email template", Provider: Provider,
		})
	}

	id, err := h.client.Send(c.Request().Context(), Message{
		To:      []string{req.PatientEmail},
		Subject: subject,
		HTML:    html,
	})
	if err != nil {
		h.logger.Error().Err(err).Str("case", req.CaseCode).Msg("provider send failed")
		return c.JSON(http.StatusInternalServerError, SendEmailResponse{
			Success: false, Error: err.Error(), Provider: Provider,
		})
	}

	h.logger.Info().Str("case", req.CaseCode).Str("message_id", id).Msg("report email sent")
	return c.JSON(http.StatusOK, SendEmailResponse{
		Success:   true,
		Message:   "Report email sent",
		MessageID: id,
		Provider:  Provider,
	})
}

// TestConfigResponse reports deployment/credential state; always 200.
type TestConfigResponse struct {
	Configured  bool   `json:"configured"`
	Environment string `json:"environment"`
	Provider    string `json:"provider"`
}

func (h *Handler) TestConfig(c echo.Context) error {
	return c.JSON(http.StatusOK, TestConfigResponse{
		Configured:  h.client.Configured(),
		Environment: h.env,
		Provider:    Provider,
	})
}
