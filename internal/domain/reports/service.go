// Package reports drives report delivery: waiting out PDF generation,
// emailing the result to the patient, and the spreadsheet export of the
// case list.
package reports

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/labflow/labflow/internal/domain/cases"
	"github.com/labflow/labflow/internal/platform/email"
	"github.com/labflow/labflow/internal/platform/export"
	"github.com/labflow/labflow/internal/platform/retry"
)

var (
	ErrNoRecipient   = errors.New("recipient email is required")
	ErrPDFNotReady   = errors.New("report pdf was not ready within the wait budget")
	ErrNotConfigured = errors.New("email provider is not configured")
)

// CaseSource is the slice of the case service the report flow needs.
type CaseSource interface {
	Get(ctx context.Context, id string) (*cases.Case, error)
	ListAll(ctx context.Context) ([]cases.Case, error)
	Update(ctx context.Context, id string, in cases.UpdateInput) (*cases.Case, error)
}

// Mailer is satisfied by email.Client.
type Mailer interface {
	Configured() bool
	Send(ctx context.Context, msg email.Message) (string, error)
}

type Service struct {
	cases     CaseSource
	mailer    Mailer
	templates *email.TemplateEngine
	policy    retry.Policy
	labName   string
	logger    zerolog.Logger
}

func NewService(cs CaseSource, mailer Mailer, templates *email.TemplateEngine,
	policy retry.Policy, labName string, logger zerolog.Logger) *Service {
	return &Service{
		cases:     cs,
		mailer:    mailer,
		templates: templates,
		policy:    policy,
		labName:   labName,
		logger:    logger,
	}
}

// WaitForPDF polls the case until its report PDF is generated, within the
// bounded retry budget. Budget exhaustion maps to ErrPDFNotReady; context
// cancellation propagates as-is.
func (s *Service) WaitForPDF(ctx context.Context, caseID string) (string, error) {
	var url string
	err := retry.Do(ctx, s.policy, func(ctx context.Context) (bool, error) {
		c, err := s.cases.Get(ctx, caseID)
		if err != nil {
			return false, err
		}
		if c.PDFStatus == cases.PDFGenerado && c.PDFURL != "" {
			url = c.PDFURL
			return true, nil
		}
		return false, nil
	})
	if errors.Is(err, retry.ErrBudgetExhausted) {
		return "", ErrPDFNotReady
	}
	if err != nil {
		return "", err
	}
	return url, nil
}

// DeliveryResult is the outcome of a report delivery.
type DeliveryResult struct {
	MessageID string `json:"messageId"`
	PDFURL    string `json:"pdfUrl"`
	Provider  string `json:"provider"`
}

// Deliver waits for the case PDF, emails it to the recipient and marks the
// case delivered. Marking failure after a successful send is logged, not
// returned: the email left the building.
func (s *Service) Deliver(ctx context.Context, caseID, toEmail string) (*DeliveryResult, error) {
	toEmail = strings.TrimSpace(toEmail)
	if toEmail == "" {
		return nil, ErrNoRecipient
	}
	if !s.mailer.Configured() {
		return nil, ErrNotConfigured
	}

	c, err := s.cases.Get(ctx, caseID)
	if err != nil {
		return nil, err
	}

	pdfURL, err := s.WaitForPDF(ctx, caseID)
	if err != nil {
		return nil, err
	}

	subject, html, err := s.templates.Render(email.TemplateReportReady, map[string]string{
		"patient_name": c.PatientName,
		"case_code":    c.Code,
		"pdf_url":      pdfURL,
		"lab_name":     s.labName,
	})
	if err != nil {
		return nil, err
	}

	msgID, err := s.mailer.Send(ctx, email.Message{To: []string{toEmail}, Subject: subject, HTML: html})
	if err != nil {
		return nil, err
	}

	entregado := cases.DocStatusEntregado
	if _, err := s.cases.Update(ctx, caseID, cases.UpdateInput{DocStatus: &entregado}); err != nil {
		s.logger.Error().Err(err).Str("case_id", caseID).
			Msg("report emailed but case could not be marked delivered")
	}

	return &DeliveryResult{MessageID: msgID, PDFURL: pdfURL, Provider: email.Provider}, nil
}

// ExportRows fetches every visible case as spreadsheet rows.
func (s *Service) ExportRows(ctx context.Context) ([]export.CaseRow, error) {
	list, err := s.cases.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	rows := make([]export.CaseRow, 0, len(list))
	for _, c := range list {
		rows = append(rows, export.CaseRow{
			Code:          c.Code,
			PatientName:   c.PatientName,
			ExamType:      string(c.ExamType),
			Branch:        c.Branch,
			DoctorName:    c.DoctorName,
			Origin:        c.Origin,
			PaymentStatus: c.PaymentStatus,
			DocStatus:     c.DocStatus,
			CreatedAt:     c.CreatedAt,
			DeliveredAt:   c.DeliveredAt,
		})
	}
	return rows, nil
}
