package billing

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/labflow/labflow/internal/platform/realtime"
	"github.com/labflow/labflow/pkg/pagination"
)

// Table is the realtime topic for invoice change events.
const Table = "invoices"

const defaultCurrency = "MXN"

type Service struct {
	repo   Repository
	events realtime.EventPublisher
	logger zerolog.Logger
}

func NewService(repo Repository, events realtime.EventPublisher, logger zerolog.Logger) *Service {
	return &Service{repo: repo, events: events, logger: logger}
}

func (s *Service) ListInvoices(ctx context.Context, status string, p pagination.Params) ([]Invoice, int, error) {
	return s.repo.ListInvoices(ctx, status, p)
}

// InvoiceDetail pairs an invoice with its payment history.
type InvoiceDetail struct {
	Invoice
	Payments         []Payment `json:"payments"`
	OutstandingCents int64     `json:"outstandingCents"`
}

func (s *Service) GetInvoice(ctx context.Context, id string) (*InvoiceDetail, error) {
	inv, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	payments, err := s.repo.ListPayments(ctx, id)
	if err != nil {
		return nil, err
	}

	var paid int64
	for _, p := range payments {
		paid += p.AmountCents
	}
	return &InvoiceDetail{Invoice: *inv, Payments: payments, OutstandingCents: inv.AmountCents - paid}, nil
}

type CreateInvoiceInput struct {
	CaseID      string `json:"caseId"`
	PatientName string `json:"patientName"`
	AmountCents int64  `json:"amountCents"`
	Currency    string `json:"currency"`
	PolicyID    string `json:"policyId"`
}

func (s *Service) CreateInvoice(ctx context.Context, in CreateInvoiceInput) (*Invoice, error) {
	if in.AmountCents <= 0 {
		return nil, ErrInvalidAmount
	}
	if in.PolicyID != "" {
		if _, err := s.repo.GetPolicy(ctx, in.PolicyID); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	inv := &Invoice{
		ID:          uuid.NewString(),
		CaseID:      in.CaseID,
		PatientName: strings.TrimSpace(in.PatientName),
		AmountCents: in.AmountCents,
		Currency:    in.Currency,
		Status:      InvoicePendiente,
		PolicyID:    in.PolicyID,
		IssuedAt:    now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if inv.Currency == "" {
		inv.Currency = defaultCurrency
	}

	if err := s.repo.CreateInvoice(ctx, inv); err != nil {
		return nil, err
	}
	s.publish(ctx, realtime.EventInsert, inv.ID, inv)
	return inv, nil
}

type PaymentInput struct {
	AmountCents int64  `json:"amountCents"`
	Method      string `json:"method"`
	Reference   string `json:"reference"`
}

// RecordPayment adds a payment and rolls the invoice status forward:
// pendiente → parcial while a balance remains, pagada when covered. Closed
// invoices reject payments; overpayment is refused rather than truncated.
func (s *Service) RecordPayment(ctx context.Context, invoiceID string, in PaymentInput) (*InvoiceDetail, error) {
	if in.AmountCents <= 0 {
		return nil, ErrInvalidAmount
	}
	if !validMethod(in.Method) {
		return nil, ErrInvalidMethod
	}

	inv, err := s.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.Status == InvoicePagada || inv.Status == InvoiceCancelada {
		return nil, ErrInvoiceClosed
	}

	payments, err := s.repo.ListPayments(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	var paid int64
	for _, p := range payments {
		paid += p.AmountCents
	}
	if paid+in.AmountCents > inv.AmountCents {
		return nil, ErrOverpayment
	}

	now := time.Now().UTC()
	payment := &Payment{
		ID:          uuid.NewString(),
		InvoiceID:   invoiceID,
		AmountCents: in.AmountCents,
		Method:      in.Method,
		Reference:   strings.TrimSpace(in.Reference),
		PaidAt:      now,
	}
	if err := s.repo.CreatePayment(ctx, payment); err != nil {
		return nil, err
	}

	paid += in.AmountCents
	if paid == inv.AmountCents {
		inv.Status = InvoicePagada
		inv.PaidAt = &now
	} else {
		inv.Status = InvoiceParcial
	}
	inv.UpdatedAt = now
	if err := s.repo.UpdateInvoice(ctx, inv); err != nil {
		return nil, err
	}

	s.publish(ctx, realtime.EventUpdate, inv.ID, inv)
	return &InvoiceDetail{
		Invoice:          *inv,
		Payments:         append(payments, *payment),
		OutstandingCents: inv.AmountCents - paid,
	}, nil
}

// CancelInvoice closes an invoice without payment.
func (s *Service) CancelInvoice(ctx context.Context, id string) (*Invoice, error) {
	inv, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.Status == InvoicePagada || inv.Status == InvoiceCancelada {
		return nil, ErrInvoiceClosed
	}

	inv.Status = InvoiceCancelada
	inv.UpdatedAt = time.Now().UTC()
	if err := s.repo.UpdateInvoice(ctx, inv); err != nil {
		return nil, err
	}
	s.publish(ctx, realtime.EventUpdate, inv.ID, inv)
	return inv, nil
}

type PolicyInput struct {
	PatientID    string     `json:"patientId"`
	Provider     string     `json:"provider"`
	PolicyNumber string     `json:"policyNumber"`
	CoveragePct  int        `json:"coveragePct"`
	ValidUntil   *time.Time `json:"validUntil"`
}

func (s *Service) CreatePolicy(ctx context.Context, in PolicyInput) (*Policy, error) {
	in.Provider = strings.TrimSpace(in.Provider)
	in.PolicyNumber = strings.TrimSpace(in.PolicyNumber)
	if in.Provider == "" || in.PolicyNumber == "" {
		return nil, ErrMissingPolicy
	}
	if in.CoveragePct < 0 || in.CoveragePct > 100 {
		return nil, ErrInvalidCoverage
	}

	now := time.Now().UTC()
	pol := &Policy{
		ID:           uuid.NewString(),
		PatientID:    in.PatientID,
		Provider:     in.Provider,
		PolicyNumber: in.PolicyNumber,
		CoveragePct:  in.CoveragePct,
		ValidUntil:   in.ValidUntil,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.CreatePolicy(ctx, pol); err != nil {
		return nil, err
	}
	return pol, nil
}

func (s *Service) ListPolicies(ctx context.Context, patientID string) ([]Policy, error) {
	return s.repo.ListPolicies(ctx, patientID)
}

func (s *Service) publish(ctx context.Context, t realtime.EventType, id string, inv *Invoice) {
	if s.events == nil {
		return
	}
	var data json.RawMessage
	if inv != nil {
		data, _ = json.Marshal(inv)
	}
	evt := realtime.Event{Table: Table, Type: t, RowID: id, Timestamp: time.Now().UTC(), Data: data}
	if err := s.events.Publish(ctx, evt); err != nil {
		s.logger.Warn().Err(err).Str("invoice_id", id).Msg("invoice change event dropped")
	}
}
