package billing

import (
	"context"

	"github.com/labflow/labflow/pkg/pagination"
)

// Repository is the persistence boundary for billing.
type Repository interface {
	ListInvoices(ctx context.Context, status string, p pagination.Params) ([]Invoice, int, error)
	GetInvoice(ctx context.Context, id string) (*Invoice, error)
	CreateInvoice(ctx context.Context, inv *Invoice) error
	UpdateInvoice(ctx context.Context, inv *Invoice) error

	ListPayments(ctx context.Context, invoiceID string) ([]Payment, error)
	CreatePayment(ctx context.Context, p *Payment) error

	GetPolicy(ctx context.Context, id string) (*Policy, error)
	ListPolicies(ctx context.Context, patientID string) ([]Policy, error)
	CreatePolicy(ctx context.Context, pol *Policy) error
}
