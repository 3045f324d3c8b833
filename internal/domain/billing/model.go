// Package billing tracks invoices, their payments and insurance policies.
// Amounts are integer cents; no floats touch money.
package billing

import (
	"errors"
	"time"
)

// Invoice states.
const (
	InvoicePendiente = "pendiente"
	InvoiceParcial   = "parcial"
	InvoicePagada    = "pagada"
	InvoiceCancelada = "cancelada"
)

// Payment methods.
const (
	MethodEfectivo      = "efectivo"
	MethodTarjeta       = "tarjeta"
	MethodTransferencia = "transferencia"
	MethodAseguradora   = "aseguradora"
)

var (
	ErrInvoiceNotFound = errors.New("invoice not found")
	ErrPolicyNotFound  = errors.New("insurance policy not found")
	ErrInvalidAmount   = errors.New("amount must be positive")
	ErrInvoiceClosed   = errors.New("invoice is closed")
	ErrOverpayment     = errors.New("payment exceeds outstanding balance")
	ErrInvalidMethod   = errors.New("unknown payment method")
	ErrMissingPolicy   = errors.New("provider and policy number are required")
	ErrInvalidCoverage = errors.New("coverage must be between 0 and 100")
)

type Invoice struct {
	ID          string     `json:"id"`
	CaseID      string     `json:"caseId,omitempty"`
	PatientName string     `json:"patientName"`
	AmountCents int64      `json:"amountCents"`
	Currency    string     `json:"currency"`
	Status      string     `json:"status"`
	PolicyID    string     `json:"policyId,omitempty"`
	IssuedAt    time.Time  `json:"issuedAt"`
	PaidAt      *time.Time `json:"paidAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

type Payment struct {
	ID          string    `json:"id"`
	InvoiceID   string    `json:"invoiceId"`
	AmountCents int64     `json:"amountCents"`
	Method      string    `json:"method"`
	Reference   string    `json:"reference,omitempty"`
	PaidAt      time.Time `json:"paidAt"`
}

type Policy struct {
	ID           string     `json:"id"`
	PatientID    string     `json:"patientId"`
	Provider     string     `json:"provider"`
	PolicyNumber string     `json:"policyNumber"`
	CoveragePct  int        `json:"coveragePct"`
	ValidUntil   *time.Time `json:"validUntil,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

func validMethod(m string) bool {
	switch m {
	case MethodEfectivo, MethodTarjeta, MethodTransferencia, MethodAseguradora:
		return true
	}
	return false
}
