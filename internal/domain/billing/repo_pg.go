package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/labflow/labflow/internal/platform/db"
	"github.com/labflow/labflow/pkg/pagination"
)

type pgRepository struct{}

func NewPgRepository() Repository { return &pgRepository{} }

const invoiceColumns = `id, case_id, patient_name, amount_cents, currency,
	status, policy_id, issued_at, paid_at, created_at, updated_at`

func (r *pgRepository) ListInvoices(ctx context.Context, status string, p pagination.Params) ([]Invoice, int, error) {
	conn := db.ConnFromContext(ctx)
	if conn == nil {
		return nil, 0, errors.New("no database connection in context")
	}

	where := " WHERE 1=1"
	args := []interface{}{}
	if status != "" {
		args = append(args, status)
		where += " AND status = $1"
	}

	var total int
	if err := conn.QueryRow(ctx, "SELECT COUNT(*) FROM invoices"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count invoices: %w", err)
	}

	args = append(args, p.Limit(), p.Offset())
	sql := fmt.Sprintf("SELECT "+invoiceColumns+" FROM invoices"+where+
		" ORDER BY issued_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	out := []Invoice{}
	for rows.Next() {
		var inv Invoice
		if err := scanInvoice(rows, &inv); err != nil {
			return nil, 0, fmt.Errorf("scan invoice: %w", err)
		}
		out = append(out, inv)
	}
	return out, total, rows.Err()
}

type scannable interface {
	Scan(dest ...interface{}) error
}

func scanInvoice(row scannable, inv *Invoice) error {
	return row.Scan(&inv.ID, &inv.CaseID, &inv.PatientName, &inv.AmountCents,
		&inv.Currency, &inv.Status, &inv.PolicyID, &inv.IssuedAt, &inv.PaidAt,
		&inv.CreatedAt, &inv.UpdatedAt)
}

func (r *pgRepository) GetInvoice(ctx context.Context, id string) (*Invoice, error) {
	conn := db.ConnFromContext(ctx)
	if conn == nil {
		return nil, errors.New("no database connection in context")
	}

	var inv Invoice
	err := scanInvoice(conn.QueryRow(ctx,
		"SELECT "+invoiceColumns+" FROM invoices WHERE id = $1", id), &inv)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInvoiceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	return &inv, nil
}

func (r *pgRepository) CreateInvoice(ctx context.Context, inv *Invoice) error {
	conn := db.ConnFromContext(ctx)
	if conn == nil {
		return errors.New("no database connection in context")
	}

	_, err := conn.Exec(ctx, `
		INSERT INTO invoices (id, case_id, patient_name, amount_cents, currency,
			status, policy_id, issued_at, paid_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		inv.ID, inv.CaseID, inv.PatientName, inv.AmountCents, inv.Currency,
		inv.Status, inv.PolicyID, inv.IssuedAt, inv.PaidAt, inv.CreatedAt, inv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert invoice: %w", err)
	}
	return nil
}

func (r *pgRepository) UpdateInvoice(ctx context.Context, inv *Invoice) error {
	conn := db.ConnFromContext(ctx)
	if conn == nil {
		return errors.New("no database connection in context")
	}

	tag, err := conn.Exec(ctx, `
		UPDATE invoices SET status = $2, paid_at = $3, updated_at = $4 WHERE id = $1`,
		inv.ID, inv.Status, inv.PaidAt, inv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update invoice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

func (r *pgRepository) ListPayments(ctx context.Context, invoiceID string) ([]Payment, error) {
	conn := db.ConnFromContext(ctx)
	if conn == nil {
		return nil, errors.New("no database connection in context")
	}

	rows, err := conn.Query(ctx, `
		SELECT id, invoice_id, amount_cents, method, reference, paid_at
		FROM payments WHERE invoice_id = $1 ORDER BY paid_at`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	out := []Payment{}
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.InvoiceID, &p.AmountCents, &p.Method,
			&p.Reference, &p.PaidAt); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *pgRepository) CreatePayment(ctx context.Context, p *Payment) error {
	conn := db.ConnFromContext(ctx)
	if conn == nil {
		return errors.New("no database connection in context")
	}

	_, err := conn.Exec(ctx, `
		INSERT INTO payments (id, invoice_id, amount_cents, method, reference, paid_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.InvoiceID, p.AmountCents, p.Method, p.Reference, p.PaidAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (r *pgRepository) GetPolicy(ctx context.Context, id string) (*Policy, error) {
	conn := db.ConnFromContext(ctx)
	if conn == nil {
		return nil, errors.New("no database connection in context")
	}

	var pol Policy
	err := conn.QueryRow(ctx, `
		SELECT id, patient_id, provider, policy_number, coverage_pct, valid_until, created_at, updated_at
		FROM insurance_policies WHERE id = $1`, id,
	).Scan(&pol.ID, &pol.PatientID, &pol.Provider, &pol.PolicyNumber,
		&pol.CoveragePct, &pol.ValidUntil, &pol.CreatedAt, &pol.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPolicyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get policy: %w", err)
	}
	return &pol, nil
}

func (r *pgRepository) ListPolicies(ctx context.Context, patientID string) ([]Policy, error) {
	conn := db.ConnFromContext(ctx)
	if conn == nil {
		return nil, errors.New("no database connection in context")
	}

	where := ""
	args := []interface{}{}
	if patientID != "" {
		where = " WHERE patient_id = $1"
		args = append(args, patientID)
	}

	rows, err := conn.Query(ctx, `
		SELECT id, patient_id, provider, policy_number, coverage_pct, valid_until, created_at, updated_at
		FROM insurance_policies`+where+" ORDER BY created_at DESC", args...)
	if err != nil {
		return nil, fmt.Errorf("list policies: %w", err)
	}
	defer rows.Close()

	out := []Policy{}
	for rows.Next() {
		var pol Policy
		if err := rows.Scan(&pol.ID, &pol.PatientID, &pol.Provider, &pol.PolicyNumber,
			&pol.CoveragePct, &pol.ValidUntil, &pol.CreatedAt, &pol.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan policy: %w", err)
		}
		out = append(out, pol)
	}
	return out, rows.Err()
}

func (r *pgRepository) CreatePolicy(ctx context.Context, pol *Policy) error {
	conn := db.ConnFromContext(ctx)
	if conn == nil {
		return errors.New("no database connection in context")
	}

	_, err := conn.Exec(ctx, `
		INSERT INTO insurance_policies (id, patient_id, provider, policy_number,
			coverage_pct, valid_until, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		pol.ID, pol.PatientID, pol.Provider, pol.PolicyNumber, pol.CoveragePct,
		pol.ValidUntil, pol.CreatedAt, pol.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert policy: %w", err)
	}
	return nil
}
