package callcenter

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

const callColumns = `id, caller_name, phone, case_code, reason, notes, status,
	created_by, created_at, updated_at`

func (r *pgRepository) List(ctx context.Context, status string, p pagination.Params) ([]CallLog, int, error) {
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
	if err := conn.QueryRow(ctx, "SELECT COUNT(*) FROM call_logs"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count call logs: %w", err)
	}

	args = append(args, p.Limit(), p.Offset())
	sql := fmt.Sprintf("SELECT "+callColumns+" FROM call_logs"+where+
		" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list call logs: %w", err)
	}
	defer rows.Close()

	out := []CallLog{}
	for rows.Next() {
		var cl CallLog
		if err := rows.Scan(&cl.ID, &cl.CallerName, &cl.Phone, &cl.CaseCode, &cl.Reason,
			&cl.Notes, &cl.Status, &cl.CreatedBy, &cl.CreatedAt, &cl.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan call log: %w", err)
		}
		out = append(out, cl)
	}
	return out, total, rows.Err()
}

func (r *pgRepository) GetByID(ctx context.Context, id string) (*CallLog, error) {
	conn := db.ConnFromContext(ctx)
	if conn == nil {
		return nil, errors.New("no database connection in context")
	}

	var cl CallLog
	err := conn.QueryRow(ctx, "SELECT "+callColumns+" FROM call_logs WHERE id = $1", id).
		Scan(&cl.ID, &cl.CallerName, &cl.Phone, &cl.CaseCode, &cl.Reason,
			&cl.Notes, &cl.Status, &cl.CreatedBy, &cl.CreatedAt, &cl.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get call log: %w", err)
	}
	return &cl, nil
}

func (r *pgRepository) Create(ctx context.Context, cl *CallLog) error {
	conn := db.ConnFromContext(ctx)
	if conn == nil {
		return errors.New("no database connection in context")
	}

	_, err := conn.Exec(ctx, `
		INSERT INTO call_logs (id, caller_name, phone, case_code, reason, notes,
			status, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		cl.ID, cl.CallerName, cl.Phone, cl.CaseCode, cl.Reason, cl.Notes,
		cl.Status, cl.CreatedBy, cl.CreatedAt, cl.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert call log: %w", err)
	}
	return nil
}

func (r *pgRepository) Update(ctx context.Context, cl *CallLog) error {
	conn := db.ConnFromContext(ctx)
	if conn == nil {
		return errors.New("no database connection in context")
	}

	tag, err := conn.Exec(ctx, `
		UPDATE call_logs SET caller_name = $2, phone = $3, case_code = $4,
			reason = $5, notes = $6, status = $7, updated_at = $8
		WHERE id = $1`,
		cl.ID, cl.CallerName, cl.Phone, cl.CaseCode, cl.Reason, cl.Notes,
		cl.Status, cl.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update call log: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
