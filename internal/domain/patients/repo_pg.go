package patients

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

const patientColumns = `id, first_name, last_name, email, phone, birth_date,
	gender, created_at, updated_at`

func (r *pgRepository) List(ctx context.Context, search string, p pagination.Params) ([]Patient, int, error) {
	conn := db.ConnFromContext(ctx)
	if conn == nil {
		return nil, 0, errors.New("no database connection in context")
	}

	where := " WHERE 1=1"
	args := []interface{}{}
	if search != "" {
		args = append(args, "%"+search+"%")
		where += " AND (first_name ILIKE $1 OR last_name ILIKE $1 OR email ILIKE $1)"
	}

	var total int
	if err := conn.QueryRow(ctx, "SELECT COUNT(*) FROM patients"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count patients: %w", err)
	}

	args = append(args, p.Limit(), p.Offset())
	sql := fmt.Sprintf("SELECT "+patientColumns+" FROM patients"+where+
		" ORDER BY last_name, first_name LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list patients: %w", err)
	}
	defer rows.Close()

	out := []Patient{}
	for rows.Next() {
		var pt Patient
		if err := rows.Scan(&pt.ID, &pt.FirstName, &pt.LastName, &pt.Email, &pt.Phone,
			&pt.BirthDate, &pt.Gender, &pt.CreatedAt, &pt.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan patient: %w", err)
		}
		out = append(out, pt)
	}
	return out, total, rows.Err()
}

func (r *pgRepository) GetByID(ctx context.Context, id string) (*Patient, error) {
	conn := db.ConnFromContext(ctx)
	if conn == nil {
		return nil, errors.New("no database connection in context")
	}

	var pt Patient
	err := conn.QueryRow(ctx, "SELECT "+patientColumns+" FROM patients WHERE id = $1", id).
		Scan(&pt.ID, &pt.FirstName, &pt.LastName, &pt.Email, &pt.Phone,
			&pt.BirthDate, &pt.Gender, &pt.CreatedAt, &pt.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get patient: %w", err)
	}
	return &pt, nil
}

func (r *pgRepository) Create(ctx context.Context, pt *Patient) error {
	conn := db.ConnFromContext(ctx)
	if conn == nil {
		return errors.New("no database connection in context")
	}

	_, err := conn.Exec(ctx, `
		INSERT INTO patients (id, first_name, last_name, email, phone, birth_date, gender, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		pt.ID, pt.FirstName, pt.LastName, pt.Email, pt.Phone, pt.BirthDate,
		pt.Gender, pt.CreatedAt, pt.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert patient: %w", err)
	}
	return nil
}

func (r *pgRepository) Update(ctx context.Context, pt *Patient) error {
	conn := db.ConnFromContext(ctx)
	if conn == nil {
		return errors.New("no database connection in context")
	}

	tag, err := conn.Exec(ctx, `
		UPDATE patients SET first_name = $2, last_name = $3, email = $4,
			phone = $5, birth_date = $6, gender = $7, updated_at = $8
		WHERE id = $1`,
		pt.ID, pt.FirstName, pt.LastName, pt.Email, pt.Phone, pt.BirthDate,
		pt.Gender, pt.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update patient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgRepository) Delete(ctx context.Context, id string) error {
	conn := db.ConnFromContext(ctx)
	if conn == nil {
		return errors.New("no database connection in context")
	}

	tag, err := conn.Exec(ctx, "DELETE FROM patients WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete patient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
