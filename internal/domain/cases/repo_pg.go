package cases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/labflow/labflow/internal/platform/db"
)

// pgRepository reads the tenant-scoped connection from the request context;
// the tenant middleware has already pinned the schema on its search_path.
type pgRepository struct{}

func NewPgRepository() Repository { return &pgRepository{} }

const caseColumns = `id, code, patient_id, patient_name, exam_type, branch,
	doctor_name, origin, payment_status, doc_status, pdf_status,
	cytology_status, pdf_url, created_at, updated_at, delivered_at`

// buildFilter renders every filter and visibility restriction into one
// WHERE clause. The count and list queries share its output verbatim.
func buildFilter(q Query) (string, []interface{}) {
	var b strings.Builder
	b.WriteString(" WHERE 1=1")
	var args []interface{}

	arg := func(v interface{}) int {
		args = append(args, v)
		return len(args)
	}

	if q.Search != "" {
		n := arg("%" + q.Search + "%")
		fmt.Fprintf(&b, " AND (code ILIKE $%d OR patient_name ILIKE $%d OR doctor_name ILIKE $%d)", n, n, n)
	}
	if q.ExamType != "" {
		fmt.Fprintf(&b, " AND exam_type = $%d", arg(string(q.ExamType)))
	}
	if q.DocStatus != "" {
		fmt.Fprintf(&b, " AND doc_status = $%d", arg(q.DocStatus))
	}
	if q.PDFStatus != "" {
		fmt.Fprintf(&b, " AND pdf_status = $%d", arg(q.PDFStatus))
	}
	if q.CytologyStatus != "" {
		fmt.Fprintf(&b, " AND cytology_status = $%d", arg(q.CytologyStatus))
	}
	if q.Branch != "" {
		fmt.Fprintf(&b, " AND branch = $%d", arg(q.Branch))
	}
	if q.PaymentStatus != "" {
		fmt.Fprintf(&b, " AND payment_status = $%d", arg(q.PaymentStatus))
	}
	if len(q.Doctors) > 0 {
		fmt.Fprintf(&b, " AND doctor_name = ANY($%d)", arg(q.Doctors))
	}
	if len(q.Origins) > 0 {
		fmt.Fprintf(&b, " AND origin = ANY($%d)", arg(q.Origins))
	}
	if q.DateFrom != nil {
		fmt.Fprintf(&b, " AND created_at >= $%d", arg(*q.DateFrom))
	}
	if q.DateTo != nil {
		fmt.Fprintf(&b, " AND created_at <= $%d", arg(*q.DateTo))
	}

	if len(q.VisibleExamTypes) > 0 {
		vals := make([]string, len(q.VisibleExamTypes))
		for i, et := range q.VisibleExamTypes {
			vals[i] = string(et)
		}
		fmt.Fprintf(&b, " AND exam_type = ANY($%d)", arg(vals))
	}
	if q.VisibleBranch != "" {
		fmt.Fprintf(&b, " AND branch = $%d", arg(q.VisibleBranch))
	}

	return b.String(), args
}

func (r *pgRepository) List(ctx context.Context, q Query) ([]Case, int, error) {
	conn := db.ConnFromContext(ctx)
	if conn == nil {
		return nil, 0, errors.New("no database connection in context")
	}

	where, args := buildFilter(q)

	var total int
	if err := conn.QueryRow(ctx, "SELECT COUNT(*) FROM cases"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count cases: %w", err)
	}

	sql := "SELECT " + caseColumns + " FROM cases" + where + " ORDER BY created_at DESC, code DESC"
	if q.Paginated() {
		args = append(args, q.Limit(), q.Offset())
		sql += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list cases: %w", err)
	}
	defer rows.Close()

	out := []Case{}
	for rows.Next() {
		var c Case
		if err := scanCase(rows, &c); err != nil {
			return nil, 0, fmt.Errorf("scan case: %w", err)
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

type scannable interface {
	Scan(dest ...interface{}) error
}

func scanCase(row scannable, c *Case) error {
	return row.Scan(
		&c.ID, &c.Code, &c.PatientID, &c.PatientName, &c.ExamType, &c.Branch,
		&c.DoctorName, &c.Origin, &c.PaymentStatus, &c.DocStatus, &c.PDFStatus,
		&c.CytologyStatus, &c.PDFURL, &c.CreatedAt, &c.UpdatedAt, &c.DeliveredAt,
	)
}

func (r *pgRepository) GetByID(ctx context.Context, id string) (*Case, error) {
	return r.getOne(ctx, "id", id)
}

func (r *pgRepository) GetByCode(ctx context.Context, code string) (*Case, error) {
	return r.getOne(ctx, "code", code)
}

func (r *pgRepository) getOne(ctx context.Context, col, val string) (*Case, error) {
	conn := db.ConnFromContext(ctx)
	if conn == nil {
		return nil, errors.New("no database connection in context")
	}

	var c Case
	err := scanCase(conn.QueryRow(ctx,
		"SELECT "+caseColumns+" FROM cases WHERE "+col+" = $1", val), &c)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get case by %s: %w", col, err)
	}
	return &c, nil
}

func (r *pgRepository) Create(ctx context.Context, c *Case) error {
	conn := db.ConnFromContext(ctx)
	if conn == nil {
		return errors.New("no database connection in context")
	}

	_, err := conn.Exec(ctx, `
		INSERT INTO cases (
			id, code, patient_id, patient_name, exam_type, branch, doctor_name,
			origin, payment_status, doc_status, pdf_status, cytology_status,
			pdf_url, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		c.ID, c.Code, c.PatientID, c.PatientName, string(c.ExamType), c.Branch,
		c.DoctorName, c.Origin, c.PaymentStatus, c.DocStatus, c.PDFStatus,
		c.CytologyStatus, c.PDFURL, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert case: %w", err)
	}
	return nil
}

func (r *pgRepository) Update(ctx context.Context, c *Case) error {
	conn := db.ConnFromContext(ctx)
	if conn == nil {
		return errors.New("no database connection in context")
	}

	tag, err := conn.Exec(ctx, `
		UPDATE cases SET
			patient_id = $2, patient_name = $3, exam_type = $4, branch = $5,
			doctor_name = $6, origin = $7, payment_status = $8, doc_status = $9,
			pdf_status = $10, cytology_status = $11, pdf_url = $12,
			updated_at = $13, delivered_at = $14
		WHERE id = $1`,
		c.ID, c.PatientID, c.PatientName, string(c.ExamType), c.Branch,
		c.DoctorName, c.Origin, c.PaymentStatus, c.DocStatus, c.PDFStatus,
		c.CytologyStatus, c.PDFURL, c.UpdatedAt, c.DeliveredAt,
	)
	if err != nil {
		return fmt.Errorf("update case: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgRepository) SetPDF(ctx context.Context, id, url, status string) error {
	conn := db.ConnFromContext(ctx)
	if conn == nil {
		return errors.New("no database connection in context")
	}

	tag, err := conn.Exec(ctx,
		"UPDATE cases SET pdf_url = $2, pdf_status = $3, updated_at = $4 WHERE id = $1",
		id, url, status, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("set case pdf: %w", err)
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

	tag, err := conn.Exec(ctx, "DELETE FROM cases WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete case: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
