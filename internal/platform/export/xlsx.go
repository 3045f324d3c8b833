// Package export builds spreadsheet downloads from in-memory row lists.
// Serialization is synchronous and bounded by the row count; callers fetch
// rows first and hand them over complete.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

// CaseRow is one spreadsheet line of the case export.
type CaseRow struct {
	Code          string
	PatientName   string
	ExamType      string
	Branch        string
	DoctorName    string
	Origin        string
	PaymentStatus string
	DocStatus     string
	CreatedAt     time.Time
	DeliveredAt   *time.Time
}

const caseSheetName = "Casos"

var caseHeaders = []interface{}{
	"Código", "Paciente", "Estudio", "Sucursal", "Médico", "Procedencia",
	"Estado de pago", "Estado de documento", "Registrado", "Entregado",
}

const dateLayout = "2006-01-02 15:04"

// CaseSheet builds an .xlsx workbook from the given rows. The caller owns
// closing the returned file.
func CaseSheet(rows []CaseRow) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", caseSheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	if err := f.SetSheetRow(caseSheetName, "A1", &caseHeaders); err != nil {
		return nil, fmt.Errorf("write header row: %w", err)
	}

	for i, row := range rows {
		delivered := ""
		if row.DeliveredAt != nil {
			delivered = row.DeliveredAt.Format(dateLayout)
		}
		values := []interface{}{
			row.Code, row.PatientName, row.ExamType, row.Branch, row.DoctorName,
			row.Origin, row.PaymentStatus, row.DocStatus,
			row.CreatedAt.Format(dateLayout), delivered,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("row %d cell name: %w", i, err)
		}
		if err := f.SetSheetRow(caseSheetName, cell, &values); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i, err)
		}
	}

	return f, nil
}

// WriteCaseSheet serializes the workbook for rows into w.
func WriteCaseSheet(w io.Writer, rows []CaseRow) error {
	f, err := CaseSheet(rows)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}
