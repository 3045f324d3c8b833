// Package cases implements the pathology case registry: registration,
// listing with composed filters, per-role visibility, and status tracking
// through the reporting pipeline.
package cases

import (
	"errors"
	"time"
)

// ExamType is the closed set of study types a case can carry.
type ExamType string

const (
	ExamBiopsia   ExamType = "Biopsia"
	ExamCitologia ExamType = "Citologia"
	ExamInmuno    ExamType = "Inmunohistoquimica"
)

// ParseExamType validates a raw exam type value.
func ParseExamType(s string) (ExamType, bool) {
	switch ExamType(s) {
	case ExamBiopsia, ExamCitologia, ExamInmuno:
		return ExamType(s), true
	}
	return "", false
}

// Document lifecycle states.
const (
	DocStatusRegistrado = "registrado"
	DocStatusEnProceso  = "en proceso"
	DocStatusEntregado  = "entregado"
)

// Payment states.
const (
	PaymentPendiente = "pendiente"
	PaymentParcial   = "parcial"
	PaymentPagado    = "pagado"
)

// PDF generation states.
const (
	PDFPendiente = "pendiente"
	PDFGenerado  = "generado"
	PDFError     = "error"
)

// Cytology screening states; only meaningful for Citologia cases.
const (
	CytologyPendiente = "pendiente"
	CytologyEnRevision = "en revision"
	CytologyRevisado  = "revisado"
)

var (
	ErrNotFound        = errors.New("case not found")
	ErrInvalidExamType = errors.New("invalid exam type")
	ErrMissingPatient  = errors.New("patient name is required")
)

// Case is one registered study for a patient.
type Case struct {
	ID             string     `json:"id"`
	Code           string     `json:"code"`
	PatientID      string     `json:"patientId,omitempty"`
	PatientName    string     `json:"patientName"`
	ExamType       ExamType   `json:"examType"`
	Branch         string     `json:"branch,omitempty"`
	DoctorName     string     `json:"doctorName,omitempty"`
	Origin         string     `json:"origin,omitempty"`
	PaymentStatus  string     `json:"paymentStatus"`
	DocStatus      string     `json:"docStatus"`
	PDFStatus      string     `json:"pdfStatus"`
	CytologyStatus string     `json:"cytologyStatus,omitempty"`
	PDFURL         string     `json:"pdfUrl,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	DeliveredAt    *time.Time `json:"deliveredAt,omitempty"`
}
