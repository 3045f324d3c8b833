package cases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/labflow/labflow/internal/platform/auth"
	"github.com/labflow/labflow/internal/platform/realtime"
)

// Table is the realtime topic for case change events.
const Table = "cases"

var ErrNoSession = errors.New("no session role in context")

// Service applies session visibility and publishes change events; all
// persistence goes through the repository.
type Service struct {
	repo   Repository
	events realtime.EventPublisher
	logger zerolog.Logger
}

func NewService(repo Repository, events realtime.EventPublisher, logger zerolog.Logger) *Service {
	return &Service{repo: repo, events: events, logger: logger}
}

// List runs a paginated case query. The session's visibility rules are
// stamped onto the query and evaluated in SQL together with the user
// filters; the returned rows are served as-is, never filtered again.
func (s *Service) List(ctx context.Context, q Query) ([]Case, int, error) {
	role, ok := auth.RoleFromContext(ctx)
	if !ok {
		return nil, 0, ErrNoSession
	}

	q.Normalize()
	q.Restrict(Visibility(role, auth.BranchFromContext(ctx)))
	return s.repo.List(ctx, q)
}

// ListAll fetches every case the session may see, without a page window.
// This is the export path: rows come back unrestricted from the repository
// and the visibility rules are applied once, in memory.
func (s *Service) ListAll(ctx context.Context) ([]Case, error) {
	role, ok := auth.RoleFromContext(ctx)
	if !ok {
		return nil, ErrNoSession
	}

	rows, _, err := s.repo.List(ctx, Query{})
	if err != nil {
		return nil, err
	}
	return FilterVisible(rows, Visibility(role, auth.BranchFromContext(ctx))), nil
}

func (s *Service) Get(ctx context.Context, id string) (*Case, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByCode(ctx context.Context, code string) (*Case, error) {
	return s.repo.GetByCode(ctx, code)
}

// CreateInput is the registration payload.
type CreateInput struct {
	Code          string `json:"code"`
	PatientID     string `json:"patientId"`
	PatientName   string `json:"patientName"`
	ExamType      string `json:"examType"`
	Branch        string `json:"branch"`
	DoctorName    string `json:"doctorName"`
	Origin        string `json:"origin"`
	PaymentStatus string `json:"paymentStatus"`
}

// Create registers a new case. A missing code is generated from the exam
// type; Citologia cases start in the screening queue.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Case, error) {
	in.PatientName = strings.TrimSpace(in.PatientName)
	if in.PatientName == "" {
		return nil, ErrMissingPatient
	}
	examType, ok := ParseExamType(in.ExamType)
	if !ok {
		return nil, ErrInvalidExamType
	}

	now := time.Now().UTC()
	c := &Case{
		ID:            uuid.NewString(),
		Code:          strings.TrimSpace(in.Code),
		PatientID:     in.PatientID,
		PatientName:   in.PatientName,
		ExamType:      examType,
		Branch:        strings.TrimSpace(in.Branch),
		DoctorName:    strings.TrimSpace(in.DoctorName),
		Origin:        strings.TrimSpace(in.Origin),
		PaymentStatus: in.PaymentStatus,
		DocStatus:     DocStatusRegistrado,
		PDFStatus:     PDFPendiente,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if c.Code == "" {
		c.Code = nextCode(examType, now)
	}
	if c.PaymentStatus == "" {
		c.PaymentStatus = PaymentPendiente
	}
	if examType == ExamCitologia {
		c.CytologyStatus = CytologyPendiente
	}

	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	s.publish(ctx, realtime.EventInsert, c.ID, c)
	return c, nil
}

// UpdateInput carries partial updates; nil fields are left untouched.
type UpdateInput struct {
	PatientName    *string `json:"patientName"`
	Branch         *string `json:"branch"`
	DoctorName     *string `json:"doctorName"`
	Origin         *string `json:"origin"`
	PaymentStatus  *string `json:"paymentStatus"`
	DocStatus      *string `json:"docStatus"`
	CytologyStatus *string `json:"cytologyStatus"`
}

// Update applies a partial update. Moving the document to entregado stamps
// the delivery time once; it is never overwritten.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*Case, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.PatientName != nil {
		name := strings.TrimSpace(*in.PatientName)
		if name == "" {
			return nil, ErrMissingPatient
		}
		c.PatientName = name
	}
	if in.Branch != nil {
		c.Branch = strings.TrimSpace(*in.Branch)
	}
	if in.DoctorName != nil {
		c.DoctorName = strings.TrimSpace(*in.DoctorName)
	}
	if in.Origin != nil {
		c.Origin = strings.TrimSpace(*in.Origin)
	}
	if in.PaymentStatus != nil {
		c.PaymentStatus = *in.PaymentStatus
	}
	if in.CytologyStatus != nil {
		c.CytologyStatus = *in.CytologyStatus
	}
	if in.DocStatus != nil {
		c.DocStatus = *in.DocStatus
		if c.DocStatus == DocStatusEntregado && c.DeliveredAt == nil {
			delivered := time.Now().UTC()
			c.DeliveredAt = &delivered
		}
	}

	c.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, err
	}
	s.publish(ctx, realtime.EventUpdate, c.ID, c)
	return c, nil
}

// MarkPDFReady records the generated report URL on the case.
func (s *Service) MarkPDFReady(ctx context.Context, id, url string) (*Case, error) {
	if err := s.repo.SetPDF(ctx, id, url, PDFGenerado); err != nil {
		return nil, err
	}
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, realtime.EventUpdate, c.ID, c)
	return c, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, realtime.EventDelete, id, nil)
	return nil
}

// publish emits a change event. Failures are logged and dropped; writes
// never fail because the event channel did.
func (s *Service) publish(ctx context.Context, t realtime.EventType, id string, c *Case) {
	if s.events == nil {
		return
	}
	var data json.RawMessage
	if c != nil {
		data, _ = json.Marshal(c)
	}
	evt := realtime.Event{Table: Table, Type: t, RowID: id, Timestamp: time.Now().UTC(), Data: data}
	if err := s.events.Publish(ctx, evt); err != nil {
		s.logger.Warn().Err(err).Str("case_id", id).Msg("case change event dropped")
	}
}

func nextCode(et ExamType, now time.Time) string {
	prefix := "B"
	switch et {
	case ExamCitologia:
		prefix = "C"
	case ExamInmuno:
		prefix = "IHQ"
	}
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:6]
	return fmt.Sprintf("%s-%s-%s", prefix, now.Format("06"), suffix)
}
