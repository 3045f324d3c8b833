package patients

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

// Table is the realtime topic for patient change events.
const Table = "patients"

type Service struct {
	repo   Repository
	events realtime.EventPublisher
	logger zerolog.Logger
}

func NewService(repo Repository, events realtime.EventPublisher, logger zerolog.Logger) *Service {
	return &Service{repo: repo, events: events, logger: logger}
}

func (s *Service) List(ctx context.Context, search string, p pagination.Params) ([]Patient, int, error) {
	return s.repo.List(ctx, strings.TrimSpace(search), p)
}

func (s *Service) Get(ctx context.Context, id string) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

type Input struct {
	FirstName string     `json:"firstName"`
	LastName  string     `json:"lastName"`
	Email     string     `json:"email"`
	Phone     string     `json:"phone"`
	BirthDate *time.Time `json:"birthDate"`
	Gender    string     `json:"gender"`
}

func (in *Input) normalize() error {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	if in.FirstName == "" {
		return ErrMissingName
	}
	return nil
}

func (s *Service) Create(ctx context.Context, in Input) (*Patient, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	pt := &Patient{
		ID:        uuid.NewString(),
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Email:     in.Email,
		Phone:     in.Phone,
		BirthDate: in.BirthDate,
		Gender:    in.Gender,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, pt); err != nil {
		return nil, err
	}
	s.publish(ctx, realtime.EventInsert, pt.ID, pt)
	return pt, nil
}

func (s *Service) Update(ctx context.Context, id string, in Input) (*Patient, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}

	pt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	pt.FirstName = in.FirstName
	pt.LastName = in.LastName
	pt.Email = in.Email
	pt.Phone = in.Phone
	pt.BirthDate = in.BirthDate
	pt.Gender = in.Gender
	pt.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, pt); err != nil {
		return nil, err
	}
	s.publish(ctx, realtime.EventUpdate, pt.ID, pt)
	return pt, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, realtime.EventDelete, id, nil)
	return nil
}

func (s *Service) publish(ctx context.Context, t realtime.EventType, id string, pt *Patient) {
	if s.events == nil {
		return
	}
	var data json.RawMessage
	if pt != nil {
		data, _ = json.Marshal(pt)
	}
	evt := realtime.Event{Table: Table, Type: t, RowID: id, Timestamp: time.Now().UTC(), Data: data}
	if err := s.events.Publish(ctx, evt); err != nil {
		s.logger.Warn().Err(err).Str("patient_id", id).Msg("patient change event dropped")
	}
}
