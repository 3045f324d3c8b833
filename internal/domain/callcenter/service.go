package callcenter

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/labflow/labflow/internal/platform/auth"
	"github.com/labflow/labflow/internal/platform/realtime"
	"github.com/labflow/labflow/pkg/pagination"
)

// Table is the realtime topic for call log change events.
const Table = "call_logs"

type Service struct {
	repo   Repository
	events realtime.EventPublisher
	logger zerolog.Logger
}

func NewService(repo Repository, events realtime.EventPublisher, logger zerolog.Logger) *Service {
	return &Service{repo: repo, events: events, logger: logger}
}

func (s *Service) List(ctx context.Context, status string, p pagination.Params) ([]CallLog, int, error) {
	return s.repo.List(ctx, status, p)
}

func (s *Service) Get(ctx context.Context, id string) (*CallLog, error) {
	return s.repo.GetByID(ctx, id)
}

type Input struct {
	CallerName string `json:"callerName"`
	Phone      string `json:"phone"`
	CaseCode   string `json:"caseCode"`
	Reason     string `json:"reason"`
	Notes      string `json:"notes"`
}

func (s *Service) Create(ctx context.Context, in Input) (*CallLog, error) {
	in.CallerName = strings.TrimSpace(in.CallerName)
	in.Phone = strings.TrimSpace(in.Phone)
	if in.CallerName == "" && in.Phone == "" {
		return nil, ErrMissingCaller
	}

	now := time.Now().UTC()
	cl := &CallLog{
		ID:         uuid.NewString(),
		CallerName: in.CallerName,
		Phone:      in.Phone,
		CaseCode:   strings.TrimSpace(in.CaseCode),
		Reason:     strings.TrimSpace(in.Reason),
		Notes:      in.Notes,
		Status:     StatusPendiente,
		CreatedBy:  auth.UserIDFromContext(ctx),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.Create(ctx, cl); err != nil {
		return nil, err
	}
	s.publish(ctx, realtime.EventInsert, cl)
	return cl, nil
}

// Resolve marks a call attended and appends resolution notes.
func (s *Service) Resolve(ctx context.Context, id, notes string) (*CallLog, error) {
	cl, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	cl.Status = StatusAtendido
	if notes = strings.TrimSpace(notes); notes != "" {
		if cl.Notes != "" {
			cl.Notes += "\n"
		}
		cl.Notes += notes
	}
	cl.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, cl); err != nil {
		return nil, err
	}
	s.publish(ctx, realtime.EventUpdate, cl)
	return cl, nil
}

func (s *Service) publish(ctx context.Context, t realtime.EventType, cl *CallLog) {
	if s.events == nil {
		return
	}
	data, _ := json.Marshal(cl)
	evt := realtime.Event{Table: Table, Type: t, RowID: cl.ID, Timestamp: time.Now().UTC(), Data: data}
	if err := s.events.Publish(ctx, evt); err != nil {
		s.logger.Warn().Err(err).Str("call_id", cl.ID).Msg("call log event dropped")
	}
}
