package callcenter

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/labflow/labflow/internal/platform/auth"
	"github.com/labflow/labflow/internal/platform/realtime"
	"github.com/labflow/labflow/pkg/pagination"
)

type fakeRepo struct {
	byID map[string]*CallLog
}

func (f *fakeRepo) List(_ context.Context, status string, _ pagination.Params) ([]CallLog, int, error) {
	out := []CallLog{}
	for _, cl := range f.byID {
		if status == "" || cl.Status == status {
			out = append(out, *cl)
		}
	}
	return out, len(out), nil
}

func (f *fakeRepo) GetByID(_ context.Context, id string) (*CallLog, error) {
	if cl, ok := f.byID[id]; ok {
		cp := *cl
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (f *fakeRepo) Create(_ context.Context, cl *CallLog) error {
	if f.byID == nil {
		f.byID = map[string]*CallLog{}
	}
	cp := *cl
	f.byID[cl.ID] = &cp
	return nil
}

func (f *fakeRepo) Update(_ context.Context, cl *CallLog) error {
	if _, ok := f.byID[cl.ID]; !ok {
		return ErrNotFound
	}
	cp := *cl
	f.byID[cl.ID] = &cp
	return nil
}

type fakePublisher struct {
	events []realtime.Event
}

func (f *fakePublisher) Publish(_ context.Context, e realtime.Event) error {
	f.events = append(f.events, e)
	return nil
}

func TestCreateRecordsCaller(t *testing.T) {
	repo := &fakeRepo{}
	pub := &fakePublisher{}
	svc := NewService(repo, pub, zerolog.Nop())

	ctx := context.WithValue(context.Background(), auth.UserIDKey, "agent-1")
	cl, err := svc.Create(ctx, Input{Phone: " 555-0101 ", Reason: "resultado pendiente"})
	if err != nil {
		t.Fatal(err)
	}
	if cl.Phone != "555-0101" || cl.Status != StatusPendiente || cl.CreatedBy != "agent-1" {
		t.Errorf("call log = %+v", cl)
	}
	if len(pub.events) != 1 || pub.events[0].Table != Table {
		t.Errorf("events = %+v", pub.events)
	}
}

func TestCreateRequiresCallerOrPhone(t *testing.T) {
	svc := NewService(&fakeRepo{}, &fakePublisher{}, zerolog.Nop())
	if _, err := svc.Create(context.Background(), Input{Reason: "x"}); err != ErrMissingCaller {
		t.Fatalf("err = %v, want ErrMissingCaller", err)
	}
}

func TestResolveAppendsNotes(t *testing.T) {
	repo := &fakeRepo{}
	pub := &fakePublisher{}
	svc := NewService(repo, pub, zerolog.Nop())

	cl, err := svc.Create(context.Background(), Input{CallerName: "Ana", Notes: "primera llamada"})
	if err != nil {
		t.Fatal(err)
	}

	resolved, err := svc.Resolve(context.Background(), cl.ID, "informe enviado")
	if err != nil {
		t.Fatal(err)
	}
	if resolved.Status != StatusAtendido {
		t.Errorf("status = %q", resolved.Status)
	}
	if resolved.Notes != "primera llamada\ninforme enviado" {
		t.Errorf("notes = %q", resolved.Notes)
	}
	if pub.events[len(pub.events)-1].Type != realtime.EventUpdate {
		t.Errorf("last event = %+v", pub.events[len(pub.events)-1])
	}
}

func TestResolveUnknownCall(t *testing.T) {
	svc := NewService(&fakeRepo{}, &fakePublisher{}, zerolog.Nop())
	if _, err := svc.Resolve(context.Background(), "nope", ""); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
