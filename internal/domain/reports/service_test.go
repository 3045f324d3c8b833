package reports

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/labflow/labflow/internal/domain/cases"
	"github.com/labflow/labflow/internal/platform/email"
	"github.com/labflow/labflow/internal/platform/retry"
)

type fakeCases struct {
	byID       map[string]*cases.Case
	all        []cases.Case
	getCalls   int
	readyAfter int // Get calls before the PDF reports generated
	updates    []cases.UpdateInput
}

func (f *fakeCases) Get(_ context.Context, id string) (*cases.Case, error) {
	f.getCalls++
	c, ok := f.byID[id]
	if !ok {
		return nil, cases.ErrNotFound
	}
	cp := *c
	if f.readyAfter > 0 && f.getCalls >= f.readyAfter {
		cp.PDFStatus = cases.PDFGenerado
		cp.PDFURL = "https://cdn.lab/r.pdf"
	}
	return &cp, nil
}

func (f *fakeCases) ListAll(_ context.Context) ([]cases.Case, error) {
	return f.all, nil
}

func (f *fakeCases) Update(_ context.Context, id string, in cases.UpdateInput) (*cases.Case, error) {
	f.updates = append(f.updates, in)
	c, ok := f.byID[id]
	if !ok {
		return nil, cases.ErrNotFound
	}
	return c, nil
}

type fakeMailer struct {
	configured bool
	sent       []email.Message
	err        error
}

func (f *fakeMailer) Configured() bool { return f.configured }

func (f *fakeMailer) Send(_ context.Context, msg email.Message) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, msg)
	return "msg_1", nil
}

func fastPolicy(attempts int) retry.Policy {
	return retry.Policy{Attempts: attempts, Delay: time.Millisecond}
}

func pendingCase() *cases.Case {
	return &cases.Case{
		ID: "c1", Code: "B-25-ABC123", PatientName: "Ana García",
		ExamType: cases.ExamBiopsia, PDFStatus: cases.PDFPendiente,
	}
}

func TestWaitForPDFPollsUntilReady(t *testing.T) {
	cs := &fakeCases{byID: map[string]*cases.Case{"c1": pendingCase()}, readyAfter: 3}
	svc := NewService(cs, &fakeMailer{configured: true}, email.NewTemplateEngine(),
		fastPolicy(5), "Lab", zerolog.Nop())

	url, err := svc.WaitForPDF(context.Background(), "c1")
	if err != nil {
		t.Fatal(err)
	}
	if url != "https://cdn.lab/r.pdf" {
		t.Errorf("url = %q", url)
	}
	if cs.getCalls != 3 {
		t.Errorf("getCalls = %d, want 3", cs.getCalls)
	}
}

func TestWaitForPDFBudgetExhausted(t *testing.T) {
	cs := &fakeCases{byID: map[string]*cases.Case{"c1": pendingCase()}}
	svc := NewService(cs, &fakeMailer{configured: true}, email.NewTemplateEngine(),
		fastPolicy(3), "Lab", zerolog.Nop())

	if _, err := svc.WaitForPDF(context.Background(), "c1"); !errors.Is(err, ErrPDFNotReady) {
		t.Fatalf("err = %v, want ErrPDFNotReady", err)
	}
	if cs.getCalls != 3 {
		t.Errorf("getCalls = %d, want the full budget", cs.getCalls)
	}
}

func TestWaitForPDFCancellation(t *testing.T) {
	cs := &fakeCases{byID: map[string]*cases.Case{"c1": pendingCase()}}
	svc := NewService(cs, &fakeMailer{configured: true}, email.NewTemplateEngine(),
		retry.Policy{Attempts: 100, Delay: 50 * time.Millisecond}, "Lab", zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := svc.WaitForPDF(ctx, "c1"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

func TestDeliverSendsAndMarksDelivered(t *testing.T) {
	cs := &fakeCases{byID: map[string]*cases.Case{"c1": pendingCase()}, readyAfter: 1}
	mailer := &fakeMailer{configured: true}
	svc := NewService(cs, mailer, email.NewTemplateEngine(), fastPolicy(5), "Laboratorio Centro", zerolog.Nop())

	result, err := svc.Deliver(context.Background(), "c1", "ana@lab.test")
	if err != nil {
		t.Fatal(err)
	}
	if result.MessageID != "msg_1" || result.Provider != email.Provider {
		t.Errorf("result = %+v", result)
	}

	if len(mailer.sent) != 1 {
		t.Fatalf("sent = %d", len(mailer.sent))
	}
	msg := mailer.sent[0]
	if msg.To[0] != "ana@lab.test" {
		t.Errorf("To = %v", msg.To)
	}
	if !strings.Contains(msg.HTML, "B-25-ABC123") || !strings.Contains(msg.HTML, "https://cdn.lab/r.pdf") {
		t.Errorf("html missing case details: %s", msg.HTML)
	}

	if len(cs.updates) != 1 || cs.updates[0].DocStatus == nil || *cs.updates[0].DocStatus != cases.DocStatusEntregado {
		t.Errorf("updates = %+v, want delivered status", cs.updates)
	}
}

func TestDeliverValidation(t *testing.T) {
	cs := &fakeCases{byID: map[string]*cases.Case{"c1": pendingCase()}, readyAfter: 1}
	svc := NewService(cs, &fakeMailer{configured: true}, email.NewTemplateEngine(),
		fastPolicy(5), "Lab", zerolog.Nop())

	if _, err := svc.Deliver(context.Background(), "c1", "  "); err != ErrNoRecipient {
		t.Errorf("err = %v, want ErrNoRecipient", err)
	}

	unconfigured := NewService(cs, &fakeMailer{}, email.NewTemplateEngine(), fastPolicy(5), "Lab", zerolog.Nop())
	if _, err := unconfigured.Deliver(context.Background(), "c1", "a@b.c"); err != ErrNotConfigured {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}

	if _, err := svc.Deliver(context.Background(), "nope", "a@b.c"); !errors.Is(err, cases.ErrNotFound) {
		t.Errorf("err = %v, want case not found", err)
	}
}

func TestExportRows(t *testing.T) {
	delivered := time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC)
	cs := &fakeCases{all: []cases.Case{
		{Code: "B-1", PatientName: "Ana", ExamType: cases.ExamBiopsia, Branch: "Centro",
			DocStatus: cases.DocStatusEntregado, DeliveredAt: &delivered},
	}}
	svc := NewService(cs, &fakeMailer{}, email.NewTemplateEngine(), fastPolicy(1), "Lab", zerolog.Nop())

	rows, err := svc.ExportRows(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Code != "B-1" || rows[0].ExamType != "Biopsia" {
		t.Errorf("rows = %+v", rows)
	}
	if rows[0].DeliveredAt == nil || !rows[0].DeliveredAt.Equal(delivered) {
		t.Errorf("DeliveredAt = %v", rows[0].DeliveredAt)
	}
}
