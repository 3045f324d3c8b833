package cases

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/labflow/labflow/internal/platform/auth"
	"github.com/labflow/labflow/internal/platform/realtime"
	"github.com/labflow/labflow/pkg/pagination"
)

type fakeRepo struct {
	lastQuery Query
	listRows  []Case
	listTotal int
	created   *Case
	byID      map[string]*Case
	deleted   []string
}

func (f *fakeRepo) List(_ context.Context, q Query) ([]Case, int, error) {
	f.lastQuery = q
	return f.listRows, f.listTotal, nil
}

func (f *fakeRepo) GetByID(_ context.Context, id string) (*Case, error) {
	if c, ok := f.byID[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (f *fakeRepo) GetByCode(_ context.Context, code string) (*Case, error) {
	for _, c := range f.byID {
		if c.Code == code {
			cp := *c
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeRepo) Create(_ context.Context, c *Case) error {
	f.created = c
	if f.byID == nil {
		f.byID = map[string]*Case{}
	}
	cp := *c
	f.byID[c.ID] = &cp
	return nil
}

func (f *fakeRepo) Update(_ context.Context, c *Case) error {
	if _, ok := f.byID[c.ID]; !ok {
		return ErrNotFound
	}
	cp := *c
	f.byID[c.ID] = &cp
	return nil
}

func (f *fakeRepo) SetPDF(_ context.Context, id, url, status string) error {
	c, ok := f.byID[id]
	if !ok {
		return ErrNotFound
	}
	c.PDFURL, c.PDFStatus = url, status
	return nil
}

func (f *fakeRepo) Delete(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

type fakePublisher struct {
	events []realtime.Event
}

func (f *fakePublisher) Publish(_ context.Context, e realtime.Event) error {
	f.events = append(f.events, e)
	return nil
}

func sessionCtx(role auth.Role, branch string) context.Context {
	ctx := context.WithValue(context.Background(), auth.UserRoleKey, string(role))
	if branch != "" {
		ctx = context.WithValue(ctx, auth.UserBranchKey, branch)
	}
	return ctx
}

func newTestService(repo *fakeRepo) (*Service, *fakePublisher) {
	pub := &fakePublisher{}
	return NewService(repo, pub, zerolog.Nop()), pub
}

func TestListRestrictsResidentToBranchBiopsies(t *testing.T) {
	repo := &fakeRepo{}
	svc, _ := newTestService(repo)

	q := Query{Params: pagination.Params{Page: 1, PageSize: 20}, Search: " garcía "}
	_, _, err := svc.List(sessionCtx(auth.RoleResidente, "Centro"), q)
	if err != nil {
		t.Fatal(err)
	}

	got := repo.lastQuery
	if len(got.VisibleExamTypes) != 1 || got.VisibleExamTypes[0] != ExamBiopsia {
		t.Errorf("VisibleExamTypes = %v, want [Biopsia]", got.VisibleExamTypes)
	}
	if got.VisibleBranch != "Centro" {
		t.Errorf("VisibleBranch = %q, want Centro", got.VisibleBranch)
	}
	if got.Search != "garcía" {
		t.Errorf("Search = %q, want normalized", got.Search)
	}
}

func TestListDoesNotFilterPaginatedResults(t *testing.T) {
	// The repository's answer is authoritative for paginated queries: even a
	// row outside the caller's view passes through untouched, because the
	// restriction already ran in SQL and running it again would shrink pages.
	repo := &fakeRepo{
		listRows:  []Case{{Code: "C-9", ExamType: ExamCitologia, Branch: "Norte"}},
		listTotal: 41,
	}
	svc, _ := newTestService(repo)

	rows, total, err := svc.List(sessionCtx(auth.RoleResidente, "Centro"),
		Query{Params: pagination.Params{Page: 1, PageSize: 20}})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Code != "C-9" {
		t.Errorf("rows = %v, want repository result as-is", rows)
	}
	if total != 41 {
		t.Errorf("total = %d, want repository count", total)
	}
}

func TestListAllFiltersInMemory(t *testing.T) {
	repo := &fakeRepo{listRows: []Case{
		{Code: "B-1", ExamType: ExamBiopsia, Branch: "Centro"},
		{Code: "C-1", ExamType: ExamCitologia, Branch: "Centro"},
	}}
	svc, _ := newTestService(repo)

	rows, err := svc.ListAll(sessionCtx(auth.RoleResidente, "Centro"))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Code != "B-1" {
		t.Errorf("rows = %v, want filtered to visible biopsy", rows)
	}
	if repo.lastQuery.Paginated() {
		t.Error("ListAll must not page")
	}
	if len(repo.lastQuery.VisibleExamTypes) != 0 {
		t.Error("ListAll restricts in memory, not in SQL")
	}
}

func TestListWithoutSession(t *testing.T) {
	svc, _ := newTestService(&fakeRepo{})
	if _, _, err := svc.List(context.Background(), Query{}); err != ErrNoSession {
		t.Fatalf("err = %v, want ErrNoSession", err)
	}
}

func TestCreateDefaultsAndPublishes(t *testing.T) {
	repo := &fakeRepo{}
	svc, pub := newTestService(repo)

	created, err := svc.Create(sessionCtx(auth.RoleEmployee, "Centro"), CreateInput{
		PatientName: "  Ana García ",
		ExamType:    "Citologia",
		Branch:      "Centro",
	})
	if err != nil {
		t.Fatal(err)
	}

	if created.PatientName != "Ana García" {
		t.Errorf("PatientName = %q", created.PatientName)
	}
	if created.Code == "" || created.Code[0] != 'C' {
		t.Errorf("Code = %q, want generated cytology code", created.Code)
	}
	if created.PaymentStatus != PaymentPendiente || created.DocStatus != DocStatusRegistrado {
		t.Errorf("defaults wrong: %+v", created)
	}
	if created.CytologyStatus != CytologyPendiente {
		t.Errorf("CytologyStatus = %q, cytology cases start in the screening queue", created.CytologyStatus)
	}

	if len(pub.events) != 1 {
		t.Fatalf("events = %d, want 1", len(pub.events))
	}
	evt := pub.events[0]
	if evt.Table != Table || evt.Type != realtime.EventInsert || evt.RowID != created.ID {
		t.Errorf("event = %+v", evt)
	}
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newTestService(&fakeRepo{})
	ctx := sessionCtx(auth.RoleEmployee, "")

	if _, err := svc.Create(ctx, CreateInput{PatientName: "  ", ExamType: "Biopsia"}); err != ErrMissingPatient {
		t.Errorf("err = %v, want ErrMissingPatient", err)
	}
	if _, err := svc.Create(ctx, CreateInput{PatientName: "Ana", ExamType: "Radiografia"}); err != ErrInvalidExamType {
		t.Errorf("err = %v, want ErrInvalidExamType", err)
	}
}

func TestUpdateStampsDeliveryOnce(t *testing.T) {
	repo := &fakeRepo{}
	svc, pub := newTestService(repo)
	ctx := sessionCtx(auth.RoleOwner, "")

	created, err := svc.Create(ctx, CreateInput{PatientName: "Ana", ExamType: "Biopsia"})
	if err != nil {
		t.Fatal(err)
	}

	entregado := DocStatusEntregado
	updated, err := svc.Update(ctx, created.ID, UpdateInput{DocStatus: &entregado})
	if err != nil {
		t.Fatal(err)
	}
	if updated.DeliveredAt == nil {
		t.Fatal("DeliveredAt not stamped on delivery")
	}
	first := *updated.DeliveredAt

	again, err := svc.Update(ctx, created.ID, UpdateInput{DocStatus: &entregado})
	if err != nil {
		t.Fatal(err)
	}
	if again.DeliveredAt == nil || !again.DeliveredAt.Equal(first) {
		t.Error("DeliveredAt must not move on repeated delivery updates")
	}

	if len(pub.events) != 3 {
		t.Errorf("events = %d, want insert + 2 updates", len(pub.events))
	}
	if pub.events[1].Type != realtime.EventUpdate {
		t.Errorf("second event = %+v", pub.events[1])
	}
}

func TestMarkPDFReady(t *testing.T) {
	repo := &fakeRepo{}
	svc, pub := newTestService(repo)
	ctx := sessionCtx(auth.RoleOwner, "")

	created, err := svc.Create(ctx, CreateInput{PatientName: "Ana", ExamType: "Biopsia"})
	if err != nil {
		t.Fatal(err)
	}

	updated, err := svc.MarkPDFReady(ctx, created.ID, "https://cdn.lab/r.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if updated.PDFURL != "https://cdn.lab/r.pdf" || updated.PDFStatus != PDFGenerado {
		t.Errorf("case = %+v", updated)
	}
	if len(pub.events) != 2 || pub.events[1].Type != realtime.EventUpdate {
		t.Errorf("events = %+v", pub.events)
	}
}

func TestDeletePublishesWithoutData(t *testing.T) {
	repo := &fakeRepo{}
	svc, pub := newTestService(repo)

	if err := svc.Delete(sessionCtx(auth.RoleOwner, ""), "some-id"); err != nil {
		t.Fatal(err)
	}
	if len(pub.events) != 1 {
		t.Fatalf("events = %d", len(pub.events))
	}
	evt := pub.events[0]
	if evt.Type != realtime.EventDelete || evt.RowID != "some-id" || evt.Data != nil {
		t.Errorf("event = %+v", evt)
	}
}
