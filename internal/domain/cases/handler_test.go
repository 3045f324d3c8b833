package cases

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/labflow/labflow/internal/platform/auth"
	"github.com/labflow/labflow/pkg/pagination"
)

func newHandlerServer(repo *fakeRepo) *echo.Echo {
	svc, _ := newTestService(repo)
	e := echo.New()
	NewHandler(svc, zerolog.Nop()).RegisterRoutes(e.Group("/api/cases"))
	return e
}

func request(e *echo.Echo, method, target, body string, role auth.Role, branch string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	ctx := context.WithValue(req.Context(), auth.UserRoleKey, string(role))
	if branch != "" {
		ctx = context.WithValue(ctx, auth.UserBranchKey, branch)
	}
	req = req.WithContext(ctx)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestListEndpointComposesQuery(t *testing.T) {
	repo := &fakeRepo{listRows: []Case{{Code: "B-1", ExamType: ExamBiopsia}}, listTotal: 1}
	e := newHandlerServer(repo)

	rec := request(e, http.MethodGet,
		"/api/cases?search=ana&exam_type=Biopsia&doctor=Dr.+Soto&doctor=Dr.+Luna&date_from=2025-01-01&page=2&page_size=10",
		"", auth.RoleOwner, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	q := repo.lastQuery
	if q.Search != "ana" || q.ExamType != ExamBiopsia {
		t.Errorf("query = %+v", q)
	}
	if len(q.Doctors) != 2 {
		t.Errorf("Doctors = %v", q.Doctors)
	}
	if q.DateFrom == nil || q.DateFrom.Format("2006-01-02") != "2025-01-01" {
		t.Errorf("DateFrom = %v", q.DateFrom)
	}
	if q.Page != 2 || q.PageSize != 10 {
		t.Errorf("pagination = %+v", q.Params)
	}

	var resp pagination.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 1 || resp.Page != 2 {
		t.Errorf("response envelope = %+v", resp)
	}
}

func TestListEndpointRejectsUnknownExamType(t *testing.T) {
	e := newHandlerServer(&fakeRepo{})
	rec := request(e, http.MethodGet, "/api/cases?exam_type=Radiografia", "", auth.RoleOwner, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestListEndpointRejectsBadDate(t *testing.T) {
	e := newHandlerServer(&fakeRepo{})
	rec := request(e, http.MethodGet, "/api/cases?date_from=01-01-2025", "", auth.RoleOwner, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCreateEndpoint(t *testing.T) {
	repo := &fakeRepo{}
	e := newHandlerServer(repo)

	rec := request(e, http.MethodPost, "/api/cases",
		`{"patientName":"Ana García","examType":"Biopsia","branch":"Centro"}`,
		auth.RoleEmployee, "Centro")
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var created Case
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created.Code == "" || created.DocStatus != DocStatusRegistrado {
		t.Errorf("created = %+v", created)
	}
}

func TestCreateEndpointValidation(t *testing.T) {
	e := newHandlerServer(&fakeRepo{})
	rec := request(e, http.MethodPost, "/api/cases",
		`{"patientName":"","examType":"Biopsia"}`, auth.RoleEmployee, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestGetEndpointNotFound(t *testing.T) {
	e := newHandlerServer(&fakeRepo{})
	rec := request(e, http.MethodGet, "/api/cases/nope", "", auth.RoleOwner, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestMarkPDFEndpoint(t *testing.T) {
	repo := &fakeRepo{byID: map[string]*Case{
		"c1": {ID: "c1", Code: "B-1", ExamType: ExamBiopsia, PDFStatus: PDFPendiente},
	}}
	e := newHandlerServer(repo)

	rec := request(e, http.MethodPost, "/api/cases/c1/pdf",
		`{"url":"https://cdn.lab/r.pdf"}`, auth.RoleOwner, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var updated Case
	if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
		t.Fatal(err)
	}
	if updated.PDFURL != "https://cdn.lab/r.pdf" || updated.PDFStatus != PDFGenerado {
		t.Errorf("updated = %+v", updated)
	}

	rec = request(e, http.MethodPost, "/api/cases/c1/pdf", `{}`, auth.RoleOwner, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for missing url", rec.Code)
	}
}

func TestDeleteEndpoint(t *testing.T) {
	repo := &fakeRepo{}
	e := newHandlerServer(repo)
	rec := request(e, http.MethodDelete, "/api/cases/abc", "", auth.RoleOwner, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if len(repo.deleted) != 1 || repo.deleted[0] != "abc" {
		t.Errorf("deleted = %v", repo.deleted)
	}
}
