package features

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/labflow/labflow/internal/platform/auth"
	"github.com/labflow/labflow/internal/platform/db"
)

type stubSource struct {
	flags map[string]bool
	err   error
	calls int
}

func (s *stubSource) Features(_ context.Context, _ string) (map[string]bool, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.flags, nil
}

func TestResolverCaches(t *testing.T) {
	src := &stubSource{flags: map[string]bool{KeyBilling: true}}
	r := NewResolver(src)

	for i := 0; i < 3; i++ {
		flags, err := r.Resolve(context.Background(), "acme")
		if err != nil {
			t.Fatalf("Resolve() error: %v", err)
		}
		if !flags[KeyBilling] {
			t.Fatal("billing flag lost")
		}
	}
	if src.calls != 1 {
		t.Errorf("source calls = %d, want 1 (cached)", src.calls)
	}

	r.Invalidate("acme")
	if _, err := r.Resolve(context.Background(), "acme"); err != nil {
		t.Fatalf("Resolve() after invalidate: %v", err)
	}
	if src.calls != 2 {
		t.Errorf("source calls = %d, want 2 after Invalidate", src.calls)
	}
}

func TestEnabledInlineGuard(t *testing.T) {
	flags := map[string]bool{KeyBilling: true, KeyExport: false}

	tests := []struct {
		name string
		role auth.Role
		key  string
		want bool
	}{
		{"flag on", auth.RoleOwner, KeyBilling, true},
		{"flag off", auth.RoleOwner, KeyExport, false},
		{"flag absent", auth.RoleOwner, KeyCallCenter, false},
		{"test role bypasses off flag", auth.RoleTest, KeyExport, true},
		{"test role bypasses absent flag", auth.RoleTest, KeyCallCenter, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Enabled(tt.role, tt.key, flags); got != tt.want {
				t.Errorf("Enabled(%s, %s) = %v, want %v", tt.role, tt.key, got, tt.want)
			}
		})
	}
}

func guardedRequest(t *testing.T, resolver *Resolver, key string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/billing", nil)
	ctx := context.WithValue(req.Context(), db.TenantIDKey, "acme")
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := Require(resolver, key, auth.EntryPath, zerolog.Nop())(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	return rec, h(c)
}

func TestRequireAllowsEnabledFeature(t *testing.T) {
	r := NewResolver(&stubSource{flags: map[string]bool{KeyBilling: true}})
	rec, err := guardedRequest(t, r, KeyBilling)
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestRequireRedirectsDisabledFeature(t *testing.T) {
	r := NewResolver(&stubSource{flags: map[string]bool{}})
	rec, err := guardedRequest(t, r, KeyBilling)
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != auth.EntryPath {
		t.Errorf("Location = %q, want %q", loc, auth.EntryPath)
	}
}

func TestRequireAppliesFlagsToTestRole(t *testing.T) {
	// Route-level guards do NOT honor the test role's god mode.
	r := NewResolver(&stubSource{flags: map[string]bool{}})

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/billing", nil)
	ctx := context.WithValue(req.Context(), db.TenantIDKey, "acme")
	ctx = context.WithValue(ctx, auth.UserRoleKey, string(auth.RoleTest))
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := Require(r, KeyBilling, auth.EntryPath, zerolog.Nop())(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	if err := h(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want 303 even for test role", rec.Code)
	}
}

func TestRequireHoldsAllowListedKeyOnResolverFailure(t *testing.T) {
	r := NewResolver(&stubSource{err: errors.New("db down")})
	_, err := guardedRequest(t, r, KeyCallCenter)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusServiceUnavailable {
		t.Fatalf("err = %v, want 503 hold for allow-listed key", err)
	}
}

func TestRequireRedirectsOtherKeysOnResolverFailure(t *testing.T) {
	r := NewResolver(&stubSource{err: errors.New("db down")})
	rec, err := guardedRequest(t, r, KeyBilling)
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want 303 redirect for non-allow-listed key", rec.Code)
	}
}
