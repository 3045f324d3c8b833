package laboratory

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/labflow/labflow/internal/platform/db"
)

type fakeRepo struct {
	lab *Laboratory
}

func (f *fakeRepo) Get(_ context.Context) (*Laboratory, error) {
	if f.lab == nil {
		return nil, ErrNotFound
	}
	cp := *f.lab
	return &cp, nil
}

func (f *fakeRepo) Upsert(_ context.Context, lab *Laboratory) error {
	cp := *lab
	f.lab = &cp
	return nil
}

type fakeInvalidator struct {
	dropped []string
}

func (f *fakeInvalidator) Invalidate(tenantID string) {
	f.dropped = append(f.dropped, tenantID)
}

func tenantCtx(id string) context.Context {
	return context.WithValue(context.Background(), db.TenantIDKey, id)
}

func TestUpdateInvalidatesFeatureCache(t *testing.T) {
	repo := &fakeRepo{lab: &Laboratory{
		Name:     "Laboratorio Centro",
		Features: map[string]bool{"billing": false},
	}}
	inv := &fakeInvalidator{}
	svc := NewService(repo, inv, zerolog.Nop())

	features := map[string]bool{"billing": true, "callcenter": true}
	lab, err := svc.Update(tenantCtx("acme"), UpdateInput{Features: &features})
	if err != nil {
		t.Fatal(err)
	}

	if !lab.Features["billing"] || !lab.Features["callcenter"] {
		t.Errorf("features = %v", lab.Features)
	}
	if len(inv.dropped) != 1 || inv.dropped[0] != "acme" {
		t.Errorf("invalidated tenants = %v, want [acme]", inv.dropped)
	}
}

func TestUpdateCreatesRecordWhenMissing(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewService(repo, &fakeInvalidator{}, zerolog.Nop())

	name := "Laboratorio Norte"
	lab, err := svc.Update(tenantCtx("acme"), UpdateInput{Name: &name})
	if err != nil {
		t.Fatal(err)
	}
	if lab.Name != name || repo.lab == nil {
		t.Errorf("lab = %+v", lab)
	}
}

func TestUpdateRejectsBlankName(t *testing.T) {
	repo := &fakeRepo{lab: &Laboratory{Name: "X", Features: map[string]bool{}}}
	svc := NewService(repo, &fakeInvalidator{}, zerolog.Nop())

	blank := "   "
	if _, err := svc.Update(tenantCtx("acme"), UpdateInput{Name: &blank}); err != ErrMissingName {
		t.Fatalf("err = %v, want ErrMissingName", err)
	}
}

func TestFeatureSourcePropagatesMissingRecord(t *testing.T) {
	src := NewFeatureSource(&fakeRepo{})
	if _, err := src.Features(context.Background(), "acme"); err == nil {
		t.Fatal("missing record must be an error, not an empty map")
	}

	repo := &fakeRepo{lab: &Laboratory{
		Features:  map[string]bool{"export": true},
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}}
	flags, err := NewFeatureSource(repo).Features(context.Background(), "acme")
	if err != nil {
		t.Fatal(err)
	}
	if !flags["export"] {
		t.Errorf("flags = %v", flags)
	}
}
