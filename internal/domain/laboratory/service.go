package laboratory

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/labflow/labflow/internal/platform/db"
)

var ErrMissingName = errors.New("laboratory name is required")

// FlagInvalidator drops a tenant's cached feature map after the record
// changes; satisfied by features.Resolver.
type FlagInvalidator interface {
	Invalidate(tenantID string)
}

type Service struct {
	repo   Repository
	flags  FlagInvalidator
	logger zerolog.Logger
}

func NewService(repo Repository, flags FlagInvalidator, logger zerolog.Logger) *Service {
	return &Service{repo: repo, flags: flags, logger: logger}
}

func (s *Service) Get(ctx context.Context) (*Laboratory, error) {
	return s.repo.Get(ctx)
}

// UpdateInput carries partial updates to the laboratory record.
type UpdateInput struct {
	Name     *string          `json:"name"`
	Branches *[]string        `json:"branches"`
	Features *map[string]bool `json:"features"`
}

// Update writes the record and drops the tenant's cached feature map so
// guards pick up flag changes on the next request, not after the TTL.
func (s *Service) Update(ctx context.Context, in UpdateInput) (*Laboratory, error) {
	lab, err := s.repo.Get(ctx)
	if errors.Is(err, ErrNotFound) {
		now := time.Now().UTC()
		lab = &Laboratory{Features: map[string]bool{}, CreatedAt: now}
	} else if err != nil {
		return nil, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, ErrMissingName
		}
		lab.Name = name
	}
	if in.Branches != nil {
		lab.Branches = *in.Branches
	}
	if in.Features != nil {
		lab.Features = *in.Features
	}
	lab.UpdatedAt = time.Now().UTC()

	if err := s.repo.Upsert(ctx, lab); err != nil {
		return nil, err
	}

	if s.flags != nil {
		s.flags.Invalidate(db.TenantFromContext(ctx))
	}
	return lab, nil
}

// FeatureSource adapts the repository to the feature resolver. A missing
// record is an error, not an empty map: guards distinguish "flags off" from
// "flags unavailable".
type FeatureSource struct {
	repo Repository
}

func NewFeatureSource(repo Repository) *FeatureSource {
	return &FeatureSource{repo: repo}
}

func (fs *FeatureSource) Features(ctx context.Context, tenantID string) (map[string]bool, error) {
	lab, err := fs.repo.Get(ctx)
	if err != nil {
		return nil, err
	}
	return lab.Features, nil
}
