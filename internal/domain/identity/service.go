package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/labflow/labflow/internal/platform/auth"
)

var (
	ErrNoSession      = errors.New("no session in context")
	ErrInvalidRole    = errors.New("invalid role")
	ErrMissingEmail   = errors.New("email is required")
	ErrBrandingTooBig = errors.New("branding values exceed limits")
)

const maxBrandingValueLen = 512

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Me resolves the profile behind the current session. ErrProfileNotFound
// propagates untouched; the handler owns the forced-signout translation.
func (s *Service) Me(ctx context.Context) (*Profile, error) {
	userID := auth.UserIDFromContext(ctx)
	if userID == "" {
		return nil, ErrNoSession
	}
	return s.repo.GetByUserID(ctx, userID)
}

// CreateInput registers a profile for a user within the current tenant.
type CreateInput struct {
	UserID   string `json:"userId"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Role     string `json:"role"`
	Branch   string `json:"branch"`
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*Profile, error) {
	in.Email = strings.TrimSpace(in.Email)
	if in.Email == "" {
		return nil, ErrMissingEmail
	}
	role, ok := auth.ParseRole(in.Role)
	if !ok {
		return nil, ErrInvalidRole
	}

	now := time.Now().UTC()
	p := &Profile{
		UserID:    in.UserID,
		Email:     in.Email,
		FullName:  strings.TrimSpace(in.FullName),
		Role:      role,
		Branch:    strings.TrimSpace(in.Branch),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// UpdateBranding persists the caller's presentation preference.
func (s *Service) UpdateBranding(ctx context.Context, b Branding) (*Profile, error) {
	userID := auth.UserIDFromContext(ctx)
	if userID == "" {
		return nil, ErrNoSession
	}

	for _, v := range []string{b.LabName, b.LogoURL, b.PrimaryColor} {
		if len(v) > maxBrandingValueLen {
			return nil, ErrBrandingTooBig
		}
	}

	if err := s.repo.UpdateBranding(ctx, userID, b); err != nil {
		return nil, err
	}
	return s.repo.GetByUserID(ctx, userID)
}
