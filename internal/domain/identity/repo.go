package identity

import "context"

// Repository is the persistence boundary for profiles.
type Repository interface {
	GetByUserID(ctx context.Context, userID string) (*Profile, error)
	Create(ctx context.Context, p *Profile) error
	UpdateBranding(ctx context.Context, userID string, b Branding) error
}
