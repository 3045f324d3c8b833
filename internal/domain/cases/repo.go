package cases

import "context"

// Repository is the persistence boundary for cases.
type Repository interface {
	List(ctx context.Context, q Query) ([]Case, int, error)
	GetByID(ctx context.Context, id string) (*Case, error)
	GetByCode(ctx context.Context, code string) (*Case, error)
	Create(ctx context.Context, c *Case) error
	Update(ctx context.Context, c *Case) error
	SetPDF(ctx context.Context, id, url, status string) error
	Delete(ctx context.Context, id string) error
}
