package laboratory

import "context"

// Repository is the persistence boundary for the laboratory record.
type Repository interface {
	Get(ctx context.Context) (*Laboratory, error)
	Upsert(ctx context.Context, lab *Laboratory) error
}
