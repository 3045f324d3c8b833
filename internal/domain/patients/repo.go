package patients

import (
	"context"

	"github.com/labflow/labflow/pkg/pagination"
)

// Repository is the persistence boundary for patients.
type Repository interface {
	List(ctx context.Context, search string, p pagination.Params) ([]Patient, int, error)
	GetByID(ctx context.Context, id string) (*Patient, error)
	Create(ctx context.Context, pt *Patient) error
	Update(ctx context.Context, pt *Patient) error
	Delete(ctx context.Context, id string) error
}
