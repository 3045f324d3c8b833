package callcenter

import (
	"context"

	"github.com/labflow/labflow/pkg/pagination"
)

// Repository is the persistence boundary for call logs.
type Repository interface {
	List(ctx context.Context, status string, p pagination.Params) ([]CallLog, int, error)
	GetByID(ctx context.Context, id string) (*CallLog, error)
	Create(ctx context.Context, cl *CallLog) error
	Update(ctx context.Context, cl *CallLog) error
}
