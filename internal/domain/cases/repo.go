package cases

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned for lookups of unknown case ids.
var ErrNotFound = errors.New("case not found")

type Repository interface {
	Create(ctx context.Context, c *Case) error
	GetByID(ctx context.Context, id uuid.UUID) (*Case, error)
	List(ctx context.Context, limit, offset int) ([]*Case, int, error)
	ListByVia(ctx context.Context, via string, limit, offset int) ([]*Case, int, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
