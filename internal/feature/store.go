package feature

import (
	"context"

	"github.com/google/uuid"
)

// Store persists features. Implementations return sentinel.ErrNotFound for
// missing features and sentinel.ErrConflict for duplicate codes.
type Store interface {
	Create(ctx context.Context, f *Feature) error
	FindByID(ctx context.Context, id uuid.UUID) (*Feature, error)
	FindByCode(ctx context.Context, code string) (*Feature, error)
	List(ctx context.Context) ([]*Feature, error)
	Update(ctx context.Context, f *Feature) error
	// ExistingIDs reports which of the given feature ids exist, for
	// validating permission replacements before any write happens.
	ExistingIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error)
}
