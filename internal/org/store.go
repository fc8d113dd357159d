package org

import (
	"context"

	"github.com/google/uuid"
)

// Store persists organizational units. Implementations return
// sentinel.ErrNotFound for missing units and sentinel.ErrConflict for
// duplicate codes.
type Store interface {
	Create(ctx context.Context, unit *Unit) error
	FindByID(ctx context.Context, id uuid.UUID) (*Unit, error)
	FindByCode(ctx context.Context, code string) (*Unit, error)
	List(ctx context.Context, activeOnly bool) ([]*Unit, error)
	Update(ctx context.Context, unit *Unit) error
}
