package fleet

import (
	"context"

	"github.com/google/uuid"
)

// Store persists trucks. Plates are unique within a unit; implementations
// return sentinel.ErrConflict on violation and sentinel.ErrNotFound for
// missing trucks.
type Store interface {
	Create(ctx context.Context, truck *Truck) error
	FindByID(ctx context.Context, id uuid.UUID) (*Truck, error)
	FindByPlate(ctx context.Context, unitID uuid.UUID, plate string) (*Truck, error)
	// List returns trucks in the given units, all units when none given.
	List(ctx context.Context, unitIDs []uuid.UUID, activeOnly bool) ([]*Truck, error)
	Update(ctx context.Context, truck *Truck) error
}
