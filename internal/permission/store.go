package permission

import (
	"context"

	"github.com/google/uuid"
)

// Store persists the capability matrix.
type Store interface {
	// Replace swaps the full permission set of a role. The swap is atomic:
	// readers observe either the previous set or the new one, never a mix.
	Replace(ctx context.Context, roleID uuid.UUID, perms []Permission) error

	ListByRole(ctx context.Context, roleID uuid.UUID) ([]Permission, error)

	// ListByRoles returns the matrix rows for any of the given roles, for
	// union-of-capabilities decisions.
	ListByRoles(ctx context.Context, roleIDs []uuid.UUID) ([]Permission, error)
}
