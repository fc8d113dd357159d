package rbac

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RoleStore persists roles. Implementations return sentinel.ErrNotFound for
// missing roles and sentinel.ErrConflict for duplicate names.
type RoleStore interface {
	Create(ctx context.Context, role *Role) error
	FindByID(ctx context.Context, id uuid.UUID) (*Role, error)
	List(ctx context.Context) ([]*Role, error)
	Update(ctx context.Context, role *Role) error
}

// GrantStore persists grants.
//
// FindActive matches on the exact (user, role, unit) triple, treating a nil
// unit as its own value. Revoke must be conditional: it only succeeds while
// the grant is still active, returning sentinel.ErrNotFound otherwise, so
// concurrent revokes cannot double-fire.
type GrantStore interface {
	Create(ctx context.Context, grant *Grant) error
	FindByID(ctx context.Context, id uuid.UUID) (*Grant, error)
	FindActive(ctx context.Context, userID, roleID uuid.UUID, unitID *uuid.UUID, now time.Time) (*Grant, error)
	ListActiveByUser(ctx context.Context, userID uuid.UUID, now time.Time) ([]*Grant, error)
	Revoke(ctx context.Context, id uuid.UUID, at time.Time) error
}
