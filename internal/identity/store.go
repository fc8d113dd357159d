package identity

import (
	"context"

	"github.com/google/uuid"
)

// Store persists users. Implementations return sentinel.ErrNotFound for
// missing users and sentinel.ErrConflict for duplicate emails.
type Store interface {
	Create(ctx context.Context, user *User) error
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context) ([]*User, error)
	Update(ctx context.Context, user *User) error
}
