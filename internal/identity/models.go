// Package identity resolves bearer tokens to user identities and manages
// the user directory and login sessions.
package identity

import (
	"time"

	"github.com/google/uuid"
)

// User is an account in the directory. PasswordHash is the encoded argon2id
// hash and never leaves the package.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Snapshot returns the auditable field values of the user. The password
// hash is deliberately excluded.
func (u *User) Snapshot() map[string]any {
	return map[string]any{
		"email":  u.Email,
		"name":   u.Name,
		"active": u.Active,
	}
}
