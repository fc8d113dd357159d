package feature

import (
	"time"

	"github.com/google/uuid"
)

// Feature is a named capability domain subject to CRUD permission bits
// (e.g. "trucks", "roles"). An inactive feature denies all non-admin access
// regardless of granted permissions. Never hard-deleted.
type Feature struct {
	ID        uuid.UUID `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Snapshot returns the auditable field values of the feature.
func (f *Feature) Snapshot() map[string]any {
	return map[string]any{
		"code":   f.Code,
		"name":   f.Name,
		"active": f.Active,
	}
}
