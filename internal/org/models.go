package org

import (
	"time"

	"github.com/google/uuid"
)

// Unit is an organizational unit ("filiale"), the scoping boundary for
// unit-bound role grants and data visibility. Units are never hard-deleted;
// deactivation keeps historical grants and audit entries reconstructable.
type Unit struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Snapshot returns the auditable field values of the unit.
func (u *Unit) Snapshot() map[string]any {
	return map[string]any{
		"name":   u.Name,
		"code":   u.Code,
		"active": u.Active,
	}
}
