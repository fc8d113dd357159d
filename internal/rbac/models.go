package rbac

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ScopeKind says whether a role applies globally ("groupe" roles) or only
// within one organizational unit.
type ScopeKind string

const (
	ScopeGlobal ScopeKind = "global"
	ScopeUnit   ScopeKind = "unit"
)

// ParseScopeKind validates a scope-kind string.
func ParseScopeKind(s string) (ScopeKind, error) {
	switch ScopeKind(s) {
	case ScopeGlobal, ScopeUnit:
		return ScopeKind(s), nil
	default:
		return "", fmt.Errorf("unknown scope kind: %q", s)
	}
}

// AdminLevel is the ordinal of the administrator role. Lower level means
// more privileged.
const AdminLevel = 1

// Role is a named capability bundle. Roles are soft-deactivated, never hard
// deleted while grants reference them.
type Role struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Level     int       `json:"level"`
	Scope     ScopeKind `json:"scope"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IsAdmin reports whether the role carries the administrator override.
func (r *Role) IsAdmin() bool { return r.Level == AdminLevel }

// Snapshot returns the auditable field values of the role.
func (r *Role) Snapshot() map[string]any {
	return map[string]any{
		"name":   r.Name,
		"level":  r.Level,
		"scope":  string(r.Scope),
		"active": r.Active,
	}
}

// Grant associates a user with a role and, for unit-scope roles, one
// organizational unit. Its effective life is [GrantedAt, RevokedAt), or
// open-ended while RevokedAt is nil. At most one active grant exists per
// (user, role, unit) triple.
type Grant struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"userId"`
	RoleID    uuid.UUID  `json:"roleId"`
	UnitID    *uuid.UUID `json:"unitId,omitempty"`
	GrantedBy uuid.UUID  `json:"grantedBy"`
	GrantedAt time.Time  `json:"grantedAt"`
	RevokedAt *time.Time `json:"revokedAt,omitempty"`
	Active    bool       `json:"active"`
}

// IsActiveAt reports whether the grant is effective at the given instant.
func (g *Grant) IsActiveAt(t time.Time) bool {
	if !g.Active {
		return false
	}
	return g.RevokedAt == nil || g.RevokedAt.After(t)
}

// ActiveGrant is the resolver's view of one effective grant, joined with
// its role attributes.
type ActiveGrant struct {
	GrantID   uuid.UUID
	RoleID    uuid.UUID
	RoleName  string
	RoleLevel int
	Scope     ScopeKind
	UnitID    *uuid.UUID
}
