// Package permission implements the role-to-feature capability matrix. Each
// (role, feature) pair carries a CRUD bitset; the set for a role is only ever
// replaced wholesale, never patched entry by entry.
package permission

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Action is a single CRUD capability. The taxonomy is closed: unknown action
// strings are rejected at the boundary, not defaulted.
type Action string

const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
)

func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionView, ActionCreate, ActionEdit, ActionDelete:
		return Action(s), nil
	default:
		return "", fmt.Errorf("unknown action: %q", s)
	}
}

// Capabilities is a bitset over the four CRUD actions.
type Capabilities uint8

const (
	CapView Capabilities = 1 << iota
	CapCreate
	CapEdit
	CapDelete

	CapNone Capabilities = 0
	CapAll               = CapView | CapCreate | CapEdit | CapDelete
)

var actionBits = map[Action]Capabilities{
	ActionView:   CapView,
	ActionCreate: CapCreate,
	ActionEdit:   CapEdit,
	ActionDelete: CapDelete,
}

// FromActions folds a list of actions into a bitset. Unknown actions error;
// a permission row must never silently lose a capability.
func FromActions(actions []string) (Capabilities, error) {
	var caps Capabilities
	for _, raw := range actions {
		action, err := ParseAction(raw)
		if err != nil {
			return CapNone, err
		}
		caps |= actionBits[action]
	}
	return caps, nil
}

// Allows reports whether the bitset grants the given action.
func (c Capabilities) Allows(action Action) bool {
	bit, ok := actionBits[action]
	return ok && c&bit != 0
}

// Actions expands the bitset into its action list, in a fixed order.
func (c Capabilities) Actions() []Action {
	var out []Action
	for _, action := range []Action{ActionView, ActionCreate, ActionEdit, ActionDelete} {
		if c.Allows(action) {
			out = append(out, action)
		}
	}
	return out
}

// Permission binds a role to a feature with a capability bitset.
type Permission struct {
	RoleID       uuid.UUID    `json:"roleId"`
	FeatureID    uuid.UUID    `json:"featureId"`
	Capabilities Capabilities `json:"-"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// Entry is the boundary representation of one matrix row: a feature id plus
// the granted action names.
type Entry struct {
	FeatureID uuid.UUID `json:"featureId"`
	Actions   []string  `json:"actions"`
}
