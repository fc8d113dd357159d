// Package fleet is the truck registry: the vehicles tracked per
// organizational unit, with bulk import and export.
package fleet

import (
	"time"

	"github.com/google/uuid"
)

// InstallState describes the tracker installation status of a truck. The
// taxonomy carries an explicit unknown variant: values arriving from bulk
// imports outside the known set land there instead of failing the row.
type InstallState string

const (
	InstallFunctional    InstallState = "functional"
	InstallNonFunctional InstallState = "non_functional"
	InstallTestRequired  InstallState = "test_required"
	InstallUnknown       InstallState = "unknown"
)

// ParseInstallState maps a raw value into the taxonomy, falling back to
// InstallUnknown rather than erroring.
func ParseInstallState(s string) InstallState {
	switch InstallState(s) {
	case InstallFunctional, InstallNonFunctional, InstallTestRequired:
		return InstallState(s)
	default:
		return InstallUnknown
	}
}

// TriState is a yes/no answer that may be genuinely not applicable.
type TriState string

const (
	TriYes           TriState = "yes"
	TriNo            TriState = "no"
	TriNotApplicable TriState = "not_applicable"
)

// ParseTriState falls back to TriNotApplicable for values outside the set.
func ParseTriState(s string) TriState {
	switch TriState(s) {
	case TriYes, TriNo:
		return TriState(s)
	default:
		return TriNotApplicable
	}
}

// Truck is one registered vehicle, always bound to a unit.
type Truck struct {
	ID           uuid.UUID    `json:"id"`
	UnitID       uuid.UUID    `json:"unitId"`
	Plate        string       `json:"plate"`
	Make         string       `json:"make"`
	Model        string       `json:"model"`
	TrackerState InstallState `json:"trackerState"`
	Insured      TriState     `json:"insured"`
	Active       bool         `json:"active"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// Snapshot returns the auditable field values of the truck.
func (t *Truck) Snapshot() map[string]any {
	return map[string]any{
		"unitId":       t.UnitID.String(),
		"plate":        t.Plate,
		"make":         t.Make,
		"model":        t.Model,
		"trackerState": string(t.TrackerState),
		"insured":      string(t.Insured),
		"active":       t.Active,
	}
}
