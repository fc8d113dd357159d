// Package authz is the authorization decision engine. Every decision
// composes four checks in order: administrator override, feature
// availability, unit scope, and capability. The engine fails closed: when a
// backing store cannot answer, the request is refused rather than allowed.
package authz

// DenyReason classifies why a decision refused access. The taxonomy is
// closed and ordered by check: feature availability before scope, scope
// before capability.
type DenyReason string

const (
	// ReasonFeatureUnavailable: the feature is unknown or switched off.
	ReasonFeatureUnavailable DenyReason = "feature_unavailable"
	// ReasonOutOfScope: the target unit is outside the user's accessible set.
	ReasonOutOfScope DenyReason = "out_of_scope"
	// ReasonPermissionDenied: no active role grants the capability.
	ReasonPermissionDenied DenyReason = "permission_denied"
)

// Decision is the outcome of one authorization check.
type Decision struct {
	Allowed bool       `json:"allowed"`
	Reason  DenyReason `json:"reason,omitempty"`

	// admin marks a decision produced by the administrator override, which
	// also bypasses the unit-scope check.
	admin bool
}

func allow() Decision            { return Decision{Allowed: true} }
func adminAllow() Decision       { return Decision{Allowed: true, admin: true} }
func deny(r DenyReason) Decision { return Decision{Allowed: false, Reason: r} }
