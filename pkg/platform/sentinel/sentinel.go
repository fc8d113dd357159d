package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into coded domain errors without
// inspecting driver-specific error types.
//
// These describe factual states about stored resources, not validation
// failures. Validation belongs in pkg/domain-errors.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrInactive    = errors.New("inactive")
	ErrUnavailable = errors.New("unavailable")
)
