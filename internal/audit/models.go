package audit

import (
	"time"

	"github.com/google/uuid"
)

// Action enumerates the audited verbs.
type Action string

const (
	ActionLogin        Action = "login"
	ActionLoginFailed  Action = "login_failed"
	ActionLogout       Action = "logout"
	ActionCreate       Action = "create"
	ActionUpdate       Action = "update"
	ActionDelete       Action = "delete"
	ActionGrantRole    Action = "grant_role"
	ActionRevokeRole   Action = "revoke_role"
	ActionSetPerms     Action = "replace_permissions"
	ActionToggle       Action = "toggle_feature"
	ActionImport       Action = "import"
	ActionExport       Action = "export"
	ActionAccessDenied Action = "access_denied"
)

// EntityType enumerates the entities an audit entry can refer to.
type EntityType string

const (
	EntityUser       EntityType = "user"
	EntityRole       EntityType = "role"
	EntityGrant      EntityType = "grant"
	EntityPermission EntityType = "permission"
	EntityFeature    EntityType = "feature"
	EntityUnit       EntityType = "unit"
	EntityTruck      EntityType = "truck"
	EntitySession    EntityType = "session"
)

// RequestMetadata captures the HTTP origin of an audited action for forensic
// correlation. Populated from the request context; zero-valued for non-HTTP
// origins (workers, CLI).
type RequestMetadata struct {
	Method    string `json:"method,omitempty"`
	Path      string `json:"path,omitempty"`
	IP        string `json:"ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	Browser   string `json:"browser,omitempty"`
	OS        string `json:"os,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// Entry is an immutable audit record. Created once, never mutated or deleted
// by the application; retention is an operational concern. ActorID is
// nullable so entries survive user anonymization and so pre-authentication
// events (failed logins, unauthorized attempts) can still be recorded.
type Entry struct {
	ID          string          `json:"id"`
	ActorID     *uuid.UUID      `json:"actorId,omitempty"`
	Action      Action          `json:"action"`
	EntityType  EntityType      `json:"entityType"`
	EntityID    *uuid.UUID      `json:"entityId,omitempty"`
	EntityLabel string          `json:"entityLabel,omitempty"`
	OldValues   map[string]any  `json:"oldValues,omitempty"`
	NewValues   map[string]any  `json:"newValues,omitempty"`
	Metadata    map[string]any  `json:"metadata,omitempty"`
	Request     RequestMetadata `json:"request"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Filter narrows audit listings. Zero fields match everything.
type Filter struct {
	ActorID    *uuid.UUID
	EntityType EntityType
	Action     Action
	Limit      int
}
