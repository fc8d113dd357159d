package audit

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/mssola/useragent"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"fleettrack/internal/platform/metrics"
	"fleettrack/pkg/requestcontext"
)

// Recorder is the audit ingestion point. Record is fire-and-forget relative
// to the primary operation: persistence errors are logged, never surfaced to
// the caller, and never roll back the business operation.
//
// With a queue configured, entries are handed to the background Worker;
// without one they are persisted synchronously (tests, CLI).
type Recorder struct {
	store   Store
	sinks   []Sink
	queue   chan Entry
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithQueue enables asynchronous persistence through a buffered queue
// drained by a Worker. A full queue drops the entry rather than blocking
// the request path.
func WithQueue(size int) Option {
	return func(r *Recorder) { r.queue = make(chan Entry, size) }
}

// WithSink registers an additional best-effort destination for every entry.
func WithSink(sink Sink) Option {
	return func(r *Recorder) {
		if sink != nil {
			r.sinks = append(r.sinks, sink)
		}
	}
}

// WithMetrics enables recorded/dropped counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Recorder) { r.metrics = m }
}

func NewRecorder(store Store, logger *slog.Logger, opts ...Option) *Recorder {
	r := &Recorder{
		store:  store,
		logger: logger,
		tracer: otel.Tracer("fleettrack/audit"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record enriches the entry with an ID, timestamp, and request metadata,
// then persists it. It never returns an error.
//
// If the caller's context is already cancelled the entry is skipped: the
// guarded operation was abandoned, so there is no outcome to record.
func (r *Recorder) Record(ctx context.Context, entry Entry) {
	if ctx.Err() != nil {
		return
	}

	ctx, span := r.tracer.Start(ctx, "audit.Record",
		trace.WithAttributes(
			attribute.String("audit.action", string(entry.Action)),
			attribute.String("audit.entity_type", string(entry.EntityType)),
		))
	defer span.End()

	if entry.ID == "" {
		entry.ID = ulid.Make().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = requestcontext.Now(ctx)
	}
	r.enrichRequestMetadata(ctx, &entry)

	if r.queue != nil {
		select {
		case r.queue <- entry:
		default:
			r.logger.WarnContext(ctx, "audit queue full, entry dropped",
				"action", entry.Action,
				"entity_type", entry.EntityType,
			)
			if r.metrics != nil {
				r.metrics.AuditDropped.Inc()
			}
		}
		return
	}

	// The outcome is already known; do not let the request teardown cancel
	// the write mid-flight.
	r.persist(context.WithoutCancel(ctx), entry)
}

func (r *Recorder) enrichRequestMetadata(ctx context.Context, entry *Entry) {
	if entry.Request.Method == "" {
		entry.Request.Method = requestcontext.RequestMethod(ctx)
	}
	if entry.Request.Path == "" {
		entry.Request.Path = requestcontext.RequestPath(ctx)
	}
	if entry.Request.IP == "" {
		entry.Request.IP = requestcontext.ClientIP(ctx)
	}
	if entry.Request.RequestID == "" {
		entry.Request.RequestID = requestcontext.RequestID(ctx)
	}
	if entry.Request.UserAgent == "" {
		entry.Request.UserAgent = requestcontext.UserAgent(ctx)
	}
	if entry.Request.UserAgent != "" && entry.Request.Browser == "" {
		ua := useragent.New(entry.Request.UserAgent)
		name, version := ua.Browser()
		entry.Request.Browser = strings.TrimSpace(name + " " + version)
		entry.Request.OS = ua.OS()
	}
}

func (r *Recorder) persist(ctx context.Context, entry Entry) {
	if err := r.store.Append(ctx, entry); err != nil {
		r.logger.ErrorContext(ctx, "audit append failed",
			"entry_id", entry.ID,
			"action", entry.Action,
			"error", err,
		)
		if r.metrics != nil {
			r.metrics.AuditDropped.Inc()
		}
		return
	}
	if r.metrics != nil {
		r.metrics.AuditRecorded.Inc()
	}
	for _, sink := range r.sinks {
		if err := sink.Publish(ctx, entry); err != nil {
			r.logger.WarnContext(ctx, "audit sink publish failed",
				"entry_id", entry.ID,
				"error", err,
			)
		}
	}
}

// List exposes persisted entries for the read-only audit endpoint.
func (r *Recorder) List(ctx context.Context, filter Filter) ([]Entry, error) {
	return r.store.List(ctx, filter)
}

// -----------------------------------------------------------------------------
// Convenience operations. All reduce to Record.
// -----------------------------------------------------------------------------

// LoginSucceeded records a successful authentication.
func (r *Recorder) LoginSucceeded(ctx context.Context, userID uuid.UUID, email string) {
	r.Record(ctx, Entry{
		ActorID:     &userID,
		Action:      ActionLogin,
		EntityType:  EntitySession,
		EntityLabel: email,
		Metadata:    map[string]any{"success": true},
	})
}

// LoginFailed records a failed authentication attempt. The actor is nil:
// no identity was established.
func (r *Recorder) LoginFailed(ctx context.Context, email, reason string) {
	r.Record(ctx, Entry{
		Action:      ActionLoginFailed,
		EntityType:  EntitySession,
		EntityLabel: email,
		Metadata:    map[string]any{"success": false, "reason": reason},
	})
}

// Logout records an explicit session termination.
func (r *Recorder) Logout(ctx context.Context, userID uuid.UUID) {
	r.Record(ctx, Entry{
		ActorID:    &userID,
		Action:     ActionLogout,
		EntityType: EntitySession,
		Metadata:   map[string]any{"success": true},
	})
}

// EntityCreated records a creation with the new field values.
func (r *Recorder) EntityCreated(ctx context.Context, actorID uuid.UUID, entityType EntityType, entityID uuid.UUID, label string, newValues map[string]any) {
	r.Record(ctx, Entry{
		ActorID:     &actorID,
		Action:      ActionCreate,
		EntityType:  entityType,
		EntityID:    &entityID,
		EntityLabel: label,
		NewValues:   newValues,
	})
}

// EntityUpdated records an update with its field-level diff.
func (r *Recorder) EntityUpdated(ctx context.Context, actorID uuid.UUID, entityType EntityType, entityID uuid.UUID, label string, diff Diff) {
	oldValues, newValues := diff.ToValues()
	r.Record(ctx, Entry{
		ActorID:     &actorID,
		Action:      ActionUpdate,
		EntityType:  entityType,
		EntityID:    &entityID,
		EntityLabel: label,
		OldValues:   oldValues,
		NewValues:   newValues,
	})
}

// EntityDeleted records a deletion (or deactivation) with the prior values.
func (r *Recorder) EntityDeleted(ctx context.Context, actorID uuid.UUID, entityType EntityType, entityID uuid.UUID, label string, oldValues map[string]any) {
	r.Record(ctx, Entry{
		ActorID:     &actorID,
		Action:      ActionDelete,
		EntityType:  entityType,
		EntityID:    &entityID,
		EntityLabel: label,
		OldValues:   oldValues,
	})
}

// RoleGranted records a role assignment.
func (r *Recorder) RoleGranted(ctx context.Context, actorID, grantID, userID, roleID uuid.UUID, roleName string, unitID *uuid.UUID) {
	metadata := map[string]any{
		"user_id": userID.String(),
		"role_id": roleID.String(),
	}
	if unitID != nil {
		metadata["unit_id"] = unitID.String()
	}
	r.Record(ctx, Entry{
		ActorID:     &actorID,
		Action:      ActionGrantRole,
		EntityType:  EntityGrant,
		EntityID:    &grantID,
		EntityLabel: roleName,
		Metadata:    metadata,
	})
}

// RoleRevoked records a role revocation.
func (r *Recorder) RoleRevoked(ctx context.Context, actorID, grantID, userID uuid.UUID, roleName string) {
	r.Record(ctx, Entry{
		ActorID:     &actorID,
		Action:      ActionRevokeRole,
		EntityType:  EntityGrant,
		EntityID:    &grantID,
		EntityLabel: roleName,
		Metadata:    map[string]any{"user_id": userID.String()},
	})
}

// PermissionsReplaced records an atomic permission-set swap for a role.
func (r *Recorder) PermissionsReplaced(ctx context.Context, actorID, roleID uuid.UUID, roleName string, count int) {
	r.Record(ctx, Entry{
		ActorID:     &actorID,
		Action:      ActionSetPerms,
		EntityType:  EntityPermission,
		EntityID:    &roleID,
		EntityLabel: roleName,
		Metadata:    map[string]any{"feature_count": count},
	})
}

// FeatureToggled records a feature activation or deactivation.
func (r *Recorder) FeatureToggled(ctx context.Context, actorID, featureID uuid.UUID, code string, active bool) {
	r.Record(ctx, Entry{
		ActorID:     &actorID,
		Action:      ActionToggle,
		EntityType:  EntityFeature,
		EntityID:    &featureID,
		EntityLabel: code,
		Metadata:    map[string]any{"active": active},
	})
}

// ImportCompleted records a bulk import with row counts.
func (r *Recorder) ImportCompleted(ctx context.Context, actorID uuid.UUID, entityType EntityType, created, updated, failed int) {
	r.Record(ctx, Entry{
		ActorID:    &actorID,
		Action:     ActionImport,
		EntityType: entityType,
		Metadata: map[string]any{
			"created": created,
			"updated": updated,
			"failed":  failed,
		},
	})
}

// ExportCompleted records a bulk export with its row count.
func (r *Recorder) ExportCompleted(ctx context.Context, actorID uuid.UUID, entityType EntityType, rows int) {
	r.Record(ctx, Entry{
		ActorID:    &actorID,
		Action:     ActionExport,
		EntityType: entityType,
		Metadata:   map[string]any{"rows": rows},
	})
}

// AccessDenied records a denied or unauthenticated access attempt. The
// actor is nil when no identity was established.
func (r *Recorder) AccessDenied(ctx context.Context, actorID *uuid.UUID, featureCode, action, reason string) {
	r.Record(ctx, Entry{
		ActorID:     actorID,
		Action:      ActionAccessDenied,
		EntityType:  EntityFeature,
		EntityLabel: featureCode,
		Metadata: map[string]any{
			"success":          false,
			"requested_action": action,
			"reason":           reason,
		},
	})
}
