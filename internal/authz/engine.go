package authz

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"fleettrack/internal/feature"
	"fleettrack/internal/permission"
	"fleettrack/internal/platform/metrics"
	"fleettrack/internal/rbac"
	dErrors "fleettrack/pkg/domain-errors"
)

//go:generate mockgen -source=engine.go -destination=mocks/mocks.go -package=mocks

// RoleResolver answers which grants and units are effective for a user.
// Satisfied by rbac.Service.
type RoleResolver interface {
	ActiveGrants(ctx context.Context, userID uuid.UUID) ([]rbac.ActiveGrant, error)
	AccessibleUnits(ctx context.Context, userID uuid.UUID) (map[uuid.UUID]bool, error)
}

// FeatureSource resolves features by code. Satisfied by feature.Service.
type FeatureSource interface {
	GetFeatureByCode(ctx context.Context, code string) (*feature.Feature, error)
}

// CapabilitySource aggregates capabilities over a role set. Satisfied by
// permission.Service.
type CapabilitySource interface {
	CapabilitiesFor(ctx context.Context, roleIDs []uuid.UUID, featureID uuid.UUID) (permission.Capabilities, error)
}

// Engine evaluates authorization decisions.
type Engine struct {
	roles    RoleResolver
	features FeatureSource
	caps     CapabilitySource
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

func NewEngine(roles RoleResolver, features FeatureSource, caps CapabilitySource, m *metrics.Metrics) *Engine {
	return &Engine{
		roles:    roles,
		features: features,
		caps:     caps,
		metrics:  m,
		tracer:   otel.Tracer("fleettrack/authz"),
	}
}

// Authorize decides whether userID may perform action on the feature,
// optionally targeting one unit. A nil targetUnitID skips the scope check,
// for operations without a unit dimension.
//
// The error return is reserved for resolver failures; it always means the
// access was refused. A refusal with a reason comes back as a Decision, not
// an error.
func (e *Engine) Authorize(ctx context.Context, userID uuid.UUID, featureCode string, action permission.Action, targetUnitID *uuid.UUID) (Decision, error) {
	ctx, span := e.tracer.Start(ctx, "authz.Authorize",
		trace.WithAttributes(
			attribute.String("authz.feature", featureCode),
			attribute.String("authz.action", string(action)),
		))
	defer span.End()

	cache := cacheFrom(ctx)

	decision, err := e.baseDecision(ctx, cache, userID, featureCode, action)
	if err != nil {
		e.count("error")
		return Decision{}, err
	}
	if !decision.Allowed {
		e.count(string(decision.Reason))
		return decision, nil
	}

	// The administrator override also bypasses unit scope.
	if targetUnitID != nil && !decision.admin {
		accessible, err := e.accessibleUnits(ctx, cache, userID)
		if err != nil {
			e.count("error")
			return Decision{}, err
		}
		if !accessible[*targetUnitID] {
			e.count(string(ReasonOutOfScope))
			return deny(ReasonOutOfScope), nil
		}
	}

	e.count("allowed")
	return decision, nil
}

// baseDecision runs the scope-free part of the pipeline: admin override,
// feature availability, capability. Its outcome is cached per
// (user, feature, action) for the request.
func (e *Engine) baseDecision(ctx context.Context, cache *cache, userID uuid.UUID, featureCode string, action permission.Action) (Decision, error) {
	key := decisionKey{userID: userID, featureCode: featureCode, action: action}
	if decision, ok := cache.decision(key); ok {
		if e.metrics != nil {
			e.metrics.AuthzCacheHits.Inc()
		}
		return decision, nil
	}

	grants, err := e.activeGrants(ctx, cache, userID)
	if err != nil {
		return Decision{}, err
	}

	decision, err := e.evaluate(ctx, grants, featureCode, action)
	if err != nil {
		return Decision{}, err
	}
	cache.storeDecision(key, decision)
	return decision, nil
}

func (e *Engine) evaluate(ctx context.Context, grants []rbac.ActiveGrant, featureCode string, action permission.Action) (Decision, error) {
	for _, grant := range grants {
		if grant.RoleLevel == rbac.AdminLevel {
			return adminAllow(), nil
		}
	}

	feat, err := e.features.GetFeatureByCode(ctx, featureCode)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return deny(ReasonFeatureUnavailable), nil
		}
		return Decision{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "authorization unavailable")
	}
	if !feat.Active {
		return deny(ReasonFeatureUnavailable), nil
	}

	roleIDs := make([]uuid.UUID, 0, len(grants))
	for _, grant := range grants {
		roleIDs = append(roleIDs, grant.RoleID)
	}
	caps, err := e.caps.CapabilitiesFor(ctx, roleIDs, feat.ID)
	if err != nil {
		return Decision{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "authorization unavailable")
	}
	if !caps.Allows(action) {
		return deny(ReasonPermissionDenied), nil
	}
	return allow(), nil
}

func (e *Engine) activeGrants(ctx context.Context, cache *cache, userID uuid.UUID) ([]rbac.ActiveGrant, error) {
	if grants, ok := cache.activeGrants(userID); ok {
		return grants, nil
	}
	grants, err := e.roles.ActiveGrants(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "authorization unavailable")
	}
	cache.storeActiveGrants(userID, grants)
	return grants, nil
}

func (e *Engine) accessibleUnits(ctx context.Context, cache *cache, userID uuid.UUID) (map[uuid.UUID]bool, error) {
	if units, ok := cache.accessibleUnits(userID); ok {
		return units, nil
	}
	units, err := e.roles.AccessibleUnits(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "authorization unavailable")
	}
	cache.storeAccessibleUnits(userID, units)
	return units, nil
}

func (e *Engine) count(outcome string) {
	if e.metrics != nil {
		e.metrics.AuthzDecisions.WithLabelValues(outcome).Inc()
	}
}
