package permission

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"fleettrack/internal/audit"
	"fleettrack/internal/feature"
	"fleettrack/internal/rbac"
	dErrors "fleettrack/pkg/domain-errors"
	"fleettrack/pkg/platform/sentinel"
	txcontext "fleettrack/pkg/platform/tx"
	"fleettrack/pkg/requestcontext"
)

// RoleSource resolves roles for replacement validation. Satisfied by
// rbac role stores.
type RoleSource interface {
	FindByID(ctx context.Context, id uuid.UUID) (*rbac.Role, error)
}

// Service administers and reads the capability matrix.
type Service struct {
	store    Store
	features feature.Store
	roles    RoleSource
	recorder *audit.Recorder
	txr      txcontext.Runner
}

func NewService(store Store, features feature.Store, roles RoleSource, recorder *audit.Recorder, txr txcontext.Runner) *Service {
	if txr == nil {
		txr = txcontext.NopRunner{}
	}
	return &Service{store: store, features: features, roles: roles, recorder: recorder, txr: txr}
}

// Replace swaps a role's full permission set. Validation is all-or-nothing:
// one unknown action or feature id rejects the whole request and the
// previous set stays in place. Duplicate feature ids in the request are
// merged by unioning their capabilities.
func (s *Service) Replace(ctx context.Context, roleID uuid.UUID, entries []Entry) ([]Permission, error) {
	role, err := s.roles.FindByID(ctx, roleID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "role not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "role lookup failed")
	}

	now := requestcontext.Now(ctx)
	merged := make(map[uuid.UUID]Capabilities, len(entries))
	order := make([]uuid.UUID, 0, len(entries))
	for _, entry := range entries {
		caps, err := FromActions(entry.Actions)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid action")
		}
		if _, seen := merged[entry.FeatureID]; !seen {
			order = append(order, entry.FeatureID)
		}
		merged[entry.FeatureID] |= caps
	}

	if len(order) > 0 {
		existing, err := s.features.ExistingIDs(ctx, order)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "feature lookup failed")
		}
		for _, featureID := range order {
			if !existing[featureID] {
				return nil, dErrors.Newf(dErrors.CodeBadRequest, "unknown feature: %s", featureID)
			}
		}
	}

	perms := make([]Permission, 0, len(order))
	for _, featureID := range order {
		if merged[featureID] == CapNone {
			continue
		}
		perms = append(perms, Permission{
			RoleID:       roleID,
			FeatureID:    featureID,
			Capabilities: merged[featureID],
			UpdatedAt:    now,
		})
	}

	err = s.txr.RunInTx(ctx, func(txCtx context.Context) error {
		return s.store.Replace(txCtx, roleID, perms)
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to replace permissions")
	}

	s.recorder.PermissionsReplaced(ctx, requestcontext.UserID(ctx), roleID, role.Name, len(perms))
	return perms, nil
}

// ListByRole returns the matrix rows for one role at the boundary
// representation.
func (s *Service) ListByRole(ctx context.Context, roleID uuid.UUID) ([]Entry, error) {
	if _, err := s.roles.FindByID(ctx, roleID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "role not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "role lookup failed")
	}

	perms, err := s.store.ListByRole(ctx, roleID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list permissions")
	}

	out := make([]Entry, 0, len(perms))
	for _, perm := range perms {
		actions := make([]string, 0, 4)
		for _, action := range perm.Capabilities.Actions() {
			actions = append(actions, string(action))
		}
		out = append(out, Entry{FeatureID: perm.FeatureID, Actions: actions})
	}
	return out, nil
}

// CapabilitiesFor unions the capabilities the given roles hold on one
// feature. Used by the decision engine after role resolution.
func (s *Service) CapabilitiesFor(ctx context.Context, roleIDs []uuid.UUID, featureID uuid.UUID) (Capabilities, error) {
	if len(roleIDs) == 0 {
		return CapNone, nil
	}
	perms, err := s.store.ListByRoles(ctx, roleIDs)
	if err != nil {
		return CapNone, dErrors.Wrap(err, dErrors.CodeUnavailable, "permission store unavailable")
	}
	var caps Capabilities
	for _, perm := range perms {
		if perm.FeatureID == featureID {
			caps |= perm.Capabilities
		}
	}
	return caps, nil
}
