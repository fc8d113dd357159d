package rbac

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"fleettrack/internal/audit"
	"fleettrack/internal/org"
	dErrors "fleettrack/pkg/domain-errors"
	"fleettrack/pkg/platform/sentinel"
	txcontext "fleettrack/pkg/platform/tx"
	"fleettrack/pkg/requestcontext"
)

// UnitSource lists organizational units for accessible-unit resolution.
// Satisfied by org.Store.
type UnitSource interface {
	List(ctx context.Context, activeOnly bool) ([]*org.Unit, error)
}

// Service is the role/scope resolver: it answers which (role, scope) pairs
// are currently effective for a user and administers roles and grants.
type Service struct {
	roles    RoleStore
	grants   GrantStore
	units    UnitSource
	recorder *audit.Recorder
	txr      txcontext.Runner
}

func NewService(roles RoleStore, grants GrantStore, units UnitSource, recorder *audit.Recorder, txr txcontext.Runner) *Service {
	if txr == nil {
		txr = txcontext.NopRunner{}
	}
	return &Service{roles: roles, grants: grants, units: units, recorder: recorder, txr: txr}
}

// -----------------------------------------------------------------------------
// Role administration
// -----------------------------------------------------------------------------

func (s *Service) CreateRole(ctx context.Context, name string, level int, scope ScopeKind) (*Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "role name is required")
	}
	if level < 1 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "role level must be >= 1")
	}
	if _, err := ParseScopeKind(string(scope)); err != nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "unknown scope kind")
	}

	now := requestcontext.Now(ctx)
	role := &Role{
		ID:        uuid.New(),
		Name:      name,
		Level:     level,
		Scope:     scope,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.roles.Create(ctx, role); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "role name must be unique")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create role")
	}

	s.recorder.EntityCreated(ctx, requestcontext.UserID(ctx), audit.EntityRole, role.ID, role.Name, role.Snapshot())
	return role, nil
}

func (s *Service) GetRole(ctx context.Context, id uuid.UUID) (*Role, error) {
	role, err := s.roles.FindByID(ctx, id)
	if err != nil {
		return nil, wrapRoleErr(err)
	}
	return role, nil
}

func (s *Service) ListRoles(ctx context.Context) ([]*Role, error) {
	return s.roles.List(ctx)
}

// SetRoleActive soft-activates or soft-deactivates a role. Deactivation is
// the only supported removal: grants may still reference the role, and
// history must stay reconstructable.
func (s *Service) SetRoleActive(ctx context.Context, id uuid.UUID, active bool) (*Role, error) {
	role, err := s.roles.FindByID(ctx, id)
	if err != nil {
		return nil, wrapRoleErr(err)
	}
	if role.Active == active {
		return nil, dErrors.New(dErrors.CodeConflict, "role already in requested state")
	}

	before := role.Snapshot()
	role.Active = active
	role.UpdatedAt = requestcontext.Now(ctx)
	if err := s.roles.Update(ctx, role); err != nil {
		return nil, wrapRoleErr(err)
	}

	if diff := audit.ComputeDiff(before, role.Snapshot()); diff != nil {
		s.recorder.EntityUpdated(ctx, requestcontext.UserID(ctx), audit.EntityRole, role.ID, role.Name, diff)
	}
	return role, nil
}

// -----------------------------------------------------------------------------
// Resolution
// -----------------------------------------------------------------------------

// ActiveGrants returns the effective (role, scope) pairs for a user. Grants
// whose role has been administratively deactivated are excluded even when
// the grant row itself is still active.
func (s *Service) ActiveGrants(ctx context.Context, userID uuid.UUID) ([]ActiveGrant, error) {
	now := requestcontext.Now(ctx)
	grants, err := s.grants.ListActiveByUser(ctx, userID, now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "grant store unavailable")
	}

	var out []ActiveGrant
	for _, grant := range grants {
		role, err := s.roles.FindByID(ctx, grant.RoleID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				continue
			}
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "role store unavailable")
		}
		if !role.Active {
			continue
		}
		out = append(out, ActiveGrant{
			GrantID:   grant.ID,
			RoleID:    role.ID,
			RoleName:  role.Name,
			RoleLevel: role.Level,
			Scope:     role.Scope,
			UnitID:    grant.UnitID,
		})
	}
	return out, nil
}

// IsAdministrator reports whether the user holds at least one active grant
// to a level-1 role.
func (s *Service) IsAdministrator(ctx context.Context, userID uuid.UUID) (bool, error) {
	grants, err := s.ActiveGrants(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, grant := range grants {
		if grant.RoleLevel == AdminLevel {
			return true, nil
		}
	}
	return false, nil
}

// AccessibleUnits returns the set of unit ids the user can touch: every
// active unit when the user holds any global-scope grant, plus the units
// bound to unit-scope grants.
//
// Global scope is resolved against the unit directory at call time, not
// snapshotted per grant: a newly created unit becomes accessible to
// global-grant holders without re-granting.
func (s *Service) AccessibleUnits(ctx context.Context, userID uuid.UUID) (map[uuid.UUID]bool, error) {
	grants, err := s.ActiveGrants(ctx, userID)
	if err != nil {
		return nil, err
	}

	units := make(map[uuid.UUID]bool)
	hasGlobal := false
	for _, grant := range grants {
		switch grant.Scope {
		case ScopeGlobal:
			hasGlobal = true
		case ScopeUnit:
			if grant.UnitID != nil {
				units[*grant.UnitID] = true
			}
		}
	}
	if hasGlobal {
		all, err := s.units.List(ctx, true)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "unit store unavailable")
		}
		for _, unit := range all {
			units[unit.ID] = true
		}
	}
	return units, nil
}

// -----------------------------------------------------------------------------
// Grant administration
// -----------------------------------------------------------------------------

// Grant assigns a role to a user. For unit-scope roles a unit is required;
// for global-scope roles supplying one is a scope mismatch. Granting an
// already-active (user, role, unit) triple is idempotent and returns the
// existing grant.
func (s *Service) Grant(ctx context.Context, userID, roleID uuid.UUID, unitID *uuid.UUID) (*Grant, error) {
	role, err := s.roles.FindByID(ctx, roleID)
	if err != nil {
		return nil, wrapRoleErr(err)
	}
	if !role.Active {
		return nil, dErrors.New(dErrors.CodeConflict, "role is inactive")
	}

	switch role.Scope {
	case ScopeUnit:
		if unitID == nil {
			return nil, dErrors.New(dErrors.CodeBadRequest, "scope mismatch: unit-scope role requires a unit")
		}
	case ScopeGlobal:
		if unitID != nil {
			return nil, dErrors.New(dErrors.CodeBadRequest, "scope mismatch: global-scope role takes no unit")
		}
	}

	now := requestcontext.Now(ctx)
	var grant *Grant
	err = s.txr.RunInTx(ctx, func(txCtx context.Context) error {
		existing, err := s.grants.FindActive(txCtx, userID, roleID, unitID, now)
		if err == nil {
			grant = existing
			return nil
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "grant lookup failed")
		}

		grant = &Grant{
			ID:        uuid.New(),
			UserID:    userID,
			RoleID:    roleID,
			UnitID:    unitID,
			GrantedBy: requestcontext.UserID(txCtx),
			GrantedAt: now,
			Active:    true,
		}
		if err := s.grants.Create(txCtx, grant); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				// Lost a race with a concurrent identical grant; reuse it.
				existing, ferr := s.grants.FindActive(txCtx, userID, roleID, unitID, now)
				if ferr != nil {
					return dErrors.Wrap(ferr, dErrors.CodeInternal, "grant lookup after conflict failed")
				}
				grant = existing
				return nil
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create grant")
		}
		s.recorder.RoleGranted(txCtx, requestcontext.UserID(txCtx), grant.ID, userID, roleID, role.Name, unitID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return grant, nil
}

// Revoke closes a grant's validity interval. Fails with not_found if the
// grant does not exist or is already revoked.
func (s *Service) Revoke(ctx context.Context, grantID uuid.UUID) error {
	grant, err := s.grants.FindByID(ctx, grantID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "grant not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "grant lookup failed")
	}

	if err := s.grants.Revoke(ctx, grantID, requestcontext.Now(ctx)); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "grant already revoked")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke grant")
	}

	roleName := grant.RoleID.String()
	if role, err := s.roles.FindByID(ctx, grant.RoleID); err == nil {
		roleName = role.Name
	}
	s.recorder.RoleRevoked(ctx, requestcontext.UserID(ctx), grantID, grant.UserID, roleName)
	return nil
}

func wrapRoleErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "role not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "role store failure")
}
