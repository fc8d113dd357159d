package authz_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"fleettrack/internal/audit"
	"fleettrack/internal/authz"
	"fleettrack/internal/authz/mocks"
	"fleettrack/internal/feature"
	"fleettrack/internal/org"
	"fleettrack/internal/permission"
	"fleettrack/internal/rbac"
	dErrors "fleettrack/pkg/domain-errors"
	"fleettrack/pkg/requestcontext"
)

// fixture wires the engine against real in-memory services, the same
// composition the server uses.
type fixture struct {
	engine   *authz.Engine
	rbacSvc  *rbac.Service
	permSvc  *permission.Service
	featSvc  *feature.Service
	units    *org.InMemoryStore
	features *feature.InMemoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	recorder := audit.NewRecorder(audit.NewInMemoryStore(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	roles := rbac.NewInMemoryRoleStore()
	grants := rbac.NewInMemoryGrantStore()
	units := org.NewInMemoryStore()
	features := feature.NewInMemoryStore()
	perms := permission.NewInMemoryStore()

	rbacSvc := rbac.NewService(roles, grants, units, recorder, nil)
	permSvc := permission.NewService(perms, features, roles, recorder, nil)
	featSvc := feature.NewService(features, recorder)

	return &fixture{
		engine:   authz.NewEngine(rbacSvc, featSvc, permSvc, nil),
		rbacSvc:  rbacSvc,
		permSvc:  permSvc,
		featSvc:  featSvc,
		units:    units,
		features: features,
	}
}

func testCtx(actor uuid.UUID) context.Context {
	ctx := requestcontext.WithUserID(context.Background(), actor)
	ctx = requestcontext.WithTime(ctx, time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))
	return authz.WithCache(ctx)
}

// seed builds a unit-scoped dispatcher with view+edit on "trucks" bound to
// one unit, and returns (userID, unitID, otherUnitID).
func (f *fixture) seed(t *testing.T, ctx context.Context) (uuid.UUID, uuid.UUID, uuid.UUID) {
	t.Helper()
	unitID, otherUnit := uuid.New(), uuid.New()
	require.NoError(t, f.units.Create(ctx, &org.Unit{ID: unitID, Name: "North", Code: "NORTH", Active: true}))
	require.NoError(t, f.units.Create(ctx, &org.Unit{ID: otherUnit, Name: "South", Code: "SOUTH", Active: true}))

	trucks, err := f.featSvc.CreateFeature(ctx, "trucks", "Truck registry")
	require.NoError(t, err)

	dispatcher, err := f.rbacSvc.CreateRole(ctx, "Dispatcher", 3, rbac.ScopeUnit)
	require.NoError(t, err)
	_, err = f.permSvc.Replace(ctx, dispatcher.ID, []permission.Entry{
		{FeatureID: trucks.ID, Actions: []string{"view", "edit"}},
	})
	require.NoError(t, err)

	user := uuid.New()
	_, err = f.rbacSvc.Grant(ctx, user, dispatcher.ID, &unitID)
	require.NoError(t, err)
	return user, unitID, otherUnit
}

func TestAuthorize(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx(uuid.New())
	user, unitID, otherUnit := f.seed(t, ctx)

	t.Run("granted capability on accessible unit", func(t *testing.T) {
		decision, err := f.engine.Authorize(ctx, user, "trucks", permission.ActionView, &unitID)
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
	})

	t.Run("missing capability", func(t *testing.T) {
		decision, err := f.engine.Authorize(ctx, user, "trucks", permission.ActionDelete, &unitID)
		require.NoError(t, err)
		assert.False(t, decision.Allowed)
		assert.Equal(t, authz.ReasonPermissionDenied, decision.Reason)
	})

	t.Run("inaccessible unit", func(t *testing.T) {
		decision, err := f.engine.Authorize(ctx, user, "trucks", permission.ActionView, &otherUnit)
		require.NoError(t, err)
		assert.False(t, decision.Allowed)
		assert.Equal(t, authz.ReasonOutOfScope, decision.Reason)
	})

	t.Run("nil target skips the scope check", func(t *testing.T) {
		decision, err := f.engine.Authorize(ctx, user, "trucks", permission.ActionView, nil)
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
	})

	t.Run("unknown feature", func(t *testing.T) {
		decision, err := f.engine.Authorize(ctx, user, "payroll", permission.ActionView, &unitID)
		require.NoError(t, err)
		assert.False(t, decision.Allowed)
		assert.Equal(t, authz.ReasonFeatureUnavailable, decision.Reason)
	})

	t.Run("user with no grants", func(t *testing.T) {
		decision, err := f.engine.Authorize(ctx, uuid.New(), "trucks", permission.ActionView, &unitID)
		require.NoError(t, err)
		assert.False(t, decision.Allowed)
		assert.Equal(t, authz.ReasonPermissionDenied, decision.Reason)
	})
}

func TestAuthorizeInactiveFeature(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx(uuid.New())
	user, unitID, _ := f.seed(t, ctx)

	feat, err := f.featSvc.GetFeatureByCode(ctx, "trucks")
	require.NoError(t, err)
	_, err = f.featSvc.ToggleFeature(ctx, feat.ID, false)
	require.NoError(t, err)

	// A fresh request: the earlier seed ran in a different cache anyway,
	// but be explicit about it.
	decision, err := f.engine.Authorize(testCtx(user), user, "trucks", permission.ActionView, &unitID)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, authz.ReasonFeatureUnavailable, decision.Reason)
}

func TestAuthorizeAdminOverride(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx(uuid.New())
	_, unitID, otherUnit := f.seed(t, ctx)

	admin, err := f.rbacSvc.CreateRole(ctx, "Administrator", rbac.AdminLevel, rbac.ScopeGlobal)
	require.NoError(t, err)
	adminUser := uuid.New()
	_, err = f.rbacSvc.Grant(ctx, adminUser, admin.ID, nil)
	require.NoError(t, err)

	t.Run("admin bypasses capability and scope", func(t *testing.T) {
		for _, unit := range []*uuid.UUID{&unitID, &otherUnit, nil} {
			decision, err := f.engine.Authorize(ctx, adminUser, "trucks", permission.ActionDelete, unit)
			require.NoError(t, err)
			assert.True(t, decision.Allowed)
		}
	})

	t.Run("admin bypasses even an inactive feature", func(t *testing.T) {
		feat, err := f.featSvc.GetFeatureByCode(ctx, "trucks")
		require.NoError(t, err)
		_, err = f.featSvc.ToggleFeature(ctx, feat.ID, false)
		require.NoError(t, err)

		decision, err := f.engine.Authorize(testCtx(adminUser), adminUser, "trucks", permission.ActionView, &unitID)
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
	})
}

func TestDecisionCacheIsRequestScoped(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx(uuid.New())
	user, unitID, _ := f.seed(t, ctx)

	reqCtx := testCtx(user)
	decision, err := f.engine.Authorize(reqCtx, user, "trucks", permission.ActionView, &unitID)
	require.NoError(t, err)
	require.True(t, decision.Allowed)

	// Revoke every grant mid-request.
	grants, err := f.rbacSvc.ActiveGrants(ctx, user)
	require.NoError(t, err)
	for _, grant := range grants {
		require.NoError(t, f.rbacSvc.Revoke(ctx, grant.GrantID))
	}

	t.Run("same request keeps the cached decision", func(t *testing.T) {
		decision, err := f.engine.Authorize(reqCtx, user, "trucks", permission.ActionView, &unitID)
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
	})

	t.Run("next request sees the revocation", func(t *testing.T) {
		decision, err := f.engine.Authorize(testCtx(user), user, "trucks", permission.ActionView, &unitID)
		require.NoError(t, err)
		assert.False(t, decision.Allowed)
	})
}

func TestAuthorizeFailsClosed(t *testing.T) {
	ctrl := gomock.NewController(t)
	user := uuid.New()
	unitID := uuid.New()
	trucks := &feature.Feature{ID: uuid.New(), Code: "trucks", Active: true}
	grants := []rbac.ActiveGrant{{GrantID: uuid.New(), RoleID: uuid.New(), RoleLevel: 3, Scope: rbac.ScopeUnit, UnitID: &unitID}}

	t.Run("grant resolution failure", func(t *testing.T) {
		roles := mocks.NewMockRoleResolver(ctrl)
		roles.EXPECT().ActiveGrants(gomock.Any(), user).Return(nil, errors.New("connection refused"))
		engine := authz.NewEngine(roles, mocks.NewMockFeatureSource(ctrl), mocks.NewMockCapabilitySource(ctrl), nil)

		_, err := engine.Authorize(context.Background(), user, "trucks", permission.ActionView, &unitID)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
	})

	t.Run("feature store failure", func(t *testing.T) {
		roles := mocks.NewMockRoleResolver(ctrl)
		roles.EXPECT().ActiveGrants(gomock.Any(), user).Return(grants, nil)
		features := mocks.NewMockFeatureSource(ctrl)
		features.EXPECT().GetFeatureByCode(gomock.Any(), "trucks").Return(nil, dErrors.New(dErrors.CodeInternal, "boom"))
		engine := authz.NewEngine(roles, features, mocks.NewMockCapabilitySource(ctrl), nil)

		_, err := engine.Authorize(context.Background(), user, "trucks", permission.ActionView, &unitID)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
	})

	t.Run("permission store failure", func(t *testing.T) {
		roles := mocks.NewMockRoleResolver(ctrl)
		roles.EXPECT().ActiveGrants(gomock.Any(), user).Return(grants, nil)
		features := mocks.NewMockFeatureSource(ctrl)
		features.EXPECT().GetFeatureByCode(gomock.Any(), "trucks").Return(trucks, nil)
		caps := mocks.NewMockCapabilitySource(ctrl)
		caps.EXPECT().CapabilitiesFor(gomock.Any(), gomock.Any(), trucks.ID).Return(permission.CapNone, errors.New("timeout"))
		engine := authz.NewEngine(roles, features, caps, nil)

		_, err := engine.Authorize(context.Background(), user, "trucks", permission.ActionView, &unitID)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
	})

	t.Run("accessible-unit failure after allowed base decision", func(t *testing.T) {
		roles := mocks.NewMockRoleResolver(ctrl)
		roles.EXPECT().ActiveGrants(gomock.Any(), user).Return(grants, nil)
		roles.EXPECT().AccessibleUnits(gomock.Any(), user).Return(nil, errors.New("timeout"))
		features := mocks.NewMockFeatureSource(ctrl)
		features.EXPECT().GetFeatureByCode(gomock.Any(), "trucks").Return(trucks, nil)
		caps := mocks.NewMockCapabilitySource(ctrl)
		caps.EXPECT().CapabilitiesFor(gomock.Any(), gomock.Any(), trucks.ID).Return(permission.CapView, nil)
		engine := authz.NewEngine(roles, features, caps, nil)

		_, err := engine.Authorize(context.Background(), user, "trucks", permission.ActionView, &unitID)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
	})
}

func TestRouteTable(t *testing.T) {
	table := authz.NewRouteTable().
		Add("GET", "/api/trucks", authz.Rule{Feature: "trucks", Action: permission.ActionView}).
		Add("PUT", "/api/trucks/{truckID}", authz.Rule{Feature: "trucks", Action: permission.ActionEdit})

	rule, ok := table.Lookup("GET", "/api/trucks")
	require.True(t, ok)
	assert.Equal(t, permission.ActionView, rule.Action)

	rule, ok = table.Lookup("PUT", "/api/trucks/3f2c0a9e-1111-2222-3333-444455556666")
	require.True(t, ok)
	assert.Equal(t, permission.ActionEdit, rule.Action)

	_, ok = table.Lookup("DELETE", "/api/trucks")
	assert.False(t, ok)

	_, ok = table.Lookup("GET", "/api/trucks/abc/extra")
	assert.False(t, ok)
}
