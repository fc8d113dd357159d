package fleet_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleettrack/internal/audit"
	"fleettrack/internal/authz"
	"fleettrack/internal/feature"
	"fleettrack/internal/fleet"
	"fleettrack/internal/org"
	"fleettrack/internal/permission"
	"fleettrack/internal/rbac"
	dErrors "fleettrack/pkg/domain-errors"
	"fleettrack/pkg/requestcontext"
)

type fixture struct {
	svc      *fleet.Service
	rbacSvc  *rbac.Service
	units    *org.InMemoryStore
	trucks   *fleet.InMemoryStore
	auditLog *audit.InMemoryStore

	north, south uuid.UUID
	manager      uuid.UUID // view+create+edit+delete on trucks, scoped to north
	viewer       uuid.UUID // view on trucks, scoped to north
	admin        uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	auditStore := audit.NewInMemoryStore()
	recorder := audit.NewRecorder(auditStore, slog.New(slog.NewTextHandler(io.Discard, nil)))

	units := org.NewInMemoryStore()
	roles := rbac.NewInMemoryRoleStore()
	grants := rbac.NewInMemoryGrantStore()
	features := feature.NewInMemoryStore()
	perms := permission.NewInMemoryStore()
	trucks := fleet.NewInMemoryStore()

	rbacSvc := rbac.NewService(roles, grants, units, recorder, nil)
	permSvc := permission.NewService(perms, features, roles, recorder, nil)
	featSvc := feature.NewService(features, recorder)
	engine := authz.NewEngine(rbacSvc, featSvc, permSvc, nil)

	f := &fixture{
		svc:      fleet.NewService(trucks, units, engine, rbacSvc, recorder),
		rbacSvc:  rbacSvc,
		units:    units,
		trucks:   trucks,
		auditLog: auditStore,
	}

	seedCtx := requestcontext.WithUserID(context.Background(), uuid.New())
	f.north, f.south = uuid.New(), uuid.New()
	require.NoError(t, units.Create(seedCtx, &org.Unit{ID: f.north, Name: "North", Code: "NORTH", Active: true}))
	require.NoError(t, units.Create(seedCtx, &org.Unit{ID: f.south, Name: "South", Code: "SOUTH", Active: true}))

	trucksFeature, err := featSvc.CreateFeature(seedCtx, fleet.FeatureCode, "Truck registry")
	require.NoError(t, err)

	managerRole, err := rbacSvc.CreateRole(seedCtx, "Fleet Manager", 2, rbac.ScopeUnit)
	require.NoError(t, err)
	_, err = permSvc.Replace(seedCtx, managerRole.ID, []permission.Entry{
		{FeatureID: trucksFeature.ID, Actions: []string{"view", "create", "edit", "delete"}},
	})
	require.NoError(t, err)

	viewerRole, err := rbacSvc.CreateRole(seedCtx, "Viewer", 3, rbac.ScopeUnit)
	require.NoError(t, err)
	_, err = permSvc.Replace(seedCtx, viewerRole.ID, []permission.Entry{
		{FeatureID: trucksFeature.ID, Actions: []string{"view"}},
	})
	require.NoError(t, err)

	adminRole, err := rbacSvc.CreateRole(seedCtx, "Administrator", rbac.AdminLevel, rbac.ScopeGlobal)
	require.NoError(t, err)

	f.manager, f.viewer, f.admin = uuid.New(), uuid.New(), uuid.New()
	_, err = rbacSvc.Grant(seedCtx, f.manager, managerRole.ID, &f.north)
	require.NoError(t, err)
	_, err = rbacSvc.Grant(seedCtx, f.viewer, viewerRole.ID, &f.north)
	require.NoError(t, err)
	_, err = rbacSvc.Grant(seedCtx, f.admin, adminRole.ID, nil)
	require.NoError(t, err)
	return f
}

func asUser(userID uuid.UUID) context.Context {
	ctx := requestcontext.WithUserID(context.Background(), userID)
	ctx = requestcontext.WithTime(ctx, time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))
	return authz.WithCache(ctx)
}

func (f *fixture) mustTruck(t *testing.T, ctx context.Context, unitID uuid.UUID, plate string) *fleet.Truck {
	t.Helper()
	truck, err := f.svc.CreateTruck(ctx, fleet.TruckInput{
		UnitID: unitID, Plate: plate, Make: "Volvo", Model: "FH16",
		TrackerState: "functional", Insured: "yes",
	})
	require.NoError(t, err)
	return truck
}

func TestCreateTruck(t *testing.T) {
	f := newFixture(t)

	t.Run("manager creates in own unit", func(t *testing.T) {
		truck := f.mustTruck(t, asUser(f.manager), f.north, "ab-123-cd")
		assert.Equal(t, "AB-123-CD", truck.Plate, "plates are normalized")
		assert.Equal(t, fleet.InstallFunctional, truck.TrackerState)

		entries, err := f.auditLog.List(context.Background(), audit.Filter{Action: audit.ActionCreate, EntityType: audit.EntityTruck})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, &f.manager, entries[0].ActorID)
	})

	t.Run("manager cannot create outside scope", func(t *testing.T) {
		_, err := f.svc.CreateTruck(asUser(f.manager), fleet.TruckInput{UnitID: f.south, Plate: "XY-1"})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	t.Run("viewer cannot create", func(t *testing.T) {
		_, err := f.svc.CreateTruck(asUser(f.viewer), fleet.TruckInput{UnitID: f.north, Plate: "XY-2"})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	t.Run("admin creates anywhere", func(t *testing.T) {
		f.mustTruck(t, asUser(f.admin), f.south, "EF-456-GH")
	})

	t.Run("duplicate plate within unit", func(t *testing.T) {
		_, err := f.svc.CreateTruck(asUser(f.manager), fleet.TruckInput{UnitID: f.north, Plate: "AB-123-CD"})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})

	t.Run("same plate in another unit is fine", func(t *testing.T) {
		f.mustTruck(t, asUser(f.admin), f.south, "AB-123-CD")
	})

	t.Run("unauthenticated", func(t *testing.T) {
		_, err := f.svc.CreateTruck(authz.WithCache(context.Background()), fleet.TruckInput{UnitID: f.north, Plate: "ZZ-1"})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("unknown enum values fall back", func(t *testing.T) {
		truck, err := f.svc.CreateTruck(asUser(f.manager), fleet.TruckInput{
			UnitID: f.north, Plate: "FB-1", TrackerState: "installed?", Insured: "maybe",
		})
		require.NoError(t, err)
		assert.Equal(t, fleet.InstallUnknown, truck.TrackerState)
		assert.Equal(t, fleet.TriNotApplicable, truck.Insured)
	})
}

func TestListTrucksScoping(t *testing.T) {
	f := newFixture(t)
	f.mustTruck(t, asUser(f.admin), f.north, "N-1")
	f.mustTruck(t, asUser(f.admin), f.north, "N-2")
	f.mustTruck(t, asUser(f.admin), f.south, "S-1")

	t.Run("manager sees only own unit", func(t *testing.T) {
		trucks, err := f.svc.ListTrucks(asUser(f.manager), nil, false)
		require.NoError(t, err)
		require.Len(t, trucks, 2)
		for _, truck := range trucks {
			assert.Equal(t, f.north, truck.UnitID)
		}
	})

	t.Run("admin sees everything", func(t *testing.T) {
		trucks, err := f.svc.ListTrucks(asUser(f.admin), nil, false)
		require.NoError(t, err)
		assert.Len(t, trucks, 3)
	})

	t.Run("explicit out-of-scope unit filter is refused", func(t *testing.T) {
		_, err := f.svc.ListTrucks(asUser(f.manager), &f.south, false)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	t.Run("reading an out-of-scope truck is refused", func(t *testing.T) {
		southTrucks, err := f.svc.ListTrucks(asUser(f.admin), &f.south, false)
		require.NoError(t, err)
		require.NotEmpty(t, southTrucks)
		_, err = f.svc.GetTruck(asUser(f.manager), southTrucks[0].ID)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}

func TestUpdateAndDeactivateTruck(t *testing.T) {
	f := newFixture(t)
	truck := f.mustTruck(t, asUser(f.manager), f.north, "N-1")

	t.Run("update audits the diff", func(t *testing.T) {
		updated, err := f.svc.UpdateTruck(asUser(f.manager), truck.ID, fleet.TruckInput{
			UnitID: f.north, Plate: "N-1", Make: "Volvo", Model: "FH16",
			TrackerState: "non_functional", Insured: "yes",
		})
		require.NoError(t, err)
		assert.Equal(t, fleet.InstallNonFunctional, updated.TrackerState)

		entries, err := f.auditLog.List(context.Background(), audit.Filter{Action: audit.ActionUpdate, EntityType: audit.EntityTruck})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "functional", entries[0].OldValues["trackerState"])
		assert.Equal(t, "non_functional", entries[0].NewValues["trackerState"])
		assert.NotContains(t, entries[0].OldValues, "plate", "unchanged fields stay out of the diff")
	})

	t.Run("moving to an out-of-scope unit is refused", func(t *testing.T) {
		_, err := f.svc.UpdateTruck(asUser(f.manager), truck.ID, fleet.TruckInput{
			UnitID: f.south, Plate: "N-1",
		})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	t.Run("deactivate", func(t *testing.T) {
		require.NoError(t, f.svc.DeactivateTruck(asUser(f.manager), truck.ID))

		active, err := f.svc.ListTrucks(asUser(f.manager), nil, true)
		require.NoError(t, err)
		assert.Empty(t, active)

		err = f.svc.DeactivateTruck(asUser(f.manager), truck.ID)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func TestImport(t *testing.T) {
	f := newFixture(t)
	f.mustTruck(t, asUser(f.manager), f.north, "N-1")

	summary, err := f.svc.Import(asUser(f.manager), []fleet.ImportRow{
		{UnitCode: "north", Plate: "N-1", Make: "Volvo", Model: "FH17", TrackerState: "functional", Insured: "yes"},
		{UnitCode: "NORTH", Plate: "N-2", Make: "Scania", Model: "R500", TrackerState: "whatever", Insured: "yes"},
		{UnitCode: "SOUTH", Plate: "S-1"},
		{UnitCode: "NOWHERE", Plate: "X-1"},
		{UnitCode: "NORTH", Plate: ""},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Created)
	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, 3, summary.Failed)
	require.Len(t, summary.Errors, 3)
	assert.Equal(t, 3, summary.Errors[0].Line, "out-of-scope unit fails the row")
	assert.Equal(t, 4, summary.Errors[1].Line)
	assert.Equal(t, 5, summary.Errors[2].Line)

	t.Run("upsert applied the update", func(t *testing.T) {
		trucks, err := f.svc.ListTrucks(asUser(f.manager), &f.north, false)
		require.NoError(t, err)
		require.Len(t, trucks, 2)
		assert.Equal(t, "FH17", trucks[0].Model)
		assert.Equal(t, fleet.InstallUnknown, trucks[1].TrackerState, "unknown tracker state falls back")
	})

	t.Run("import is audited with counts", func(t *testing.T) {
		entries, err := f.auditLog.List(context.Background(), audit.Filter{Action: audit.ActionImport})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, 1, entries[0].Metadata["created"])
		assert.Equal(t, 3, entries[0].Metadata["failed"])
	})
}

func TestExport(t *testing.T) {
	f := newFixture(t)
	f.mustTruck(t, asUser(f.admin), f.north, "N-1")
	f.mustTruck(t, asUser(f.admin), f.south, "S-1")

	trucks, err := f.svc.Export(asUser(f.manager), nil)
	require.NoError(t, err)
	require.Len(t, trucks, 1)

	entries, err := f.auditLog.List(context.Background(), audit.Filter{Action: audit.ActionExport})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 1, entries[0].Metadata["rows"])
}
