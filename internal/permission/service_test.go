package permission

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
	"fleettrack/internal/feature"
	"fleettrack/internal/rbac"
	dErrors "fleettrack/pkg/domain-errors"
	"fleettrack/pkg/requestcontext"
)

type fixture struct {
	svc      *Service
	store    *InMemoryStore
	features *feature.InMemoryStore
	roles    *rbac.InMemoryRoleStore
	auditLog *audit.InMemoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	auditStore := audit.NewInMemoryStore()
	recorder := audit.NewRecorder(auditStore, slog.New(slog.NewTextHandler(io.Discard, nil)))
	store := NewInMemoryStore()
	features := feature.NewInMemoryStore()
	roles := rbac.NewInMemoryRoleStore()
	return &fixture{
		svc:      NewService(store, features, roles, recorder, nil),
		store:    store,
		features: features,
		roles:    roles,
		auditLog: auditStore,
	}
}

func (f *fixture) mustRole(t *testing.T, name string) *rbac.Role {
	t.Helper()
	role := &rbac.Role{ID: uuid.New(), Name: name, Level: 2, Scope: rbac.ScopeUnit, Active: true}
	require.NoError(t, f.roles.Create(context.Background(), role))
	return role
}

func (f *fixture) mustFeature(t *testing.T, code string) *feature.Feature {
	t.Helper()
	feat := &feature.Feature{ID: uuid.New(), Code: code, Name: code, Active: true}
	require.NoError(t, f.features.Create(context.Background(), feat))
	return feat
}

func testCtx(actor uuid.UUID) context.Context {
	ctx := requestcontext.WithUserID(context.Background(), actor)
	return requestcontext.WithTime(ctx, time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))
}

func TestReplace(t *testing.T) {
	f := newFixture(t)
	actor := uuid.New()
	ctx := testCtx(actor)
	role := f.mustRole(t, "Dispatcher")
	trucks := f.mustFeature(t, "trucks")
	reports := f.mustFeature(t, "reports")

	t.Run("installs the full set and audits it", func(t *testing.T) {
		perms, err := f.svc.Replace(ctx, role.ID, []Entry{
			{FeatureID: trucks.ID, Actions: []string{"view", "edit"}},
			{FeatureID: reports.ID, Actions: []string{"view"}},
		})
		require.NoError(t, err)
		require.Len(t, perms, 2)
		assert.True(t, perms[0].Capabilities.Allows(ActionView))
		assert.True(t, perms[0].Capabilities.Allows(ActionEdit))
		assert.False(t, perms[0].Capabilities.Allows(ActionDelete))

		entries, err := f.auditLog.List(ctx, audit.Filter{Action: audit.ActionSetPerms})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, &actor, entries[0].ActorID)
	})

	t.Run("replacement discards the previous set", func(t *testing.T) {
		_, err := f.svc.Replace(ctx, role.ID, []Entry{
			{FeatureID: reports.ID, Actions: []string{"view"}},
		})
		require.NoError(t, err)

		stored, err := f.store.ListByRole(ctx, role.ID)
		require.NoError(t, err)
		require.Len(t, stored, 1)
		assert.Equal(t, reports.ID, stored[0].FeatureID)
	})

	t.Run("unknown feature rejects the whole request", func(t *testing.T) {
		_, err := f.svc.Replace(ctx, role.ID, []Entry{
			{FeatureID: trucks.ID, Actions: []string{"view"}},
			{FeatureID: uuid.New(), Actions: []string{"view"}},
		})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))

		stored, err := f.store.ListByRole(ctx, role.ID)
		require.NoError(t, err)
		require.Len(t, stored, 1, "previous set must survive a rejected replace")
		assert.Equal(t, reports.ID, stored[0].FeatureID)
	})

	t.Run("unknown action rejects the whole request", func(t *testing.T) {
		_, err := f.svc.Replace(ctx, role.ID, []Entry{
			{FeatureID: trucks.ID, Actions: []string{"view", "approve"}},
		})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	t.Run("duplicate feature entries are unioned", func(t *testing.T) {
		perms, err := f.svc.Replace(ctx, role.ID, []Entry{
			{FeatureID: trucks.ID, Actions: []string{"view"}},
			{FeatureID: trucks.ID, Actions: []string{"delete"}},
		})
		require.NoError(t, err)
		require.Len(t, perms, 1)
		assert.True(t, perms[0].Capabilities.Allows(ActionView))
		assert.True(t, perms[0].Capabilities.Allows(ActionDelete))
	})

	t.Run("empty set clears the role", func(t *testing.T) {
		_, err := f.svc.Replace(ctx, role.ID, nil)
		require.NoError(t, err)
		stored, err := f.store.ListByRole(ctx, role.ID)
		require.NoError(t, err)
		assert.Empty(t, stored)
	})

	t.Run("unknown role", func(t *testing.T) {
		_, err := f.svc.Replace(ctx, uuid.New(), nil)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func TestCapabilitiesFor(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx(uuid.New())
	viewer := f.mustRole(t, "Viewer")
	editor := f.mustRole(t, "Editor")
	trucks := f.mustFeature(t, "trucks")

	_, err := f.svc.Replace(ctx, viewer.ID, []Entry{{FeatureID: trucks.ID, Actions: []string{"view"}}})
	require.NoError(t, err)
	_, err = f.svc.Replace(ctx, editor.ID, []Entry{{FeatureID: trucks.ID, Actions: []string{"edit"}}})
	require.NoError(t, err)

	t.Run("single role", func(t *testing.T) {
		caps, err := f.svc.CapabilitiesFor(ctx, []uuid.UUID{viewer.ID}, trucks.ID)
		require.NoError(t, err)
		assert.True(t, caps.Allows(ActionView))
		assert.False(t, caps.Allows(ActionEdit))
	})

	t.Run("capabilities union across roles", func(t *testing.T) {
		caps, err := f.svc.CapabilitiesFor(ctx, []uuid.UUID{viewer.ID, editor.ID}, trucks.ID)
		require.NoError(t, err)
		assert.True(t, caps.Allows(ActionView))
		assert.True(t, caps.Allows(ActionEdit))
		assert.False(t, caps.Allows(ActionDelete))
	})

	t.Run("no roles means no capabilities", func(t *testing.T) {
		caps, err := f.svc.CapabilitiesFor(ctx, nil, trucks.ID)
		require.NoError(t, err)
		assert.Equal(t, CapNone, caps)
	})

	t.Run("unmapped feature means no capabilities", func(t *testing.T) {
		caps, err := f.svc.CapabilitiesFor(ctx, []uuid.UUID{viewer.ID}, uuid.New())
		require.NoError(t, err)
		assert.Equal(t, CapNone, caps)
	})
}

func TestCapabilitiesBitset(t *testing.T) {
	caps, err := FromActions([]string{"view", "create", "edit", "delete"})
	require.NoError(t, err)
	assert.Equal(t, CapAll, caps)
	assert.Equal(t, []Action{ActionView, ActionCreate, ActionEdit, ActionDelete}, caps.Actions())

	_, err = FromActions([]string{"view", "drop"})
	assert.Error(t, err)

	assert.False(t, CapNone.Allows(ActionView))
}
