package org

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
	dErrors "fleettrack/pkg/domain-errors"
	"fleettrack/pkg/requestcontext"
)

func newService(t *testing.T) (*Service, *audit.InMemoryStore) {
	t.Helper()
	auditStore := audit.NewInMemoryStore()
	recorder := audit.NewRecorder(auditStore, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return NewService(NewInMemoryStore(), recorder), auditStore
}

func testCtx(actor uuid.UUID) context.Context {
	ctx := requestcontext.WithUserID(context.Background(), actor)
	return requestcontext.WithTime(ctx, time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))
}

func TestCreateUnit(t *testing.T) {
	svc, auditLog := newService(t)
	actor := uuid.New()
	ctx := testCtx(actor)

	t.Run("normalizes code and audits creation", func(t *testing.T) {
		unit, err := svc.CreateUnit(ctx, "  Filiale Nord  ", "nord")
		require.NoError(t, err)
		assert.Equal(t, "Filiale Nord", unit.Name)
		assert.Equal(t, "NORD", unit.Code)
		assert.True(t, unit.Active)

		entries, err := auditLog.List(ctx, audit.Filter{Action: audit.ActionCreate})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, actor, *entries[0].ActorID)
		assert.Equal(t, "NORD", entries[0].EntityLabel)
		assert.Equal(t, "Filiale Nord", entries[0].NewValues["name"])
	})

	t.Run("rejects duplicate code regardless of case", func(t *testing.T) {
		_, err := svc.CreateUnit(ctx, "Autre Nord", "NoRd")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})

	t.Run("rejects blank fields", func(t *testing.T) {
		_, err := svc.CreateUnit(ctx, "   ", "SUD")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))

		_, err = svc.CreateUnit(ctx, "Filiale Sud", "")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})
}

func TestRenameUnit(t *testing.T) {
	svc, auditLog := newService(t)
	actor := uuid.New()
	ctx := testCtx(actor)

	unit, err := svc.CreateUnit(ctx, "Filiale Nord", "NORD")
	require.NoError(t, err)

	t.Run("renames and audits the diff", func(t *testing.T) {
		renamed, err := svc.RenameUnit(ctx, unit.ID, "Filiale Nord-Est")
		require.NoError(t, err)
		assert.Equal(t, "Filiale Nord-Est", renamed.Name)

		entries, err := auditLog.List(ctx, audit.Filter{Action: audit.ActionUpdate})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "Filiale Nord", entries[0].OldValues["name"])
		assert.Equal(t, "Filiale Nord-Est", entries[0].NewValues["name"])
		assert.NotContains(t, entries[0].NewValues, "code", "unchanged fields stay out of the diff")
	})

	t.Run("renaming to the same name records nothing", func(t *testing.T) {
		_, err := svc.RenameUnit(ctx, unit.ID, "Filiale Nord-Est")
		require.NoError(t, err)

		entries, err := auditLog.List(ctx, audit.Filter{Action: audit.ActionUpdate})
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("unknown unit", func(t *testing.T) {
		_, err := svc.RenameUnit(ctx, uuid.New(), "Anyplace")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func TestDeactivateAndReactivateUnit(t *testing.T) {
	svc, _ := newService(t)
	ctx := testCtx(uuid.New())

	unit, err := svc.CreateUnit(ctx, "Filiale Sud", "SUD")
	require.NoError(t, err)

	t.Run("deactivation hides the unit from active listings", func(t *testing.T) {
		_, err := svc.DeactivateUnit(ctx, unit.ID)
		require.NoError(t, err)

		active, err := svc.ListUnits(ctx, true)
		require.NoError(t, err)
		assert.Empty(t, active)

		all, err := svc.ListUnits(ctx, false)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("double deactivation conflicts", func(t *testing.T) {
		_, err := svc.DeactivateUnit(ctx, unit.ID)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})

	t.Run("reactivation restores visibility", func(t *testing.T) {
		_, err := svc.ReactivateUnit(ctx, unit.ID)
		require.NoError(t, err)

		active, err := svc.ListUnits(ctx, true)
		require.NoError(t, err)
		assert.Len(t, active, 1)
	})

	t.Run("double reactivation conflicts", func(t *testing.T) {
		_, err := svc.ReactivateUnit(ctx, unit.ID)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})
}
