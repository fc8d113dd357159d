package audit

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresAppendSerializesValues(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db)
	actorID := uuid.New()
	entityID := uuid.New()
	entry := Entry{
		ID:          "01JH0000000000000000000000",
		ActorID:     &actorID,
		Action:      ActionUpdate,
		EntityType:  EntityTruck,
		EntityID:    &entityID,
		EntityLabel: "AB-123-CD",
		OldValues:   map[string]any{"make": "Volvo"},
		NewValues:   map[string]any{"make": "Scania"},
		Request:     RequestMetadata{Method: "PUT", Path: "/api/trucks/x", IP: "10.0.0.1", RequestID: "req-1"},
		CreatedAt:   time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
	}

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO audit_entries`)).
		WithArgs(
			entry.ID, &actorID, "update", "truck", &entityID, "AB-123-CD",
			[]byte(`{"make":"Volvo"}`), []byte(`{"make":"Scania"}`), nil,
			"PUT", "/api/trucks/x", "10.0.0.1", "", "", "", "req-1",
			entry.CreatedAt,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Append(context.Background(), entry))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListAppliesFiltersAndOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db)
	actorID := uuid.New()
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	columns := []string{
		"id", "actor_id", "action", "entity_type", "entity_id", "entity_label",
		"old_values", "new_values", "metadata",
		"request_method", "request_path", "ip", "user_agent", "browser", "os", "request_id",
		"created_at",
	}
	rows := sqlmock.NewRows(columns).AddRow(
		"01JH0000000000000000000001", actorID.String(), "access_denied", "feature", nil, "trucks",
		nil, nil, []byte(`{"reason":"out_of_scope"}`),
		"POST", "/api/trucks", "10.0.0.1", "", "", "", "req-2",
		now,
	)
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE actor_id = $1 AND action = $2 ORDER BY id DESC LIMIT $3`)).
		WithArgs(actorID, "access_denied", 10).
		WillReturnRows(rows)

	entries, err := store.List(context.Background(), Filter{
		ActorID: &actorID,
		Action:  ActionAccessDenied,
		Limit:   10,
	})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ActionAccessDenied, entries[0].Action)
	assert.Equal(t, "out_of_scope", entries[0].Metadata["reason"])
	assert.Nil(t, entries[0].EntityID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
