package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// PostgresStore persists audit entries in PostgreSQL.
//
// It deliberately writes with its own connection rather than joining a
// caller transaction: an audit failure must never roll back the business
// mutation it describes, and a rolled-back business transaction must never
// take a denied-access entry down with it.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, entry Entry) error {
	oldValues, err := marshalValues(entry.OldValues)
	if err != nil {
		return fmt.Errorf("marshal old values: %w", err)
	}
	newValues, err := marshalValues(entry.NewValues)
	if err != nil {
		return fmt.Errorf("marshal new values: %w", err)
	}
	metadata, err := marshalValues(entry.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	query := `
		INSERT INTO audit_entries (
			id, actor_id, action, entity_type, entity_id, entity_label,
			old_values, new_values, metadata,
			request_method, request_path, ip, user_agent, browser, os, request_id,
			created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err = s.db.ExecContext(ctx, query,
		entry.ID,
		entry.ActorID,
		string(entry.Action),
		string(entry.EntityType),
		entry.EntityID,
		entry.EntityLabel,
		oldValues,
		newValues,
		metadata,
		entry.Request.Method,
		entry.Request.Path,
		entry.Request.IP,
		entry.Request.UserAgent,
		entry.Request.Browser,
		entry.Request.OS,
		entry.Request.RequestID,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, filter Filter) ([]Entry, error) {
	query := `
		SELECT id, actor_id, action, entity_type, entity_id, entity_label,
			   old_values, new_values, metadata,
			   request_method, request_path, ip, user_agent, browser, os, request_id,
			   created_at
		FROM audit_entries
	`
	var (
		conds []string
		args  []any
	)
	if filter.ActorID != nil {
		args = append(args, *filter.ActorID)
		conds = append(conds, fmt.Sprintf("actor_id = $%d", len(args)))
	}
	if filter.EntityType != "" {
		args = append(args, string(filter.EntityType))
		conds = append(conds, fmt.Sprintf("entity_type = $%d", len(args)))
	}
	if filter.Action != "" {
		args = append(args, string(filter.Action))
		conds = append(conds, fmt.Sprintf("action = $%d", len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	// ULIDs sort lexicographically by creation time.
	query += " ORDER BY id DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                              Entry
			actorID, entityID              *uuid.UUID
			oldValues, newValues, metadata []byte
		)
		err := rows.Scan(
			&e.ID, &actorID, &e.Action, &e.EntityType, &entityID, &e.EntityLabel,
			&oldValues, &newValues, &metadata,
			&e.Request.Method, &e.Request.Path, &e.Request.IP,
			&e.Request.UserAgent, &e.Request.Browser, &e.Request.OS, &e.Request.RequestID,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.ActorID = actorID
		e.EntityID = entityID
		if e.OldValues, err = unmarshalValues(oldValues); err != nil {
			return nil, err
		}
		if e.NewValues, err = unmarshalValues(newValues); err != nil {
			return nil, err
		}
		if e.Metadata, err = unmarshalValues(metadata); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}

func marshalValues(values map[string]any) ([]byte, error) {
	if len(values) == 0 {
		return nil, nil
	}
	return json.Marshal(values)
}

func unmarshalValues(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var values map[string]any
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("decode audit values: %w", err)
	}
	return values, nil
}
