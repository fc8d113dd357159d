package permission

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	txcontext "fleettrack/pkg/platform/tx"
)

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func execer(ctx context.Context, db *sql.DB) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return db
}

// PostgresStore persists the matrix in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Replace deletes the role's rows and inserts the new set. Callers run it
// inside a transaction so the delete and the inserts commit together; outside
// one it falls back to a transaction of its own.
func (s *PostgresStore) Replace(ctx context.Context, roleID uuid.UUID, perms []Permission) error {
	if _, inTx := txcontext.From(ctx); !inTx {
		return txcontext.RunInTx(ctx, s.db, func(txCtx context.Context) error {
			return s.Replace(txCtx, roleID, perms)
		})
	}

	ex := execer(ctx, s.db)
	if _, err := ex.ExecContext(ctx, `DELETE FROM permissions WHERE role_id = $1`, roleID); err != nil {
		return fmt.Errorf("clear permissions: %w", err)
	}
	for _, perm := range perms {
		_, err := ex.ExecContext(ctx, `
			INSERT INTO permissions (role_id, feature_id, capabilities, updated_at)
			VALUES ($1, $2, $3, $4)
		`, perm.RoleID, perm.FeatureID, int(perm.Capabilities), perm.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert permission: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) ListByRole(ctx context.Context, roleID uuid.UUID) ([]Permission, error) {
	rows, err := execer(ctx, s.db).QueryContext(ctx, `
		SELECT role_id, feature_id, capabilities, updated_at
		FROM permissions
		WHERE role_id = $1
	`, roleID)
	if err != nil {
		return nil, fmt.Errorf("list permissions: %w", err)
	}
	defer rows.Close()
	return collectPermissions(rows)
}

func (s *PostgresStore) ListByRoles(ctx context.Context, roleIDs []uuid.UUID) ([]Permission, error) {
	if len(roleIDs) == 0 {
		return nil, nil
	}
	ids := make([]string, len(roleIDs))
	for i, id := range roleIDs {
		ids[i] = id.String()
	}
	rows, err := execer(ctx, s.db).QueryContext(ctx, `
		SELECT role_id, feature_id, capabilities, updated_at
		FROM permissions
		WHERE role_id = ANY($1::uuid[])
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("list permissions by roles: %w", err)
	}
	defer rows.Close()
	return collectPermissions(rows)
}

func collectPermissions(rows *sql.Rows) ([]Permission, error) {
	var out []Permission
	for rows.Next() {
		var perm Permission
		var caps int
		if err := rows.Scan(&perm.RoleID, &perm.FeatureID, &caps, &perm.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan permission: %w", err)
		}
		perm.Capabilities = Capabilities(caps)
		out = append(out, perm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate permissions: %w", err)
	}
	return out, nil
}
