package rbac

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"fleettrack/pkg/platform/sentinel"
	txcontext "fleettrack/pkg/platform/tx"
)

const pgErrUniqueViolation = "23505"

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func execer(ctx context.Context, db *sql.DB) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return db
}

// PostgresRoleStore persists roles in PostgreSQL.
type PostgresRoleStore struct {
	db *sql.DB
}

func NewPostgresRoleStore(db *sql.DB) *PostgresRoleStore {
	return &PostgresRoleStore{db: db}
}

func (s *PostgresRoleStore) Create(ctx context.Context, role *Role) error {
	query := `
		INSERT INTO roles (id, name, level, scope_kind, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := execer(ctx, s.db).ExecContext(ctx, query,
		role.ID, role.Name, role.Level, string(role.Scope), role.Active, role.CreatedAt, role.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert role: %w", err)
	}
	return nil
}

func (s *PostgresRoleStore) FindByID(ctx context.Context, id uuid.UUID) (*Role, error) {
	query := `
		SELECT id, name, level, scope_kind, active, created_at, updated_at
		FROM roles WHERE id = $1
	`
	var role Role
	err := execer(ctx, s.db).QueryRowContext(ctx, query, id).Scan(
		&role.ID, &role.Name, &role.Level, &role.Scope, &role.Active, &role.CreatedAt, &role.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query role: %w", err)
	}
	return &role, nil
}

func (s *PostgresRoleStore) List(ctx context.Context) ([]*Role, error) {
	query := `
		SELECT id, name, level, scope_kind, active, created_at, updated_at
		FROM roles ORDER BY level, name
	`
	rows, err := execer(ctx, s.db).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	defer rows.Close()

	var roles []*Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Level, &role.Scope, &role.Active, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		roles = append(roles, &role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roles: %w", err)
	}
	return roles, nil
}

func (s *PostgresRoleStore) Update(ctx context.Context, role *Role) error {
	query := `
		UPDATE roles
		SET name = $2, level = $3, scope_kind = $4, active = $5, updated_at = $6
		WHERE id = $1
	`
	result, err := execer(ctx, s.db).ExecContext(ctx, query,
		role.ID, role.Name, role.Level, string(role.Scope), role.Active, role.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update role rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// PostgresGrantStore persists grants in PostgreSQL. A partial unique index
// on (user_id, role_id, coalesce(unit_id, nil-uuid)) WHERE active backs the
// one-active-grant-per-triple invariant under concurrent writers.
type PostgresGrantStore struct {
	db *sql.DB
}

func NewPostgresGrantStore(db *sql.DB) *PostgresGrantStore {
	return &PostgresGrantStore{db: db}
}

const grantColumns = `id, user_id, role_id, unit_id, granted_by, granted_at, revoked_at, active`

func (s *PostgresGrantStore) Create(ctx context.Context, grant *Grant) error {
	query := `
		INSERT INTO grants (` + grantColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := execer(ctx, s.db).ExecContext(ctx, query,
		grant.ID, grant.UserID, grant.RoleID, grant.UnitID,
		grant.GrantedBy, grant.GrantedAt, grant.RevokedAt, grant.Active)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert grant: %w", err)
	}
	return nil
}

func (s *PostgresGrantStore) FindByID(ctx context.Context, id uuid.UUID) (*Grant, error) {
	query := `SELECT ` + grantColumns + ` FROM grants WHERE id = $1`
	grant, err := scanGrant(execer(ctx, s.db).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query grant: %w", err)
	}
	return grant, nil
}

func (s *PostgresGrantStore) FindActive(ctx context.Context, userID, roleID uuid.UUID, unitID *uuid.UUID, now time.Time) (*Grant, error) {
	query := `
		SELECT ` + grantColumns + `
		FROM grants
		WHERE user_id = $1 AND role_id = $2 AND unit_id IS NOT DISTINCT FROM $3
		  AND active AND (revoked_at IS NULL OR revoked_at > $4)
	`
	grant, err := scanGrant(execer(ctx, s.db).QueryRowContext(ctx, query, userID, roleID, unitID, now))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query active grant: %w", err)
	}
	return grant, nil
}

func (s *PostgresGrantStore) ListActiveByUser(ctx context.Context, userID uuid.UUID, now time.Time) ([]*Grant, error) {
	query := `
		SELECT ` + grantColumns + `
		FROM grants
		WHERE user_id = $1 AND active AND (revoked_at IS NULL OR revoked_at > $2)
		ORDER BY granted_at
	`
	rows, err := execer(ctx, s.db).QueryContext(ctx, query, userID, now)
	if err != nil {
		return nil, fmt.Errorf("list active grants: %w", err)
	}
	defer rows.Close()

	var grants []*Grant
	for rows.Next() {
		grant, err := scanGrant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan grant: %w", err)
		}
		grants = append(grants, grant)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate grants: %w", err)
	}
	return grants, nil
}

func (s *PostgresGrantStore) Revoke(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE grants
		SET active = FALSE, revoked_at = $2
		WHERE id = $1 AND active
	`
	result, err := execer(ctx, s.db).ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("revoke grant: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoke grant rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGrant(row rowScanner) (*Grant, error) {
	var grant Grant
	err := row.Scan(
		&grant.ID, &grant.UserID, &grant.RoleID, &grant.UnitID,
		&grant.GrantedBy, &grant.GrantedAt, &grant.RevokedAt, &grant.Active)
	if err != nil {
		return nil, err
	}
	return &grant, nil
}
