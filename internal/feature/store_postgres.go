package feature

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"fleettrack/pkg/platform/sentinel"
	txcontext "fleettrack/pkg/platform/tx"
)

const pgErrUniqueViolation = "23505"

// PostgresStore persists features in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Create(ctx context.Context, f *Feature) error {
	query := `
		INSERT INTO features (id, code, name, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		f.ID, f.Code, f.Name, f.Active, f.CreatedAt, f.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert feature: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id uuid.UUID) (*Feature, error) {
	return s.findOne(ctx, `WHERE id = $1`, id)
}

func (s *PostgresStore) FindByCode(ctx context.Context, code string) (*Feature, error) {
	return s.findOne(ctx, `WHERE lower(code) = lower($1)`, code)
}

func (s *PostgresStore) findOne(ctx context.Context, where string, arg any) (*Feature, error) {
	query := `SELECT id, code, name, active, created_at, updated_at FROM features ` + where
	var f Feature
	err := s.execer(ctx).QueryRowContext(ctx, query, arg).Scan(
		&f.ID, &f.Code, &f.Name, &f.Active, &f.CreatedAt, &f.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query feature: %w", err)
	}
	return &f, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*Feature, error) {
	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT id, code, name, active, created_at, updated_at FROM features ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("list features: %w", err)
	}
	defer rows.Close()

	var features []*Feature
	for rows.Next() {
		var f Feature
		if err := rows.Scan(&f.ID, &f.Code, &f.Name, &f.Active, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan feature: %w", err)
		}
		features = append(features, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate features: %w", err)
	}
	return features, nil
}

func (s *PostgresStore) Update(ctx context.Context, f *Feature) error {
	query := `
		UPDATE features
		SET name = $2, active = $3, updated_at = $4
		WHERE id = $1
	`
	result, err := s.execer(ctx).ExecContext(ctx, query, f.ID, f.Name, f.Active, f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update feature: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update feature rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ExistingIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]bool{}, nil
	}
	idStrings := make([]string, len(ids))
	for i, id := range ids {
		idStrings[i] = id.String()
	}
	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT id FROM features WHERE id = ANY($1::uuid[])`, idStrings)
	if err != nil {
		return nil, fmt.Errorf("query feature ids: %w", err)
	}
	defer rows.Close()

	existing := make(map[uuid.UUID]bool, len(ids))
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan feature id: %w", err)
		}
		existing[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feature ids: %w", err)
	}
	return existing, nil
}
