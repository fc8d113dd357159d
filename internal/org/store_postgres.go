package org

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

// PostgresStore persists units in PostgreSQL.
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

func (s *PostgresStore) Create(ctx context.Context, unit *Unit) error {
	query := `
		INSERT INTO units (id, name, code, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		unit.ID, unit.Name, unit.Code, unit.Active, unit.CreatedAt, unit.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert unit: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id uuid.UUID) (*Unit, error) {
	return s.findOne(ctx, `WHERE id = $1`, id)
}

func (s *PostgresStore) FindByCode(ctx context.Context, code string) (*Unit, error) {
	return s.findOne(ctx, `WHERE lower(code) = lower($1)`, code)
}

func (s *PostgresStore) findOne(ctx context.Context, where string, arg any) (*Unit, error) {
	query := `SELECT id, name, code, active, created_at, updated_at FROM units ` + where
	var unit Unit
	err := s.execer(ctx).QueryRowContext(ctx, query, arg).Scan(
		&unit.ID, &unit.Name, &unit.Code, &unit.Active, &unit.CreatedAt, &unit.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query unit: %w", err)
	}
	return &unit, nil
}

func (s *PostgresStore) List(ctx context.Context, activeOnly bool) ([]*Unit, error) {
	query := `SELECT id, name, code, active, created_at, updated_at FROM units`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY code`

	rows, err := s.execer(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list units: %w", err)
	}
	defer rows.Close()

	var units []*Unit
	for rows.Next() {
		var unit Unit
		if err := rows.Scan(&unit.ID, &unit.Name, &unit.Code, &unit.Active, &unit.CreatedAt, &unit.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan unit: %w", err)
		}
		units = append(units, &unit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate units: %w", err)
	}
	return units, nil
}

func (s *PostgresStore) Update(ctx context.Context, unit *Unit) error {
	query := `
		UPDATE units
		SET name = $2, active = $3, updated_at = $4
		WHERE id = $1
	`
	result, err := s.execer(ctx).ExecContext(ctx, query,
		unit.ID, unit.Name, unit.Active, unit.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update unit: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update unit rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
