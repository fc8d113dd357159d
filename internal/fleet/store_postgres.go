package fleet

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

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

const truckColumns = "id, unit_id, plate, make, model, tracker_state, insured, active, created_at, updated_at"

// PostgresStore persists trucks in PostgreSQL. Plate uniqueness per unit is
// backed by a unique index on (unit_id, lower(plate)).
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, truck *Truck) error {
	query := `
		INSERT INTO trucks (` + truckColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := execer(ctx, s.db).ExecContext(ctx, query,
		truck.ID, truck.UnitID, truck.Plate, truck.Make, truck.Model,
		string(truck.TrackerState), string(truck.Insured), truck.Active,
		truck.CreatedAt, truck.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert truck: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id uuid.UUID) (*Truck, error) {
	query := `SELECT ` + truckColumns + ` FROM trucks WHERE id = $1`
	return scanTruck(execer(ctx, s.db).QueryRowContext(ctx, query, id))
}

func (s *PostgresStore) FindByPlate(ctx context.Context, unitID uuid.UUID, plate string) (*Truck, error) {
	query := `SELECT ` + truckColumns + ` FROM trucks WHERE unit_id = $1 AND lower(plate) = lower($2)`
	return scanTruck(execer(ctx, s.db).QueryRowContext(ctx, query, unitID, plate))
}

func (s *PostgresStore) List(ctx context.Context, unitIDs []uuid.UUID, activeOnly bool) ([]*Truck, error) {
	var conds []string
	var args []any
	if len(unitIDs) > 0 {
		ids := make([]string, len(unitIDs))
		for i, id := range unitIDs {
			ids[i] = id.String()
		}
		args = append(args, ids)
		conds = append(conds, fmt.Sprintf("unit_id = ANY($%d::uuid[])", len(args)))
	}
	if activeOnly {
		conds = append(conds, "active")
	}

	query := `SELECT ` + truckColumns + ` FROM trucks`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY plate"

	rows, err := execer(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list trucks: %w", err)
	}
	defer rows.Close()

	var out []*Truck
	for rows.Next() {
		truck, err := scanTruck(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, truck)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trucks: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Update(ctx context.Context, truck *Truck) error {
	query := `
		UPDATE trucks
		SET unit_id = $2, plate = $3, make = $4, model = $5,
		    tracker_state = $6, insured = $7, active = $8, updated_at = $9
		WHERE id = $1
	`
	res, err := execer(ctx, s.db).ExecContext(ctx, query,
		truck.ID, truck.UnitID, truck.Plate, truck.Make, truck.Model,
		string(truck.TrackerState), string(truck.Insured), truck.Active, truck.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("update truck: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update truck: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTruck(row rowScanner) (*Truck, error) {
	var truck Truck
	var trackerState, insured string
	err := row.Scan(&truck.ID, &truck.UnitID, &truck.Plate, &truck.Make, &truck.Model,
		&trackerState, &insured, &truck.Active, &truck.CreatedAt, &truck.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan truck: %w", err)
	}
	truck.TrackerState = ParseInstallState(trackerState)
	truck.Insured = ParseTriState(insured)
	return &truck, nil
}
