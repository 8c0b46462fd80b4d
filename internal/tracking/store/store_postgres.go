package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"edueasy/internal/tracking"
	id "edueasy/pkg/domain"
	"edueasy/pkg/platform/sentinel"
	txcontext "edueasy/pkg/platform/tx"
)

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// execer joins the caller's transaction when one is in context.
func execer(ctx context.Context, db *sql.DB) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return db
}

// uniqueViolation is the Postgres error code for unique constraint failures.
const uniqueViolation = "23505"

// PostgresCounter implements CounterStore over a single counter row. The
// UPDATE ... RETURNING takes the row lock, so concurrent Next calls serialize
// in the database and each observes a distinct value.
type PostgresCounter struct {
	db *sql.DB
}

func NewPostgresCounter(db *sql.DB) *PostgresCounter {
	return &PostgresCounter{db: db}
}

func (c *PostgresCounter) Next(ctx context.Context) (int64, error) {
	var value int64
	err := execer(ctx, c.db).QueryRowContext(ctx,
		`UPDATE tracking_counter SET value = value + 1 WHERE id RETURNING value`,
	).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("increment tracking counter: %w", err)
	}
	return value, nil
}

func (c *PostgresCounter) Current(ctx context.Context) (int64, error) {
	var value int64
	err := execer(ctx, c.db).QueryRowContext(ctx,
		`SELECT value FROM tracking_counter WHERE id`,
	).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("read tracking counter: %w", err)
	}
	return value, nil
}

func (c *PostgresCounter) AdvanceTo(ctx context.Context, seq int64) error {
	_, err := execer(ctx, c.db).ExecContext(ctx,
		`UPDATE tracking_counter SET value = GREATEST(value, $1) WHERE id`,
		seq,
	)
	if err != nil {
		return fmt.Errorf("advance tracking counter: %w", err)
	}
	return nil
}

// PostgresAssignments implements AssignmentStore. Uniqueness on user and on
// tracking ID is enforced by the schema, so a racing duplicate insert loses
// cleanly with a conflict instead of a double allocation.
type PostgresAssignments struct {
	db *sql.DB
}

func NewPostgresAssignments(db *sql.DB) *PostgresAssignments {
	return &PostgresAssignments{db: db}
}

func (s *PostgresAssignments) Get(ctx context.Context, userID id.UserID) (*tracking.Assignment, error) {
	var (
		a   tracking.Assignment
		tid string
		uid string
	)
	err := execer(ctx, s.db).QueryRowContext(ctx,
		`SELECT user_id, tracking_id, method, assigned_at
		   FROM tracking_assignments WHERE user_id = $1`,
		userID.String(),
	).Scan(&uid, &tid, &a.Method, &a.AssignedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get tracking assignment: %w", err)
	}

	parsedUser, err := id.ParseUserID(uid)
	if err != nil {
		return nil, fmt.Errorf("corrupt user id in store: %w", err)
	}
	parsedTracking, err := tracking.Parse(tid)
	if err != nil {
		return nil, fmt.Errorf("corrupt tracking id in store: %w", err)
	}
	a.UserID = parsedUser
	a.TrackingID = parsedTracking
	return &a, nil
}

func (s *PostgresAssignments) Create(ctx context.Context, a tracking.Assignment) error {
	_, err := execer(ctx, s.db).ExecContext(ctx,
		`INSERT INTO tracking_assignments (user_id, tracking_id, method, assigned_at)
		 VALUES ($1, $2, $3, $4)`,
		a.UserID.String(), a.TrackingID.String(), string(a.Method), a.AssignedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create tracking assignment: %w", err)
	}
	return nil
}
