package audit

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"edueasy/internal/tracking"
	id "edueasy/pkg/domain"
	txcontext "edueasy/pkg/platform/tx"
)

// PostgresStore persists audit entries in an insert-only table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// execer joins the caller's transaction so the audit append commits or rolls
// back together with the allocation it records.
func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Append(ctx context.Context, e Entry) error {
	_, err := s.execer(ctx).ExecContext(ctx,
		`INSERT INTO audit_entries (id, tracking_id, user_id, method, actor_id, request_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID.String(), e.TrackingID.String(), e.UserID.String(),
		string(e.Method), e.ActorID, e.RequestID, e.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByTrackingID(ctx context.Context, trackingID tracking.ID) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tracking_id, user_id, method, actor_id, request_id, created_at
		   FROM audit_entries WHERE tracking_id = $1 ORDER BY created_at`,
		trackingID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			rawID   string
			rawTID  string
			rawUID  string
			rawMeth string
		)
		if err := rows.Scan(&rawID, &rawTID, &rawUID, &rawMeth, &e.ActorID, &e.RequestID, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entryID, err := uuid.Parse(rawID)
		if err != nil {
			return nil, fmt.Errorf("corrupt audit entry id: %w", err)
		}
		userID, err := id.ParseUserID(rawUID)
		if err != nil {
			return nil, fmt.Errorf("corrupt user id in audit entry: %w", err)
		}
		tid, err := tracking.Parse(rawTID)
		if err != nil {
			return nil, fmt.Errorf("corrupt tracking id in audit entry: %w", err)
		}
		e.ID = entryID
		e.UserID = userID
		e.TrackingID = tid
		e.Method = tracking.Method(rawMeth)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}
