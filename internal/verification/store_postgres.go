package verification

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"edueasy/internal/tracking"
	id "edueasy/pkg/domain"
	"edueasy/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

// PostgresStore persists verification records.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, userID id.UserID) (*Record, error) {
	var (
		r      Record
		rawUID string
		rawTID string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, id_last4, id_hash, tracking_id, verified_at
		   FROM verification_records WHERE user_id = $1`,
		userID.String(),
	).Scan(&rawUID, &r.IDLast4, &r.IDHash, &rawTID, &r.VerifiedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get verification record: %w", err)
	}

	uid, err := id.ParseUserID(rawUID)
	if err != nil {
		return nil, fmt.Errorf("corrupt user id in store: %w", err)
	}
	tid, err := tracking.Parse(rawTID)
	if err != nil {
		return nil, fmt.Errorf("corrupt tracking id in store: %w", err)
	}
	r.UserID = uid
	r.TrackingID = tid
	return &r, nil
}

func (s *PostgresStore) Create(ctx context.Context, r Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO verification_records (user_id, id_last4, id_hash, tracking_id, verified_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		r.UserID.String(), r.IDLast4, r.IDHash, r.TrackingID.String(), r.VerifiedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create verification record: %w", err)
	}
	return nil
}
