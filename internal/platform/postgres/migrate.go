package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied idempotently at startup. The counter row is the single
// shared mutable resource: every allocation goes through its row-locked
// increment, never a read-then-write.
const schema = `
CREATE TABLE IF NOT EXISTS tracking_counter (
    id    BOOLEAN PRIMARY KEY DEFAULT TRUE CHECK (id),
    value BIGINT  NOT NULL DEFAULT 0
);

INSERT INTO tracking_counter (id, value) VALUES (TRUE, 0)
ON CONFLICT (id) DO NOTHING;

CREATE TABLE IF NOT EXISTS tracking_assignments (
    user_id     UUID        PRIMARY KEY,
    tracking_id TEXT        NOT NULL UNIQUE,
    method      TEXT        NOT NULL,
    assigned_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_entries (
    id          UUID        PRIMARY KEY,
    tracking_id TEXT        NOT NULL,
    user_id     UUID        NOT NULL,
    method      TEXT        NOT NULL,
    actor_id    TEXT        NOT NULL DEFAULT '',
    request_id  TEXT        NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS audit_entries_tracking_id_idx
    ON audit_entries (tracking_id, created_at);

CREATE TABLE IF NOT EXISTS verification_records (
    user_id     UUID        PRIMARY KEY,
    id_last4    TEXT        NOT NULL,
    id_hash     TEXT        NOT NULL,
    tracking_id TEXT        NOT NULL UNIQUE,
    verified_at TIMESTAMPTZ NOT NULL
);
`

// Migrate applies the schema. Safe to run on every startup.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
