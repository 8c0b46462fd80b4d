package postgres

import (
	"context"
	"database/sql"
	"fmt"

	txcontext "edueasy/pkg/platform/tx"
)

// TxRunner executes fn with a transaction in context, committing on nil and
// rolling back on error. Stores that honor the context transaction join it.
func TxRunner(db *sql.DB) func(ctx context.Context, fn func(ctx context.Context) error) error {
	return func(ctx context.Context, fn func(ctx context.Context) error) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
			_ = tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	}
}
