package sqlutil

import (
	"context"
	"database/sql"
	"fmt"
)

// Run executes fn inside a *sql.Tx.
// If fn returns an error the tx rolls back, else it commits.
func Run[T any](
	ctx context.Context,
	db *sql.DB,
	newQueries func(*sql.Tx) *T,
	fn func(q *T) error,
) error {
	return RunWithOptions(ctx, db, nil, newQueries, fn)
}

// RunWithOptions is Run with explicit transaction options (isolation, read-only).
func RunWithOptions[T any](
	ctx context.Context,
	db *sql.DB,
	opts *sql.TxOptions,
	newQueries func(*sql.Tx) *T,
	fn func(q *T) error,
) error {
	tx, err := db.BeginTx(ctx, opts) // BEGIN
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	q := newQueries(tx) // bind queries to this tx
	if err := fn(q); err != nil {
		_ = tx.Rollback() // ROLLBACK
		return err
	}
	if err := tx.Commit(); err != nil { // COMMIT
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
