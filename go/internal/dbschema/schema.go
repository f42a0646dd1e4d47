// Package dbschema holds the Postgres DDL for the transfer market.
package dbschema

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
)

//go:embed schema.sql
var Schema string

// OutboxChannel is the LISTEN/NOTIFY channel fired on every outbox insert.
const OutboxChannel = "outbox_events"

// Apply creates every table, index and trigger. It is safe to run repeatedly.
func Apply(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
