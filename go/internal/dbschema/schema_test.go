package dbschema

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSchemaDeclaresMarketTables(t *testing.T) {
	for _, table := range []string{
		"clubs", "players", "club_players", "club_transfer_log",
		"transfers", "auctions", "auction_bids", "outbox_events",
	} {
		assert.Contains(t, Schema, "CREATE TABLE IF NOT EXISTS "+table+" (", table)
	}
}

func TestSchemaConstraints(t *testing.T) {
	assert.Contains(t, Schema, "ON auctions (player_id) WHERE status = 'active'")
	assert.Contains(t, Schema, "CONSTRAINT transfers_auction_id_key UNIQUE (auction_id)")
	assert.Contains(t, Schema, "pg_notify('"+OutboxChannel+"'")
	assert.False(t, strings.Contains(Schema, "DROP TABLE"))
}
