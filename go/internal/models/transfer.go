package models

import (
	"time"

	"github.com/google/uuid"
)

// Transfer is the immutable record of a completed player sale.
// Seq is assigned by the ledger and increases with every transfer.
type Transfer struct {
	Seq        int64      `json:"seq"`
	ID         uuid.UUID  `json:"id"`
	PlayerID   uuid.UUID  `json:"player_id"`
	FromClubID uuid.UUID  `json:"from_club_id"`
	ToClubID   uuid.UUID  `json:"to_club_id"`
	Amount     int64      `json:"amount"`
	AuctionID  *uuid.UUID `json:"auction_id,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
