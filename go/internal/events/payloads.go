package events

import (
	"encoding/json"
	"time"
)

// Market event types, also used as the NATS subject suffix
const (
	AuctionCreated    = "AuctionCreated"
	BidPlaced         = "BidPlaced"
	AuctionEnded      = "AuctionEnded"
	AuctionCancelled  = "AuctionCancelled"
	TransferCompleted = "TransferCompleted"
	SettlementFailed  = "SettlementFailed"
)

// Envelope is the wire shape shared by the JetStream publisher, the gateway
// consumer and websocket clients
type Envelope struct {
	EventID   string          `json:"eventId"`
	EventType string          `json:"eventType"`
	AuctionID string          `json:"auctionId"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// AuctionCreatedPayload is the payload for an AuctionCreated event
type AuctionCreatedPayload struct {
	AuctionID     string    `json:"auction_id"`
	PlayerID      string    `json:"player_id"`
	PlayerName    string    `json:"player_name"`
	SellingClubID string    `json:"selling_club_id"`
	StartingPrice int64     `json:"starting_price"`
	BuyNowPrice   int64     `json:"buy_now_price"`
	EndTime       time.Time `json:"end_time"`
}

// BidPlacedPayload is the payload for a BidPlaced event
type BidPlacedPayload struct {
	AuctionID string    `json:"auction_id"`
	ClubID    string    `json:"club_id"`
	Amount    int64     `json:"amount"`
	Seq       int       `json:"seq"`
	PlacedAt  time.Time `json:"placed_at"`
	EndTime   time.Time `json:"end_time"`
}

// AuctionEndedPayload is the payload for an AuctionEnded event
type AuctionEndedPayload struct {
	AuctionID        string    `json:"auction_id"`
	PlayerID         string    `json:"player_id"`
	Reason           string    `json:"reason"`
	WinnerClubID     string    `json:"winner_club_id,omitempty"`
	FinalPrice       int64     `json:"final_price"`
	SettlementStatus string    `json:"settlement_status"`
	EndedAt          time.Time `json:"ended_at"`
}

// AuctionCancelledPayload is the payload for an AuctionCancelled event
type AuctionCancelledPayload struct {
	AuctionID   string    `json:"auction_id"`
	Reason      string    `json:"reason"`
	CancelledAt time.Time `json:"cancelled_at"`
}

// TransferCompletedPayload is the payload for a TransferCompleted event
type TransferCompletedPayload struct {
	TransferID string    `json:"transfer_id"`
	Seq        int64     `json:"seq"`
	AuctionID  string    `json:"auction_id"`
	PlayerID   string    `json:"player_id"`
	FromClubID string    `json:"from_club_id"`
	ToClubID   string    `json:"to_club_id"`
	Amount     int64     `json:"amount"`
	CreatedAt  time.Time `json:"created_at"`
}

// SettlementFailedPayload is the payload for a SettlementFailed event
type SettlementFailedPayload struct {
	AuctionID   string    `json:"auction_id"`
	BuyerClubID string    `json:"buyer_club_id"`
	Amount      int64     `json:"amount"`
	Kind        string    `json:"kind"`
	Error       string    `json:"error"`
	FailedAt    time.Time `json:"failed_at"`
}
