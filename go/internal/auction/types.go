package auction

import (
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/transfermarket/go/internal/models"
)

// Config holds state machine tunables
type Config struct {
	MaxRetries          int           `yaml:"max_retries"`
	DefaultDuration     time.Duration `yaml:"default_duration"`
	BuyNowMarkupPercent int64         `yaml:"buy_now_markup_percent"`
}

func DefaultConfig() Config {
	return Config{
		MaxRetries:          5,
		DefaultDuration:     24 * time.Hour,
		BuyNowMarkupPercent: 50,
	}
}

// CreateAuctionRequest lists a player. Zero prices default from the player's valuation.
type CreateAuctionRequest struct {
	PlayerID      uuid.UUID
	SellingClubID uuid.UUID
	StartingPrice int64
	BuyNowPrice   int64
	Duration      time.Duration
	Description   string
}

// StatusView is the short-form state of an auction for polling clients
type StatusView struct {
	AuctionID           uuid.UUID               `json:"auction_id"`
	Status              models.AuctionStatus    `json:"status"`
	EndReason           models.EndReason        `json:"end_reason,omitempty"`
	CurrentPrice        int64                   `json:"current_price"`
	HighestBid          int64                   `json:"highest_bid"`
	HighestBidderClubID *uuid.UUID              `json:"highest_bidder_club_id,omitempty"`
	BidCount            int                     `json:"bid_count"`
	EndTime             time.Time               `json:"end_time"`
	TimeLeftSeconds     int64                   `json:"time_left_seconds"`
	SettlementStatus    models.SettlementStatus `json:"settlement_status"`
}

func newStatusView(a *models.Auction, now time.Time) *StatusView {
	left := a.TimeLeft(now)
	if a.IsTerminal() {
		left = 0
	}
	return &StatusView{
		AuctionID:           a.ID,
		Status:              a.Status,
		EndReason:           a.EndReason,
		CurrentPrice:        a.CurrentPrice,
		HighestBid:          a.HighestBid,
		HighestBidderClubID: a.HighestBidderClubID,
		BidCount:            len(a.Bids),
		EndTime:             a.EndTime,
		TimeLeftSeconds:     int64(left / time.Second),
		SettlementStatus:    a.SettlementStatus,
	}
}
