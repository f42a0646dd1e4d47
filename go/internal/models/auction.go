package models

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// AuctionStatus is the lifecycle state of an auction
type AuctionStatus string

const (
	AuctionStatusActive    AuctionStatus = "active"
	AuctionStatusEnded     AuctionStatus = "ended"
	AuctionStatusCancelled AuctionStatus = "cancelled"
)

// EndReason records which transition closed an auction
type EndReason string

const (
	EndReasonNone      EndReason = ""
	EndReasonExpired   EndReason = "expired"
	EndReasonBuyNow    EndReason = "buy_now"
	EndReasonCancelled EndReason = "cancelled"
)

// SettlementStatus tracks the money/roster movement that follows an ended auction
type SettlementStatus string

const (
	SettlementStatusNone      SettlementStatus = "none"
	SettlementStatusPending   SettlementStatus = "pending"
	SettlementStatusCompleted SettlementStatus = "completed"
	SettlementStatusFailed    SettlementStatus = "failed"
)

// Bid is an accepted entry in an auction's bid history
type Bid struct {
	Seq      int       `json:"seq"`
	ClubID   uuid.UUID `json:"club_id"`
	Amount   int64     `json:"amount"`
	PlacedAt time.Time `json:"placed_at"`
}

// Auction represents a time-boxed sale listing for one player
type Auction struct {
	ID                  uuid.UUID        `json:"id"`
	PlayerID            uuid.UUID        `json:"player_id"`
	PlayerName          string           `json:"player_name"`
	SellingClubID       uuid.UUID        `json:"selling_club_id"`
	Description         string           `json:"description,omitempty"`
	StartingPrice       int64            `json:"starting_price"`
	BuyNowPrice         int64            `json:"buy_now_price"`
	CurrentPrice        int64            `json:"current_price"`
	HighestBid          int64            `json:"highest_bid"`
	HighestBidderClubID *uuid.UUID       `json:"highest_bidder_club_id,omitempty"`
	EndTime             time.Time        `json:"end_time"`
	Status              AuctionStatus    `json:"status"`
	EndReason           EndReason        `json:"end_reason,omitempty"`
	EndedAt             *time.Time       `json:"ended_at,omitempty"`
	SettlementStatus    SettlementStatus `json:"settlement_status"`
	SettlementError     string           `json:"settlement_error,omitempty"`
	Bids                []Bid            `json:"bids"`
	Version             int64            `json:"version"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
}

// IsTerminal reports whether the auction can no longer change status.
func (a *Auction) IsTerminal() bool {
	return a.Status == AuctionStatusEnded || a.Status == AuctionStatusCancelled
}

// MinimumBid is the current highest bid, or the starting price before any bid.
func (a *Auction) MinimumBid() int64 {
	if a.HighestBid > 0 {
		return a.HighestBid
	}
	return a.StartingPrice
}

// HasBidder reports whether someone holds the highest bid.
func (a *Auction) HasBidder() bool {
	return a.HighestBidderClubID != nil
}

// IsHighestBidder reports whether clubID currently leads the auction.
func (a *Auction) IsHighestBidder(clubID uuid.UUID) bool {
	return a.HighestBidderClubID != nil && *a.HighestBidderClubID == clubID
}

// TimeLeft returns the remaining time before EndTime, never negative.
func (a *Auction) TimeLeft(now time.Time) time.Duration {
	if left := a.EndTime.Sub(now); left > 0 {
		return left
	}
	return 0
}

// Clone returns a deep copy of the auction
func (a *Auction) Clone() *Auction {
	cp := *a
	cp.Bids = slices.Clone(a.Bids)
	if a.HighestBidderClubID != nil {
		id := *a.HighestBidderClubID
		cp.HighestBidderClubID = &id
	}
	if a.EndedAt != nil {
		t := *a.EndedAt
		cp.EndedAt = &t
	}
	return &cp
}
