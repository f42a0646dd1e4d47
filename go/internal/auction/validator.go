package auction

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/transfermarket/go/internal/models"
)

// ValidateBid checks a bid against an auction snapshot and the bidder's live budget.
func ValidateBid(a *models.Auction, clubID uuid.UUID, budget, amount int64, now time.Time) error {
	if err := checkOpen(a, clubID, now); err != nil {
		return err
	}
	if a.HasBidder() {
		if amount <= a.HighestBid {
			return fmt.Errorf("%w: %d does not beat the highest bid of %d", models.ErrBidTooLow, amount, a.HighestBid)
		}
	} else if amount < a.StartingPrice {
		return fmt.Errorf("%w: %d is below the starting price of %d", models.ErrBidTooLow, amount, a.StartingPrice)
	}
	if amount >= a.BuyNowPrice {
		return fmt.Errorf("%w: %d reaches the buy now price of %d", models.ErrBidAtOrAboveBuyNow, amount, a.BuyNowPrice)
	}
	if budget < amount {
		return fmt.Errorf("%w: budget %d, bid %d", models.ErrInsufficientBudget, budget, amount)
	}
	return nil
}

// ValidateBuyNow checks an instant purchase.
func ValidateBuyNow(a *models.Auction, clubID uuid.UUID, budget int64, now time.Time) error {
	if err := checkOpen(a, clubID, now); err != nil {
		return err
	}
	if budget < a.BuyNowPrice {
		return fmt.Errorf("%w: budget %d, buy now price %d", models.ErrInsufficientBudget, budget, a.BuyNowPrice)
	}
	return nil
}

func checkOpen(a *models.Auction, clubID uuid.UUID, now time.Time) error {
	if a.Status != models.AuctionStatusActive {
		return fmt.Errorf("%w: auction %s is %s", models.ErrAuctionNotActive, a.ID, a.Status)
	}
	if !now.Before(a.EndTime) {
		return fmt.Errorf("%w: auction %s ended at %s", models.ErrAuctionExpired, a.ID, a.EndTime.Format(time.RFC3339))
	}
	if clubID == a.SellingClubID {
		return fmt.Errorf("%w: club %s", models.ErrOwnListing, clubID)
	}
	return nil
}

// Listing is the price/duration part of a new auction after defaults are applied
type Listing struct {
	StartingPrice int64
	BuyNowPrice   int64
	Duration      time.Duration
}

// ValidateListing checks prices and duration of a new auction.
func ValidateListing(l Listing) error {
	if l.StartingPrice <= 0 {
		return fmt.Errorf("%w: starting price must be positive, got %d", models.ErrInvalidListing, l.StartingPrice)
	}
	if l.BuyNowPrice <= l.StartingPrice {
		return fmt.Errorf("%w: buy now price %d must exceed starting price %d",
			models.ErrInvalidListing, l.BuyNowPrice, l.StartingPrice)
	}
	if l.Duration <= 0 {
		return fmt.Errorf("%w: duration must be positive, got %s", models.ErrInvalidListing, l.Duration)
	}
	return nil
}
