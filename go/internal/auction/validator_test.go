package auction

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/transfermarket/go/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestValidateBid(t *testing.T) {
	now := time.Date(2024, 8, 1, 12, 0, 0, 0, time.UTC)
	seller, bidder, leader := uuid.New(), uuid.New(), uuid.New()

	open := func() *models.Auction {
		return &models.Auction{
			ID:            uuid.New(),
			SellingClubID: seller,
			StartingPrice: 4_000_000,
			BuyNowPrice:   8_000_000,
			CurrentPrice:  4_000_000,
			EndTime:       now.Add(time.Hour),
			Status:        models.AuctionStatusActive,
		}
	}
	withBid := func() *models.Auction {
		a := open()
		a.HighestBid = 5_000_000
		a.CurrentPrice = 5_000_000
		a.HighestBidderClubID = &leader
		return a
	}

	tests := []struct {
		name    string
		auction *models.Auction
		club    uuid.UUID
		budget  int64
		amount  int64
		wantErr error
	}{
		{"first bid at starting price", open(), bidder, 10_000_000, 4_000_000, nil},
		{"first bid below starting price", open(), bidder, 10_000_000, 3_999_999, models.ErrBidTooLow},
		{"raise above highest", withBid(), bidder, 10_000_000, 5_000_001, nil},
		{"equal to highest", withBid(), bidder, 10_000_000, 5_000_000, models.ErrBidTooLow},
		{"below highest", withBid(), bidder, 10_000_000, 4_500_000, models.ErrBidTooLow},
		{"at buy now", open(), bidder, 10_000_000, 8_000_000, models.ErrBidAtOrAboveBuyNow},
		{"above buy now", open(), bidder, 10_000_000, 9_000_000, models.ErrBidAtOrAboveBuyNow},
		{"budget short", open(), bidder, 4_500_000, 5_000_000, models.ErrInsufficientBudget},
		{"budget exact", open(), bidder, 5_000_000, 5_000_000, nil},
		{"seller bids", open(), seller, 10_000_000, 5_000_000, models.ErrOwnListing},
		{"leader raises own bid", withBid(), leader, 10_000_000, 6_000_000, nil},
		{"ended", func() *models.Auction { a := open(); a.Status = models.AuctionStatusEnded; return a }(), bidder, 10_000_000, 5_000_000, models.ErrAuctionNotActive},
		{"cancelled", func() *models.Auction { a := open(); a.Status = models.AuctionStatusCancelled; return a }(), bidder, 10_000_000, 5_000_000, models.ErrAuctionNotActive},
		{"past end time", func() *models.Auction { a := open(); a.EndTime = now; return a }(), bidder, 10_000_000, 5_000_000, models.ErrAuctionExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBid(tt.auction, tt.club, tt.budget, tt.amount, now)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidateBuyNow(t *testing.T) {
	now := time.Now()
	seller := uuid.New()
	a := &models.Auction{
		ID: uuid.New(), SellingClubID: seller, StartingPrice: 1, BuyNowPrice: 8_000_000,
		EndTime: now.Add(time.Minute), Status: models.AuctionStatusActive,
	}

	assert.NoError(t, ValidateBuyNow(a, uuid.New(), 8_000_000, now))
	assert.ErrorIs(t, ValidateBuyNow(a, uuid.New(), 7_999_999, now), models.ErrInsufficientBudget)
	assert.ErrorIs(t, ValidateBuyNow(a, seller, 100_000_000, now), models.ErrOwnListing)
	assert.ErrorIs(t, ValidateBuyNow(a, uuid.New(), 100_000_000, now.Add(time.Minute)), models.ErrAuctionExpired)
}

func TestValidateListing(t *testing.T) {
	assert.NoError(t, ValidateListing(Listing{StartingPrice: 1, BuyNowPrice: 2, Duration: time.Second}))
	assert.ErrorIs(t, ValidateListing(Listing{StartingPrice: 0, BuyNowPrice: 2, Duration: time.Second}), models.ErrInvalidListing)
	assert.ErrorIs(t, ValidateListing(Listing{StartingPrice: 2, BuyNowPrice: 2, Duration: time.Second}), models.ErrInvalidListing)
	assert.ErrorIs(t, ValidateListing(Listing{StartingPrice: 1, BuyNowPrice: 2}), models.ErrInvalidListing)
}
