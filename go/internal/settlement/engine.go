// Package settlement turns a closed auction into a ledger transfer.
package settlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/transfermarket/go/internal/club"
	"github.com/mcdev12/transfermarket/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Request is everything needed to settle one auction
type Request struct {
	AuctionID     uuid.UUID
	SellingClubID uuid.UUID
	BuyingClubID  uuid.UUID
	PlayerID      uuid.UUID
	Amount        int64
}

// Engine applies settlements against a club ledger
type Engine struct {
	ledger club.Ledger
	clock  clockwork.Clock
}

func NewEngine(ledger club.Ledger, clock clockwork.Clock) *Engine {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Engine{ledger: ledger, clock: clock}
}

// Settle moves the money and the player. A budget shortfall discovered here is
// reported as ErrInsufficientBudgetAtSettlement, distinct from a rejected bid.
func (e *Engine) Settle(ctx context.Context, req Request) (*models.Transfer, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("settle auction %s: non-positive amount %d", req.AuctionID, req.Amount)
	}
	if req.BuyingClubID == req.SellingClubID {
		return nil, fmt.Errorf("settle auction %s: %w", req.AuctionID, models.ErrOwnListing)
	}

	auctionID := req.AuctionID
	t, err := e.ledger.ApplyTransfer(ctx, club.TransferPlan{
		AuctionID: &auctionID,
		PlayerID:  req.PlayerID,
		BuyerID:   req.BuyingClubID,
		SellerID:  req.SellingClubID,
		Amount:    req.Amount,
		At:        e.clock.Now(),
	})
	if errors.Is(err, models.ErrInsufficientBudget) {
		return nil, fmt.Errorf("%w: %v", models.ErrInsufficientBudgetAtSettlement, err)
	}
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("auction_id", req.AuctionID.String()).
		Str("player_id", req.PlayerID.String()).
		Str("from_club_id", req.SellingClubID.String()).
		Str("to_club_id", req.BuyingClubID.String()).
		Int64("amount", req.Amount).
		Int64("seq", t.Seq).
		Msg("transfer settled")
	return t, nil
}

// Lookup returns the transfer an auction already settled into, or nil.
func (e *Engine) Lookup(ctx context.Context, auctionID uuid.UUID) (*models.Transfer, error) {
	return e.ledger.TransferForAuction(ctx, auctionID)
}

// IsBusinessFailure reports whether a settlement error is final rather than transient.
func IsBusinessFailure(err error) bool {
	return errors.Is(err, models.ErrInsufficientBudgetAtSettlement) ||
		errors.Is(err, models.ErrPlayerNotOwned) ||
		errors.Is(err, models.ErrClubNotFound) ||
		errors.Is(err, models.ErrOwnListing)
}
