// Package club owns club budgets, rosters and the transfer ledger.
package club

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/transfermarket/go/internal/models"
)

// ErrPlayerOwnedElsewhere is returned when assigning a player another club already holds.
var ErrPlayerOwnedElsewhere = errors.New("player belongs to another club")

// Ledger is the only place club budgets and rosters change.
type Ledger interface {
	CreateClub(ctx context.Context, c models.Club) (*models.Club, error)
	GetClub(ctx context.Context, id uuid.UUID) (*models.Club, error)
	ListClubs(ctx context.Context) ([]models.Club, error)
	AssignPlayer(ctx context.Context, clubID, playerID uuid.UUID) error
	// ApplyTransfer moves Amount from buyer to seller and the player from seller
	// to buyer as one unit. Replaying a plan with the same AuctionID returns the
	// original transfer.
	ApplyTransfer(ctx context.Context, plan TransferPlan) (*models.Transfer, error)
	// TransferForAuction returns nil when the auction never settled.
	TransferForAuction(ctx context.Context, auctionID uuid.UUID) (*models.Transfer, error)
	ListTransfers(ctx context.Context, filter TransferFilter) ([]models.Transfer, error)
}

// TransferPlan describes one settlement
type TransferPlan struct {
	AuctionID *uuid.UUID
	PlayerID  uuid.UUID
	BuyerID   uuid.UUID
	SellerID  uuid.UUID
	Amount    int64
	At        time.Time
}

// Validate checks the plan's shape before any club is touched.
func (p TransferPlan) Validate() error {
	if p.Amount <= 0 {
		return fmt.Errorf("transfer amount must be positive, got %d", p.Amount)
	}
	if p.BuyerID == p.SellerID {
		return fmt.Errorf("buyer and seller are the same club %s", p.BuyerID)
	}
	if p.PlayerID == uuid.Nil {
		return errors.New("transfer needs a player")
	}
	return nil
}

// TransferFilter narrows ListTransfers. Zero values mean no filter.
type TransferFilter struct {
	ClubID *uuid.UUID
	Limit  int
}

func newTransfer(plan TransferPlan, seq int64) models.Transfer {
	return models.Transfer{
		Seq:        seq,
		ID:         uuid.New(),
		PlayerID:   plan.PlayerID,
		FromClubID: plan.SellerID,
		ToClubID:   plan.BuyerID,
		Amount:     plan.Amount,
		AuctionID:  plan.AuctionID,
		CreatedAt:  plan.At,
	}
}

func involves(t models.Transfer, clubID uuid.UUID) bool {
	return t.FromClubID == clubID || t.ToClubID == clubID
}
