package club

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/transfermarket/go/internal/models"
)

type clubEntry struct {
	mu   sync.Mutex
	club *models.Club
}

// MemoryLedger is an in-process Ledger.
// Lock order: club entries (by id), then transfersMu, then ownersMu.
type MemoryLedger struct {
	clock clockwork.Clock

	mu    sync.RWMutex // guards the clubs map itself
	clubs map[uuid.UUID]*clubEntry

	transfersMu sync.Mutex
	transfers   []models.Transfer
	byAuction   map[uuid.UUID]int

	ownersMu sync.Mutex
	owners   map[uuid.UUID]uuid.UUID // player -> club
}

func NewMemoryLedger(clock clockwork.Clock) *MemoryLedger {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryLedger{
		clock:     clock,
		clubs:     make(map[uuid.UUID]*clubEntry),
		byAuction: make(map[uuid.UUID]int),
		owners:    make(map[uuid.UUID]uuid.UUID),
	}
}

var _ Ledger = (*MemoryLedger)(nil)

func (l *MemoryLedger) CreateClub(_ context.Context, c models.Club) (*models.Club, error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Budget < 0 {
		return nil, fmt.Errorf("club %q: budget cannot be negative", c.Name)
	}
	now := l.clock.Now()
	c.CreatedAt, c.UpdatedAt = now, now
	c.Roster = nil
	c.TransferLog = nil

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.clubs[c.ID]; ok {
		return nil, fmt.Errorf("club %s already exists", c.ID)
	}
	for _, e := range l.clubs {
		if e.club.Name == c.Name {
			return nil, fmt.Errorf("club name %q already taken", c.Name)
		}
	}
	l.clubs[c.ID] = &clubEntry{club: &c}
	return c.Clone(), nil
}

func (l *MemoryLedger) entry(id uuid.UUID) (*clubEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.clubs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrClubNotFound, id)
	}
	return e, nil
}

func (l *MemoryLedger) GetClub(_ context.Context, id uuid.UUID) (*models.Club, error) {
	e, err := l.entry(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.club.Clone(), nil
}

func (l *MemoryLedger) ListClubs(_ context.Context) ([]models.Club, error) {
	l.mu.RLock()
	entries := make([]*clubEntry, 0, len(l.clubs))
	for _, e := range l.clubs {
		entries = append(entries, e)
	}
	l.mu.RUnlock()

	out := make([]models.Club, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, *e.club.Clone())
		e.mu.Unlock()
	}
	return out, nil
}

func (l *MemoryLedger) AssignPlayer(_ context.Context, clubID, playerID uuid.UUID) error {
	e, err := l.entry(clubID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	l.ownersMu.Lock()
	defer l.ownersMu.Unlock()

	if owner, ok := l.owners[playerID]; ok {
		if owner == clubID {
			return nil
		}
		return fmt.Errorf("%w: player %s is on club %s", ErrPlayerOwnedElsewhere, playerID, owner)
	}
	l.owners[playerID] = clubID
	e.club.Roster = append(e.club.Roster, playerID)
	e.club.UpdatedAt = l.clock.Now()
	return nil
}

func (l *MemoryLedger) ApplyTransfer(_ context.Context, plan TransferPlan) (*models.Transfer, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	buyer, err := l.entry(plan.BuyerID)
	if err != nil {
		return nil, err
	}
	seller, err := l.entry(plan.SellerID)
	if err != nil {
		return nil, err
	}

	first, second := buyer, seller
	if bytes.Compare(plan.SellerID[:], plan.BuyerID[:]) < 0 {
		first, second = seller, buyer
	}
	first.mu.Lock()
	defer first.mu.Unlock()
	second.mu.Lock()
	defer second.mu.Unlock()
	l.transfersMu.Lock()
	defer l.transfersMu.Unlock()

	if plan.AuctionID != nil {
		if i, ok := l.byAuction[*plan.AuctionID]; ok {
			t := l.transfers[i]
			return &t, nil
		}
	}

	if buyer.club.Budget < plan.Amount {
		return nil, fmt.Errorf("%w: club %s has %d, needs %d",
			models.ErrInsufficientBudget, plan.BuyerID, buyer.club.Budget, plan.Amount)
	}
	if !seller.club.HasPlayer(plan.PlayerID) {
		return nil, fmt.Errorf("%w: player %s, club %s", models.ErrPlayerNotOwned, plan.PlayerID, plan.SellerID)
	}

	if plan.At.IsZero() {
		plan.At = l.clock.Now()
	}

	buyer.club.Budget -= plan.Amount
	if !buyer.club.HasPlayer(plan.PlayerID) {
		buyer.club.Roster = append(buyer.club.Roster, plan.PlayerID)
	}
	buyer.club.TransferLog = append(buyer.club.TransferLog, models.TransferLogEntry{
		PlayerID: plan.PlayerID, Direction: models.TransferDirectionIn, Amount: plan.Amount, Timestamp: plan.At,
	})
	buyer.club.UpdatedAt = plan.At

	seller.club.Budget += plan.Amount
	seller.club.Roster = slices.DeleteFunc(seller.club.Roster, func(id uuid.UUID) bool { return id == plan.PlayerID })
	seller.club.TransferLog = append(seller.club.TransferLog, models.TransferLogEntry{
		PlayerID: plan.PlayerID, Direction: models.TransferDirectionOut, Amount: plan.Amount, Timestamp: plan.At,
	})
	seller.club.UpdatedAt = plan.At

	t := newTransfer(plan, int64(len(l.transfers)+1))
	l.transfers = append(l.transfers, t)
	if plan.AuctionID != nil {
		l.byAuction[*plan.AuctionID] = len(l.transfers) - 1
	}

	l.ownersMu.Lock()
	l.owners[plan.PlayerID] = plan.BuyerID
	l.ownersMu.Unlock()

	return &t, nil
}

func (l *MemoryLedger) TransferForAuction(_ context.Context, auctionID uuid.UUID) (*models.Transfer, error) {
	l.transfersMu.Lock()
	defer l.transfersMu.Unlock()
	i, ok := l.byAuction[auctionID]
	if !ok {
		return nil, nil
	}
	t := l.transfers[i]
	return &t, nil
}

// ListTransfers returns transfers newest first.
func (l *MemoryLedger) ListTransfers(_ context.Context, filter TransferFilter) ([]models.Transfer, error) {
	l.transfersMu.Lock()
	defer l.transfersMu.Unlock()
	var out []models.Transfer
	for i := len(l.transfers) - 1; i >= 0; i-- {
		t := l.transfers[i]
		if filter.ClubID != nil && !involves(t, *filter.ClubID) {
			continue
		}
		out = append(out, t)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}
