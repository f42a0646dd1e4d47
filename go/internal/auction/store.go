package auction

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/transfermarket/go/internal/models"
)

// Store persists auctions. Every write after Create goes through CompareAndSwap.
type Store interface {
	// Create fails with ErrDuplicateActiveListing if the player already has an active auction.
	Create(ctx context.Context, a *models.Auction) error
	Get(ctx context.Context, id uuid.UUID) (*models.Auction, error)
	// ActiveForPlayer returns ErrAuctionNotFound when the player has no active auction.
	ActiveForPlayer(ctx context.Context, playerID uuid.UUID) (*models.Auction, error)
	List(ctx context.Context, filter ListFilter) ([]models.Auction, error)
	// ListDue returns active auctions whose end time is at or before now, earliest first.
	ListDue(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
	// NextEndTime returns nil when nothing is active.
	NextEndTime(ctx context.Context) (*time.Time, error)
	ListPendingSettlement(ctx context.Context, updatedBefore time.Time, limit int) ([]uuid.UUID, error)
	// CompareAndSwap replaces the auction if its stored version equals expectedVersion,
	// then sets next.Version to expectedVersion+1. Otherwise it returns ErrVersionConflict.
	CompareAndSwap(ctx context.Context, next *models.Auction, expectedVersion int64) error
}

// ListFilter narrows Store.List. Zero values mean no filter.
type ListFilter struct {
	Status        models.AuctionStatus
	SellingClubID *uuid.UUID
	Limit         int
}

func (f ListFilter) matches(a *models.Auction) bool {
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if f.SellingClubID != nil && a.SellingClubID != *f.SellingClubID {
		return false
	}
	return true
}

// MemoryStore keeps auctions in maps guarded by one mutex
type MemoryStore struct {
	mu             sync.RWMutex
	auctions       map[uuid.UUID]*models.Auction
	activeByPlayer map[uuid.UUID]uuid.UUID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		auctions:       make(map[uuid.UUID]*models.Auction),
		activeByPlayer: make(map[uuid.UUID]uuid.UUID),
	}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) Create(_ context.Context, a *models.Auction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.auctions[a.ID]; ok {
		return fmt.Errorf("auction %s already exists", a.ID)
	}
	if a.Status == models.AuctionStatusActive {
		if existing, ok := s.activeByPlayer[a.PlayerID]; ok {
			return fmt.Errorf("%w: player %s is listed in auction %s", models.ErrDuplicateActiveListing, a.PlayerID, existing)
		}
		s.activeByPlayer[a.PlayerID] = a.ID
	}
	s.auctions[a.ID] = a.Clone()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*models.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.auctions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrAuctionNotFound, id)
	}
	return a.Clone(), nil
}

func (s *MemoryStore) ActiveForPlayer(_ context.Context, playerID uuid.UUID) (*models.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.activeByPlayer[playerID]
	if !ok {
		return nil, fmt.Errorf("%w: no active auction for player %s", models.ErrAuctionNotFound, playerID)
	}
	return s.auctions[id].Clone(), nil
}

// List returns matching auctions, newest first.
func (s *MemoryStore) List(_ context.Context, filter ListFilter) ([]models.Auction, error) {
	s.mu.RLock()
	out := make([]models.Auction, 0, len(s.auctions))
	for _, a := range s.auctions {
		if filter.matches(a) {
			out = append(out, *a.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *MemoryStore) ListDue(_ context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	s.mu.RLock()
	var due []*models.Auction
	for _, id := range s.activeByPlayer {
		if a := s.auctions[id]; !a.EndTime.After(now) {
			due = append(due, a)
		}
	}
	s.mu.RUnlock()

	sort.Slice(due, func(i, j int) bool { return due[i].EndTime.Before(due[j].EndTime) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	ids := make([]uuid.UUID, len(due))
	for i, a := range due {
		ids[i] = a.ID
	}
	return ids, nil
}

func (s *MemoryStore) NextEndTime(_ context.Context) (*time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var next *time.Time
	for _, id := range s.activeByPlayer {
		end := s.auctions[id].EndTime
		if next == nil || end.Before(*next) {
			next = &end
		}
	}
	return next, nil
}

func (s *MemoryStore) ListPendingSettlement(_ context.Context, updatedBefore time.Time, limit int) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []uuid.UUID
	for id, a := range s.auctions {
		if a.SettlementStatus == models.SettlementStatusPending && !a.UpdatedAt.After(updatedBefore) {
			ids = append(ids, id)
			if limit > 0 && len(ids) == limit {
				break
			}
		}
	}
	return ids, nil
}

func (s *MemoryStore) CompareAndSwap(_ context.Context, next *models.Auction, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.auctions[next.ID]
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrAuctionNotFound, next.ID)
	}
	if cur.Version != expectedVersion {
		return fmt.Errorf("%w: auction %s is at version %d, expected %d",
			models.ErrVersionConflict, next.ID, cur.Version, expectedVersion)
	}
	if cur.Status == models.AuctionStatusActive && next.Status != models.AuctionStatusActive {
		delete(s.activeByPlayer, cur.PlayerID)
	}
	next.Version = expectedVersion + 1
	s.auctions[next.ID] = next.Clone()
	return nil
}
