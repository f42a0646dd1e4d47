package auction

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/transfermarket/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newActive(playerID uuid.UUID, end time.Time) *models.Auction {
	return &models.Auction{
		ID:               uuid.New(),
		PlayerID:         playerID,
		SellingClubID:    uuid.New(),
		StartingPrice:    1,
		BuyNowPrice:      2,
		EndTime:          end,
		Status:           models.AuctionStatusActive,
		SettlementStatus: models.SettlementStatusNone,
		Version:          1,
		CreatedAt:        end.Add(-time.Hour),
		UpdatedAt:        end.Add(-time.Hour),
	}
}

func TestMemoryStoreOneActivePerPlayer(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	player := uuid.New()
	now := time.Now()

	first := newActive(player, now.Add(time.Hour))
	require.NoError(t, s.Create(ctx, first))
	assert.ErrorIs(t, s.Create(ctx, newActive(player, now.Add(time.Hour))), models.ErrDuplicateActiveListing)

	got, err := s.ActiveForPlayer(ctx, player)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	got.Status = models.AuctionStatusCancelled
	require.NoError(t, s.CompareAndSwap(ctx, got, 1))
	assert.Equal(t, int64(2), got.Version)

	_, err = s.ActiveForPlayer(ctx, player)
	assert.ErrorIs(t, err, models.ErrAuctionNotFound)
	require.NoError(t, s.Create(ctx, newActive(player, now.Add(time.Hour))))
}

func TestMemoryStoreCompareAndSwapConflict(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	a := newActive(uuid.New(), time.Now().Add(time.Hour))
	require.NoError(t, s.Create(ctx, a))

	x, _ := s.Get(ctx, a.ID)
	y, _ := s.Get(ctx, a.ID)
	x.HighestBid = 10
	y.HighestBid = 20

	require.NoError(t, s.CompareAndSwap(ctx, x, 1))
	assert.ErrorIs(t, s.CompareAndSwap(ctx, y, 1), models.ErrVersionConflict)

	stored, _ := s.Get(ctx, a.ID)
	assert.Equal(t, int64(10), stored.HighestBid)
	assert.Equal(t, int64(2), stored.Version)

	ghost := newActive(uuid.New(), time.Now())
	assert.ErrorIs(t, s.CompareAndSwap(ctx, ghost, 1), models.ErrAuctionNotFound)
}

func TestMemoryStoreSchedulingQueries(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Date(2024, 8, 1, 12, 0, 0, 0, time.UTC)

	next, err := s.NextEndTime(ctx)
	require.NoError(t, err)
	assert.Nil(t, next)

	late := newActive(uuid.New(), now.Add(-time.Minute))
	early := newActive(uuid.New(), now.Add(-time.Hour))
	future := newActive(uuid.New(), now.Add(time.Hour))
	for _, a := range []*models.Auction{late, early, future} {
		require.NoError(t, s.Create(ctx, a))
	}

	due, err := s.ListDue(ctx, now, 10)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{early.ID, late.ID}, due)

	due, err = s.ListDue(ctx, now, 1)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{early.ID}, due)

	next, err = s.NextEndTime(ctx)
	require.NoError(t, err)
	assert.True(t, next.Equal(early.EndTime))

	early.Status = models.AuctionStatusEnded
	early.SettlementStatus = models.SettlementStatusPending
	early.UpdatedAt = now.Add(-10 * time.Minute)
	require.NoError(t, s.CompareAndSwap(ctx, early, 1))

	pending, err := s.ListPendingSettlement(ctx, now.Add(-5*time.Minute), 10)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{early.ID}, pending)
	pending, err = s.ListPendingSettlement(ctx, now.Add(-time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	active, err := s.List(ctx, ListFilter{Status: models.AuctionStatusActive})
	require.NoError(t, err)
	assert.Len(t, active, 2)
}
