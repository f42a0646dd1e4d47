package sweeper

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/transfermarket/go/internal/auction"
	"github.com/mcdev12/transfermarket/go/internal/catalog"
	"github.com/mcdev12/transfermarket/go/internal/club"
	"github.com/mcdev12/transfermarket/go/internal/lease"
	"github.com/mcdev12/transfermarket/go/internal/models"
	"github.com/mcdev12/transfermarket/go/internal/settlement"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	app    *auction.App
	store  *auction.MemoryStore
	ledger *club.MemoryLedger
	clock  *clockwork.FakeClock
	seller uuid.UUID
	buyer  uuid.UUID
}

func newFixture(t *testing.T) (*fixture, *catalog.Memory) {
	t.Helper()
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC))
	ledger := club.NewMemoryLedger(clock)
	seller, err := ledger.CreateClub(ctx, models.Club{Name: "Seller", Budget: 0})
	require.NoError(t, err)
	buyer, err := ledger.CreateClub(ctx, models.Club{Name: "Buyer", Budget: 100_000_000})
	require.NoError(t, err)

	players := catalog.NewMemory()
	store := auction.NewMemoryStore()
	app := auction.NewApp(store, ledger, players, settlement.NewEngine(ledger, clock), nil, clock, auction.DefaultConfig())
	return &fixture{app: app, store: store, ledger: ledger, clock: clock, seller: seller.ID, buyer: buyer.ID}, players
}

// listPlayer creates a fresh player on the seller's roster and auctions it.
func (f *fixture) listPlayer(t *testing.T, players *catalog.Memory, d time.Duration) *models.Auction {
	t.Helper()
	ctx := context.Background()
	p, err := players.UpsertPlayer(ctx, models.Player{ID: uuid.New(), Name: "P", Valuation: 1_000_000})
	require.NoError(t, err)
	require.NoError(t, f.ledger.AssignPlayer(ctx, f.seller, p.ID))
	a, err := f.app.CreateAuction(ctx, auction.CreateAuctionRequest{PlayerID: p.ID, SellingClubID: f.seller, Duration: d})
	require.NoError(t, err)
	return a
}

func TestSweepOnceExpiresDueAuctions(t *testing.T) {
	ctx := context.Background()
	f, players := newFixture(t)

	withBid := f.listPlayer(t, players, time.Hour)
	noBid := f.listPlayer(t, players, time.Hour)
	later := f.listPlayer(t, players, 3*time.Hour)
	_, err := f.app.PlaceBid(ctx, withBid.ID, f.buyer, 1_200_000)
	require.NoError(t, err)

	s := New(f.app, lease.NewLocalLocker(), f.clock, DefaultConfig())

	report, err := s.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, Report{}, report)

	f.clock.Advance(time.Hour)
	report, err = s.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Expired)
	assert.Zero(t, report.Failed)

	a, _ := f.store.Get(ctx, withBid.ID)
	assert.Equal(t, models.SettlementStatusCompleted, a.SettlementStatus)
	a, _ = f.store.Get(ctx, noBid.ID)
	assert.Equal(t, models.AuctionStatusEnded, a.Status)
	a, _ = f.store.Get(ctx, later.ID)
	assert.Equal(t, models.AuctionStatusActive, a.Status)

	buyer, _ := f.ledger.GetClub(ctx, f.buyer)
	assert.Equal(t, int64(98_800_000), buyer.Budget)

	report, err = s.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Expired, "expired auctions are not swept twice")
}

func TestSweepOnceResumesStuckSettlement(t *testing.T) {
	ctx := context.Background()
	f, players := newFixture(t)
	a := f.listPlayer(t, players, time.Hour)

	cur, _ := f.store.Get(ctx, a.ID)
	next := cur.Clone()
	next.Status = models.AuctionStatusEnded
	next.EndReason = models.EndReasonBuyNow
	next.SettlementStatus = models.SettlementStatusPending
	next.HighestBid = next.BuyNowPrice
	next.HighestBidderClubID = &f.buyer
	require.NoError(t, f.store.CompareAndSwap(ctx, next, cur.Version))

	s := New(f.app, nil, f.clock, DefaultConfig())
	report, err := s.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Resumed, "still inside the grace period")

	f.clock.Advance(2 * time.Minute)
	report, err = s.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Resumed)

	done, _ := f.store.Get(ctx, a.ID)
	assert.Equal(t, models.SettlementStatusCompleted, done.SettlementStatus)
}

func TestSweepOnceSkipsWithoutLease(t *testing.T) {
	f, _ := newFixture(t)
	locker := lease.NewLocalLocker()
	s := New(f.app, locker, f.clock, DefaultConfig())

	held := make(chan struct{})
	release := make(chan struct{})
	go locker.TryRun(context.Background(), "sweeper", time.Minute, func(context.Context) error {
		close(held)
		<-release
		return nil
	})
	<-held
	defer close(release)

	report, err := s.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Skipped)
}

func TestRunWakesAtEndTime(t *testing.T) {
	f, players := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := New(f.app, nil, f.clock, DefaultConfig())
	f.app.SetWaker(s.Wake)
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()

	a := f.listPlayer(t, players, 10*time.Second)
	require.NoError(t, f.clock.BlockUntilContext(ctx, 1))

	f.clock.Advance(10 * time.Second)
	require.Eventually(t, func() bool {
		cur, err := f.store.Get(context.Background(), a.ID)
		return err == nil && cur.Status == models.AuctionStatusEnded
	}, 2*time.Second, 10*time.Millisecond)

	expired, _, failed := s.Stats()
	assert.Equal(t, uint64(1), expired)
	assert.Zero(t, failed)

	cancel()
	<-done
}
