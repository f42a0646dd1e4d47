package auction

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/transfermarket/go/internal/catalog"
	"github.com/mcdev12/transfermarket/go/internal/club"
	"github.com/mcdev12/transfermarket/go/internal/events"
	"github.com/mcdev12/transfermarket/go/internal/models"
	"github.com/mcdev12/transfermarket/go/internal/outbox"
	"github.com/mcdev12/transfermarket/go/internal/rpc"
	"github.com/mcdev12/transfermarket/go/internal/settlement"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type testingT interface {
	require.TestingT
	Helper()
}

type market struct {
	app    *App
	store  *MemoryStore
	ledger *club.MemoryLedger
	events *outbox.MemoryRepository
	clock  *clockwork.FakeClock

	buyer  uuid.UUID // A
	seller uuid.UUID // B
	third  uuid.UUID // C
	player uuid.UUID // P, owned by B
}

func newMarket(t testingT, buyerBudget int64) *market {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC))
	ledger := club.NewMemoryLedger(clock)
	players := catalog.NewMemory()

	a, err := ledger.CreateClub(ctx, models.Club{Name: "A", Budget: buyerBudget})
	require.NoError(t, err)
	b, err := ledger.CreateClub(ctx, models.Club{Name: "B", Budget: 2_000_000})
	require.NoError(t, err)
	c, err := ledger.CreateClub(ctx, models.Club{Name: "C", Budget: 10_000_000})
	require.NoError(t, err)

	p, err := players.UpsertPlayer(ctx, models.Player{ID: uuid.New(), Name: "P", Position: "FW", Valuation: 4_000_000})
	require.NoError(t, err)
	require.NoError(t, ledger.AssignPlayer(ctx, b.ID, p.ID))

	repo := outbox.NewMemoryRepository()
	store := NewMemoryStore()
	app := NewApp(store, ledger, players, settlement.NewEngine(ledger, clock), outbox.NewApp(repo, clock), clock, DefaultConfig())

	return &market{
		app: app, store: store, ledger: ledger, events: repo, clock: clock,
		buyer: a.ID, seller: b.ID, third: c.ID, player: p.ID,
	}
}

func (m *market) list(t testingT) *models.Auction {
	t.Helper()
	a, err := m.app.CreateAuction(context.Background(), CreateAuctionRequest{
		PlayerID:      m.player,
		SellingClubID: m.seller,
		StartingPrice: 4_000_000,
		BuyNowPrice:   8_000_000,
		Duration:      24 * time.Hour,
	})
	require.NoError(t, err)
	return a
}

func (m *market) budget(t testingT, id uuid.UUID) int64 {
	t.Helper()
	c, err := m.ledger.GetClub(context.Background(), id)
	require.NoError(t, err)
	return c.Budget
}

func (m *market) owner(t testingT) uuid.UUID {
	t.Helper()
	for _, id := range []uuid.UUID{m.buyer, m.seller, m.third} {
		c, err := m.ledger.GetClub(context.Background(), id)
		require.NoError(t, err)
		if c.HasPlayer(m.player) {
			return id
		}
	}
	return uuid.Nil
}

func (m *market) eventTypes() []string {
	var out []string
	for _, e := range m.events.All() {
		out = append(out, e.EventType)
	}
	return out
}

func TestCreateAuctionDefaults(t *testing.T) {
	m := newMarket(t, 10_000_000)
	a, err := m.app.CreateAuction(context.Background(), CreateAuctionRequest{PlayerID: m.player, SellingClubID: m.seller})
	require.NoError(t, err)

	assert.Equal(t, int64(4_000_000), a.StartingPrice)
	assert.Equal(t, int64(6_000_000), a.BuyNowPrice)
	assert.Equal(t, a.StartingPrice, a.CurrentPrice)
	assert.Equal(t, m.clock.Now().Add(24*time.Hour), a.EndTime)
	assert.Equal(t, "P", a.PlayerName)
	assert.Equal(t, models.AuctionStatusActive, a.Status)
	assert.Empty(t, a.Bids)
	assert.Equal(t, []string{events.AuctionCreated}, m.eventTypes())
}

func TestCreateAuctionRejections(t *testing.T) {
	ctx := context.Background()
	m := newMarket(t, 10_000_000)
	m.list(t)

	_, err := m.app.CreateAuction(ctx, CreateAuctionRequest{PlayerID: m.player, SellingClubID: m.seller})
	assert.ErrorIs(t, err, models.ErrDuplicateActiveListing)

	_, err = m.app.CreateAuction(ctx, CreateAuctionRequest{PlayerID: m.player, SellingClubID: m.buyer})
	assert.ErrorIs(t, err, models.ErrPlayerNotOwned)

	_, err = m.app.CreateAuction(ctx, CreateAuctionRequest{PlayerID: m.player, SellingClubID: uuid.New()})
	assert.ErrorIs(t, err, models.ErrClubNotFound)

	other := newMarket(t, 10_000_000)
	_, err = other.app.CreateAuction(ctx, CreateAuctionRequest{
		PlayerID: other.player, SellingClubID: other.seller, StartingPrice: 9_000_000, BuyNowPrice: 8_000_000,
	})
	assert.ErrorIs(t, err, models.ErrInvalidListing)
}

func TestRelistAfterOverdueListingExpires(t *testing.T) {
	ctx := context.Background()
	m := newMarket(t, 10_000_000)
	first := m.list(t)

	m.clock.Advance(25 * time.Hour)
	second, err := m.app.CreateAuction(ctx, CreateAuctionRequest{PlayerID: m.player, SellingClubID: m.seller})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	old, err := m.app.GetAuction(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AuctionStatusEnded, old.Status)
	assert.Equal(t, models.EndReasonExpired, old.EndReason)
}

func TestBuyNowSettlesImmediately(t *testing.T) {
	ctx := context.Background()
	m := newMarket(t, 10_000_000)
	a := m.list(t)

	ended, tr, err := m.app.BuyNow(ctx, a.ID, m.buyer)
	require.NoError(t, err)
	require.NotNil(t, tr)

	assert.Equal(t, models.AuctionStatusEnded, ended.Status)
	assert.Equal(t, models.EndReasonBuyNow, ended.EndReason)
	assert.Equal(t, models.SettlementStatusCompleted, ended.SettlementStatus)
	assert.Equal(t, int64(8_000_000), ended.HighestBid)
	assert.True(t, ended.IsHighestBidder(m.buyer))
	assert.Empty(t, ended.Bids)

	assert.Equal(t, int64(2_000_000), m.budget(t, m.buyer))
	assert.Equal(t, int64(10_000_000), m.budget(t, m.seller))
	assert.Equal(t, m.buyer, m.owner(t))
	assert.Equal(t, int64(8_000_000), tr.Amount)
	assert.Equal(t, a.ID, *tr.AuctionID)

	assert.Equal(t, []string{events.AuctionCreated, events.AuctionEnded, events.TransferCompleted}, m.eventTypes())

	_, err = m.app.PlaceBid(ctx, a.ID, m.third, 5_000_000)
	assert.ErrorIs(t, err, models.ErrAuctionNotActive)
	_, _, err = m.app.BuyNow(ctx, a.ID, m.third)
	assert.ErrorIs(t, err, models.ErrAuctionNotActive)
	_, err = m.app.Cancel(ctx, a.ID, "late")
	assert.ErrorIs(t, err, models.ErrAuctionNotActive)
}

func TestBuyNowSettlesLikeAnExpiredWin(t *testing.T) {
	ctx := context.Background()

	bought := newMarket(t, 10_000_000)
	a := bought.list(t)
	boughtEnd, boughtTr, err := bought.app.BuyNow(ctx, a.ID, bought.buyer)
	require.NoError(t, err)

	won := newMarket(t, 10_000_000)
	b := won.list(t)
	_, err = won.app.PlaceBid(ctx, b.ID, won.buyer, 7_500_000)
	require.NoError(t, err)
	won.clock.Advance(24 * time.Hour)
	wonEnd, wonTr, err := won.app.Expire(ctx, b.ID)
	require.NoError(t, err)

	for _, c := range []struct {
		m     *market
		ended *models.Auction
		tr    *models.Transfer
	}{{bought, boughtEnd, boughtTr}, {won, wonEnd, wonTr}} {
		require.NotNil(t, c.tr)
		assert.Equal(t, models.SettlementStatusCompleted, c.ended.SettlementStatus)
		assert.Equal(t, c.ended.HighestBid, c.tr.Amount)
		assert.Equal(t, c.m.buyer, c.tr.ToClubID)
		assert.Equal(t, c.m.seller, c.tr.FromClubID)
		assert.Equal(t, c.m.buyer, c.m.owner(t))
		assert.Equal(t, 10_000_000-c.tr.Amount, c.m.budget(t, c.m.buyer))
		assert.Equal(t, 2_000_000+c.tr.Amount, c.m.budget(t, c.m.seller))
		assert.Equal(t, []string{events.AuctionEnded, events.TransferCompleted}, c.m.eventTypes()[len(c.m.eventTypes())-2:])
	}
}

func TestConcurrentBidsKeepTheHighest(t *testing.T) {
	ctx := context.Background()
	m := newMarket(t, 10_000_000)
	a := m.list(t)
	_, err := m.app.PlaceBid(ctx, a.ID, m.third, 4_000_000)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, bid := range []struct {
		club   uuid.UUID
		amount int64
	}{{m.buyer, 5_000_000}, {m.third, 6_000_000}} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = m.app.PlaceBid(ctx, a.ID, bid.club, bid.amount)
		}()
	}
	wg.Wait()

	got, err := m.app.GetAuction(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(6_000_000), got.HighestBid)
	assert.True(t, got.IsHighestBidder(m.third))
	assert.NoError(t, errs[1])
	if errs[0] != nil {
		assert.ErrorIs(t, errs[0], models.ErrBidTooLow)
		assert.Len(t, got.Bids, 2)
	} else {
		assert.Len(t, got.Bids, 3)
	}
	for i := 1; i < len(got.Bids); i++ {
		assert.Greater(t, got.Bids[i].Amount, got.Bids[i-1].Amount)
		assert.Equal(t, i+1, got.Bids[i].Seq)
	}
}

func TestExpireWithoutBids(t *testing.T) {
	ctx := context.Background()
	m := newMarket(t, 10_000_000)
	a := m.list(t)

	_, _, err := m.app.Expire(ctx, a.ID)
	assert.ErrorIs(t, err, models.ErrAuctionStillOpen)

	m.clock.Advance(24 * time.Hour)
	ended, tr, err := m.app.Expire(ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, tr)
	assert.Equal(t, models.AuctionStatusEnded, ended.Status)
	assert.Equal(t, models.SettlementStatusNone, ended.SettlementStatus)
	assert.Equal(t, m.seller, m.owner(t))
	assert.Equal(t, int64(10_000_000), m.budget(t, m.buyer))
	assert.Equal(t, int64(2_000_000), m.budget(t, m.seller))
}

func TestExpireIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m := newMarket(t, 10_000_000)
	a := m.list(t)
	_, err := m.app.PlaceBid(ctx, a.ID, m.buyer, 5_000_000)
	require.NoError(t, err)

	m.clock.Advance(24 * time.Hour)
	_, err = m.app.PlaceBid(ctx, a.ID, m.third, 6_000_000)
	assert.ErrorIs(t, err, models.ErrAuctionExpired)

	first, tr, err := m.app.Expire(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, tr)
	second, tr2, err := m.app.Expire(ctx, a.ID)
	require.NoError(t, err)

	assert.Equal(t, first.Version, second.Version)
	assert.Equal(t, tr.ID, tr2.ID)
	assert.Equal(t, models.SettlementStatusCompleted, second.SettlementStatus)
	assert.Equal(t, int64(5_000_000), m.budget(t, m.buyer))
	assert.Equal(t, int64(7_000_000), m.budget(t, m.seller))

	transfers, err := m.ledger.ListTransfers(ctx, club.TransferFilter{})
	require.NoError(t, err)
	assert.Len(t, transfers, 1)
}

func TestSettlementFailsWhenBudgetDroppedAfterBidding(t *testing.T) {
	ctx := context.Background()
	m := newMarket(t, 10_000_000)
	a := m.list(t)
	_, err := m.app.PlaceBid(ctx, a.ID, m.buyer, 7_000_000)
	require.NoError(t, err)

	// A spends most of its budget elsewhere before the auction closes.
	elsewhere := uuid.New()
	require.NoError(t, m.ledger.AssignPlayer(ctx, m.third, elsewhere))
	_, err = m.ledger.ApplyTransfer(ctx, club.TransferPlan{
		PlayerID: elsewhere, BuyerID: m.buyer, SellerID: m.third, Amount: 6_000_000, At: m.clock.Now(),
	})
	require.NoError(t, err)

	m.clock.Advance(24 * time.Hour)
	ended, tr, err := m.app.Expire(ctx, a.ID)
	require.ErrorIs(t, err, models.ErrInsufficientBudgetAtSettlement)
	assert.Nil(t, tr)
	assert.Equal(t, models.AuctionStatusEnded, ended.Status)
	assert.Equal(t, models.SettlementStatusFailed, ended.SettlementStatus)
	assert.NotEmpty(t, ended.SettlementError)

	assert.Equal(t, int64(4_000_000), m.budget(t, m.buyer))
	assert.Equal(t, int64(2_000_000), m.budget(t, m.seller))
	assert.Equal(t, m.seller, m.owner(t))
	assert.Contains(t, m.eventTypes(), events.SettlementFailed)

	again, _, err := m.app.Expire(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SettlementStatusFailed, again.SettlementStatus)
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	m := newMarket(t, 10_000_000)
	a := m.list(t)
	_, err := m.app.PlaceBid(ctx, a.ID, m.buyer, 5_000_000)
	require.NoError(t, err)

	cancelled, err := m.app.Cancel(ctx, a.ID, "withdrawn")
	require.NoError(t, err)
	assert.Equal(t, models.AuctionStatusCancelled, cancelled.Status)
	assert.Equal(t, models.SettlementStatusNone, cancelled.SettlementStatus)
	assert.Equal(t, int64(10_000_000), m.budget(t, m.buyer))

	relisted := m.list(t)
	assert.NotEqual(t, a.ID, relisted.ID)
}

func TestResumeSettlementFinishesPending(t *testing.T) {
	ctx := context.Background()
	m := newMarket(t, 10_000_000)
	a := m.list(t)

	// Simulate a crash between closing the auction and settling it.
	cur, err := m.store.Get(ctx, a.ID)
	require.NoError(t, err)
	next := cur.Clone()
	next.Status = models.AuctionStatusEnded
	next.EndReason = models.EndReasonBuyNow
	next.SettlementStatus = models.SettlementStatusPending
	next.HighestBid = next.BuyNowPrice
	next.HighestBidderClubID = &m.buyer
	require.NoError(t, m.store.CompareAndSwap(ctx, next, cur.Version))

	m.clock.Advance(time.Minute)
	stuck, err := m.app.StuckSettlements(ctx, 30*time.Second, 10)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{a.ID}, stuck)

	done, tr, err := m.app.ResumeSettlement(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, tr)
	assert.Equal(t, models.SettlementStatusCompleted, done.SettlementStatus)
	assert.Equal(t, m.buyer, m.owner(t))

	_, tr2, err := m.app.ResumeSettlement(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, tr.ID, tr2.ID)
}

func TestAuctionStatusAndLazyExpiry(t *testing.T) {
	ctx := context.Background()
	m := newMarket(t, 10_000_000)
	a := m.list(t)
	_, err := m.app.PlaceBid(ctx, a.ID, m.buyer, 5_000_000)
	require.NoError(t, err)

	m.clock.Advance(time.Hour)
	status, err := m.app.GetAuctionStatus(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(23*3600), status.TimeLeftSeconds)
	assert.Equal(t, 1, status.BidCount)
	assert.Equal(t, int64(5_000_000), status.CurrentPrice)

	active, err := m.app.ListActiveAuctions(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	m.clock.Advance(23 * time.Hour)
	active, err = m.app.ListActiveAuctions(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	status, err = m.app.GetAuctionStatus(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AuctionStatusEnded, status.Status)
	assert.Zero(t, status.TimeLeftSeconds)
	assert.Equal(t, models.SettlementStatusCompleted, status.SettlementStatus)
}

func TestAcceptedBidsStrictlyIncrease(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ctx := context.Background()
		m := newMarket(rt, 10_000_000)
		a := m.list(rt)
		clubs := []uuid.UUID{m.buyer, m.third}

		n := rapid.IntRange(1, 30).Draw(rt, "bids")
		for i := 0; i < n; i++ {
			bidder := clubs[rapid.IntRange(0, 1).Draw(rt, "club")]
			amount := rapid.Int64Range(3_000_000, 9_000_000).Draw(rt, "amount")
			before, err := m.store.Get(ctx, a.ID)
			require.NoError(rt, err)

			after, err := m.app.PlaceBid(ctx, a.ID, bidder, amount)
			if err != nil {
				stored, _ := m.store.Get(ctx, a.ID)
				require.Equal(rt, before.Version, stored.Version, "rejected bid changed the auction")
				continue
			}
			require.Greater(rt, after.HighestBid, before.HighestBid)
			require.GreaterOrEqual(rt, after.HighestBid, after.StartingPrice)
			require.Less(rt, after.HighestBid, after.BuyNowPrice)
		}

		final, err := m.store.Get(ctx, a.ID)
		require.NoError(rt, err)
		for i := 1; i < len(final.Bids); i++ {
			require.Greater(rt, final.Bids[i].Amount, final.Bids[i-1].Amount)
		}
	})
}

func TestAuctionServiceOverHTTP(t *testing.T) {
	ctx := context.Background()
	m := newMarket(t, 10_000_000)

	mux := http.NewServeMux()
	mux.Handle(NewAuctionServiceHandler(NewService(m.app)))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	create := rpc.NewClient[CreateAuctionParams, AuctionResponse](srv.Client(), srv.URL, CreateAuctionProcedure)
	bid := rpc.NewClient[PlaceBidRequest, AuctionResponse](srv.Client(), srv.URL, PlaceBidProcedure)
	buy := rpc.NewClient[BuyNowRequest, SettledAuctionResponse](srv.Client(), srv.URL, BuyNowProcedure)
	status := rpc.NewClient[GetAuctionRequest, GetAuctionStatusResponse](srv.Client(), srv.URL, GetAuctionStatusProcedure)

	created, err := rpc.Call(ctx, create, &CreateAuctionParams{
		PlayerID:        m.player.String(),
		SellingClubID:   m.seller.String(),
		StartingPrice:   4_000_000,
		BuyNowPrice:     8_000_000,
		DurationSeconds: 3600,
	})
	require.NoError(t, err)
	id := created.Auction.ID.String()

	_, err = rpc.Call(ctx, bid, &PlaceBidRequest{AuctionID: id, ClubID: m.buyer.String(), Amount: 3_000_000})
	assert.ErrorIs(t, err, models.ErrBidTooLow)
	_, err = rpc.Call(ctx, bid, &PlaceBidRequest{AuctionID: "nope", ClubID: m.buyer.String(), Amount: 5_000_000})
	require.Error(t, err)

	placed, err := rpc.Call(ctx, bid, &PlaceBidRequest{AuctionID: id, ClubID: m.buyer.String(), Amount: 5_000_000})
	require.NoError(t, err)
	assert.Equal(t, int64(5_000_000), placed.Auction.HighestBid)

	st, err := rpc.Call(ctx, status, &GetAuctionRequest{AuctionID: id})
	require.NoError(t, err)
	assert.Equal(t, int64(3600), st.Status.TimeLeftSeconds)

	settled, err := rpc.Call(ctx, buy, &BuyNowRequest{AuctionID: id, ClubID: m.third.String()})
	require.NoError(t, err)
	require.NotNil(t, settled.Transfer)
	assert.Equal(t, m.third, settled.Transfer.ToClubID)

	_, err = rpc.Call(ctx, buy, &BuyNowRequest{AuctionID: id, ClubID: m.buyer.String()})
	assert.ErrorIs(t, err, models.ErrAuctionNotActive)
}
