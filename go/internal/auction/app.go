package auction

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/transfermarket/go/internal/events"
	"github.com/mcdev12/transfermarket/go/internal/models"
	"github.com/mcdev12/transfermarket/go/internal/settlement"
	"github.com/rs/zerolog/log"
)

// ClubReader defines what the app layer needs from the club ledger
type ClubReader interface {
	GetClub(ctx context.Context, id uuid.UUID) (*models.Club, error)
}

// PlayerReader defines what the app layer needs from the player catalog
type PlayerReader interface {
	GetPlayer(ctx context.Context, id uuid.UUID) (*models.Player, error)
}

// Settler applies and looks up settlements
type Settler interface {
	Settle(ctx context.Context, req settlement.Request) (*models.Transfer, error)
	Lookup(ctx context.Context, auctionID uuid.UUID) (*models.Transfer, error)
}

// EventSink receives market events after each committed transition
type EventSink interface {
	Emit(ctx context.Context, eventType string, aggregateID uuid.UUID, payload any) error
}

// App is the auction state machine. Every mutation re-reads the auction,
// validates against that snapshot and commits with a version check.
type App struct {
	store   Store
	clubs   ClubReader
	players PlayerReader
	settler Settler
	events  EventSink
	clock   clockwork.Clock
	cfg     Config
	wake    func()
}

// NewApp creates a new auction App
func NewApp(store Store, clubs ClubReader, players PlayerReader, settler Settler, sink EventSink, clock clockwork.Clock, cfg Config) *App {
	def := DefaultConfig()
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.DefaultDuration <= 0 {
		cfg.DefaultDuration = def.DefaultDuration
	}
	if cfg.BuyNowMarkupPercent <= 0 {
		cfg.BuyNowMarkupPercent = def.BuyNowMarkupPercent
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &App{
		store:   store,
		clubs:   clubs,
		players: players,
		settler: settler,
		events:  sink,
		clock:   clock,
		cfg:     cfg,
	}
}

// SetWaker registers a callback run whenever a new end time appears, typically Sweeper.Wake.
func (a *App) SetWaker(fn func()) {
	a.wake = fn
}

// CreateAuction lists a player owned by the selling club
func (a *App) CreateAuction(ctx context.Context, req CreateAuctionRequest) (*models.Auction, error) {
	seller, err := a.clubs.GetClub(ctx, req.SellingClubID)
	if err != nil {
		return nil, err
	}
	if !seller.HasPlayer(req.PlayerID) {
		return nil, fmt.Errorf("%w: player %s, club %s", models.ErrPlayerNotOwned, req.PlayerID, req.SellingClubID)
	}
	player, err := a.players.GetPlayer(ctx, req.PlayerID)
	if err != nil {
		return nil, err
	}

	listing := Listing{StartingPrice: req.StartingPrice, BuyNowPrice: req.BuyNowPrice, Duration: req.Duration}
	if listing.StartingPrice == 0 {
		listing.StartingPrice = player.Valuation
	}
	if listing.BuyNowPrice == 0 {
		listing.BuyNowPrice = listing.StartingPrice * (100 + a.cfg.BuyNowMarkupPercent) / 100
	}
	if listing.Duration == 0 {
		listing.Duration = a.cfg.DefaultDuration
	}
	if err := ValidateListing(listing); err != nil {
		return nil, err
	}

	existing, err := a.store.ActiveForPlayer(ctx, req.PlayerID)
	switch {
	case err == nil:
		if a.clock.Now().Before(existing.EndTime) {
			return nil, fmt.Errorf("%w: player %s is listed in auction %s",
				models.ErrDuplicateActiveListing, req.PlayerID, existing.ID)
		}
		a.expireLazily(ctx, existing)
	case !errors.Is(err, models.ErrAuctionNotFound):
		return nil, err
	}

	now := a.clock.Now()
	auction := &models.Auction{
		ID:               uuid.New(),
		PlayerID:         player.ID,
		PlayerName:       player.Name,
		SellingClubID:    seller.ID,
		Description:      strings.TrimSpace(req.Description),
		StartingPrice:    listing.StartingPrice,
		BuyNowPrice:      listing.BuyNowPrice,
		CurrentPrice:     listing.StartingPrice,
		EndTime:          now.Add(listing.Duration),
		Status:           models.AuctionStatusActive,
		SettlementStatus: models.SettlementStatusNone,
		Bids:             []models.Bid{},
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := a.store.Create(ctx, auction); err != nil {
		return nil, err
	}

	log.Info().
		Str("auction_id", auction.ID.String()).
		Str("player", auction.PlayerName).
		Str("selling_club_id", auction.SellingClubID.String()).
		Int64("starting_price", auction.StartingPrice).
		Int64("buy_now_price", auction.BuyNowPrice).
		Time("end_time", auction.EndTime).
		Msg("auction created")

	a.emit(ctx, events.AuctionCreated, auction.ID, events.AuctionCreatedPayload{
		AuctionID:     auction.ID.String(),
		PlayerID:      auction.PlayerID.String(),
		PlayerName:    auction.PlayerName,
		SellingClubID: auction.SellingClubID.String(),
		StartingPrice: auction.StartingPrice,
		BuyNowPrice:   auction.BuyNowPrice,
		EndTime:       auction.EndTime,
	})
	if a.wake != nil {
		a.wake()
	}
	return auction, nil
}

// PlaceBid records a bid above the current highest bid
func (a *App) PlaceBid(ctx context.Context, auctionID, clubID uuid.UUID, amount int64) (*models.Auction, error) {
	for attempt := 0; attempt <= a.cfg.MaxRetries; attempt++ {
		cur, err := a.store.Get(ctx, auctionID)
		if err != nil {
			return nil, err
		}
		budget, err := a.budget(ctx, clubID)
		if err != nil {
			return nil, err
		}
		now := a.clock.Now()
		if err := ValidateBid(cur, clubID, budget, amount, now); err != nil {
			if errors.Is(err, models.ErrAuctionExpired) {
				a.expireLazily(ctx, cur)
			}
			return nil, err
		}

		next := cur.Clone()
		bid := models.Bid{Seq: len(cur.Bids) + 1, ClubID: clubID, Amount: amount, PlacedAt: now}
		next.Bids = append(next.Bids, bid)
		next.HighestBid = amount
		next.CurrentPrice = amount
		next.HighestBidderClubID = &clubID
		next.UpdatedAt = now

		if err := a.store.CompareAndSwap(ctx, next, cur.Version); err != nil {
			if errors.Is(err, models.ErrVersionConflict) {
				log.Debug().Str("auction_id", auctionID.String()).Int("attempt", attempt+1).Msg("bid lost a version race, retrying")
				continue
			}
			return nil, err
		}

		log.Info().
			Str("auction_id", auctionID.String()).
			Str("club_id", clubID.String()).
			Int64("amount", amount).
			Int("seq", bid.Seq).
			Msg("bid placed")
		a.emit(ctx, events.BidPlaced, auctionID, events.BidPlacedPayload{
			AuctionID: auctionID.String(),
			ClubID:    clubID.String(),
			Amount:    amount,
			Seq:       bid.Seq,
			PlacedAt:  now,
			EndTime:   next.EndTime,
		})
		return next, nil
	}
	return nil, a.exhausted("bid on", auctionID)
}

// BuyNow ends the auction at its buy now price and settles immediately
func (a *App) BuyNow(ctx context.Context, auctionID, clubID uuid.UUID) (*models.Auction, *models.Transfer, error) {
	for attempt := 0; attempt <= a.cfg.MaxRetries; attempt++ {
		cur, err := a.store.Get(ctx, auctionID)
		if err != nil {
			return nil, nil, err
		}
		budget, err := a.budget(ctx, clubID)
		if err != nil {
			return nil, nil, err
		}
		now := a.clock.Now()
		if err := ValidateBuyNow(cur, clubID, budget, now); err != nil {
			if errors.Is(err, models.ErrAuctionExpired) {
				a.expireLazily(ctx, cur)
			}
			return nil, nil, err
		}

		next := cur.Clone()
		next.HighestBid = cur.BuyNowPrice
		next.CurrentPrice = cur.BuyNowPrice
		next.HighestBidderClubID = &clubID
		next.Status = models.AuctionStatusEnded
		next.EndReason = models.EndReasonBuyNow
		next.EndedAt = &now
		next.SettlementStatus = models.SettlementStatusPending
		next.UpdatedAt = now

		if err := a.store.CompareAndSwap(ctx, next, cur.Version); err != nil {
			if errors.Is(err, models.ErrVersionConflict) {
				continue
			}
			return nil, nil, err
		}

		log.Info().
			Str("auction_id", auctionID.String()).
			Str("club_id", clubID.String()).
			Int64("price", next.BuyNowPrice).
			Msg("auction bought outright")
		return a.settle(ctx, next)
	}
	return nil, nil, a.exhausted("buy now on", auctionID)
}

// Expire closes an auction whose end time has passed. Expiring a terminal
// auction returns it unchanged together with its transfer, if any.
func (a *App) Expire(ctx context.Context, auctionID uuid.UUID) (*models.Auction, *models.Transfer, error) {
	for attempt := 0; attempt <= a.cfg.MaxRetries; attempt++ {
		cur, err := a.store.Get(ctx, auctionID)
		if err != nil {
			return nil, nil, err
		}
		if cur.IsTerminal() {
			t, err := a.transferFor(ctx, cur)
			return cur, t, err
		}
		now := a.clock.Now()
		if now.Before(cur.EndTime) {
			return nil, nil, fmt.Errorf("%w: auction %s ends in %s",
				models.ErrAuctionStillOpen, auctionID, cur.EndTime.Sub(now).Round(time.Second))
		}

		next := cur.Clone()
		next.Status = models.AuctionStatusEnded
		next.EndReason = models.EndReasonExpired
		next.EndedAt = &now
		next.UpdatedAt = now
		if cur.HasBidder() {
			next.SettlementStatus = models.SettlementStatusPending
		} else {
			next.SettlementStatus = models.SettlementStatusNone
		}

		if err := a.store.CompareAndSwap(ctx, next, cur.Version); err != nil {
			if errors.Is(err, models.ErrVersionConflict) {
				continue
			}
			return nil, nil, err
		}

		if !next.HasBidder() {
			log.Info().Str("auction_id", auctionID.String()).Msg("auction expired without bids")
			a.emitEnded(ctx, next)
			return next, nil, nil
		}
		log.Info().
			Str("auction_id", auctionID.String()).
			Int64("highest_bid", next.HighestBid).
			Msg("auction expired with a winner")
		return a.settle(ctx, next)
	}
	return nil, nil, a.exhausted("expire", auctionID)
}

// ResumeSettlement re-drives an auction that ended but never finished settling.
func (a *App) ResumeSettlement(ctx context.Context, auctionID uuid.UUID) (*models.Auction, *models.Transfer, error) {
	cur, err := a.store.Get(ctx, auctionID)
	if err != nil {
		return nil, nil, err
	}
	if cur.SettlementStatus != models.SettlementStatusPending {
		t, err := a.transferFor(ctx, cur)
		return cur, t, err
	}
	log.Info().Str("auction_id", auctionID.String()).Msg("resuming settlement")
	return a.settle(ctx, cur)
}

// Cancel withdraws an active auction without settlement
func (a *App) Cancel(ctx context.Context, auctionID uuid.UUID, reason string) (*models.Auction, error) {
	for attempt := 0; attempt <= a.cfg.MaxRetries; attempt++ {
		cur, err := a.store.Get(ctx, auctionID)
		if err != nil {
			return nil, err
		}
		if cur.IsTerminal() {
			return nil, fmt.Errorf("%w: auction %s is %s", models.ErrAuctionNotActive, auctionID, cur.Status)
		}

		now := a.clock.Now()
		next := cur.Clone()
		next.Status = models.AuctionStatusCancelled
		next.EndReason = models.EndReasonCancelled
		next.EndedAt = &now
		next.SettlementStatus = models.SettlementStatusNone
		next.UpdatedAt = now

		if err := a.store.CompareAndSwap(ctx, next, cur.Version); err != nil {
			if errors.Is(err, models.ErrVersionConflict) {
				continue
			}
			return nil, err
		}

		log.Info().Str("auction_id", auctionID.String()).Str("reason", reason).Msg("auction cancelled")
		a.emit(ctx, events.AuctionCancelled, auctionID, events.AuctionCancelledPayload{
			AuctionID:   auctionID.String(),
			Reason:      reason,
			CancelledAt: now,
		})
		return next, nil
	}
	return nil, a.exhausted("cancel", auctionID)
}

// GetAuction retrieves an auction, closing it first if its end time has passed
func (a *App) GetAuction(ctx context.Context, id uuid.UUID) (*models.Auction, error) {
	cur, err := a.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.overdue(cur) {
		return a.expireLazily(ctx, cur), nil
	}
	return cur, nil
}

// GetAuctionStatus returns the short-form view with time left
func (a *App) GetAuctionStatus(ctx context.Context, id uuid.UUID) (*StatusView, error) {
	cur, err := a.GetAuction(ctx, id)
	if err != nil {
		return nil, err
	}
	return newStatusView(cur, a.clock.Now()), nil
}

// ListAuctions lists auctions newest first. Overdue active auctions are closed on the way.
func (a *App) ListAuctions(ctx context.Context, filter ListFilter) ([]models.Auction, error) {
	list, err := a.store.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list auctions: %w", err)
	}
	out := list[:0]
	for i := range list {
		cur := &list[i]
		if a.overdue(cur) {
			cur = a.expireLazily(ctx, cur)
		}
		if filter.Status != "" && cur.Status != filter.Status {
			continue
		}
		out = append(out, *cur)
	}
	return out, nil
}

// ListActiveAuctions lists auctions still open for bidding
func (a *App) ListActiveAuctions(ctx context.Context) ([]models.Auction, error) {
	return a.ListAuctions(ctx, ListFilter{Status: models.AuctionStatusActive})
}

// DueAuctions returns ids of active auctions whose end time has passed.
func (a *App) DueAuctions(ctx context.Context, limit int) ([]uuid.UUID, error) {
	return a.store.ListDue(ctx, a.clock.Now(), limit)
}

// NextEndTime returns the earliest end time among active auctions, or nil.
func (a *App) NextEndTime(ctx context.Context) (*time.Time, error) {
	return a.store.NextEndTime(ctx)
}

// StuckSettlements returns auctions left pending for longer than grace.
func (a *App) StuckSettlements(ctx context.Context, grace time.Duration, limit int) ([]uuid.UUID, error) {
	return a.store.ListPendingSettlement(ctx, a.clock.Now().Add(-grace), limit)
}

// settle runs settlement for an auction already committed as ended/pending.
// Business failures close the auction as failed; anything else leaves it pending.
func (a *App) settle(ctx context.Context, ended *models.Auction) (*models.Auction, *models.Transfer, error) {
	t, err := a.settler.Settle(ctx, settlement.Request{
		AuctionID:     ended.ID,
		SellingClubID: ended.SellingClubID,
		BuyingClubID:  *ended.HighestBidderClubID,
		PlayerID:      ended.PlayerID,
		Amount:        ended.HighestBid,
	})
	if err != nil {
		if !settlement.IsBusinessFailure(err) {
			log.Error().Err(err).Str("auction_id", ended.ID.String()).Msg("settlement interrupted, left pending")
			return ended, nil, err
		}

		final, markErr := a.markSettlement(ctx, ended.ID, models.SettlementStatusFailed, err.Error())
		if markErr != nil {
			log.Error().Err(markErr).Str("auction_id", ended.ID.String()).Msg("failed to record settlement failure")
			return ended, nil, err
		}
		log.Warn().Err(err).Str("auction_id", ended.ID.String()).Msg("settlement failed, auction closed without transfer")
		a.emit(ctx, events.SettlementFailed, ended.ID, events.SettlementFailedPayload{
			AuctionID:   ended.ID.String(),
			BuyerClubID: ended.HighestBidderClubID.String(),
			Amount:      ended.HighestBid,
			Kind:        string(models.KindOf(err)),
			Error:       err.Error(),
			FailedAt:    a.clock.Now(),
		})
		a.emitEnded(ctx, final)
		return final, nil, err
	}

	final, err := a.markSettlement(ctx, ended.ID, models.SettlementStatusCompleted, "")
	if err != nil {
		// The transfer is durable; the sweeper will find the auction pending and replay it.
		return ended, t, err
	}
	a.emitEnded(ctx, final)
	a.emit(ctx, events.TransferCompleted, ended.ID, events.TransferCompletedPayload{
		TransferID: t.ID.String(),
		Seq:        t.Seq,
		AuctionID:  ended.ID.String(),
		PlayerID:   t.PlayerID.String(),
		FromClubID: t.FromClubID.String(),
		ToClubID:   t.ToClubID.String(),
		Amount:     t.Amount,
		CreatedAt:  t.CreatedAt,
	})
	return final, t, nil
}

// markSettlement moves a pending settlement to its final status.
// If another caller already finished it, their result is returned.
func (a *App) markSettlement(ctx context.Context, auctionID uuid.UUID, status models.SettlementStatus, reason string) (*models.Auction, error) {
	for attempt := 0; attempt <= a.cfg.MaxRetries; attempt++ {
		cur, err := a.store.Get(ctx, auctionID)
		if err != nil {
			return nil, err
		}
		if cur.SettlementStatus != models.SettlementStatusPending {
			return cur, nil
		}
		next := cur.Clone()
		next.SettlementStatus = status
		next.SettlementError = reason
		next.UpdatedAt = a.clock.Now()
		if err := a.store.CompareAndSwap(ctx, next, cur.Version); err != nil {
			if errors.Is(err, models.ErrVersionConflict) {
				continue
			}
			return nil, err
		}
		return next, nil
	}
	return nil, a.exhausted("record settlement of", auctionID)
}

func (a *App) overdue(cur *models.Auction) bool {
	return cur.Status == models.AuctionStatusActive && !a.clock.Now().Before(cur.EndTime)
}

// expireLazily closes an overdue auction observed on a read path. Failures are
// logged; the caller gets the freshest state available.
func (a *App) expireLazily(ctx context.Context, cur *models.Auction) *models.Auction {
	ended, _, err := a.Expire(ctx, cur.ID)
	if err != nil {
		log.Warn().Err(err).Str("auction_id", cur.ID.String()).Msg("lazy expiry did not settle cleanly")
	}
	if ended != nil {
		return ended
	}
	if fresh, getErr := a.store.Get(ctx, cur.ID); getErr == nil {
		return fresh
	}
	return cur
}

func (a *App) budget(ctx context.Context, clubID uuid.UUID) (int64, error) {
	c, err := a.clubs.GetClub(ctx, clubID)
	if err != nil {
		return 0, err
	}
	return c.Budget, nil
}

func (a *App) transferFor(ctx context.Context, cur *models.Auction) (*models.Transfer, error) {
	if cur.SettlementStatus != models.SettlementStatusCompleted {
		return nil, nil
	}
	return a.settler.Lookup(ctx, cur.ID)
}

func (a *App) exhausted(op string, auctionID uuid.UUID) error {
	return fmt.Errorf("%w: could not %s auction %s after %d attempts",
		models.ErrVersionConflict, op, auctionID, a.cfg.MaxRetries+1)
}

func (a *App) emitEnded(ctx context.Context, ended *models.Auction) {
	payload := events.AuctionEndedPayload{
		AuctionID:        ended.ID.String(),
		PlayerID:         ended.PlayerID.String(),
		Reason:           string(ended.EndReason),
		FinalPrice:       ended.HighestBid,
		SettlementStatus: string(ended.SettlementStatus),
	}
	if ended.HighestBidderClubID != nil && ended.SettlementStatus == models.SettlementStatusCompleted {
		payload.WinnerClubID = ended.HighestBidderClubID.String()
	}
	if ended.EndedAt != nil {
		payload.EndedAt = *ended.EndedAt
	}
	a.emit(ctx, events.AuctionEnded, ended.ID, payload)
}

func (a *App) emit(ctx context.Context, eventType string, auctionID uuid.UUID, payload any) {
	if a.events == nil {
		return
	}
	if err := a.events.Emit(ctx, eventType, auctionID, payload); err != nil {
		log.Error().Err(err).Str("auction_id", auctionID.String()).Str("event_type", eventType).Msg("failed to emit event")
	}
}
