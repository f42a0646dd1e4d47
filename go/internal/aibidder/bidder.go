// Package aibidder runs simulated clubs that bid through the public market API.
package aibidder

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/transfermarket/go/internal/lease"
	"github.com/mcdev12/transfermarket/go/internal/models"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Market is the public entry point agents act through
type Market interface {
	ListActiveAuctions(ctx context.Context) ([]models.Auction, error)
	PlaceBid(ctx context.Context, auctionID, clubID uuid.UUID, amount int64) (*models.Auction, error)
	BuyNow(ctx context.Context, auctionID, clubID uuid.UUID) (*models.Auction, *models.Transfer, error)
}

// Budgets reads authoritative club budgets
type Budgets interface {
	GetBudget(ctx context.Context, clubID uuid.UUID) (int64, error)
}

// ClubLister resolves the agent registry
type ClubLister interface {
	ListClubs(ctx context.Context) ([]models.Club, error)
}

type Config struct {
	Enabled           bool          `yaml:"enabled"`
	TickInterval      time.Duration `yaml:"tick_interval"`
	Concurrency       int           `yaml:"concurrency"`
	BidProbability    float64       `yaml:"bid_probability"`
	MaxRaise          float64       `yaml:"max_raise"`
	BuyNowProbability float64       `yaml:"buy_now_probability"`
	Clubs             []string      `yaml:"clubs"` // empty means every club
	LeaseName         string        `yaml:"lease_name"`
	LeaseTTL          time.Duration `yaml:"lease_ttl"`
}

func DefaultConfig() Config {
	return Config{
		TickInterval:      30 * time.Second,
		Concurrency:       8,
		BidProbability:    0.20,
		MaxRaise:          0.15,
		BuyNowProbability: 0.05,
		LeaseName:         "aibidder",
		LeaseTTL:          time.Minute,
	}
}

// Agent is one simulated club
type Agent struct {
	ClubID uuid.UUID
	Name   string
}

// ResolveAgents maps club names to agents. An empty list selects every club.
func ResolveAgents(ctx context.Context, clubs ClubLister, names []string) ([]Agent, error) {
	all, err := clubs.ListClubs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list clubs: %w", err)
	}
	byName := make(map[string]models.Club, len(all))
	for _, c := range all {
		byName[strings.ToLower(c.Name)] = c
	}

	var agents []Agent
	if len(names) == 0 {
		for _, c := range all {
			agents = append(agents, Agent{ClubID: c.ID, Name: c.Name})
		}
	} else {
		for _, name := range names {
			c, ok := byName[strings.ToLower(strings.TrimSpace(name))]
			if !ok {
				return nil, fmt.Errorf("%w: %q", models.ErrClubNotFound, name)
			}
			agents = append(agents, Agent{ClubID: c.ID, Name: c.Name})
		}
	}
	sort.Slice(agents, func(i, j int) bool { return agents[i].Name < agents[j].Name })
	return agents, nil
}

// TickReport summarises one pass over the active auctions
type TickReport struct {
	Auctions   int
	Bids       int
	BuyNows    int
	Rejections int
	Skipped    bool // another replica holds the lease
}

type tickCounters struct {
	bids, buyNows, rejections atomic.Int64
}

// Bidder drives the agent pool
type Bidder struct {
	market   Market
	budgets  Budgets
	agents   []Agent
	strategy Strategy
	locker   lease.Locker
	clock    clockwork.Clock
	cfg      Config
}

func NewBidder(market Market, budgets Budgets, agents []Agent, strategy Strategy, locker lease.Locker, clock clockwork.Clock, cfg Config) *Bidder {
	def := DefaultConfig()
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = def.TickInterval
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.LeaseName == "" {
		cfg.LeaseName = def.LeaseName
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = def.LeaseTTL
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if locker == nil {
		locker = lease.NewLocalLocker()
	}
	return &Bidder{
		market:   market,
		budgets:  budgets,
		agents:   agents,
		strategy: strategy,
		locker:   locker,
		clock:    clock,
		cfg:      cfg,
	}
}

// Run ticks immediately and then on every interval until ctx is cancelled
func (b *Bidder) Run(ctx context.Context) error {
	log.Info().Int("agents", len(b.agents)).Dur("interval", b.cfg.TickInterval).Msg("AI bidder started")
	ticker := b.clock.NewTicker(b.cfg.TickInterval)
	defer ticker.Stop()

	for {
		b.runTick(ctx)
		select {
		case <-ctx.Done():
			log.Info().Msg("AI bidder stopped")
			return nil
		case <-ticker.Chan():
		}
	}
}

func (b *Bidder) runTick(ctx context.Context) {
	var report TickReport
	ran, err := b.locker.TryRun(ctx, b.cfg.LeaseName, b.cfg.LeaseTTL, func(ctx context.Context) error {
		var err error
		report, err = b.Tick(ctx)
		return err
	})
	if err != nil {
		log.Error().Err(err).Msg("AI bidder tick failed")
		return
	}
	if !ran {
		return
	}
	log.Info().
		Int("auctions", report.Auctions).
		Int("bids", report.Bids).
		Int("buy_nows", report.BuyNows).
		Int("rejections", report.Rejections).
		Msg("AI bidder tick finished")
}

// Tick evaluates every active auction once
func (b *Bidder) Tick(ctx context.Context) (TickReport, error) {
	auctions, err := b.market.ListActiveAuctions(ctx)
	if err != nil {
		return TickReport{}, fmt.Errorf("failed to list active auctions: %w", err)
	}
	mirror := newBudgetMirror(b.budgets)
	var counters tickCounters

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.cfg.Concurrency)
	for i := range auctions {
		a := &auctions[i]
		g.Go(func() error {
			b.evaluate(gctx, a, mirror, &counters)
			return nil
		})
	}
	g.Wait()

	return TickReport{
		Auctions:   len(auctions),
		Bids:       int(counters.bids.Load()),
		BuyNows:    int(counters.buyNows.Load()),
		Rejections: int(counters.rejections.Load()),
	}, nil
}

// evaluate gives each agent at most one action on the auction.
func (b *Bidder) evaluate(ctx context.Context, snapshot *models.Auction, mirror *budgetMirror, counters *tickCounters) {
	cur := snapshot
	for _, agent := range b.agents {
		if ctx.Err() != nil {
			return
		}
		if agent.ClubID == cur.SellingClubID || cur.IsHighestBidder(agent.ClubID) {
			continue
		}
		budget, err := mirror.get(ctx, agent.ClubID)
		if err != nil {
			log.Warn().Err(err).Str("club", agent.Name).Msg("budget lookup failed, skipping agent")
			continue
		}

		d := b.strategy.Decide(cur, budget)
		switch d.Action {
		case ActionBid:
			updated, err := b.market.PlaceBid(ctx, cur.ID, agent.ClubID, d.Amount)
			if err != nil {
				counters.rejections.Add(1)
				log.Warn().Err(err).Str("club", agent.Name).Str("auction_id", cur.ID.String()).Int64("amount", d.Amount).Msg("AI bid rejected")
				if closed(err) {
					return
				}
				continue
			}
			counters.bids.Add(1)
			log.Debug().Str("club", agent.Name).Str("player", cur.PlayerName).Int64("amount", d.Amount).Msg("AI bid placed")
			cur = updated

		case ActionBuyNow:
			_, _, err := b.market.BuyNow(ctx, cur.ID, agent.ClubID)
			if err != nil {
				counters.rejections.Add(1)
				log.Warn().Err(err).Str("club", agent.Name).Str("auction_id", cur.ID.String()).Msg("AI buy now rejected")
				if closed(err) {
					return
				}
				continue
			}
			counters.buyNows.Add(1)
			mirror.forget(agent.ClubID)
			log.Info().Str("club", agent.Name).Str("player", cur.PlayerName).Int64("price", cur.BuyNowPrice).Msg("AI bought outright")
			return
		}
	}
}

func closed(err error) bool {
	return errors.Is(err, models.ErrAuctionNotActive) ||
		errors.Is(err, models.ErrAuctionExpired) ||
		errors.Is(err, models.ErrAuctionNotFound)
}

// budgetMirror caches budgets for one tick. The ledger stays authoritative.
type budgetMirror struct {
	source Budgets
	mu     sync.Mutex
	cache  map[uuid.UUID]int64
}

func newBudgetMirror(source Budgets) *budgetMirror {
	return &budgetMirror{source: source, cache: make(map[uuid.UUID]int64)}
}

func (m *budgetMirror) get(ctx context.Context, clubID uuid.UUID) (int64, error) {
	m.mu.Lock()
	if v, ok := m.cache[clubID]; ok {
		m.mu.Unlock()
		return v, nil
	}
	m.mu.Unlock()

	v, err := m.source.GetBudget(ctx, clubID)
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	m.cache[clubID] = v
	m.mu.Unlock()
	return v, nil
}

func (m *budgetMirror) forget(clubID uuid.UUID) {
	m.mu.Lock()
	delete(m.cache, clubID)
	m.mu.Unlock()
}
