// Package sweeper closes auctions once their end time passes and re-drives
// settlements that were interrupted.
package sweeper

import (
	"context"
	"errors"
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

// Market defines what the sweeper needs from the auction state machine
type Market interface {
	DueAuctions(ctx context.Context, limit int) ([]uuid.UUID, error)
	NextEndTime(ctx context.Context) (*time.Time, error)
	StuckSettlements(ctx context.Context, grace time.Duration, limit int) ([]uuid.UUID, error)
	Expire(ctx context.Context, auctionID uuid.UUID) (*models.Auction, *models.Transfer, error)
	ResumeSettlement(ctx context.Context, auctionID uuid.UUID) (*models.Auction, *models.Transfer, error)
}

type Config struct {
	Workers          int           `yaml:"workers"`
	BatchSize        int           `yaml:"batch_size"`
	RecoveryInterval time.Duration `yaml:"recovery_interval"`
	SettlementGrace  time.Duration `yaml:"settlement_grace"`
	BusyBackoff      time.Duration `yaml:"busy_backoff"`
	LeaseName        string        `yaml:"lease_name"`
	LeaseTTL         time.Duration `yaml:"lease_ttl"`
}

func DefaultConfig() Config {
	return Config{
		Workers:          4,
		BatchSize:        100,
		RecoveryInterval: 30 * time.Second,
		SettlementGrace:  time.Minute,
		BusyBackoff:      250 * time.Millisecond,
		LeaseName:        "sweeper",
		LeaseTTL:         30 * time.Second,
	}
}

type job struct {
	auctionID uuid.UUID
	resume    bool
}

// Report summarises one sweep pass
type Report struct {
	Expired int
	Resumed int
	Failed  int
	Skipped bool // another replica holds the lease
}

// Sweeper sleeps until the earliest end time, then hands due auctions to a worker pool
type Sweeper struct {
	market Market
	locker lease.Locker
	clock  clockwork.Clock
	cfg    Config

	workCh chan job
	wakeCh chan struct{}

	inFlightMu sync.Mutex
	inFlight   map[uuid.UUID]bool

	expired atomic.Uint64
	resumed atomic.Uint64
	failed  atomic.Uint64
}

func New(market Market, locker lease.Locker, clock clockwork.Clock, cfg Config) *Sweeper {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.RecoveryInterval <= 0 {
		cfg.RecoveryInterval = def.RecoveryInterval
	}
	if cfg.SettlementGrace <= 0 {
		cfg.SettlementGrace = def.SettlementGrace
	}
	if cfg.BusyBackoff <= 0 {
		cfg.BusyBackoff = def.BusyBackoff
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
	return &Sweeper{
		market:   market,
		locker:   locker,
		clock:    clock,
		cfg:      cfg,
		workCh:   make(chan job, cfg.BatchSize),
		wakeCh:   make(chan struct{}, 1),
		inFlight: make(map[uuid.UUID]bool),
	}
}

// Wake re-reads the next end time, typically after an auction is created.
func (s *Sweeper) Wake() {
	select {
	case s.wakeCh <- struct{}{}:
	default:
	}
}

// Stats returns lifetime counters
func (s *Sweeper) Stats() (expired, resumed, failed uint64) {
	return s.expired.Load(), s.resumed.Load(), s.failed.Load()
}

// Run sweeps until ctx is cancelled
func (s *Sweeper) Run(ctx context.Context) error {
	log.Info().Int("workers", s.cfg.Workers).Msg("expiry sweeper started")

	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		go s.worker(ctx, &wg, i)
	}
	defer func() {
		wg.Wait()
		log.Info().Msg("expiry sweeper stopped")
	}()

	for {
		busy := s.dispatch(ctx)
		timer := s.clock.NewTimer(s.nextWait(ctx, busy))
		select {
		case <-ctx.Done():
			stopAndDrainTimer(timer)
			return nil
		case <-s.wakeCh:
			stopAndDrainTimer(timer)
		case <-timer.Chan():
		}
	}
}

// dispatch queues due and stuck auctions under the lease. It reports whether
// a full batch was found, meaning more work is probably waiting.
func (s *Sweeper) dispatch(ctx context.Context) bool {
	busy := false
	_, err := s.locker.TryRun(ctx, s.cfg.LeaseName, s.cfg.LeaseTTL, func(ctx context.Context) error {
		due, err := s.market.DueAuctions(ctx, s.cfg.BatchSize)
		if err != nil {
			return err
		}
		busy = len(due) == s.cfg.BatchSize
		for _, id := range due {
			if !s.enqueue(ctx, job{auctionID: id}) {
				return ctx.Err()
			}
		}

		stuck, err := s.market.StuckSettlements(ctx, s.cfg.SettlementGrace, s.cfg.BatchSize)
		if err != nil {
			return err
		}
		for _, id := range stuck {
			if !s.enqueue(ctx, job{auctionID: id, resume: true}) {
				return ctx.Err()
			}
		}
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("sweep dispatch failed")
	}
	return busy
}

func (s *Sweeper) nextWait(ctx context.Context, busy bool) time.Duration {
	if busy {
		return s.cfg.BusyBackoff
	}
	wait := s.cfg.RecoveryInterval
	next, err := s.market.NextEndTime(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to read next end time")
		return wait
	}
	if next == nil {
		return wait
	}
	until := next.Sub(s.clock.Now())
	if until <= 0 {
		// Still due but already in flight.
		return s.cfg.BusyBackoff
	}
	if until < wait {
		return until
	}
	return wait
}

// enqueue skips auctions a worker already holds. It returns false only when ctx ends.
func (s *Sweeper) enqueue(ctx context.Context, j job) bool {
	s.inFlightMu.Lock()
	if s.inFlight[j.auctionID] {
		s.inFlightMu.Unlock()
		return true
	}
	s.inFlight[j.auctionID] = true
	s.inFlightMu.Unlock()

	select {
	case s.workCh <- j:
		return true
	case <-ctx.Done():
		s.done(j.auctionID)
		return false
	}
}

func (s *Sweeper) done(id uuid.UUID) {
	s.inFlightMu.Lock()
	delete(s.inFlight, id)
	s.inFlightMu.Unlock()
}

func (s *Sweeper) worker(ctx context.Context, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.workCh:
			s.handle(ctx, j, workerID)
			s.done(j.auctionID)
		}
	}
}

func (s *Sweeper) handle(ctx context.Context, j job, workerID int) error {
	var (
		a   *models.Auction
		err error
	)
	if j.resume {
		a, _, err = s.market.ResumeSettlement(ctx, j.auctionID)
	} else {
		a, _, err = s.market.Expire(ctx, j.auctionID)
	}

	switch {
	case err == nil:
	case errors.Is(err, models.ErrAuctionStillOpen):
		// Extended or clock skew between replicas; the next pass picks it up.
		return nil
	case a != nil && a.SettlementStatus == models.SettlementStatusFailed:
		// Closed without a transfer; that is a final outcome, not a sweep failure.
		err = nil
	default:
		s.failed.Add(1)
		log.Error().Err(err).Str("auction_id", j.auctionID.String()).Int("worker_id", workerID).Bool("resume", j.resume).Msg("sweep failed")
		return err
	}

	if j.resume {
		s.resumed.Add(1)
	} else {
		s.expired.Add(1)
	}
	log.Debug().Str("auction_id", j.auctionID.String()).Int("worker_id", workerID).Bool("resume", j.resume).Msg("auction swept")
	return nil
}

// SweepOnce runs a single synchronous pass and waits for every auction it found.
func (s *Sweeper) SweepOnce(ctx context.Context) (Report, error) {
	var report Report
	var mu sync.Mutex
	count := func(j job, err error) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case err != nil:
			report.Failed++
		case j.resume:
			report.Resumed++
		default:
			report.Expired++
		}
	}

	ran, err := s.locker.TryRun(ctx, s.cfg.LeaseName, s.cfg.LeaseTTL, func(ctx context.Context) error {
		due, err := s.market.DueAuctions(ctx, s.cfg.BatchSize)
		if err != nil {
			return err
		}
		stuck, err := s.market.StuckSettlements(ctx, s.cfg.SettlementGrace, s.cfg.BatchSize)
		if err != nil {
			return err
		}
		jobs := make([]job, 0, len(due)+len(stuck))
		for _, id := range due {
			jobs = append(jobs, job{auctionID: id})
		}
		for _, id := range stuck {
			jobs = append(jobs, job{auctionID: id, resume: true})
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.cfg.Workers)
		for _, j := range jobs {
			g.Go(func() error {
				count(j, s.handle(gctx, j, -1))
				return nil
			})
		}
		return g.Wait()
	})
	report.Skipped = !ran
	return report, err
}

func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
