package outbox

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

type Config struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	BatchSize    int           `yaml:"batch_size"`
	MaxRetries   int           `yaml:"max_retries"`
	RetryDelay   time.Duration `yaml:"retry_delay"`
}

func DefaultConfig() Config {
	return Config{
		PollInterval: 5 * time.Second,
		BatchSize:    100,
		MaxRetries:   3,
		RetryDelay:   time.Second,
	}
}

// Worker drains unsent events to a Publisher on a poll interval or when woken
type Worker struct {
	repo      Repository
	publisher Publisher
	config    Config
	clock     clockwork.Clock

	wakeCh chan struct{}

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup

	processed atomic.Uint64
	failed    atomic.Uint64
	lastSent  atomic.Int64 // unix nanos
}

func NewWorker(repo Repository, publisher Publisher, cfg Config, clock clockwork.Clock) *Worker {
	def := DefaultConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Worker{
		repo:      repo,
		publisher: publisher,
		config:    cfg,
		clock:     clock,
		wakeCh:    make(chan struct{}, 1),
		stopChan:  make(chan struct{}),
	}
}

func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("outbox worker already running")
	}
	w.running = true
	w.mu.Unlock()

	w.wg.Add(1)
	go w.run(ctx)

	log.Info().
		Dur("poll_interval", w.config.PollInterval).
		Int("batch_size", w.config.BatchSize).
		Msg("outbox worker started")
	return nil
}

func (w *Worker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return fmt.Errorf("outbox worker not running")
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopChan)
	w.wg.Wait()

	log.Info().Msg("outbox worker stopped")
	return nil
}

// Running reports whether Start has been called without a matching Stop.
func (w *Worker) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Wake asks the worker to drain now instead of waiting for the next poll.
func (w *Worker) Wake() {
	select {
	case w.wakeCh <- struct{}{}:
	default:
	}
}

// Stats returns how many events were published and when the last one went out.
func (w *Worker) Stats() (processed, failed uint64, last time.Time) {
	if n := w.lastSent.Load(); n > 0 {
		last = time.Unix(0, n)
	}
	return w.processed.Load(), w.failed.Load(), last
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := w.clock.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	// Process immediately on start
	w.drain(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case <-ticker.Chan():
			w.drain(ctx)
		case <-w.wakeCh:
			w.drain(ctx)
		}
	}
}

// drain keeps processing full batches until the outbox is caught up.
func (w *Worker) drain(ctx context.Context) {
	for ctx.Err() == nil {
		n, err := w.ProcessOnce(ctx)
		if err != nil {
			log.Error().Err(err).Msg("outbox pass failed")
			return
		}
		if n < w.config.BatchSize {
			return
		}
	}
}

// ProcessOnce publishes one batch and returns how many events were marked sent.
func (w *Worker) ProcessOnce(ctx context.Context) (int, error) {
	batch, err := w.repo.FetchUnsent(ctx, w.config.BatchSize)
	if err != nil {
		return 0, err
	}
	if len(batch) == 0 {
		return 0, nil
	}

	var sent []uuid.UUID
	for _, event := range batch {
		if err := w.publishWithRetry(ctx, event); err != nil {
			w.failed.Add(1)
			log.Error().
				Err(err).
				Str("event_id", event.ID.String()).
				Str("event_type", event.EventType).
				Msg("failed to publish event")
			continue
		}
		sent = append(sent, event.ID)
	}

	if len(sent) > 0 {
		now := w.clock.Now()
		if err := w.repo.MarkSent(ctx, sent, now); err != nil {
			return 0, err
		}
		w.processed.Add(uint64(len(sent)))
		w.lastSent.Store(now.UnixNano())
	}

	log.Debug().
		Int("total", len(batch)).
		Int("successful", len(sent)).
		Msg("processed outbox events")

	return len(sent), nil
}

func (w *Worker) publishWithRetry(ctx context.Context, event Event) error {
	var lastErr error

	for attempt := 0; attempt <= w.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-w.clock.After(w.config.RetryDelay * time.Duration(attempt)):
			}
		}

		if err := w.publisher.Publish(ctx, event); err != nil {
			lastErr = err
			log.Warn().
				Err(err).
				Str("event_id", event.ID.String()).
				Int("attempt", attempt+1).
				Msg("failed to publish event, retrying")
			continue
		}
		return nil
	}

	return fmt.Errorf("failed after %d attempts: %w", w.config.MaxRetries+1, lastErr)
}
