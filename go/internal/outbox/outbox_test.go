package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/transfermarket/go/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu       sync.Mutex
	failures int
	events   []Event
}

func (p *recordingPublisher) Publish(_ context.Context, event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failures > 0 {
		p.failures--
		return errors.New("broker unavailable")
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) published() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event(nil), p.events...)
}

func TestEmitStoresEnvelopeReadyEvent(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	app := NewApp(repo, clockwork.NewFakeClockAt(time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)))
	woken := 0
	app.OnInsert(func() { woken++ })

	auctionID := uuid.New()
	require.NoError(t, app.Emit(ctx, events.BidPlaced, auctionID, events.BidPlacedPayload{
		AuctionID: auctionID.String(), Amount: 6_000_000, Seq: 2,
	}))
	assert.Equal(t, 1, woken)

	stored := repo.All()
	require.Len(t, stored, 1)
	env := stored[0].Envelope()
	assert.Equal(t, events.BidPlaced, env.EventType)
	assert.Equal(t, auctionID.String(), env.AuctionID)

	var payload events.BidPlacedPayload
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, int64(6_000_000), payload.Amount)

	assert.Error(t, app.Emit(ctx, events.BidPlaced, auctionID, nil))
}

func TestWorkerProcessOnceMarksSent(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	app := NewApp(repo, nil)
	for i := 0; i < 3; i++ {
		require.NoError(t, app.Emit(ctx, events.AuctionCreated, uuid.New(), map[string]int{"n": i}))
	}

	pub := &recordingPublisher{}
	w := NewWorker(repo, pub, Config{BatchSize: 2, RetryDelay: time.Millisecond}, clockwork.NewRealClock())

	n, err := w.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = w.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = w.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.Len(t, pub.published(), 3)
	pending, err := repo.CountUnsent(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)

	processed, failed, last := w.Stats()
	assert.Equal(t, uint64(3), processed)
	assert.Zero(t, failed)
	assert.False(t, last.IsZero())
}

func TestWorkerRetriesThenGivesUp(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	require.NoError(t, NewApp(repo, nil).Emit(ctx, events.AuctionEnded, uuid.New(), map[string]string{"reason": "expired"}))

	t.Run("recovers within retries", func(t *testing.T) {
		pub := &recordingPublisher{failures: 2}
		w := NewWorker(repo, pub, Config{MaxRetries: 2, RetryDelay: time.Millisecond}, nil)
		n, err := w.ProcessOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.Len(t, pub.published(), 1)
	})

	require.NoError(t, NewApp(repo, nil).Emit(ctx, events.AuctionEnded, uuid.New(), map[string]string{"reason": "buy_now"}))

	t.Run("leaves event unsent after exhausting retries", func(t *testing.T) {
		pub := &recordingPublisher{failures: 10}
		w := NewWorker(repo, pub, Config{MaxRetries: 1, RetryDelay: time.Millisecond}, nil)
		n, err := w.ProcessOnce(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
		pending, _ := repo.CountUnsent(ctx)
		assert.Equal(t, 1, pending)
		_, failed, _ := w.Stats()
		assert.Equal(t, uint64(1), failed)
	})
}

func TestWorkerWakeDrainsPromptly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo := NewMemoryRepository()
	pub := &recordingPublisher{}
	w := NewWorker(repo, pub, Config{PollInterval: time.Hour}, clockwork.NewRealClock())
	app := NewApp(repo, nil)
	app.OnInsert(w.Wake)

	require.NoError(t, w.Start(ctx))
	defer func() { _ = w.Stop() }()
	assert.Error(t, w.Start(ctx))

	require.NoError(t, app.Emit(ctx, events.TransferCompleted, uuid.New(), map[string]int64{"amount": 1}))

	require.Eventually(t, func() bool { return len(pub.published()) == 1 }, time.Second, 5*time.Millisecond)

	health := NewHealthChecker(w, repo, nil, 10).Check(ctx)
	assert.True(t, health.Healthy, health.Errors)
	assert.True(t, health.WorkerRunning)
}

func TestFanoutStopsAtFirstFailure(t *testing.T) {
	ok := &recordingPublisher{}
	bad := &recordingPublisher{failures: 1}
	after := &recordingPublisher{}

	err := Fanout{ok, bad, after}.Publish(context.Background(), Event{ID: uuid.New(), EventType: "x", Payload: json.RawMessage(`{}`)})
	assert.Error(t, err)
	assert.Len(t, ok.published(), 1)
	assert.Empty(t, after.published())
	assert.NoError(t, LogPublisher{}.Publish(context.Background(), Event{ID: uuid.New(), Payload: json.RawMessage(`{}`)}))
}

func TestJetStreamConfig(t *testing.T) {
	cfg := DefaultJetStreamConfig()
	assert.Equal(t, "market.events.BidPlaced", cfg.Subject(events.BidPlaced))
	sc := cfg.StreamConfig()
	assert.Equal(t, "MARKET_EVENTS", sc.Name)
	assert.Equal(t, []string{"market.events.>"}, sc.Subjects)
	assert.True(t, isStreamConfigEqual(sc, sc))
}
