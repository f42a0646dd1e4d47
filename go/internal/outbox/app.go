package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// App writes market events into the outbox
type App struct {
	repo  Repository
	clock clockwork.Clock
	wake  func()
}

// NewApp creates a new outbox App
func NewApp(repo Repository, clock clockwork.Clock) *App {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &App{repo: repo, clock: clock}
}

// OnInsert registers a callback run after each successful insert, typically Worker.Wake.
func (a *App) OnInsert(fn func()) {
	a.wake = fn
}

// Emit marshals payload and stores it as a new event for aggregateID.
func (a *App) Emit(ctx context.Context, eventType string, aggregateID uuid.UUID, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("invalid %s payload: %w", eventType, err)
	}
	if len(data) == 0 || string(data) == "null" {
		return fmt.Errorf("invalid %s payload: event payload cannot be empty", eventType)
	}

	event := Event{
		ID:          uuid.New(),
		AggregateID: aggregateID,
		EventType:   eventType,
		Payload:     data,
		CreatedAt:   a.clock.Now().UTC(),
	}
	if err := a.repo.Insert(ctx, event); err != nil {
		return err
	}

	log.Debug().
		Str("aggregate_id", aggregateID.String()).
		Str("event_type", eventType).
		Str("event_id", event.ID.String()).
		Msg("outbox event inserted")

	if a.wake != nil {
		a.wake()
	}
	return nil
}
