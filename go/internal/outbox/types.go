// Package outbox stores market events and relays them to publishers.
package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/transfermarket/go/internal/events"
)

// Event is one row of the outbox
type Event struct {
	ID          uuid.UUID       `json:"id"`
	AggregateID uuid.UUID       `json:"aggregate_id"`
	EventType   string          `json:"event_type"`
	Payload     json.RawMessage `json:"payload"`
	CreatedAt   time.Time       `json:"created_at"`
	SentAt      *time.Time      `json:"sent_at,omitempty"`
}

// Envelope wraps the event for subscribers.
func (e Event) Envelope() events.Envelope {
	return events.Envelope{
		EventID:   e.ID.String(),
		EventType: e.EventType,
		AuctionID: e.AggregateID.String(),
		Timestamp: e.CreatedAt.UTC(),
		Payload:   e.Payload,
	}
}

// Publisher delivers an event somewhere. Implementations must tolerate redelivery.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}
