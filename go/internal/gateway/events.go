package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mcdev12/transfermarket/go/internal/events"
)

// MarketEvent is the frame pushed to websocket subscribers
type MarketEvent struct {
	ID        string          `json:"id"`
	AuctionID string          `json:"auction_id"`
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// FromEnvelope converts a published envelope into a websocket frame.
func FromEnvelope(env events.Envelope) (*MarketEvent, error) {
	if !knownType(env.EventType) {
		return nil, fmt.Errorf("unknown event type: %s", env.EventType)
	}
	return &MarketEvent{
		ID:        env.EventID,
		AuctionID: env.AuctionID,
		Type:      env.EventType,
		Timestamp: env.Timestamp,
		Data:      env.Payload,
	}, nil
}

func knownType(t string) bool {
	switch t {
	case events.AuctionCreated, events.BidPlaced, events.AuctionEnded,
		events.AuctionCancelled, events.TransferCompleted, events.SettlementFailed:
		return true
	}
	return false
}

// ParseEventPayload decodes the frame data into its typed payload
func ParseEventPayload(event *MarketEvent) (any, error) {
	var target any
	switch event.Type {
	case events.AuctionCreated:
		target = &events.AuctionCreatedPayload{}
	case events.BidPlaced:
		target = &events.BidPlacedPayload{}
	case events.AuctionEnded:
		target = &events.AuctionEndedPayload{}
	case events.AuctionCancelled:
		target = &events.AuctionCancelledPayload{}
	case events.TransferCompleted:
		target = &events.TransferCompletedPayload{}
	case events.SettlementFailed:
		target = &events.SettlementFailedPayload{}
	default:
		return nil, nil
	}
	if err := json.Unmarshal(event.Data, target); err != nil {
		return nil, err
	}
	return target, nil
}
