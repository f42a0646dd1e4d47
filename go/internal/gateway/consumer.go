package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mcdev12/transfermarket/go/internal/events"
	"github.com/mcdev12/transfermarket/go/internal/outbox"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// ConsumerConfig configures the JetStream relay for replicas that do not run the outbox worker
type ConsumerConfig struct {
	ConsumerName  string        `yaml:"consumer_name"`
	MaxDeliver    int           `yaml:"max_deliver"`
	AckWait       time.Duration `yaml:"ack_wait"`
	MaxAckPending int           `yaml:"max_ack_pending"`
}

func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		ConsumerName:  "market-gateway",
		MaxDeliver:    5,
		AckWait:       30 * time.Second,
		MaxAckPending: 100,
	}
}

// EventConsumer relays market events from JetStream to the hub
type EventConsumer struct {
	hub      *Hub
	js       jetstream.JetStream
	consumer jetstream.Consumer
	stream   outbox.JetStreamConfig
	cfg      ConsumerConfig
}

func NewEventConsumer(ctx context.Context, hub *Hub, nc *nats.Conn, stream outbox.JetStreamConfig, cfg ConsumerConfig) (*EventConsumer, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}
	ec := &EventConsumer{hub: hub, js: js, stream: stream, cfg: cfg}
	if err := ec.ensureConsumer(ctx); err != nil {
		return nil, fmt.Errorf("ensure consumer: %w", err)
	}
	return ec, nil
}

func (ec *EventConsumer) ensureConsumer(ctx context.Context) error {
	stream, err := ec.js.Stream(ctx, ec.stream.StreamName)
	if err != nil {
		return fmt.Errorf("get stream: %w", err)
	}
	consumer, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:          ec.cfg.ConsumerName,
		Durable:       ec.cfg.ConsumerName,
		Description:   "Market gateway websocket relay",
		FilterSubject: ec.stream.SubjectPrefix + ".>",
		DeliverPolicy: jetstream.DeliverNewPolicy,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    ec.cfg.MaxDeliver,
		AckWait:       ec.cfg.AckWait,
		MaxAckPending: ec.cfg.MaxAckPending,
		ReplayPolicy:  jetstream.ReplayInstantPolicy,
	})
	if err != nil {
		return fmt.Errorf("create consumer: %w", err)
	}
	ec.consumer = consumer
	log.Info().Str("consumer", ec.cfg.ConsumerName).Str("stream", ec.stream.StreamName).Msg("JetStream consumer ready")
	return nil
}

// Start consumes until ctx is cancelled
func (ec *EventConsumer) Start(ctx context.Context) error {
	msgs := make(chan jetstream.Msg, 100)
	cc, err := ec.consumer.Consume(func(msg jetstream.Msg) {
		select {
		case msgs <- msg:
		case <-ctx.Done():
			msg.Nak()
		}
	})
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	defer cc.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("event consumer shutting down")
			return nil
		case msg := <-msgs:
			if err := ec.process(msg.Data()); err != nil {
				log.Error().Err(err).Str("subject", msg.Subject()).Msg("failed to relay event")
				// Malformed events will never parse; drop them instead of redelivering.
				if termErr := msg.Term(); termErr != nil {
					log.Error().Err(termErr).Msg("failed to terminate message")
				}
				continue
			}
			if err := msg.Ack(); err != nil {
				log.Error().Err(err).Msg("failed to ACK message")
			}
		}
	}
}

func (ec *EventConsumer) process(data []byte) error {
	var env events.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("unmarshal event envelope: %w", err)
	}
	me, err := FromEnvelope(env)
	if err != nil {
		return err
	}
	ec.hub.Broadcast(me)
	return nil
}
