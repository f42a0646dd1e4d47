package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

type ListenerConfig struct {
	DatabaseURL   string        // Postgres DSN for LISTEN/NOTIFY
	NotifyChannel string        // Channel name to LISTEN on
	PingInterval  time.Duration // Keeps idle connections from being dropped
}

// Listener turns pg_notify on outbox inserts into Worker wake-ups,
// so events from any replica are relayed without waiting for the poll.
type Listener struct {
	listener *pq.Listener
	worker   *Worker
	cfg      ListenerConfig
}

func NewListener(worker *Worker, cfg ListenerConfig) (*Listener, error) {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 90 * time.Second
	}
	l := pq.NewListener(
		cfg.DatabaseURL,
		10*time.Second,
		time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Error().Err(err).Msg("listener event")
			}
		},
	)
	if err := l.Listen(cfg.NotifyChannel); err != nil {
		_ = l.Close()
		return nil, fmt.Errorf("failed to listen to channel: %w", err)
	}

	log.Info().Str("channel", cfg.NotifyChannel).Msg("listening for notifications")
	return &Listener{listener: l, worker: worker, cfg: cfg}, nil
}

// Run blocks until ctx is cancelled.
func (l *Listener) Run(ctx context.Context) error {
	pingTicker := time.NewTicker(l.cfg.PingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("listener shutting down")
			return l.listener.Close()
		case note := <-l.listener.Notify:
			// A nil notification means the connection was re-established;
			// anything missed meanwhile is still unsent, so drain either way.
			if note != nil {
				log.Debug().Str("event_id", note.Extra).Msg("outbox notification")
			}
			l.worker.Wake()
		case <-pingTicker.C:
			if err := l.listener.Ping(); err != nil {
				log.Error().Err(err).Msg("failed to ping listener")
			}
		}
	}
}
