package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/mcdev12/transfermarket/go/internal/sqlutil"
	"github.com/sqlc-dev/pqtype"
)

// Repository defines what the outbox needs from storage
type Repository interface {
	Insert(ctx context.Context, event Event) error
	FetchUnsent(ctx context.Context, limit int) ([]Event, error)
	MarkSent(ctx context.Context, ids []uuid.UUID, at time.Time) error
	CountUnsent(ctx context.Context) (int, error)
}

// MemoryRepository keeps events in insertion order
type MemoryRepository struct {
	mu     sync.Mutex
	events []Event
	index  map[uuid.UUID]int
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{index: make(map[uuid.UUID]int)}
}

func (r *MemoryRepository) Insert(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.index[event.ID]; ok {
		return fmt.Errorf("outbox event %s already exists", event.ID)
	}
	r.index[event.ID] = len(r.events)
	r.events = append(r.events, event)
	return nil
}

func (r *MemoryRepository) FetchUnsent(_ context.Context, limit int) ([]Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.SentAt != nil {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *MemoryRepository) MarkSent(_ context.Context, ids []uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		if i, ok := r.index[id]; ok {
			sentAt := at
			r.events[i].SentAt = &sentAt
		}
	}
	return nil
}

func (r *MemoryRepository) CountUnsent(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.SentAt == nil {
			n++
		}
	}
	return n, nil
}

// All returns a copy of every stored event, oldest first.
func (r *MemoryRepository) All() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// PostgresRepository stores events in outbox_events
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Insert(ctx context.Context, event Event) error {
	payload := pqtype.NullRawMessage{RawMessage: event.Payload, Valid: len(event.Payload) > 0}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO outbox_events (id, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		event.ID, event.AggregateID, event.EventType, payload, event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert %s outbox event: %w", event.EventType, err)
	}
	return nil
}

func (r *PostgresRepository) FetchUnsent(ctx context.Context, limit int) ([]Event, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, aggregate_id, event_type, payload, created_at
		FROM outbox_events
		WHERE sent_at IS NULL
		ORDER BY created_at, id
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unsent outbox events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var payload pqtype.NullRawMessage
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.EventType, &payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		if payload.Valid {
			e.Payload = json.RawMessage(payload.RawMessage)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) MarkSent(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE outbox_events SET sent_at = $2 WHERE id = ANY($1::uuid[]) AND sent_at IS NULL`,
		pq.Array(sqlutil.UUIDStrings(ids)), at)
	if err != nil {
		return fmt.Errorf("failed to mark outbox events as sent: %w", err)
	}
	return nil
}

func (r *PostgresRepository) CountUnsent(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM outbox_events WHERE sent_at IS NULL`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count unsent outbox events: %w", err)
	}
	return n, nil
}
