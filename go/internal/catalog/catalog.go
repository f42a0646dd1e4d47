// Package catalog serves player lookups (name, position, valuation).
package catalog

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/mcdev12/transfermarket/go/internal/models"
)

// Catalog is the read side the market needs from the player catalog
type Catalog interface {
	GetPlayer(ctx context.Context, id uuid.UUID) (*models.Player, error)
	ListPlayers(ctx context.Context, ids []uuid.UUID) ([]models.Player, error)
}

// Store is a Catalog that can also register players (seeding, tests)
type Store interface {
	Catalog
	UpsertPlayer(ctx context.Context, p models.Player) (*models.Player, error)
}

// Memory keeps the catalog in a map
type Memory struct {
	mu      sync.RWMutex
	players map[uuid.UUID]models.Player
}

func NewMemory() *Memory {
	return &Memory{players: make(map[uuid.UUID]models.Player)}
}

func (m *Memory) UpsertPlayer(_ context.Context, p models.Player) (*models.Player, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	m.mu.Lock()
	m.players[p.ID] = p
	m.mu.Unlock()
	return &p, nil
}

func (m *Memory) GetPlayer(_ context.Context, id uuid.UUID) (*models.Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.players[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrPlayerNotFound, id)
	}
	return &p, nil
}

// ListPlayers returns the known players among ids, sorted by name. Unknown ids are skipped.
func (m *Memory) ListPlayers(_ context.Context, ids []uuid.UUID) ([]models.Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Player, 0, len(ids))
	for _, id := range ids {
		if p, ok := m.players[id]; ok {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
