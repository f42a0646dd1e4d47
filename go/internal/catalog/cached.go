package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	"github.com/mcdev12/transfermarket/go/internal/models"
)

// DefaultCacheSize bounds Cached when no size is given.
const DefaultCacheSize = 1024

// Cached fronts a Catalog with an LRU of player records.
// Auction creation and listing reads hit the same handful of players repeatedly.
type Cached struct {
	next  Catalog
	cache *lru.Cache
}

func NewCached(next Catalog, size int) (*Cached, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("create player cache: %w", err)
	}
	return &Cached{next: next, cache: cache}, nil
}

func (c *Cached) GetPlayer(ctx context.Context, id uuid.UUID) (*models.Player, error) {
	if v, ok := c.cache.Get(id); ok {
		p := v.(models.Player)
		return &p, nil
	}
	p, err := c.next.GetPlayer(ctx, id)
	if err != nil {
		return nil, err
	}
	c.cache.Add(id, *p)
	return p, nil
}

// ListPlayers always goes to the backing catalog and refreshes the cache with what it finds.
func (c *Cached) ListPlayers(ctx context.Context, ids []uuid.UUID) ([]models.Player, error) {
	players, err := c.next.ListPlayers(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, p := range players {
		c.cache.Add(p.ID, p)
	}
	return players, nil
}

// Forget drops a cached player, e.g. after its valuation changed.
func (c *Cached) Forget(id uuid.UUID) {
	c.cache.Remove(id)
}

// Len reports how many players are cached.
func (c *Cached) Len() int {
	return c.cache.Len()
}
