package catalog

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/mcdev12/transfermarket/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingCatalog struct {
	Catalog
	gets atomic.Int32
}

func (c *countingCatalog) GetPlayer(ctx context.Context, id uuid.UUID) (*models.Player, error) {
	c.gets.Add(1)
	return c.Catalog.GetPlayer(ctx, id)
}

func TestMemoryCatalog(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	saka, err := mem.UpsertPlayer(ctx, models.Player{Name: "Bukayo Saka", Valuation: 150_000_000})
	require.NoError(t, err)
	odegaard, err := mem.UpsertPlayer(ctx, models.Player{Name: "Martin Odegaard", Valuation: 90_000_000})
	require.NoError(t, err)

	got, err := mem.GetPlayer(ctx, saka.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bukayo Saka", got.Name)

	_, err = mem.GetPlayer(ctx, uuid.New())
	assert.ErrorIs(t, err, models.ErrPlayerNotFound)

	list, err := mem.ListPlayers(ctx, []uuid.UUID{odegaard.ID, uuid.New(), saka.ID})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Bukayo Saka", list[0].Name)
}

func TestCachedServesRepeatReadsFromLRU(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	p, err := mem.UpsertPlayer(ctx, models.Player{Name: "Rodri", Valuation: 110_000_000})
	require.NoError(t, err)

	backing := &countingCatalog{Catalog: mem}
	cached, err := NewCached(backing, 2)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		got, err := cached.GetPlayer(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(110_000_000), got.Valuation)
	}
	assert.Equal(t, int32(1), backing.gets.Load())

	cached.Forget(p.ID)
	_, err = cached.GetPlayer(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int32(2), backing.gets.Load())
}

func TestCachedDoesNotCacheMisses(t *testing.T) {
	cached, err := NewCached(NewMemory(), 0)
	require.NoError(t, err)

	_, err = cached.GetPlayer(context.Background(), uuid.New())
	assert.ErrorIs(t, err, models.ErrPlayerNotFound)
	assert.Zero(t, cached.Len())
}

func TestCachedEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	cached, err := NewCached(mem, 2)
	require.NoError(t, err)

	for _, name := range []string{"Pedri", "Gavi", "Yamal"} {
		p, err := mem.UpsertPlayer(ctx, models.Player{Name: name})
		require.NoError(t, err)
		_, err = cached.GetPlayer(ctx, p.ID)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, cached.Len())
}
