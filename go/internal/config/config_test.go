package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Server, cfg.Server)
	assert.Equal(t, 30*time.Second, cfg.AIBidder.TickInterval)
	assert.Equal(t, 0.20, cfg.AIBidder.BidProbability)
	assert.Equal(t, 24*time.Hour, cfg.Market.DefaultDuration)
}

func TestLoadYAMLOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "9090"
  store: postgres
market:
  default_duration: 2h
sweeper:
  workers: 2
  settlement_grace: 90s
ai_bidder:
  enabled: true
  clubs: [Arsenal, Chelsea]
nats:
  enabled: true
  jetstream:
    url: nats://nats:4222
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, StorePostgres, cfg.Server.Store)
	assert.Equal(t, 2*time.Hour, cfg.Market.DefaultDuration)
	assert.Equal(t, 5, cfg.Market.MaxRetries, "unset keys keep their default")
	assert.Equal(t, 2, cfg.Sweeper.Workers)
	assert.Equal(t, 90*time.Second, cfg.Sweeper.SettlementGrace)
	assert.True(t, cfg.AIBidder.Enabled)
	assert.Equal(t, []string{"Arsenal", "Chelsea"}, cfg.AIBidder.Clubs)
	assert.Equal(t, "nats://nats:4222", cfg.NATS.JetStream.URL)
	assert.Equal(t, "MARKET_EVENTS", cfg.NATS.JetStream.StreamName)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "7070")
	t.Setenv("MARKET_STORE", "POSTGRES")
	t.Setenv("NATS_URL", "nats://elsewhere:4222")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("AI_BIDDER_ENABLED", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, StorePostgres, cfg.Server.Store)
	assert.True(t, cfg.NATS.Enabled)
	assert.Equal(t, "nats://elsewhere:4222", cfg.NATS.JetStream.URL)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.True(t, cfg.AIBidder.Enabled)
}

func TestValidate(t *testing.T) {
	t.Setenv("MARKET_STORE", "mongo")
	_, err := Load("")
	assert.Error(t, err)

	t.Setenv("MARKET_STORE", "")
	t.Setenv("AI_BIDDER_ENABLED", "maybe")
	_, err = Load("")
	assert.Error(t, err)

	cfg := Default()
	cfg.AIBidder.BidProbability = 1.5
	assert.Error(t, cfg.Validate())
}
