// Package config loads config.yaml and applies environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/mcdev12/transfermarket/go/internal/aibidder"
	"github.com/mcdev12/transfermarket/go/internal/auction"
	"github.com/mcdev12/transfermarket/go/internal/gateway"
	"github.com/mcdev12/transfermarket/go/internal/outbox"
	"github.com/mcdev12/transfermarket/go/internal/sweeper"
	"gopkg.in/yaml.v3"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

type Config struct {
	Server   ServerConfig    `yaml:"server"`
	Market   auction.Config  `yaml:"market"`
	Sweeper  sweeper.Config  `yaml:"sweeper"`
	AIBidder aibidder.Config `yaml:"ai_bidder"`
	Outbox   outbox.Config   `yaml:"outbox"`
	Gateway  gateway.Config  `yaml:"gateway"`
	NATS     NATSConfig      `yaml:"nats"`
	Redis    RedisConfig     `yaml:"redis"`
	Catalog  CatalogConfig   `yaml:"catalog"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
	// Store selects the persistence backend: memory or postgres.
	Store string `yaml:"store"`
	// Seed loads the bundled club snapshot on start when the store is empty.
	Seed           bool     `yaml:"seed"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	// URL is where CLI subcommands reach a running server.
	URL string `yaml:"url"`
}

type NATSConfig struct {
	Enabled   bool                   `yaml:"enabled"`
	JetStream outbox.JetStreamConfig `yaml:"jetstream"`
	// Relay consumes the stream into the local websocket hub. Use it on
	// replicas whose outbox worker is not publishing to the hub directly.
	Relay    bool                   `yaml:"relay"`
	Consumer gateway.ConsumerConfig `yaml:"consumer"`
}

type RedisConfig struct {
	Addr        string `yaml:"addr"`
	Password    string `yaml:"password"`
	DB          int    `yaml:"db"`
	LeasePrefix string `yaml:"lease_prefix"`
}

type CatalogConfig struct {
	CacheSize int `yaml:"cache_size"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:           "8080",
			Store:          StoreMemory,
			Seed:           true,
			AllowedOrigins: []string{"*"},
			URL:            "http://localhost:8080",
		},
		Market:   auction.DefaultConfig(),
		Sweeper:  sweeper.DefaultConfig(),
		AIBidder: aibidder.DefaultConfig(),
		Outbox:   outbox.DefaultConfig(),
		Gateway:  gateway.DefaultConfig(),
		NATS: NATSConfig{
			JetStream: outbox.DefaultJetStreamConfig(),
			Consumer:  gateway.DefaultConsumerConfig(),
		},
		Redis:   RedisConfig{LeasePrefix: "transfermarket:lease:"},
		Catalog: CatalogConfig{CacheSize: 1024},
	}
}

// Load layers the YAML file at path over the defaults, then the environment.
// A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := getenv("MARKET_STORE"); v != "" {
		c.Server.Store = strings.ToLower(v)
	}
	if v := getenv("MARKET_SERVER_URL"); v != "" {
		c.Server.URL = v
	}
	if v := getenv("NATS_URL"); v != "" {
		c.NATS.Enabled = true
		c.NATS.JetStream.URL = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := getenv("AI_BIDDER_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("AI_BIDDER_ENABLED: %w", err)
		}
		c.AIBidder.Enabled = enabled
	}
	return nil
}

func (c Config) Validate() error {
	switch c.Server.Store {
	case StoreMemory, StorePostgres:
	default:
		return fmt.Errorf("unknown store %q, want %s or %s", c.Server.Store, StoreMemory, StorePostgres)
	}
	if c.AIBidder.BidProbability < 0 || c.AIBidder.BidProbability > 1 ||
		c.AIBidder.BuyNowProbability < 0 || c.AIBidder.BuyNowProbability > 1 {
		return fmt.Errorf("ai_bidder probabilities must be within [0, 1]")
	}
	if c.Market.BuyNowMarkupPercent < 0 {
		return fmt.Errorf("market.buy_now_markup_percent cannot be negative")
	}
	return nil
}
