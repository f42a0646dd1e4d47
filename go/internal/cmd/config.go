package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mcdev12/transfermarket/go/clients"
	"github.com/mcdev12/transfermarket/go/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type rootOptions struct {
	configPath string
	logLevel   string
	jsonLogs   bool
	serverURL  string

	cfg config.Config
}

// load reads .env, config.yaml and sets up the global logger.
func (o *rootOptions) load() error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: Could not load .env file: %v\n", err)
	}

	level, err := zerolog.ParseLevel(strings.ToLower(o.logLevel))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", o.logLevel, err)
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano
	if !o.jsonLogs {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	if o.serverURL != "" {
		cfg.Server.URL = o.serverURL
	}
	o.cfg = cfg
	return nil
}

func (o *rootOptions) client() *clients.MarketClient {
	return clients.NewMarketClient(clients.NewBaseClient(o.cfg.Server.URL))
}
