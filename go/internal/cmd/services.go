package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mcdev12/transfermarket/go/internal/assets"
	"github.com/mcdev12/transfermarket/go/internal/auction"
	"github.com/mcdev12/transfermarket/go/internal/catalog"
	"github.com/mcdev12/transfermarket/go/internal/club"
	"github.com/mcdev12/transfermarket/go/internal/config"
	"github.com/mcdev12/transfermarket/go/internal/outbox"
	"github.com/mcdev12/transfermarket/go/internal/settlement"
	"github.com/rs/zerolog/log"
)

type Services struct {
	Ledger   club.Ledger
	Players  catalog.Store
	Outbox   outbox.Repository
	Events   *outbox.App
	Clubs    *club.App
	Auctions *auction.App
}

// setupServices wires storage into the apps. A nil database selects the
// in-memory stores.
// Database layer → Repository layer → App layer → Service layer
func setupServices(database *sql.DB, cfg config.Config) (*Services, error) {
	var (
		ledger   club.Ledger
		players  catalog.Store
		auctions auction.Store
		events   outbox.Repository
	)
	if database != nil {
		ledger = club.NewRepository(database, nil)
		players = catalog.NewRepository(database)
		auctions = auction.NewRepository(database)
		events = outbox.NewPostgresRepository(database)
	} else {
		ledger = club.NewMemoryLedger(nil)
		players = catalog.NewMemory()
		auctions = auction.NewMemoryStore()
		events = outbox.NewMemoryRepository()
	}

	cached, err := catalog.NewCached(players, cfg.Catalog.CacheSize)
	if err != nil {
		return nil, err
	}

	outboxApp := outbox.NewApp(events, nil)
	engine := settlement.NewEngine(ledger, nil)

	return &Services{
		Ledger:   ledger,
		Players:  players,
		Outbox:   events,
		Events:   outboxApp,
		Clubs:    club.NewApp(ledger, cached),
		Auctions: auction.NewApp(auctions, ledger, cached, engine, outboxApp, nil, cfg.Market),
	}, nil
}

// seed loads the bundled club snapshot; clubs already present are skipped.
func (s *Services) seed(ctx context.Context) error {
	snapshot, err := assets.Clubs()
	if err != nil {
		return err
	}
	res, err := club.Seed(ctx, s.Ledger, s.Players, snapshot)
	if err != nil {
		return fmt.Errorf("seed clubs: %w", err)
	}
	log.Info().Int("clubs", res.Clubs).Int("players", res.Players).Msg("market seeded")
	return nil
}
