package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mcdev12/transfermarket/go/internal/aibidder"
	"github.com/mcdev12/transfermarket/go/internal/config"
	"github.com/mcdev12/transfermarket/go/internal/dbconfig"
	"github.com/mcdev12/transfermarket/go/internal/dbschema"
	"github.com/mcdev12/transfermarket/go/internal/gateway"
	"github.com/mcdev12/transfermarket/go/internal/lease"
	"github.com/mcdev12/transfermarket/go/internal/outbox"
	"github.com/mcdev12/transfermarket/go/internal/sweeper"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var withBidder bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the market server with its sweeper, outbox relay and websocket gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			if withBidder {
				cfg.AIBidder.Enabled = true
			}
			return runServe(cmd.Context(), cfg)
		},
	}
	cmd.Flags().BoolVar(&withBidder, "ai-bidder", false, "run the AI bidding agents in-process")
	return cmd
}

func runServe(parent context.Context, cfg config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		database *sql.DB
		dbCfg    dbconfig.Config
	)
	if cfg.Server.Store == config.StorePostgres {
		dbCfg = dbconfig.NewConfigFromEnv()
		db, err := setupDatabase(ctx, dbCfg)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := dbschema.Apply(ctx, db); err != nil {
			return err
		}
		database = db
	}

	services, err := setupServices(database, cfg)
	if err != nil {
		return err
	}
	if cfg.Server.Seed {
		if err := services.seed(ctx); err != nil {
			return err
		}
	}

	hub := gateway.NewHub(cfg.Gateway)

	var publishers outbox.Fanout
	if !cfg.NATS.Relay {
		publishers = append(publishers, hub)
	}
	publishers = append(publishers, outbox.LogPublisher{})

	var nc *nats.Conn
	if cfg.NATS.Enabled {
		nc, err = outbox.Connect(cfg.NATS.JetStream)
		if err != nil {
			return err
		}
		defer nc.Drain()
		js, err := outbox.NewJetStreamPublisher(ctx, nc, cfg.NATS.JetStream)
		if err != nil {
			return err
		}
		publishers = append(publishers, js)
	}

	worker := outbox.NewWorker(services.Outbox, publishers, cfg.Outbox, nil)
	services.Events.OnInsert(worker.Wake)

	locker, closeLocker, err := setupLocker(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer closeLocker()

	sweep := sweeper.New(services.Auctions, locker, nil, cfg.Sweeper)
	services.Auctions.SetWaker(sweep.Wake)

	health := outbox.NewHealthChecker(worker, services.Outbox, nc, 0)
	srv := setupServer(cfg, services, hub, health)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Start(gctx)
		return nil
	})
	if err := worker.Start(gctx); err != nil {
		return err
	}
	g.Go(func() error { return sweep.Run(gctx) })

	if database != nil {
		listener, err := outbox.NewListener(worker, outbox.ListenerConfig{
			DatabaseURL:   dbCfg.DSN(),
			NotifyChannel: dbschema.OutboxChannel,
		})
		if err != nil {
			return err
		}
		g.Go(func() error { return listener.Run(gctx) })
	}

	if cfg.NATS.Enabled && cfg.NATS.Relay {
		consumer, err := gateway.NewEventConsumer(gctx, hub, nc, cfg.NATS.JetStream, cfg.NATS.Consumer)
		if err != nil {
			return err
		}
		g.Go(func() error { return consumer.Start(gctx) })
	}

	if cfg.AIBidder.Enabled {
		agents, err := aibidder.ResolveAgents(ctx, services.Clubs, cfg.AIBidder.Clubs)
		if err != nil {
			return fmt.Errorf("resolve AI clubs: %w", err)
		}
		bidder := aibidder.NewBidder(services.Auctions, services.Clubs, agents,
			aibidder.NewRandomStrategy(cfg.AIBidder, 0), locker, nil, cfg.AIBidder)
		g.Go(func() error { return bidder.Run(gctx) })
	}

	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Str("store", cfg.Server.Store).Msg("market server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := worker.Stop(); err != nil {
			log.Warn().Err(err).Msg("outbox worker stop")
		}
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// setupLocker picks Redis leases when an address is configured, so several
// replicas can share one sweeper and one AI bidder.
func setupLocker(ctx context.Context, cfg config.RedisConfig) (lease.Locker, func(), error) {
	if cfg.Addr == "" {
		return lease.NewLocalLocker(), func() {}, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	log.Info().Str("addr", cfg.Addr).Msg("using redis leases")
	return lease.NewRedisLocker(client, cfg.LeasePrefix), func() { _ = client.Close() }, nil
}
