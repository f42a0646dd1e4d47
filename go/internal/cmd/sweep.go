package main

import (
	"fmt"

	"github.com/mcdev12/transfermarket/go/internal/config"
	"github.com/mcdev12/transfermarket/go/internal/dbconfig"
	"github.com/mcdev12/transfermarket/go/internal/sweeper"
	"github.com/spf13/cobra"
)

func newSweepCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one expiry pass directly against Postgres, e.g. from cron",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if opts.cfg.Server.Store != config.StorePostgres {
				return fmt.Errorf("sweep needs server.store=%s; the memory store lives inside a running server", config.StorePostgres)
			}
			database, err := setupDatabase(ctx, dbconfig.NewConfigFromEnv())
			if err != nil {
				return err
			}
			defer database.Close()

			services, err := setupServices(database, opts.cfg)
			if err != nil {
				return err
			}
			locker, closeLocker, err := setupLocker(ctx, opts.cfg.Redis)
			if err != nil {
				return err
			}
			defer closeLocker()

			report, err := sweeper.New(services.Auctions, locker, nil, opts.cfg.Sweeper).SweepOnce(ctx)
			if err != nil {
				return err
			}
			if report.Skipped {
				printWarn("another replica holds the sweeper lease")
				return nil
			}
			printSuccess("expired %d  resumed %d  failed %d", report.Expired, report.Resumed, report.Failed)
			return nil
		},
	}
}
