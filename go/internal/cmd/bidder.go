package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mcdev12/transfermarket/go/internal/aibidder"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newBidderCmd(opts *rootOptions) *cobra.Command {
	var once bool
	var seed int64
	var clubs []string
	cmd := &cobra.Command{
		Use:   "bidder",
		Short: "Run the AI bidding agents against a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg := opts.cfg.AIBidder
			if len(clubs) > 0 {
				cfg.Clubs = clubs
			}
			client := opts.client()
			if _, err := client.Health(ctx); err != nil {
				return fmt.Errorf("market server at %s is not reachable: %w", opts.cfg.Server.URL, err)
			}

			agents, err := aibidder.ResolveAgents(ctx, client, cfg.Clubs)
			if err != nil {
				return err
			}
			bidder := aibidder.NewBidder(client, client, agents, aibidder.NewRandomStrategy(cfg, seed), nil, nil, cfg)

			if once {
				return tickOnce(ctx, bidder)
			}
			log.Info().Str("server", opts.cfg.Server.URL).Int("agents", len(agents)).Msg("starting AI bidder")
			return bidder.Run(ctx)
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "run a single tick and exit")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed, 0 picks one from the clock")
	cmd.Flags().StringSliceVar(&clubs, "clubs", nil, "club names to simulate (default: ai_bidder.clubs, or every club)")
	return cmd
}

func tickOnce(ctx context.Context, bidder *aibidder.Bidder) error {
	report, err := bidder.Tick(ctx)
	if err != nil {
		return err
	}
	printSuccess("auctions %d  bids %d  buy-nows %d  rejected %d",
		report.Auctions, report.Bids, report.BuyNows, report.Rejections)
	return nil
}
