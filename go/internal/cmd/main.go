package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:          "transfermarket",
		Short:        "Football transfer market auction server and tools",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load()
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "config.yaml", "path to the YAML config file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "zerolog level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&opts.jsonLogs, "json-logs", false, "emit JSON logs instead of console output")
	root.PersistentFlags().StringVar(&opts.serverURL, "server", "", "market server URL for client commands (overrides server.url)")

	root.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newSweepCmd(opts),
		newBidderCmd(opts),
		newAuctionsCmd(opts),
		newClubsCmd(opts),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
