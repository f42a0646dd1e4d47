package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newClubsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "clubs",
		Aliases: []string{"club"},
		Short:   "Inspect club budgets, squads and transfers",
	}
	cmd.AddCommand(
		newClubsListCmd(opts),
		newClubsShowCmd(opts),
		newClubsTransfersCmd(opts),
	)
	return cmd
}

func newClubsListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List clubs and their budgets",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			list, err := opts.client().ListClubs(ctx)
			if err != nil {
				return err
			}
			tw := newTable(os.Stdout)
			fmt.Fprintln(tw, "ID\tCLUB\tLEAGUE\tBUDGET\tSQUAD")
			for _, c := range list {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", shortID(c.ID), c.Name, c.League, money(c.Budget), len(c.Roster))
			}
			return tw.Flush()
		},
	}
}

func newClubsShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <club>",
		Short: "Show a club's budget, transfer stats and squad",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := opts.client()

			c, err := client.FindClub(ctx, args[0])
			if err != nil {
				return err
			}
			stats, err := client.GetClubStats(ctx, c.ID)
			if err != nil {
				return err
			}
			players, err := client.ListClubPlayers(ctx, c.ID)
			if err != nil {
				return err
			}

			accent.Printf("%s  (%s, %s)\n", c.Name, c.League, c.Country)
			fmt.Printf("  budget:    %s\n", money(stats.Budget))
			fmt.Printf("  in/out:    %d / %d\n", stats.PlayersIn, stats.PlayersOut)
			fmt.Printf("  spent:     %s  earned: %s  net: %s\n", money(stats.TotalSpent), money(stats.TotalEarned), money(stats.NetSpend))

			tw := newTable(os.Stdout)
			fmt.Fprintln(tw, "\nPLAYER\tPOS\tNATIONALITY\tVALUE")
			for _, p := range players {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.Name, p.Position, p.Nationality, money(p.Valuation))
			}
			return tw.Flush()
		},
	}
}

func newClubsTransfersCmd(opts *rootOptions) *cobra.Command {
	var club string
	var limit int
	cmd := &cobra.Command{
		Use:   "transfers",
		Short: "List completed transfers, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := opts.client()

			var clubID *uuid.UUID
			if club != "" {
				c, err := client.FindClub(ctx, club)
				if err != nil {
					return err
				}
				clubID = &c.ID
			}
			transfers, err := client.ListTransfers(ctx, clubID, limit)
			if err != nil {
				return err
			}
			if len(transfers) == 0 {
				printWarn("No transfers yet.")
				return nil
			}

			names := clubNames(ctx, client)
			tw := newTable(os.Stdout)
			fmt.Fprintln(tw, "SEQ\tPLAYER\tFROM\tTO\tFEE\tWHEN")
			for _, t := range transfers {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", t.Seq, shortID(t.PlayerID),
					nameOr(names, t.FromClubID), nameOr(names, t.ToClubID), money(t.Amount),
					t.CreatedAt.Local().Format(time.DateTime))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&club, "club", "", "only transfers involving this club")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum transfers to show")
	return cmd
}
