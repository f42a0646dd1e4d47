package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/transfermarket/go/internal/assets"
	"github.com/mcdev12/transfermarket/go/internal/dbconfig"
	"github.com/mcdev12/transfermarket/go/internal/models"
)

type counts struct {
	total, inserted, skipped, errs int
}

func (c *counts) record(tag int64, err error) {
	c.total++
	switch {
	case err != nil:
		c.errs++
	case tag == 1:
		c.inserted++
	default:
		c.skipped++
	}
}

func main() {
	ctx := context.Background()

	// 1) Load the bundled snapshot
	clubs, err := assets.Clubs()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load clubs: %v\n", err)
		os.Exit(1)
	}

	// 2) Connect to DB
	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect error: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	// 3) Seed each club with its squad in one transaction, so a club never
	// appears without its players.
	var clubCounts, playerCounts, rosterCounts counts
	for _, sc := range clubs {
		err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			tag, err := tx.Exec(ctx, `
				INSERT INTO clubs (id, name, league, country, budget)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (id) DO NOTHING
			`, sc.ID, sc.Name, sc.League, sc.Country, models.DefaultClubBudget)
			if err != nil {
				return fmt.Errorf("club %q: %w", sc.Name, err)
			}
			clubCounts.record(tag.RowsAffected(), nil)

			for _, sp := range sc.Players {
				tag, err := tx.Exec(ctx, `
					INSERT INTO players (id, name, position, nationality, valuation)
					VALUES ($1, $2, $3, $4, $5)
					ON CONFLICT (id) DO NOTHING
				`, sp.ID, sp.Name, sp.Position, sp.Nationality, sp.Valuation)
				if err != nil {
					return fmt.Errorf("player %q: %w", sp.Name, err)
				}
				playerCounts.record(tag.RowsAffected(), nil)

				// A player already sold elsewhere keeps their current club.
				tag, err = tx.Exec(ctx, `
					INSERT INTO club_players (club_id, player_id)
					VALUES ($1, $2)
					ON CONFLICT DO NOTHING
				`, sc.ID, sp.ID)
				if err != nil {
					return fmt.Errorf("roster %q/%q: %w", sc.Name, sp.Name, err)
				}
				rosterCounts.record(tag.RowsAffected(), nil)
			}
			return nil
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "seed %s: %v\n", sc.Name, err)
			clubCounts.record(0, err)
		}
	}

	for _, row := range []struct {
		name string
		c    counts
	}{
		{"Clubs", clubCounts},
		{"Players", playerCounts},
		{"Rosters", rosterCounts},
	} {
		fmt.Printf("%s seed: total=%d inserted=%d skipped=%d errors=%d\n",
			row.name, row.c.total, row.c.inserted, row.c.skipped, row.c.errs)
	}
}
