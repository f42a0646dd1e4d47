package club

import (
	"context"
	"errors"
	"fmt"

	"github.com/mcdev12/transfermarket/go/internal/assets"
	"github.com/mcdev12/transfermarket/go/internal/models"
)

// PlayerWriter registers catalog entries during seeding
type PlayerWriter interface {
	UpsertPlayer(ctx context.Context, p models.Player) (*models.Player, error)
}

// SeedResult counts what Seed created
type SeedResult struct {
	Clubs   int
	Players int
}

// Seed loads the snapshot into a ledger and catalog. Clubs that already exist are left alone.
func Seed(ctx context.Context, ledger Ledger, players PlayerWriter, clubs []assets.SeedClub) (SeedResult, error) {
	var res SeedResult
	for _, sc := range clubs {
		if _, err := ledger.GetClub(ctx, sc.ID); err == nil {
			continue
		} else if !errors.Is(err, models.ErrClubNotFound) {
			return res, err
		}

		if _, err := ledger.CreateClub(ctx, models.Club{
			ID:      sc.ID,
			Name:    sc.Name,
			League:  sc.League,
			Country: sc.Country,
			Budget:  models.DefaultClubBudget,
		}); err != nil {
			return res, err
		}
		res.Clubs++

		for _, sp := range sc.Players {
			if _, err := players.UpsertPlayer(ctx, models.Player{
				ID:          sp.ID,
				Name:        sp.Name,
				Position:    sp.Position,
				Nationality: sp.Nationality,
				Valuation:   sp.Valuation,
			}); err != nil {
				return res, fmt.Errorf("seed player %q: %w", sp.Name, err)
			}
			if err := ledger.AssignPlayer(ctx, sc.ID, sp.ID); err != nil {
				return res, fmt.Errorf("assign %q to %q: %w", sp.Name, sc.Name, err)
			}
			res.Players++
		}
	}
	return res, nil
}
