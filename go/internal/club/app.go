package club

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/mcdev12/transfermarket/go/internal/models"
	"github.com/rs/zerolog/log"
)

// PlayerCatalog defines what the app layer needs from the player catalog
type PlayerCatalog interface {
	GetPlayer(ctx context.Context, id uuid.UUID) (*models.Player, error)
	ListPlayers(ctx context.Context, ids []uuid.UUID) ([]models.Player, error)
}

// RegisterClubRequest describes a new club
type RegisterClubRequest struct {
	ID      uuid.UUID
	Name    string
	League  string
	Country string
	Budget  int64
}

// App handles club queries and registration
type App struct {
	ledger  Ledger
	players PlayerCatalog
}

// NewApp creates a new club App
func NewApp(ledger Ledger, players PlayerCatalog) *App {
	return &App{ledger: ledger, players: players}
}

// Ledger exposes the underlying ledger for settlement wiring.
func (a *App) Ledger() Ledger {
	return a.ledger
}

// RegisterClub creates a club, defaulting the budget to models.DefaultClubBudget
func (a *App) RegisterClub(ctx context.Context, req RegisterClubRequest) (*models.Club, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, fmt.Errorf("validation failed: club name is required")
	}
	if req.Budget == 0 {
		req.Budget = models.DefaultClubBudget
	}
	c, err := a.ledger.CreateClub(ctx, models.Club{
		ID:      req.ID,
		Name:    req.Name,
		League:  req.League,
		Country: req.Country,
		Budget:  req.Budget,
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("club_id", c.ID.String()).Str("name", c.Name).Int64("budget", c.Budget).Msg("club registered")
	return c, nil
}

// AssignPlayer places a catalog player on a club's roster
func (a *App) AssignPlayer(ctx context.Context, clubID, playerID uuid.UUID) error {
	if _, err := a.players.GetPlayer(ctx, playerID); err != nil {
		return err
	}
	return a.ledger.AssignPlayer(ctx, clubID, playerID)
}

// GetClub retrieves a club by ID
func (a *App) GetClub(ctx context.Context, id uuid.UUID) (*models.Club, error) {
	return a.ledger.GetClub(ctx, id)
}

// GetBudget returns a club's live budget
func (a *App) GetBudget(ctx context.Context, id uuid.UUID) (int64, error) {
	c, err := a.ledger.GetClub(ctx, id)
	if err != nil {
		return 0, err
	}
	return c.Budget, nil
}

// ListClubs returns every club sorted by name
func (a *App) ListClubs(ctx context.Context) ([]models.Club, error) {
	clubs, err := a.ledger.ListClubs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list clubs: %w", err)
	}
	sort.Slice(clubs, func(i, j int) bool { return clubs[i].Name < clubs[j].Name })
	return clubs, nil
}

// FindClubByName resolves a club by exact name
func (a *App) FindClubByName(ctx context.Context, name string) (*models.Club, error) {
	clubs, err := a.ledger.ListClubs(ctx)
	if err != nil {
		return nil, err
	}
	for i := range clubs {
		if clubs[i].Name == name {
			return &clubs[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q", models.ErrClubNotFound, name)
}

// ListClubPlayers returns the catalog entries of a club's roster
func (a *App) ListClubPlayers(ctx context.Context, clubID uuid.UUID) ([]models.Player, error) {
	c, err := a.ledger.GetClub(ctx, clubID)
	if err != nil {
		return nil, err
	}
	return a.players.ListPlayers(ctx, c.Roster)
}

// GetClubStats summarises a club's transfer activity
func (a *App) GetClubStats(ctx context.Context, clubID uuid.UUID) (*models.ClubStats, error) {
	c, err := a.ledger.GetClub(ctx, clubID)
	if err != nil {
		return nil, err
	}
	stats := c.Stats()
	return &stats, nil
}

// ListTransfers returns completed transfers, newest first
func (a *App) ListTransfers(ctx context.Context, filter TransferFilter) ([]models.Transfer, error) {
	if filter.ClubID != nil {
		if _, err := a.ledger.GetClub(ctx, *filter.ClubID); err != nil {
			return nil, err
		}
	}
	return a.ledger.ListTransfers(ctx, filter)
}
