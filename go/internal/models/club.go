package models

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// DefaultClubBudget is the opening budget of a newly registered club.
const DefaultClubBudget int64 = 500_000_000

// Club represents a football club with a budget and a roster of players
type Club struct {
	ID          uuid.UUID          `json:"id"`
	Name        string             `json:"name"`
	League      string             `json:"league"`
	Country     string             `json:"country"`
	Budget      int64              `json:"budget"`
	Roster      []uuid.UUID        `json:"roster"`
	TransferLog []TransferLogEntry `json:"transfer_log"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// TransferDirection tells whether a player joined or left a club
type TransferDirection string

const (
	TransferDirectionIn  TransferDirection = "IN"
	TransferDirectionOut TransferDirection = "OUT"
)

// TransferLogEntry is one row of a club's append-only transfer history
type TransferLogEntry struct {
	PlayerID  uuid.UUID         `json:"player_id"`
	Direction TransferDirection `json:"direction"`
	Amount    int64             `json:"amount"`
	Timestamp time.Time         `json:"timestamp"`
}

// ClubStats summarises a club's transfer activity
type ClubStats struct {
	ClubID      uuid.UUID `json:"club_id"`
	Budget      int64     `json:"budget"`
	RosterSize  int       `json:"roster_size"`
	PlayersIn   int       `json:"players_in"`
	PlayersOut  int       `json:"players_out"`
	TotalSpent  int64     `json:"total_spent"`
	TotalEarned int64     `json:"total_earned"`
	NetSpend    int64     `json:"net_spend"`
}

// HasPlayer reports whether playerID is on the club's roster.
func (c *Club) HasPlayer(playerID uuid.UUID) bool {
	return slices.Contains(c.Roster, playerID)
}

// Clone returns a deep copy so callers never share roster or log slices.
func (c *Club) Clone() *Club {
	cp := *c
	cp.Roster = slices.Clone(c.Roster)
	cp.TransferLog = slices.Clone(c.TransferLog)
	return &cp
}

// Stats derives spending totals from the transfer log.
func (c *Club) Stats() ClubStats {
	stats := ClubStats{
		ClubID:     c.ID,
		Budget:     c.Budget,
		RosterSize: len(c.Roster),
	}
	for _, entry := range c.TransferLog {
		switch entry.Direction {
		case TransferDirectionIn:
			stats.PlayersIn++
			stats.TotalSpent += entry.Amount
		case TransferDirectionOut:
			stats.PlayersOut++
			stats.TotalEarned += entry.Amount
		}
	}
	stats.NetSpend = stats.TotalSpent - stats.TotalEarned
	return stats
}
