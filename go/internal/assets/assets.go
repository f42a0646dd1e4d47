// Package assets embeds the club and player snapshot used to seed a market.
package assets

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

//go:embed clubs.json
var clubsJSON []byte

var (
	clubNamespace   = uuid.MustParse("6f1c1b0e-4a7e-4c53-9a6f-3d1d8a0f2c11")
	playerNamespace = uuid.MustParse("0b8e4f3a-2d5c-4e9b-8f7a-1c6d2e3f4a5b")
)

// SeedPlayer is a catalog entry bundled with the club that owns it at start-up
type SeedPlayer struct {
	ID          uuid.UUID `json:"-"`
	Name        string    `json:"name"`
	Position    string    `json:"position"`
	Nationality string    `json:"nationality"`
	Valuation   int64     `json:"valuation"`
}

// SeedClub is one club of the snapshot
type SeedClub struct {
	ID      uuid.UUID    `json:"-"`
	Name    string       `json:"name"`
	League  string       `json:"league"`
	Country string       `json:"country"`
	Players []SeedPlayer `json:"players"`
}

// ClubID derives the stable id of a club from its name.
func ClubID(name string) uuid.UUID {
	return uuid.NewSHA1(clubNamespace, []byte(name))
}

// PlayerID derives the stable id of a player from its name.
func PlayerID(name string) uuid.UUID {
	return uuid.NewSHA1(playerNamespace, []byte(name))
}

// Clubs decodes the embedded snapshot and fills in deterministic ids,
// so repeated seeding of memory or Postgres stores yields the same identities.
func Clubs() ([]SeedClub, error) {
	var clubs []SeedClub
	if err := json.Unmarshal(clubsJSON, &clubs); err != nil {
		return nil, fmt.Errorf("decode clubs.json: %w", err)
	}
	for i := range clubs {
		clubs[i].ID = ClubID(clubs[i].Name)
		for j := range clubs[i].Players {
			clubs[i].Players[j].ID = PlayerID(clubs[i].Players[j].Name)
		}
	}
	return clubs, nil
}

// ClubNames lists the snapshot's club names in file order.
func ClubNames() ([]string, error) {
	clubs, err := Clubs()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(clubs))
	for i, c := range clubs {
		names[i] = c.Name
	}
	return names, nil
}
