package models

import (
	"time"

	"github.com/google/uuid"
)

// Player represents a footballer in the player catalog
type Player struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Position    string    `json:"position"`
	Nationality string    `json:"nationality"`
	Valuation   int64     `json:"valuation"`
	CreatedAt   time.Time `json:"created_at"`
}
