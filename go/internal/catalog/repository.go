package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/mcdev12/transfermarket/go/internal/models"
	"github.com/mcdev12/transfermarket/go/internal/sqlutil"
)

// Repository reads and writes the players table
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new players repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const playerColumns = `id, name, position, nationality, valuation, created_at`

func scanPlayer(row interface{ Scan(...any) error }) (*models.Player, error) {
	var p models.Player
	if err := row.Scan(&p.ID, &p.Name, &p.Position, &p.Nationality, &p.Valuation, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpsertPlayer inserts a player or refreshes its catalog fields
func (r *Repository) UpsertPlayer(ctx context.Context, p models.Player) (*models.Player, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO players (id, name, position, nationality, valuation)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    position = EXCLUDED.position,
		    nationality = EXCLUDED.nationality,
		    valuation = EXCLUDED.valuation
		RETURNING `+playerColumns,
		p.ID, p.Name, p.Position, p.Nationality, p.Valuation)
	out, err := scanPlayer(row)
	if err != nil {
		return nil, fmt.Errorf("upsert player: %w", err)
	}
	return out, nil
}

// GetPlayer retrieves a player by ID
func (r *Repository) GetPlayer(ctx context.Context, id uuid.UUID) (*models.Player, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+playerColumns+` FROM players WHERE id = $1`, id)
	p, err := scanPlayer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", models.ErrPlayerNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get player: %w", err)
	}
	return p, nil
}

// ListPlayers retrieves the players among ids, sorted by name
func (r *Repository) ListPlayers(ctx context.Context, ids []uuid.UUID) ([]models.Player, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+playerColumns+` FROM players WHERE id = ANY($1::uuid[]) ORDER BY name`,
		pq.Array(sqlutil.UUIDStrings(ids)))
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	defer rows.Close()

	var out []models.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}
