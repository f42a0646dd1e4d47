package club

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/transfermarket/go/internal/models"
	"github.com/mcdev12/transfermarket/go/internal/sqlutil"
)

// DBTX is satisfied by *sql.DB and *sql.Tx
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type queries struct {
	db DBTX
}

func newQueries(db DBTX) *queries {
	return &queries{db: db}
}

func txQueries(tx *sql.Tx) *queries {
	return newQueries(tx)
}

// Repository is the Postgres Ledger
type Repository struct {
	db    *sql.DB
	clock clockwork.Clock
}

// NewRepository creates a new club ledger repository
func NewRepository(db *sql.DB, clock clockwork.Clock) *Repository {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Repository{db: db, clock: clock}
}

var _ Ledger = (*Repository)(nil)

// CreateClub inserts a club row
func (r *Repository) CreateClub(ctx context.Context, c models.Club) (*models.Club, error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := r.clock.Now()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO clubs (id, name, league, country, budget, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)`,
		c.ID, c.Name, c.League, c.Country, c.Budget, now)
	if err != nil {
		return nil, fmt.Errorf("create club %q: %w", c.Name, err)
	}
	c.CreatedAt, c.UpdatedAt = now, now
	c.Roster, c.TransferLog = nil, nil
	return &c, nil
}

// GetClub loads a club with its roster and transfer log
func (r *Repository) GetClub(ctx context.Context, id uuid.UUID) (*models.Club, error) {
	q := newQueries(r.db)
	c, err := q.club(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Roster, err = q.roster(ctx, id); err != nil {
		return nil, err
	}
	if c.TransferLog, err = q.transferLog(ctx, id); err != nil {
		return nil, err
	}
	return c, nil
}

// ListClubs loads every club in three queries
func (r *Repository) ListClubs(ctx context.Context) ([]models.Club, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+clubColumns+` FROM clubs ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list clubs: %w", err)
	}
	var clubs []models.Club
	index := map[uuid.UUID]int{}
	for rows.Next() {
		c, err := scanClub(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan club: %w", err)
		}
		index[c.ID] = len(clubs)
		clubs = append(clubs, *c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rosterRows, err := r.db.QueryContext(ctx, `SELECT club_id, player_id FROM club_players ORDER BY joined_at, player_id`)
	if err != nil {
		return nil, fmt.Errorf("list rosters: %w", err)
	}
	defer rosterRows.Close()
	for rosterRows.Next() {
		var clubID, playerID uuid.UUID
		if err := rosterRows.Scan(&clubID, &playerID); err != nil {
			return nil, fmt.Errorf("scan roster: %w", err)
		}
		if i, ok := index[clubID]; ok {
			clubs[i].Roster = append(clubs[i].Roster, playerID)
		}
	}
	if err := rosterRows.Err(); err != nil {
		return nil, err
	}

	logRows, err := r.db.QueryContext(ctx, `SELECT club_id, player_id, direction, amount, created_at FROM club_transfer_log ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list transfer logs: %w", err)
	}
	defer logRows.Close()
	for logRows.Next() {
		var clubID uuid.UUID
		var e models.TransferLogEntry
		if err := logRows.Scan(&clubID, &e.PlayerID, &e.Direction, &e.Amount, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan transfer log: %w", err)
		}
		if i, ok := index[clubID]; ok {
			clubs[i].TransferLog = append(clubs[i].TransferLog, e)
		}
	}
	return clubs, logRows.Err()
}

// AssignPlayer puts an unowned player on a club's roster
func (r *Repository) AssignPlayer(ctx context.Context, clubID, playerID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO club_players (club_id, player_id, joined_at)
		SELECT $1, $2, $3 WHERE EXISTS (SELECT 1 FROM clubs WHERE id = $1)
		ON CONFLICT (club_id, player_id) DO NOTHING`,
		clubID, playerID, r.clock.Now())
	if sqlutil.IsUniqueViolation(err, "club_players_player_id_key") {
		return fmt.Errorf("%w: player %s", ErrPlayerOwnedElsewhere, playerID)
	}
	if err != nil {
		return fmt.Errorf("assign player: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := newQueries(r.db).club(ctx, clubID); err != nil {
			return err
		}
	}
	return nil
}

// ApplyTransfer settles a plan inside one transaction.
// Both club rows are locked in id order before the replay check.
func (r *Repository) ApplyTransfer(ctx context.Context, plan TransferPlan) (*models.Transfer, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	if plan.At.IsZero() {
		plan.At = r.clock.Now()
	}

	var out *models.Transfer
	err := sqlutil.Run(ctx, r.db, txQueries, func(q *queries) error {
		budgets, err := q.lockClubs(ctx, plan.BuyerID, plan.SellerID)
		if err != nil {
			return err
		}
		for _, id := range []uuid.UUID{plan.BuyerID, plan.SellerID} {
			if _, ok := budgets[id]; !ok {
				return fmt.Errorf("%w: %s", models.ErrClubNotFound, id)
			}
		}

		if plan.AuctionID != nil {
			existing, err := q.transferForAuction(ctx, *plan.AuctionID)
			if err != nil {
				return err
			}
			if existing != nil {
				out = existing
				return nil
			}
		}

		if budgets[plan.BuyerID] < plan.Amount {
			return fmt.Errorf("%w: club %s has %d, needs %d",
				models.ErrInsufficientBudget, plan.BuyerID, budgets[plan.BuyerID], plan.Amount)
		}

		res, err := q.db.ExecContext(ctx,
			`DELETE FROM club_players WHERE club_id = $1 AND player_id = $2`, plan.SellerID, plan.PlayerID)
		if err != nil {
			return fmt.Errorf("remove player from seller: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: player %s, club %s", models.ErrPlayerNotOwned, plan.PlayerID, plan.SellerID)
		}
		if _, err := q.db.ExecContext(ctx, `
			INSERT INTO club_players (club_id, player_id, joined_at) VALUES ($1, $2, $3)
			ON CONFLICT (club_id, player_id) DO NOTHING`,
			plan.BuyerID, plan.PlayerID, plan.At); err != nil {
			return fmt.Errorf("add player to buyer: %w", err)
		}

		if err := q.adjustBudget(ctx, plan.BuyerID, -plan.Amount, plan.At); err != nil {
			return err
		}
		if err := q.adjustBudget(ctx, plan.SellerID, plan.Amount, plan.At); err != nil {
			return err
		}
		if err := q.appendLog(ctx, plan.BuyerID, plan.PlayerID, models.TransferDirectionIn, plan.Amount, plan.At); err != nil {
			return err
		}
		if err := q.appendLog(ctx, plan.SellerID, plan.PlayerID, models.TransferDirectionOut, plan.Amount, plan.At); err != nil {
			return err
		}

		t := newTransfer(plan, 0)
		err = q.db.QueryRowContext(ctx, `
			INSERT INTO transfers (id, player_id, from_club_id, to_club_id, amount, auction_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING seq`,
			t.ID, t.PlayerID, t.FromClubID, t.ToClubID, t.Amount, sqlutil.ToNullUUID(t.AuctionID), t.CreatedAt,
		).Scan(&t.Seq)
		if err != nil {
			return fmt.Errorf("insert transfer: %w", err)
		}
		out = &t
		return nil
	})

	// A concurrent settlement of the same auction committed first.
	if plan.AuctionID != nil && sqlutil.IsUniqueViolation(err, "transfers_auction_id_key") {
		existing, lookupErr := r.TransferForAuction(ctx, *plan.AuctionID)
		if lookupErr == nil && existing != nil {
			return existing, nil
		}
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// TransferForAuction returns the transfer an auction settled into, or nil
func (r *Repository) TransferForAuction(ctx context.Context, auctionID uuid.UUID) (*models.Transfer, error) {
	return newQueries(r.db).transferForAuction(ctx, auctionID)
}

// ListTransfers returns transfers newest first
func (r *Repository) ListTransfers(ctx context.Context, filter TransferFilter) ([]models.Transfer, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers`
	var args []any
	if filter.ClubID != nil {
		args = append(args, *filter.ClubID)
		query += ` WHERE from_club_id = $1 OR to_club_id = $1`
	}
	query += ` ORDER BY seq DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	defer rows.Close()
	var out []models.Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

const clubColumns = `id, name, league, country, budget, created_at, updated_at`

const transferColumns = `seq, id, player_id, from_club_id, to_club_id, amount, auction_id, created_at`

type scanner interface{ Scan(...any) error }

func scanClub(row scanner) (*models.Club, error) {
	var c models.Club
	if err := row.Scan(&c.ID, &c.Name, &c.League, &c.Country, &c.Budget, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func scanTransfer(row scanner) (*models.Transfer, error) {
	var t models.Transfer
	var auctionID uuid.NullUUID
	if err := row.Scan(&t.Seq, &t.ID, &t.PlayerID, &t.FromClubID, &t.ToClubID, &t.Amount, &auctionID, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.AuctionID = sqlutil.FromNullUUID(auctionID)
	return &t, nil
}

func (q *queries) club(ctx context.Context, id uuid.UUID) (*models.Club, error) {
	c, err := scanClub(q.db.QueryRowContext(ctx, `SELECT `+clubColumns+` FROM clubs WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", models.ErrClubNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get club: %w", err)
	}
	return c, nil
}

func (q *queries) roster(ctx context.Context, clubID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT player_id FROM club_players WHERE club_id = $1 ORDER BY joined_at, player_id`, clubID)
	if err != nil {
		return nil, fmt.Errorf("get roster: %w", err)
	}
	defer rows.Close()
	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (q *queries) transferLog(ctx context.Context, clubID uuid.UUID) ([]models.TransferLogEntry, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT player_id, direction, amount, created_at
		FROM club_transfer_log WHERE club_id = $1 ORDER BY id`, clubID)
	if err != nil {
		return nil, fmt.Errorf("get transfer log: %w", err)
	}
	defer rows.Close()
	var out []models.TransferLogEntry
	for rows.Next() {
		var e models.TransferLogEntry
		if err := rows.Scan(&e.PlayerID, &e.Direction, &e.Amount, &e.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// lockClubs takes row locks on both clubs in id order and returns their budgets.
func (q *queries) lockClubs(ctx context.Context, a, b uuid.UUID) (map[uuid.UUID]int64, error) {
	ids := []uuid.UUID{a, b}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, budget FROM clubs WHERE id IN ($1, $2) ORDER BY id FOR UPDATE`, ids[0], ids[1])
	if err != nil {
		return nil, fmt.Errorf("lock clubs: %w", err)
	}
	defer rows.Close()
	budgets := make(map[uuid.UUID]int64, 2)
	for rows.Next() {
		var id uuid.UUID
		var budget int64
		if err := rows.Scan(&id, &budget); err != nil {
			return nil, err
		}
		budgets[id] = budget
	}
	return budgets, rows.Err()
}

func (q *queries) adjustBudget(ctx context.Context, clubID uuid.UUID, delta int64, at time.Time) error {
	if _, err := q.db.ExecContext(ctx,
		`UPDATE clubs SET budget = budget + $2, updated_at = $3 WHERE id = $1`, clubID, delta, at); err != nil {
		return fmt.Errorf("adjust budget of %s: %w", clubID, err)
	}
	return nil
}

func (q *queries) appendLog(ctx context.Context, clubID, playerID uuid.UUID, dir models.TransferDirection, amount int64, at time.Time) error {
	if _, err := q.db.ExecContext(ctx, `
		INSERT INTO club_transfer_log (club_id, player_id, direction, amount, created_at)
		VALUES ($1, $2, $3, $4, $5)`, clubID, playerID, dir, amount, at); err != nil {
		return fmt.Errorf("append transfer log: %w", err)
	}
	return nil
}

func (q *queries) transferForAuction(ctx context.Context, auctionID uuid.UUID) (*models.Transfer, error) {
	t, err := scanTransfer(q.db.QueryRowContext(ctx,
		`SELECT `+transferColumns+` FROM transfers WHERE auction_id = $1`, auctionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get transfer for auction: %w", err)
	}
	return t, nil
}
