package auction

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/mcdev12/transfermarket/go/internal/models"
	"github.com/mcdev12/transfermarket/go/internal/sqlutil"
)

const activeListingIndex = "auctions_one_active_per_player"

const auctionColumns = `id, player_id, player_name, selling_club_id, description,
	starting_price, buy_now_price, current_price, highest_bid, highest_bidder_club_id,
	end_time, status, end_reason, ended_at, settlement_status, settlement_error,
	version, created_at, updated_at`

// DBTX is satisfied by *sql.DB and *sql.Tx
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type queries struct {
	db DBTX
}

func txQueries(tx *sql.Tx) *queries {
	return &queries{db: tx}
}

// Repository is the Postgres Store
type Repository struct {
	db *sql.DB
	q  *queries
}

// NewRepository creates a new auction repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, q: &queries{db: db}}
}

var _ Store = (*Repository)(nil)

// Create inserts a new auction. The partial unique index rejects a second active listing.
func (r *Repository) Create(ctx context.Context, a *models.Auction) error {
	err := sqlutil.Run(ctx, r.db, txQueries, func(q *queries) error {
		_, err := q.db.ExecContext(ctx, `
			INSERT INTO auctions (`+auctionColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
			auctionArgs(a)...)
		if err != nil {
			return err
		}
		return q.insertBids(ctx, a.ID, a.Bids, 0)
	})
	if sqlutil.IsUniqueViolation(err, activeListingIndex) {
		return fmt.Errorf("%w: player %s", models.ErrDuplicateActiveListing, a.PlayerID)
	}
	if err != nil {
		return fmt.Errorf("create auction: %w", err)
	}
	return nil
}

// Get loads an auction with its bid history
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.Auction, error) {
	a, err := scanAuction(r.db.QueryRowContext(ctx, `SELECT `+auctionColumns+` FROM auctions WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", models.ErrAuctionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get auction: %w", err)
	}
	if err := r.q.attachBids(ctx, []*models.Auction{a}); err != nil {
		return nil, err
	}
	return a, nil
}

// ActiveForPlayer loads the player's active auction
func (r *Repository) ActiveForPlayer(ctx context.Context, playerID uuid.UUID) (*models.Auction, error) {
	var id uuid.UUID
	err := r.db.QueryRowContext(ctx,
		`SELECT id FROM auctions WHERE player_id = $1 AND status = 'active'`, playerID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no active auction for player %s", models.ErrAuctionNotFound, playerID)
	}
	if err != nil {
		return nil, fmt.Errorf("get active auction for player: %w", err)
	}
	return r.Get(ctx, id)
}

// List returns matching auctions newest first
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]models.Auction, error) {
	var where []string
	var args []any
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.SellingClubID != nil {
		args = append(args, *filter.SellingClubID)
		where = append(where, fmt.Sprintf("selling_club_id = $%d", len(args)))
	}
	query := `SELECT ` + auctionColumns + ` FROM auctions`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list auctions: %w", err)
	}
	var list []*models.Auction
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan auction: %w", err)
		}
		list = append(list, a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.q.attachBids(ctx, list); err != nil {
		return nil, err
	}

	out := make([]models.Auction, len(list))
	for i, a := range list {
		out[i] = *a
	}
	return out, nil
}

// ListDue returns ids of active auctions past their end time
func (r *Repository) ListDue(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	return r.ids(ctx, `
		SELECT id FROM auctions
		WHERE status = 'active' AND end_time <= $1
		ORDER BY end_time
		LIMIT $2`, now, limit)
}

// NextEndTime returns the earliest end time among active auctions
func (r *Repository) NextEndTime(ctx context.Context) (*time.Time, error) {
	var next sql.NullTime
	if err := r.db.QueryRowContext(ctx,
		`SELECT min(end_time) FROM auctions WHERE status = 'active'`).Scan(&next); err != nil {
		return nil, fmt.Errorf("next end time: %w", err)
	}
	return sqlutil.FromSqlTime(next), nil
}

// ListPendingSettlement returns ended auctions whose settlement never finished
func (r *Repository) ListPendingSettlement(ctx context.Context, updatedBefore time.Time, limit int) ([]uuid.UUID, error) {
	return r.ids(ctx, `
		SELECT id FROM auctions
		WHERE settlement_status = 'pending' AND updated_at <= $1
		ORDER BY updated_at
		LIMIT $2`, updatedBefore, limit)
}

// CompareAndSwap writes next only if the row is still at expectedVersion
func (r *Repository) CompareAndSwap(ctx context.Context, next *models.Auction, expectedVersion int64) error {
	err := sqlutil.Run(ctx, r.db, txQueries, func(q *queries) error {
		res, err := q.db.ExecContext(ctx, `
			UPDATE auctions SET
				current_price = $3,
				highest_bid = $4,
				highest_bidder_club_id = $5,
				end_time = $6,
				status = $7,
				end_reason = $8,
				ended_at = $9,
				settlement_status = $10,
				settlement_error = $11,
				description = $12,
				updated_at = $13,
				version = version + 1
			WHERE id = $1 AND version = $2`,
			next.ID, expectedVersion,
			next.CurrentPrice, next.HighestBid, sqlutil.ToNullUUID(next.HighestBidderClubID),
			next.EndTime, string(next.Status), string(next.EndReason), sqlutil.ToSqlTime(next.EndedAt),
			string(next.SettlementStatus), next.SettlementError, next.Description, next.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("update auction: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			var exists bool
			if err := q.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM auctions WHERE id = $1)`, next.ID).Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return fmt.Errorf("%w: %s", models.ErrAuctionNotFound, next.ID)
			}
			return fmt.Errorf("%w: auction %s moved past version %d", models.ErrVersionConflict, next.ID, expectedVersion)
		}

		var stored int
		if err := q.db.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(seq), 0) FROM auction_bids WHERE auction_id = $1`, next.ID).Scan(&stored); err != nil {
			return fmt.Errorf("count bids: %w", err)
		}
		return q.insertBids(ctx, next.ID, next.Bids, stored)
	})
	if err != nil {
		return err
	}
	next.Version = expectedVersion + 1
	return nil
}

func (r *Repository) ids(ctx context.Context, query string, args ...any) ([]uuid.UUID, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list auction ids: %w", err)
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

func (q *queries) insertBids(ctx context.Context, auctionID uuid.UUID, bids []models.Bid, after int) error {
	for _, b := range bids {
		if b.Seq <= after {
			continue
		}
		if _, err := q.db.ExecContext(ctx, `
			INSERT INTO auction_bids (auction_id, seq, club_id, amount, placed_at)
			VALUES ($1, $2, $3, $4, $5)`,
			auctionID, b.Seq, b.ClubID, b.Amount, b.PlacedAt); err != nil {
			return fmt.Errorf("insert bid %d: %w", b.Seq, err)
		}
	}
	return nil
}

func (q *queries) attachBids(ctx context.Context, auctions []*models.Auction) error {
	if len(auctions) == 0 {
		return nil
	}
	byID := make(map[uuid.UUID]*models.Auction, len(auctions))
	ids := make([]uuid.UUID, len(auctions))
	for i, a := range auctions {
		a.Bids = []models.Bid{}
		byID[a.ID] = a
		ids[i] = a.ID
	}

	rows, err := q.db.QueryContext(ctx, `
		SELECT auction_id, seq, club_id, amount, placed_at
		FROM auction_bids
		WHERE auction_id = ANY($1::uuid[])
		ORDER BY auction_id, seq`, pq.Array(sqlutil.UUIDStrings(ids)))
	if err != nil {
		return fmt.Errorf("load bids: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var auctionID uuid.UUID
		var b models.Bid
		if err := rows.Scan(&auctionID, &b.Seq, &b.ClubID, &b.Amount, &b.PlacedAt); err != nil {
			return fmt.Errorf("scan bid: %w", err)
		}
		if a, ok := byID[auctionID]; ok {
			a.Bids = append(a.Bids, b)
		}
	}
	return rows.Err()
}

func auctionArgs(a *models.Auction) []any {
	return []any{
		a.ID, a.PlayerID, a.PlayerName, a.SellingClubID, a.Description,
		a.StartingPrice, a.BuyNowPrice, a.CurrentPrice, a.HighestBid, sqlutil.ToNullUUID(a.HighestBidderClubID),
		a.EndTime, string(a.Status), string(a.EndReason), sqlutil.ToSqlTime(a.EndedAt),
		string(a.SettlementStatus), a.SettlementError,
		a.Version, a.CreatedAt, a.UpdatedAt,
	}
}

func scanAuction(row interface{ Scan(...any) error }) (*models.Auction, error) {
	var a models.Auction
	var bidder uuid.NullUUID
	var endedAt sql.NullTime
	err := row.Scan(
		&a.ID, &a.PlayerID, &a.PlayerName, &a.SellingClubID, &a.Description,
		&a.StartingPrice, &a.BuyNowPrice, &a.CurrentPrice, &a.HighestBid, &bidder,
		&a.EndTime, &a.Status, &a.EndReason, &endedAt, &a.SettlementStatus, &a.SettlementError,
		&a.Version, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.HighestBidderClubID = sqlutil.FromNullUUID(bidder)
	a.EndedAt = sqlutil.FromSqlTime(endedAt)
	return &a, nil
}
