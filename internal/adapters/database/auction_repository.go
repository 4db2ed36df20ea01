package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/florik/hammerbot/internal/auction"
	pkgdb "github.com/florik/hammerbot/pkg/database"
)

const auctionColumns = `
	id, owner_id, item_name, quantity, name, description, image_url,
	bin_price, current_bid, current_bidder_id,
	start_time, end_time, duration_seconds, status
`

// PostgresAuctionRepository implements auction.Repository using pgx
type PostgresAuctionRepository struct {
	pool *pgxpool.Pool // kept for non-transactional reads
}

// NewPostgresAuctionRepository creates a new PostgreSQL auction repository
func NewPostgresAuctionRepository(pool *pgxpool.Pool) *PostgresAuctionRepository {
	return &PostgresAuctionRepository{pool: pool}
}

// Create inserts a new auction within a transaction
func (r *PostgresAuctionRepository) Create(ctx context.Context, tx pgx.Tx, a *auction.Auction) error {
	query := `
		INSERT INTO auctions (
			id, owner_id, item_name, quantity, name, description, image_url,
			bin_price, current_bid, current_bidder_id,
			start_time, end_time, duration_seconds, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := tx.Exec(ctx, query,
		a.ID,
		a.OwnerID,
		a.ItemName,
		a.Quantity,
		a.Name,
		a.Description,
		a.ImageURL,
		a.BinPrice,
		a.CurrentBid,
		a.CurrentBidderID,
		a.StartTime,
		a.EndTime,
		int64(a.Duration.Seconds()),
		a.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to insert auction: %w", err)
	}
	return nil
}

// GetByID retrieves an auction by its ID (non-transactional read)
func (r *PostgresAuctionRepository) GetByID(ctx context.Context, id uuid.UUID) (*auction.Auction, error) {
	return r.getByID(ctx, r.pool, id, false)
}

// GetByIDForUpdate retrieves an auction and locks its row. Every state
// transition goes through this lock, which serializes concurrent bids,
// purchases and terminations against the same auction.
func (r *PostgresAuctionRepository) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*auction.Auction, error) {
	return r.getByID(ctx, tx, id, true)
}

// getByID is the internal implementation that works with any DBTX
func (r *PostgresAuctionRepository) getByID(ctx context.Context, db pkgdb.DBTX, id uuid.UUID, forUpdate bool) (*auction.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = $1`
	if forUpdate {
		query += " FOR UPDATE"
	}

	a, err := scanAuction(db.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, auction.ErrAuctionNotFound
		}
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}
	return a, nil
}

// ListActive retrieves active auctions, most recent first
func (r *PostgresAuctionRepository) ListActive(ctx context.Context, limit, offset int) ([]*auction.Auction, error) {
	query := `
		SELECT ` + auctionColumns + `
		FROM auctions
		WHERE status = $1
		ORDER BY start_time DESC
		LIMIT $2 OFFSET $3
	`
	return r.list(ctx, query, auction.StatusActive, limit, offset)
}

// ListActiveByOwner retrieves an owner's active auctions
func (r *PostgresAuctionRepository) ListActiveByOwner(ctx context.Context, ownerID string) ([]*auction.Auction, error) {
	query := `
		SELECT ` + auctionColumns + `
		FROM auctions
		WHERE owner_id = $1 AND status = $2
		ORDER BY end_time ASC
	`
	return r.list(ctx, query, ownerID, auction.StatusActive)
}

// ListRecentByOwner retrieves an owner's auctions created since the cutoff
func (r *PostgresAuctionRepository) ListRecentByOwner(ctx context.Context, ownerID string, since time.Time) ([]*auction.Auction, error) {
	query := `
		SELECT ` + auctionColumns + `
		FROM auctions
		WHERE owner_id = $1 AND start_time >= $2
		ORDER BY start_time DESC
	`
	return r.list(ctx, query, ownerID, since)
}

// CountActiveByOwner counts an owner's active auctions
func (r *PostgresAuctionRepository) CountActiveByOwner(ctx context.Context, ownerID string) (int64, error) {
	query := `SELECT COUNT(*) FROM auctions WHERE owner_id = $1 AND status = $2`

	var count int64
	err := r.pool.QueryRow(ctx, query, ownerID, auction.StatusActive).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active auctions: %w", err)
	}
	return count, nil
}

// ListExpired retrieves active auctions whose end time has passed
func (r *PostgresAuctionRepository) ListExpired(ctx context.Context, now time.Time) ([]*auction.Auction, error) {
	query := `
		SELECT ` + auctionColumns + `
		FROM auctions
		WHERE status = $1 AND end_time <= $2
		ORDER BY end_time ASC
	`
	return r.list(ctx, query, auction.StatusActive, now)
}

// ListTerminated retrieves auctions in a terminal status
func (r *PostgresAuctionRepository) ListTerminated(ctx context.Context) ([]*auction.Auction, error) {
	query := `
		SELECT ` + auctionColumns + `
		FROM auctions
		WHERE status = ANY($1)
		ORDER BY end_time ASC
	`
	return r.list(ctx, query, []string{string(auction.StatusEnded), string(auction.StatusWithdrawn)})
}

// UpdateBid sets the leading bid and bidder within a transaction
func (r *PostgresAuctionRepository) UpdateBid(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int64, bidderID string) error {
	query := `
		UPDATE auctions
		SET current_bid = $1, current_bidder_id = $2
		WHERE id = $3
	`
	return r.exec(ctx, tx, query, amount, bidderID, id)
}

// UpdateStatus sets the lifecycle status within a transaction
func (r *PostgresAuctionRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status auction.Status) error {
	query := `
		UPDATE auctions
		SET status = $1
		WHERE id = $2
	`
	return r.exec(ctx, tx, query, status, id)
}

// UpdateEndTime sets the end time and nominal duration within a transaction
func (r *PostgresAuctionRepository) UpdateEndTime(ctx context.Context, tx pgx.Tx, id uuid.UUID, endTime time.Time, duration time.Duration) error {
	query := `
		UPDATE auctions
		SET end_time = $1, duration_seconds = $2
		WHERE id = $3
	`
	return r.exec(ctx, tx, query, endTime, int64(duration.Seconds()), id)
}

// UpdateDetails sets the presentation fields within a transaction
func (r *PostgresAuctionRepository) UpdateDetails(ctx context.Context, tx pgx.Tx, id uuid.UUID, name, description string) error {
	query := `
		UPDATE auctions
		SET name = $1, description = $2
		WHERE id = $3
	`
	return r.exec(ctx, tx, query, name, description, id)
}

// Delete removes an auction row
func (r *PostgresAuctionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM auctions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete auction: %w", err)
	}
	if result.RowsAffected() == 0 {
		return auction.ErrAuctionNotFound
	}
	return nil
}

// Stats aggregates the auction table for reporting
func (r *PostgresAuctionRepository) Stats(ctx context.Context) (*auction.Stats, error) {
	stats := &auction.Stats{ByStatus: make(map[string]int64)}

	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM auctions GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to query status counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		stats.ByStatus[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read status counts: %w", err)
	}

	query := `
		SELECT
			COALESCE(SUM(current_bid) FILTER (WHERE status = $1), 0),
			COUNT(DISTINCT owner_id),
			COUNT(DISTINCT current_bidder_id) FILTER (WHERE current_bidder_id IS NOT NULL)
		FROM auctions
	`
	err = r.pool.QueryRow(ctx, query, auction.StatusActive).Scan(
		&stats.ActiveValue,
		&stats.UniqueSellers,
		&stats.UniqueBidders,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query aggregates: %w", err)
	}

	return stats, nil
}

func (r *PostgresAuctionRepository) exec(ctx context.Context, tx pgx.Tx, query string, args ...any) error {
	result, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update auction: %w", err)
	}
	if result.RowsAffected() == 0 {
		return auction.ErrAuctionNotFound
	}
	return nil
}

func (r *PostgresAuctionRepository) list(ctx context.Context, query string, args ...any) ([]*auction.Auction, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query auctions: %w", err)
	}
	defer rows.Close()

	var auctions []*auction.Auction
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan auction: %w", err)
		}
		auctions = append(auctions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read auctions: %w", err)
	}
	return auctions, nil
}

func scanAuction(row pgx.Row) (*auction.Auction, error) {
	var a auction.Auction
	var durationSeconds int64

	err := row.Scan(
		&a.ID,
		&a.OwnerID,
		&a.ItemName,
		&a.Quantity,
		&a.Name,
		&a.Description,
		&a.ImageURL,
		&a.BinPrice,
		&a.CurrentBid,
		&a.CurrentBidderID,
		&a.StartTime,
		&a.EndTime,
		&durationSeconds,
		&a.Status,
	)
	if err != nil {
		return nil, err
	}

	a.Duration = time.Duration(durationSeconds) * time.Second
	return &a, nil
}
