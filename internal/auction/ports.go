package auction

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository defines the interface for auction persistence. Mutating
// operations take a pgx.Tx because every transition runs inside one
// transaction holding the row lock taken by GetByIDForUpdate.
type Repository interface {
	// Create inserts a new auction within a transaction
	Create(ctx context.Context, tx pgx.Tx, a *Auction) error

	// GetByID retrieves an auction by its ID (non-transactional read)
	GetByID(ctx context.Context, id uuid.UUID) (*Auction, error)

	// GetByIDForUpdate retrieves an auction and locks its row for update.
	// Must be called within a transaction; serializes all check-then-set
	// transitions against the same auction.
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*Auction, error)

	// ListActive retrieves active auctions, most recent first
	ListActive(ctx context.Context, limit, offset int) ([]*Auction, error)

	// ListActiveByOwner retrieves an owner's active auctions
	ListActiveByOwner(ctx context.Context, ownerID string) ([]*Auction, error)

	// ListRecentByOwner retrieves an owner's auctions created since the
	// cutoff, used for creation rate limiting
	ListRecentByOwner(ctx context.Context, ownerID string, since time.Time) ([]*Auction, error)

	// CountActiveByOwner counts an owner's active auctions
	CountActiveByOwner(ctx context.Context, ownerID string) (int64, error)

	// ListExpired retrieves active auctions whose end time has passed
	ListExpired(ctx context.Context, now time.Time) ([]*Auction, error)

	// ListTerminated retrieves auctions in a terminal status, ready to be
	// pruned once their events are committed
	ListTerminated(ctx context.Context) ([]*Auction, error)

	// UpdateBid sets the leading bid and bidder within a transaction
	UpdateBid(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int64, bidderID string) error

	// UpdateStatus sets the lifecycle status within a transaction
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status Status) error

	// UpdateEndTime sets the end time and nominal duration within a transaction
	UpdateEndTime(ctx context.Context, tx pgx.Tx, id uuid.UUID, endTime time.Time, duration time.Duration) error

	// UpdateDetails sets the presentation fields within a transaction
	UpdateDetails(ctx context.Context, tx pgx.Tx, id uuid.UUID, name, description string) error

	// Delete removes an auction row
	Delete(ctx context.Context, id uuid.UUID) error

	// Stats aggregates the auction table for reporting
	Stats(ctx context.Context) (*Stats, error)
}

// SummaryCache holds a display snapshot of the active auctions,
// refreshed by the sweeper
type SummaryCache interface {
	RefreshActive(ctx context.Context, auctions []*Auction) error
}
