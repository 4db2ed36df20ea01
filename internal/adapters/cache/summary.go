package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/florik/hammerbot/internal/auction"
)

const summaryKey = "auctions:summary"

// AuctionSummary is the cached display row for one active auction
type AuctionSummary struct {
	ID            string `json:"id"`
	ItemName      string `json:"item_name"`
	Quantity      int    `json:"quantity"`
	Name          string `json:"name"`
	OwnerID       string `json:"owner_id"`
	CurrentBid    int64  `json:"current_bid"`
	MinimumBid    int64  `json:"minimum_bid"`
	BinPrice      *int64 `json:"bin_price,omitempty"`
	TimeRemaining string `json:"time_remaining"`
	EndTime       string `json:"end_time"`
}

// Summary is the cached snapshot of the active auction board
type Summary struct {
	GeneratedAt time.Time        `json:"generated_at"`
	Auctions    []AuctionSummary `json:"auctions"`
}

// RedisSummaryCache implements auction.SummaryCache on Redis. The
// snapshot carries a TTL slightly above the sweep interval, so a stalled
// sweeper leaves readers with an empty board instead of a stale one.
type RedisSummaryCache struct {
	client *redis.Client
	policy auction.Policy
	ttl    time.Duration
}

// NewRedisSummaryCache creates a summary cache
func NewRedisSummaryCache(client *redis.Client, policy auction.Policy, ttl time.Duration) *RedisSummaryCache {
	return &RedisSummaryCache{client: client, policy: policy, ttl: ttl}
}

// RefreshActive replaces the snapshot with the given active auctions
func (c *RedisSummaryCache) RefreshActive(ctx context.Context, auctions []*auction.Auction) error {
	summary := Summary{
		GeneratedAt: time.Now(),
		Auctions:    make([]AuctionSummary, 0, len(auctions)),
	}

	for _, a := range auctions {
		summary.Auctions = append(summary.Auctions, AuctionSummary{
			ID:            a.ID.String(),
			ItemName:      a.ItemName,
			Quantity:      a.Quantity,
			Name:          a.Name,
			OwnerID:       a.OwnerID,
			CurrentBid:    a.CurrentBid,
			MinimumBid:    auction.MinimumBid(a.CurrentBid, c.policy),
			BinPrice:      a.BinPrice,
			TimeRemaining: a.TimeRemaining(),
			EndTime:       a.EndTime.Format(time.RFC3339),
		})
	}

	body, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}

	if err := c.client.Set(ctx, summaryKey, body, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store summary: %w", err)
	}
	return nil
}

// GetSummary reads the cached snapshot. A missing key yields an empty
// summary, not an error.
func (c *RedisSummaryCache) GetSummary(ctx context.Context) (*Summary, error) {
	body, err := c.client.Get(ctx, summaryKey).Bytes()
	if err == redis.Nil {
		return &Summary{Auctions: []AuctionSummary{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read summary: %w", err)
	}

	var summary Summary
	if err := json.Unmarshal(body, &summary); err != nil {
		return nil, fmt.Errorf("failed to unmarshal summary: %w", err)
	}
	return &summary, nil
}
