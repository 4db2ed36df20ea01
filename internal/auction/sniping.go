package auction

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// SnipeConfig controls the anti-sniping extension policy
type SnipeConfig struct {
	Enabled   bool
	Window    time.Duration // how close to the end a bid counts as late
	Extension time.Duration // how much time a late bid buys
	Cooldown  time.Duration // minimum gap between extensions per auction
	Retention time.Duration // how long to remember past extensions
}

// DefaultSnipeConfig mirrors the production defaults: 5m window,
// 5m extension, 60s cooldown.
func DefaultSnipeConfig() SnipeConfig {
	return SnipeConfig{
		Enabled:   true,
		Window:    5 * time.Minute,
		Extension: 5 * time.Minute,
		Cooldown:  60 * time.Second,
		Retention: 24 * time.Hour,
	}
}

// SnipeEvent describes the outcome of one bid's sniping check. It is the
// only channel through which the bid path learns whether to surface
// "auction extended" feedback; the guard itself never notifies.
type SnipeEvent struct {
	AuctionID        uuid.UUID
	BidderID         string
	BidAmount        int64
	MinutesRemaining float64
	Extended         bool
	ExtensionMinutes int
}

// SnipeStats is a reporting snapshot of the guard's counters
type SnipeStats struct {
	Enabled          bool    `json:"enabled"`
	WindowMinutes    float64 `json:"window_minutes"`
	ExtensionMinutes float64 `json:"extension_minutes"`
	TotalChecks      int64   `json:"total_checks"`
	TotalExtensions  int64   `json:"total_extensions"`
	TotalErrors      int64   `json:"total_errors"`
	TrackedAuctions  int     `json:"tracked_auctions"`
}

// AuctionExtender is the slice of the lifecycle engine the guard needs
type AuctionExtender interface {
	Extend(ctx context.Context, id uuid.UUID, by time.Duration) (*Auction, error)
}

// SnipeGuard extends auctions when a bid lands inside the final window, so
// an unbeatable last-second bid always leaves room for a counter-bid. The
// per-auction cooldown stops a bid sequence from deferring termination
// forever. Cooldown state is process-local and lossy across restarts; the
// worst case is a single extra extension, which is accepted.
type SnipeGuard struct {
	cfg    SnipeConfig
	logger *slog.Logger

	mu     sync.Mutex
	recent map[uuid.UUID]time.Time // auction id -> last extension

	checks     atomic.Int64
	extensions atomic.Int64
	errors     atomic.Int64
}

// NewSnipeGuard creates a snipe guard with its own cooldown state
func NewSnipeGuard(cfg SnipeConfig, logger *slog.Logger) *SnipeGuard {
	return &SnipeGuard{
		cfg:    cfg,
		logger: logger,
		recent: make(map[uuid.UUID]time.Time),
	}
}

// HandleBidPlaced runs the sniping check for an accepted bid. A failed
// extension is swallowed and reported as Extended=false: the bid already
// succeeded, and a protection hiccup must not undo that.
func (g *SnipeGuard) HandleBidPlaced(ctx context.Context, ext AuctionExtender, a *Auction, bidderID string, amount int64) SnipeEvent {
	remaining := time.Until(a.EndTime)

	event := SnipeEvent{
		AuctionID:        a.ID,
		BidderID:         bidderID,
		BidAmount:        amount,
		MinutesRemaining: remaining.Minutes(),
	}

	if !g.cfg.Enabled {
		return event
	}

	g.checks.Add(1)

	if remaining > g.cfg.Window {
		return event
	}

	g.logger.Info("bid landed in sniping window",
		"auction_id", a.ID,
		"bidder_id", bidderID,
		"minutes_remaining", event.MinutesRemaining,
	)

	now := time.Now()
	if !g.shouldExtend(a.ID, now) {
		return event
	}

	if _, err := ext.Extend(ctx, a.ID, g.cfg.Extension); err != nil {
		g.errors.Add(1)
		g.logger.Error("failed to extend auction", "auction_id", a.ID, "error", err)
		return event
	}

	g.mu.Lock()
	g.recent[a.ID] = now
	g.mu.Unlock()

	g.extensions.Add(1)
	event.Extended = true
	event.ExtensionMinutes = int(g.cfg.Extension.Minutes())

	g.logger.Info("auction extended by sniping protection",
		"auction_id", a.ID,
		"extension_minutes", event.ExtensionMinutes,
	)

	return event
}

// shouldExtend applies the per-auction cooldown
func (g *SnipeGuard) shouldExtend(id uuid.UUID, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	last, ok := g.recent[id]
	if !ok {
		return true
	}
	return now.Sub(last) >= g.cfg.Cooldown
}

// Forget drops the cooldown entry for a terminated auction
func (g *SnipeGuard) Forget(id uuid.UUID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.recent, id)
}

// Prune drops extension records older than the retention window
func (g *SnipeGuard) Prune(olderThan time.Duration) int {
	cutoff := time.Now().Add(-olderThan)

	g.mu.Lock()
	defer g.mu.Unlock()

	removed := 0
	for id, at := range g.recent {
		if at.Before(cutoff) {
			delete(g.recent, id)
			removed++
		}
	}
	return removed
}

// Stats reports the guard's counters
func (g *SnipeGuard) Stats() SnipeStats {
	g.mu.Lock()
	tracked := len(g.recent)
	g.mu.Unlock()

	return SnipeStats{
		Enabled:          g.cfg.Enabled,
		WindowMinutes:    g.cfg.Window.Minutes(),
		ExtensionMinutes: g.cfg.Extension.Minutes(),
		TotalChecks:      g.checks.Load(),
		TotalExtensions:  g.extensions.Load(),
		TotalErrors:      g.errors.Load(),
		TrackedAuctions:  tracked,
	}
}
