package auction

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Finalizer is the slice of the lifecycle engine the sweeper needs
type Finalizer interface {
	End(ctx context.Context, id uuid.UUID) (*Settlement, error)
}

// Sweeper periodically ends expired auctions, prunes terminated rows
// after their events are committed, refreshes the active summary cache
// and trims the in-memory tracking state.
type Sweeper struct {
	finalizer Finalizer
	repo      Repository
	cache     SummaryCache
	guard     *SnipeGuard
	analyzer  *Analyzer
	interval  time.Duration
	retention time.Duration
	logger    *slog.Logger
}

// NewSweeper creates a sweeper
func NewSweeper(
	finalizer Finalizer,
	repo Repository,
	cache SummaryCache,
	guard *SnipeGuard,
	analyzer *Analyzer,
	interval time.Duration,
	retention time.Duration,
	logger *slog.Logger,
) *Sweeper {
	return &Sweeper{
		finalizer: finalizer,
		repo:      repo,
		cache:     cache,
		guard:     guard,
		analyzer:  analyzer,
		interval:  interval,
		retention: retention,
		logger:    logger,
	}
}

// Run starts the sweep loop and blocks until ctx is cancelled
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep runs one pass. Each phase is independent; a failure in one is
// logged and the rest still run.
func (s *Sweeper) sweep(ctx context.Context) {
	s.endExpired(ctx)
	s.pruneTerminated(ctx)
	s.refreshSummary(ctx)

	if n := s.guard.Prune(s.retention); n > 0 {
		s.logger.Info("pruned stale extension records", "count", n)
	}
	if n := s.analyzer.Prune(s.retention); n > 0 {
		s.logger.Info("pruned stale bid histories", "count", n)
	}
}

func (s *Sweeper) endExpired(ctx context.Context) {
	expired, err := s.repo.ListExpired(ctx, time.Now())
	if err != nil {
		s.logger.Error("failed to list expired auctions", "error", err)
		return
	}

	for _, a := range expired {
		if _, err := s.finalizer.End(ctx, a.ID); err != nil {
			// A concurrent buy-now or withdrawal may have beaten us to
			// the row; the next pass picks up whatever remains.
			s.logger.Error("failed to end expired auction", "auction_id", a.ID, "error", err)
		}
	}
}

func (s *Sweeper) pruneTerminated(ctx context.Context) {
	terminated, err := s.repo.ListTerminated(ctx)
	if err != nil {
		s.logger.Error("failed to list terminated auctions", "error", err)
		return
	}

	for _, a := range terminated {
		if err := s.repo.Delete(ctx, a.ID); err != nil {
			s.logger.Error("failed to delete terminated auction", "auction_id", a.ID, "error", err)
			continue
		}
		s.logger.Info("terminated auction pruned", "auction_id", a.ID, "status", a.Status)
	}
}

func (s *Sweeper) refreshSummary(ctx context.Context) {
	if s.cache == nil {
		return
	}

	active, err := s.repo.ListActive(ctx, 100, 0)
	if err != nil {
		s.logger.Error("failed to list active auctions for summary", "error", err)
		return
	}

	if err := s.cache.RefreshActive(ctx, active); err != nil {
		s.logger.Error("failed to refresh auction summary", "error", err)
	}
}
