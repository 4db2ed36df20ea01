package auction

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Pattern classifies the bid timing of a finished auction
type Pattern string

const (
	PatternNoBids      Pattern = "no_bids"
	PatternSniping     Pattern = "sniping_detected"
	PatternLateRush    Pattern = "last_minute_rush"
	PatternCompetitive Pattern = "competitive_bidding"
	PatternNormal      Pattern = "normal_bidding"
)

// AnalyzerConfig tunes the pattern classification thresholds
type AnalyzerConfig struct {
	LateWindow      time.Duration // bids this close to the end count as late
	VeryLateWindow  time.Duration // bids this close to the end count as sniping
	LateShare       float64       // late-bid fraction above which the auction is a rush
	CompetitiveBids int           // bid count above which the auction is competitive
	Retention       time.Duration // how long untouched histories are kept
}

// DefaultAnalyzerConfig returns the stock thresholds
func DefaultAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{
		LateWindow:      5 * time.Minute,
		VeryLateWindow:  time.Minute,
		LateShare:       0.5,
		CompetitiveBids: 10,
		Retention:       24 * time.Hour,
	}
}

// Distribution buckets an auction's bids by when they arrived
type Distribution struct {
	FirstHour     int `json:"first_hour"`
	MidAuction    int `json:"mid_auction"`
	LastHour      int `json:"last_hour"`
	Last15Minutes int `json:"last_15_minutes"`
	Last5Minutes  int `json:"last_5_minutes"`
}

// PatternReport is the timing analysis of one finished auction
type PatternReport struct {
	AuctionID     uuid.UUID    `json:"auction_id"`
	Pattern       Pattern      `json:"pattern"`
	TotalBids     int          `json:"total_bids"`
	UniqueBidders int          `json:"unique_bidders"`
	Distribution  Distribution `json:"distribution"`
}

type bidRecord struct {
	bidderID string
	at       time.Time
}

// Analyzer accumulates bid timestamps per auction and classifies the
// bidding pattern once the auction terminates. History is process-local
// and advisory; losing it on restart only degrades the reports.
type Analyzer struct {
	cfg AnalyzerConfig

	mu      sync.Mutex
	history map[uuid.UUID][]bidRecord
	touched map[uuid.UUID]time.Time
}

// NewAnalyzer creates an analyzer with empty history
func NewAnalyzer(cfg AnalyzerConfig) *Analyzer {
	return &Analyzer{
		cfg:     cfg,
		history: make(map[uuid.UUID][]bidRecord),
		touched: make(map[uuid.UUID]time.Time),
	}
}

// RecordBid appends one accepted bid to the auction's history
func (an *Analyzer) RecordBid(id uuid.UUID, bidderID string, at time.Time) {
	an.mu.Lock()
	defer an.mu.Unlock()
	an.history[id] = append(an.history[id], bidRecord{bidderID: bidderID, at: at})
	an.touched[id] = at
}

// Analyze classifies the auction's bid history against its lifetime and
// drops the history. Calling it twice for the same auction yields a
// no_bids report the second time.
func (an *Analyzer) Analyze(id uuid.UUID, startAt, endAt time.Time) PatternReport {
	an.mu.Lock()
	bids := an.history[id]
	delete(an.history, id)
	delete(an.touched, id)
	an.mu.Unlock()

	report := PatternReport{
		AuctionID: id,
		TotalBids: len(bids),
	}

	if len(bids) == 0 {
		report.Pattern = PatternNoBids
		return report
	}

	bidders := make(map[string]struct{}, len(bids))
	late := 0
	veryLate := 0

	for _, b := range bids {
		bidders[b.bidderID] = struct{}{}

		untilEnd := endAt.Sub(b.at)
		sinceStart := b.at.Sub(startAt)

		switch {
		case untilEnd <= 5*time.Minute:
			report.Distribution.Last5Minutes++
		case untilEnd <= 15*time.Minute:
			report.Distribution.Last15Minutes++
		case untilEnd <= time.Hour:
			report.Distribution.LastHour++
		case sinceStart <= time.Hour:
			report.Distribution.FirstHour++
		default:
			report.Distribution.MidAuction++
		}

		if untilEnd <= an.cfg.LateWindow {
			late++
		}
		if untilEnd <= an.cfg.VeryLateWindow {
			veryLate++
		}
	}

	report.UniqueBidders = len(bidders)

	// A single bid inside the very-late window is enough to call sniping,
	// regardless of how the rest of the bids were spread.
	lateShare := float64(late) / float64(len(bids))
	switch {
	case veryLate > 0:
		report.Pattern = PatternSniping
	case lateShare > an.cfg.LateShare:
		report.Pattern = PatternLateRush
	case len(bids) > an.cfg.CompetitiveBids:
		report.Pattern = PatternCompetitive
	default:
		report.Pattern = PatternNormal
	}

	return report
}

// Prune drops histories untouched for longer than the retention window,
// covering auctions that terminated without an Analyze call.
func (an *Analyzer) Prune(olderThan time.Duration) int {
	cutoff := time.Now().Add(-olderThan)

	an.mu.Lock()
	defer an.mu.Unlock()

	removed := 0
	for id, at := range an.touched {
		if at.Before(cutoff) {
			delete(an.history, id)
			delete(an.touched, id)
			removed++
		}
	}
	return removed
}

// Tracked reports how many auctions currently have bid history
func (an *Analyzer) Tracked() int {
	an.mu.Lock()
	defer an.mu.Unlock()
	return len(an.history)
}
