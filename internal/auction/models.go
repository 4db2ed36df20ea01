package auction

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an auction
type Status string

const (
	StatusActive    Status = "active"
	StatusEnded     Status = "ended"
	StatusWithdrawn Status = "withdrawn"
)

// IsTerminal reports whether the status is a terminal state
func (s Status) IsTerminal() bool {
	return s == StatusEnded || s == StatusWithdrawn
}

// Auction is a timed listing. Money amounts are integer cents.
// CurrentBid of 0 means no bids; CurrentBidderID is nil exactly then.
type Auction struct {
	ID              uuid.UUID
	OwnerID         string // chat-platform user snowflake
	ItemName        string
	Quantity        int
	Name            string
	Description     string
	ImageURL        string
	BinPrice        *int64 // optional buy-now price in cents, immutable
	CurrentBid      int64
	CurrentBidderID *string
	StartTime       time.Time
	EndTime         time.Time
	Duration        time.Duration // nominal, grows with extensions
	Status          Status
}

// IsOwnedBy reports whether userID owns the auction
func (a *Auction) IsOwnedBy(userID string) bool {
	return a.OwnerID == userID
}

// IsExpired reports whether the auction's end time has passed
func (a *Auction) IsExpired() bool {
	return !time.Now().Before(a.EndTime)
}

// TimeRemaining renders the time left as "<d>d <h>h <m>m", dropping leading
// zero components down to "<m>m", or "Expired" once the end time has passed.
func (a *Auction) TimeRemaining() string {
	remaining := time.Until(a.EndTime)
	if remaining <= 0 {
		return "Expired"
	}

	days := int(remaining.Hours()) / 24
	hours := int(remaining.Hours()) % 24
	minutes := int(remaining.Minutes()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}

// Policy holds the bidding and creation rules. Config is the single
// authority for these values; nothing else hard-codes them.
type Policy struct {
	MinBidFloor       int64         // minimum first bid, cents
	MinIncrement      float64       // fractional raise over the current bid
	BidSpacing        time.Duration // minimum gap between bids by one bidder
	MaxActivePerOwner int
	MaxCreatesPerHour int
	MinDuration       time.Duration
	MaxDuration       time.Duration
}

// DefaultPolicy mirrors the production defaults: $0.50 floor, 10% raise,
// 5s bid spacing, 5 concurrent auctions and 3 creations/hour per owner.
func DefaultPolicy() Policy {
	return Policy{
		MinBidFloor:       50,
		MinIncrement:      0.10,
		BidSpacing:        5 * time.Second,
		MaxActivePerOwner: 5,
		MaxCreatesPerHour: 3,
		MinDuration:       time.Minute,
		MaxDuration:       14 * 24 * time.Hour,
	}
}

// MinimumBid computes the lowest acceptable bid against the current one:
// max(floor, current*(1+increment)), rounded half-up to the cent. A bid
// exactly equal to the minimum is accepted.
func MinimumBid(currentBid int64, p Policy) int64 {
	raised := int64(math.Round(float64(currentBid) * (1 + p.MinIncrement)))
	if raised < p.MinBidFloor {
		return p.MinBidFloor
	}
	return raised
}

// Stats is an aggregate snapshot of the auction table
type Stats struct {
	ByStatus      map[string]int64
	ActiveValue   int64
	UniqueSellers int64
	UniqueBidders int64
}
