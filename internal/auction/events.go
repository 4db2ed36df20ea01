package auction

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/florik/hammerbot/pkg/events"
)

// EventType represents the type of domain event
type EventType string

const (
	EventTypeAuctionCreated   EventType = "auction.created"
	EventTypeAuctionOutbid    EventType = "auction.outbid"
	EventTypeAuctionExtended  EventType = "auction.extended"
	EventTypeAuctionEnded     EventType = "auction.ended"
	EventTypeAuctionWithdrawn EventType = "auction.withdrawn"
)

// String returns the string representation of the event type
func (e EventType) String() string {
	return string(e)
}

// IsValid checks if the event type is valid
func (e EventType) IsValid() bool {
	switch e {
	case EventTypeAuctionCreated,
		EventTypeAuctionOutbid,
		EventTypeAuctionExtended,
		EventTypeAuctionEnded,
		EventTypeAuctionWithdrawn:
		return true
	default:
		return false
	}
}

// CreatedPayload announces a new listing
type CreatedPayload struct {
	AuctionID string    `json:"auction_id"`
	OwnerID   string    `json:"owner_id"`
	ItemName  string    `json:"item_name"`
	EndTime   time.Time `json:"end_time"`
}

// OutbidPayload tells the previous leading bidder they lost the lead
type OutbidPayload struct {
	AuctionID        string `json:"auction_id"`
	AuctionName      string `json:"auction_name"`
	PreviousBidderID string `json:"previous_bidder_id"`
	NewBid           int64  `json:"new_bid"`
}

// ExtendedPayload carries the snipe-guard extension outcome
type ExtendedPayload struct {
	AuctionID        string  `json:"auction_id"`
	BidderID         string  `json:"bidder_id"`
	BidAmount        int64   `json:"bid_amount"`
	MinutesRemaining float64 `json:"minutes_remaining"`
	ExtensionMinutes int     `json:"extension_minutes"`
}

// EndedPayload is the auction-end notification
type EndedPayload struct {
	AuctionID       string  `json:"auction_id"`
	ItemName        string  `json:"item_name"`
	CurrentBid      int64   `json:"current_bid"`
	OwnerID         string  `json:"owner_id"`
	CurrentBidderID *string `json:"current_bidder_id"`
	Reason          string  `json:"reason"`
}

func endedPayload(s Settlement) EndedPayload {
	return EndedPayload{
		AuctionID:       s.AuctionID.String(),
		ItemName:        s.ItemName,
		CurrentBid:      s.FinalBid,
		OwnerID:         s.OwnerID,
		CurrentBidderID: s.WinnerID,
		Reason:          string(s.Reason),
	}
}

// newOutboxEvent marshals a payload into a pending outbox event
func newOutboxEvent(eventType EventType, payload any) (*events.OutboxEvent, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &events.OutboxEvent{
		ID:        uuid.New(),
		EventType: eventType.String(),
		Payload:   body,
		Status:    events.OutboxStatusPending,
		CreatedAt: time.Now(),
	}, nil
}
