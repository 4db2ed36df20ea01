package auction

import "github.com/google/uuid"

// EndReason records what terminated an auction
type EndReason string

const (
	EndReasonExpired   EndReason = "expired"
	EndReasonPurchase  EndReason = "purchase"
	EndReasonWithdrawn EndReason = "withdrawn"
	EndReasonForced    EndReason = "force_end"
)

// Settlement is the termination payload handed to notification. It replaces
// the ambiguous "record or raw mapping" shape at the termination boundary:
// there are exactly two ways to build one, and both are explicit.
type Settlement struct {
	AuctionID uuid.UUID
	ItemName  string
	FinalBid  int64
	OwnerID   string
	WinnerID  *string
	Reason    EndReason
}

// SettlementFromAuction builds a settlement from the record as it stands,
// used for expiry, withdrawal and administrative force-end.
func SettlementFromAuction(a *Auction, reason EndReason) Settlement {
	return Settlement{
		AuctionID: a.ID,
		ItemName:  a.ItemName,
		FinalBid:  a.CurrentBid,
		OwnerID:   a.OwnerID,
		WinnerID:  a.CurrentBidderID,
		Reason:    reason,
	}
}

// SettlementFromPurchase builds a settlement for a buy-now purchase, which
// overrides whatever bid was standing.
func SettlementFromPurchase(a *Auction, buyerID string, price int64) Settlement {
	winner := buyerID
	return Settlement{
		AuctionID: a.ID,
		ItemName:  a.ItemName,
		FinalBid:  price,
		OwnerID:   a.OwnerID,
		WinnerID:  &winner,
		Reason:    EndReasonPurchase,
	}
}
