package auction

import "fmt"

// Validation errors: malformed or unacceptable input, nothing mutated.
var (
	ErrItemNameRequired  = fmt.Errorf("item name is required")
	ErrInvalidQuantity   = fmt.Errorf("quantity must be positive")
	ErrInvalidBinPrice   = fmt.Errorf("buy-now price must be positive")
	ErrInvalidDuration   = fmt.Errorf("duration is out of bounds")
	ErrBidTooLow         = fmt.Errorf("bid is below the minimum acceptable amount")
	ErrAlreadyLeading    = fmt.Errorf("bidder already holds the leading bid")
	ErrRebidTooSoon      = fmt.Errorf("bidder must wait before bidding again")
	ErrTooManyActive     = fmt.Errorf("owner has reached the concurrent auction cap")
	ErrCreateRateLimited = fmt.Errorf("owner has reached the hourly creation cap")
	ErrNoBinPrice        = fmt.Errorf("auction has no buy-now price")
	ErrInvalidExtension  = fmt.Errorf("extension must be positive")
)

// Permission errors: the actor is not allowed to perform the action.
var (
	ErrOwnerCannotBid = fmt.Errorf("owner cannot bid on their own auction")
	ErrOwnerCannotBuy = fmt.Errorf("owner cannot buy their own auction")
	ErrNotOwner       = fmt.Errorf("only the owner can perform this action")
)

// State errors.
var (
	ErrAuctionNotFound  = fmt.Errorf("auction not found")
	ErrAuctionNotActive = fmt.Errorf("auction is not active")
)
