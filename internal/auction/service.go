package auction

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/florik/hammerbot/pkg/database"
	"github.com/florik/hammerbot/pkg/events"
)

// CreateAuctionCommand carries the input for a new listing
type CreateAuctionCommand struct {
	OwnerID      string
	ItemName     string
	Quantity     int
	Name         string
	Description  string
	ImageURL     string
	BinPrice     *int64
	Duration     time.Duration
	BypassLimits bool // administrative creations skip the per-owner caps
}

// PlaceBidCommand carries the input for a bid
type PlaceBidCommand struct {
	AuctionID uuid.UUID
	BidderID  string
	Amount    int64
}

// Service implements the auction lifecycle: creation, bidding, buy-now,
// withdrawal and termination. Every transition runs in one transaction
// holding the auction's row lock, with its notification saved to the
// outbox in the same transaction.
type Service struct {
	txManager database.TransactionManager
	repo      Repository
	outbox    events.OutboxRepository
	guard     *SnipeGuard
	analyzer  *Analyzer
	policy    Policy
	logger    *slog.Logger

	// bid spacing state, process-local
	mu        sync.Mutex
	lastBidAt map[string]time.Time
}

// NewService creates the auction service
func NewService(
	txManager database.TransactionManager,
	repo Repository,
	outbox events.OutboxRepository,
	guard *SnipeGuard,
	analyzer *Analyzer,
	policy Policy,
	logger *slog.Logger,
) *Service {
	return &Service{
		txManager: txManager,
		repo:      repo,
		outbox:    outbox,
		guard:     guard,
		analyzer:  analyzer,
		policy:    policy,
		logger:    logger,
		lastBidAt: make(map[string]time.Time),
	}
}

// CreateAuction validates the listing, enforces the per-owner caps and
// inserts the auction together with its announcement event.
func (s *Service) CreateAuction(ctx context.Context, cmd CreateAuctionCommand) (*Auction, error) {
	if strings.TrimSpace(cmd.ItemName) == "" {
		return nil, ErrItemNameRequired
	}
	if cmd.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if cmd.BinPrice != nil && *cmd.BinPrice <= 0 {
		return nil, ErrInvalidBinPrice
	}
	if cmd.Duration < s.policy.MinDuration || cmd.Duration > s.policy.MaxDuration {
		return nil, ErrInvalidDuration
	}

	if !cmd.BypassLimits {
		active, err := s.repo.CountActiveByOwner(ctx, cmd.OwnerID)
		if err != nil {
			return nil, fmt.Errorf("failed to count active auctions: %w", err)
		}
		if active >= int64(s.policy.MaxActivePerOwner) {
			return nil, ErrTooManyActive
		}

		recent, err := s.repo.ListRecentByOwner(ctx, cmd.OwnerID, time.Now().Add(-time.Hour))
		if err != nil {
			return nil, fmt.Errorf("failed to list recent auctions: %w", err)
		}
		if len(recent) >= s.policy.MaxCreatesPerHour {
			return nil, ErrCreateRateLimited
		}
	}

	now := time.Now()
	name := cmd.Name
	if name == "" {
		name = cmd.ItemName
	}

	auction := &Auction{
		ID:          uuid.New(),
		OwnerID:     cmd.OwnerID,
		ItemName:    cmd.ItemName,
		Quantity:    cmd.Quantity,
		Name:        name,
		Description: cmd.Description,
		ImageURL:    cmd.ImageURL,
		BinPrice:    cmd.BinPrice,
		StartTime:   now,
		EndTime:     now.Add(cmd.Duration),
		Duration:    cmd.Duration,
		Status:      StatusActive,
	}

	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := s.repo.Create(ctx, tx, auction); err != nil {
		return nil, fmt.Errorf("failed to create auction: %w", err)
	}

	if err := s.saveEvent(ctx, tx, EventTypeAuctionCreated, CreatedPayload{
		AuctionID: auction.ID.String(),
		OwnerID:   auction.OwnerID,
		ItemName:  auction.ItemName,
		EndTime:   auction.EndTime,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info("auction created",
		"auction_id", auction.ID,
		"owner_id", auction.OwnerID,
		"item", auction.ItemName,
		"end_time", auction.EndTime,
	)

	return auction, nil
}

// GetAuction retrieves a single auction
func (s *Service) GetAuction(ctx context.Context, id uuid.UUID) (*Auction, error) {
	return s.repo.GetByID(ctx, id)
}

// ListActive retrieves active auctions, most recent first
func (s *Service) ListActive(ctx context.Context, limit, offset int) ([]*Auction, error) {
	return s.repo.ListActive(ctx, limit, offset)
}

// ListOwnerAuctions retrieves an owner's active auctions
func (s *Service) ListOwnerAuctions(ctx context.Context, ownerID string) ([]*Auction, error) {
	return s.repo.ListActiveByOwner(ctx, ownerID)
}

// PlaceBid accepts or rejects a bid. On acceptance it records the new
// leading bid and the outbid notification in one transaction, then runs
// the sniping check outside the transaction. The returned SnipeEvent
// tells the caller whether the auction was extended.
func (s *Service) PlaceBid(ctx context.Context, cmd PlaceBidCommand) (*Auction, SnipeEvent, error) {
	if err := s.checkBidSpacing(cmd.BidderID); err != nil {
		return nil, SnipeEvent{}, err
	}

	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return nil, SnipeEvent{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	// Lock the auction row so concurrent bids serialize here
	auction, err := s.repo.GetByIDForUpdate(ctx, tx, cmd.AuctionID)
	if err != nil {
		return nil, SnipeEvent{}, err
	}

	if auction.Status != StatusActive || auction.IsExpired() {
		return nil, SnipeEvent{}, ErrAuctionNotActive
	}
	if auction.IsOwnedBy(cmd.BidderID) {
		return nil, SnipeEvent{}, ErrOwnerCannotBid
	}
	if auction.CurrentBidderID != nil && *auction.CurrentBidderID == cmd.BidderID {
		return nil, SnipeEvent{}, ErrAlreadyLeading
	}
	if cmd.Amount < MinimumBid(auction.CurrentBid, s.policy) {
		return nil, SnipeEvent{}, ErrBidTooLow
	}

	previousBidder := auction.CurrentBidderID

	if err := s.repo.UpdateBid(ctx, tx, auction.ID, cmd.Amount, cmd.BidderID); err != nil {
		return nil, SnipeEvent{}, fmt.Errorf("failed to update bid: %w", err)
	}

	if previousBidder != nil {
		if err := s.saveEvent(ctx, tx, EventTypeAuctionOutbid, OutbidPayload{
			AuctionID:        auction.ID.String(),
			AuctionName:      auction.Name,
			PreviousBidderID: *previousBidder,
			NewBid:           cmd.Amount,
		}); err != nil {
			return nil, SnipeEvent{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, SnipeEvent{}, fmt.Errorf("failed to commit transaction: %w", err)
	}

	now := time.Now()
	auction.CurrentBid = cmd.Amount
	bidder := cmd.BidderID
	auction.CurrentBidderID = &bidder

	s.recordBidTime(cmd.BidderID, now)
	s.analyzer.RecordBid(auction.ID, cmd.BidderID, now)

	s.logger.Info("bid placed",
		"auction_id", auction.ID,
		"bidder_id", cmd.BidderID,
		"amount", cmd.Amount,
	)

	// The bid is committed; the sniping check runs best-effort on top
	snipe := s.guard.HandleBidPlaced(ctx, s, auction, cmd.BidderID, cmd.Amount)
	if snipe.Extended {
		auction.EndTime = auction.EndTime.Add(s.guard.cfg.Extension)
		auction.Duration += s.guard.cfg.Extension
		s.publishExtended(ctx, snipe)
	}

	return auction, snipe, nil
}

// BuyNow ends the auction immediately at its buy-now price
func (s *Service) BuyNow(ctx context.Context, id uuid.UUID, buyerID string) (*Settlement, error) {
	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	auction, err := s.repo.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if auction.Status != StatusActive || auction.IsExpired() {
		return nil, ErrAuctionNotActive
	}
	if auction.BinPrice == nil {
		return nil, ErrNoBinPrice
	}
	if auction.IsOwnedBy(buyerID) {
		return nil, ErrOwnerCannotBuy
	}

	price := *auction.BinPrice
	settlement := SettlementFromPurchase(auction, buyerID, price)

	if err := s.repo.UpdateBid(ctx, tx, auction.ID, price, buyerID); err != nil {
		return nil, fmt.Errorf("failed to record purchase: %w", err)
	}
	if err := s.repo.UpdateStatus(ctx, tx, auction.ID, StatusEnded); err != nil {
		return nil, fmt.Errorf("failed to end auction: %w", err)
	}

	if err := s.saveEvent(ctx, tx, EventTypeAuctionEnded, endedPayload(settlement)); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.finishTracking(auction)

	s.logger.Info("auction purchased",
		"auction_id", auction.ID,
		"buyer_id", buyerID,
		"price", price,
	)

	return &settlement, nil
}

// Withdraw lets the owner pull an active listing. The standing bid, if
// any, is simply released.
func (s *Service) Withdraw(ctx context.Context, id uuid.UUID, requesterID string) (*Settlement, error) {
	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	auction, err := s.repo.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if !auction.IsOwnedBy(requesterID) {
		return nil, ErrNotOwner
	}
	if auction.Status != StatusActive {
		return nil, ErrAuctionNotActive
	}

	settlement := SettlementFromAuction(auction, EndReasonWithdrawn)

	if err := s.repo.UpdateStatus(ctx, tx, auction.ID, StatusWithdrawn); err != nil {
		return nil, fmt.Errorf("failed to withdraw auction: %w", err)
	}

	if err := s.saveEvent(ctx, tx, EventTypeAuctionWithdrawn, endedPayload(settlement)); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.finishTracking(auction)

	s.logger.Info("auction withdrawn", "auction_id", auction.ID, "owner_id", requesterID)

	return &settlement, nil
}

// End terminates an expired auction. The sweeper is the normal caller.
func (s *Service) End(ctx context.Context, id uuid.UUID) (*Settlement, error) {
	return s.end(ctx, id, EndReasonExpired)
}

// ForceEnd terminates an auction immediately regardless of its end time
func (s *Service) ForceEnd(ctx context.Context, id uuid.UUID) (*Settlement, error) {
	return s.end(ctx, id, EndReasonForced)
}

func (s *Service) end(ctx context.Context, id uuid.UUID, reason EndReason) (*Settlement, error) {
	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	auction, err := s.repo.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if auction.Status != StatusActive {
		return nil, ErrAuctionNotActive
	}

	settlement := SettlementFromAuction(auction, reason)

	if err := s.repo.UpdateStatus(ctx, tx, auction.ID, StatusEnded); err != nil {
		return nil, fmt.Errorf("failed to end auction: %w", err)
	}

	if err := s.saveEvent(ctx, tx, EventTypeAuctionEnded, endedPayload(settlement)); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.finishTracking(auction)

	s.logger.Info("auction ended",
		"auction_id", auction.ID,
		"reason", reason,
		"final_bid", settlement.FinalBid,
	)

	return &settlement, nil
}

// Extend pushes an active auction's end time out. The snipe guard calls
// this through the AuctionExtender interface; admins call it directly.
func (s *Service) Extend(ctx context.Context, id uuid.UUID, by time.Duration) (*Auction, error) {
	if by <= 0 {
		return nil, ErrInvalidExtension
	}

	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	auction, err := s.repo.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if auction.Status != StatusActive {
		return nil, ErrAuctionNotActive
	}

	newEnd := auction.EndTime.Add(by)
	newDuration := auction.Duration + by

	if err := s.repo.UpdateEndTime(ctx, tx, auction.ID, newEnd, newDuration); err != nil {
		return nil, fmt.Errorf("failed to extend auction: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	auction.EndTime = newEnd
	auction.Duration = newDuration

	return auction, nil
}

// EditDetails updates the presentation fields of an active auction. Only
// the owner may edit; the item, quantity and prices are immutable.
func (s *Service) EditDetails(ctx context.Context, id uuid.UUID, requesterID, name, description string) (*Auction, error) {
	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	auction, err := s.repo.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if !auction.IsOwnedBy(requesterID) {
		return nil, ErrNotOwner
	}
	if auction.Status != StatusActive {
		return nil, ErrAuctionNotActive
	}

	if name == "" {
		name = auction.Name
	}
	if description == "" {
		description = auction.Description
	}

	if err := s.repo.UpdateDetails(ctx, tx, auction.ID, name, description); err != nil {
		return nil, fmt.Errorf("failed to update auction details: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	auction.Name = name
	auction.Description = description

	return auction, nil
}

// Stats aggregates the auction table for reporting
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	return s.repo.Stats(ctx)
}

// SnipeStats reports the snipe guard's counters
func (s *Service) SnipeStats() SnipeStats {
	return s.guard.Stats()
}

func (s *Service) saveEvent(ctx context.Context, tx pgx.Tx, eventType EventType, payload any) error {
	event, err := newOutboxEvent(eventType, payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", eventType, err)
	}
	if err := s.outbox.SaveEvent(ctx, tx, event); err != nil {
		return fmt.Errorf("failed to save %s event: %w", eventType, err)
	}
	return nil
}

// publishExtended records the extension event in its own small
// transaction. The extension itself is already committed; losing this
// notification costs an announcement, not correctness.
func (s *Service) publishExtended(ctx context.Context, snipe SnipeEvent) {
	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		s.logger.Error("failed to begin transaction for extension event", "error", err)
		return
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	err = s.saveEvent(ctx, tx, EventTypeAuctionExtended, ExtendedPayload{
		AuctionID:        snipe.AuctionID.String(),
		BidderID:         snipe.BidderID,
		BidAmount:        snipe.BidAmount,
		MinutesRemaining: snipe.MinutesRemaining,
		ExtensionMinutes: snipe.ExtensionMinutes,
	})
	if err == nil {
		err = tx.Commit(ctx)
	}
	if err != nil {
		s.logger.Error("failed to save extension event", "auction_id", snipe.AuctionID, "error", err)
	}
}

// checkBidSpacing enforces the minimum gap between bids by one bidder.
// State is process-local; a restart forgives at most one early re-bid.
func (s *Service) checkBidSpacing(bidderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if last, ok := s.lastBidAt[bidderID]; ok {
		if time.Since(last) < s.policy.BidSpacing {
			return ErrRebidTooSoon
		}
	}
	return nil
}

func (s *Service) recordBidTime(bidderID string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastBidAt[bidderID] = at
}

// finishTracking releases the per-auction in-memory state and logs the
// bid pattern report for a terminated auction.
func (s *Service) finishTracking(a *Auction) {
	s.guard.Forget(a.ID)

	report := s.analyzer.Analyze(a.ID, a.StartTime, time.Now())
	if report.Pattern != PatternNoBids {
		s.logger.Info("bid pattern analyzed",
			"auction_id", a.ID,
			"pattern", report.Pattern,
			"total_bids", report.TotalBids,
			"unique_bidders", report.UniqueBidders,
		)
	}
}
