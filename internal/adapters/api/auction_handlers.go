package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/florik/hammerbot/internal/auction"
)

type createAuctionRequest struct {
	OwnerID         string `json:"owner_id"`
	ItemName        string `json:"item_name"`
	Quantity        int    `json:"quantity"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	ImageURL        string `json:"image_url"`
	BinPriceCents   *int64 `json:"bin_price_cents"`
	DurationSeconds int64  `json:"duration_seconds"`
}

type placeBidRequest struct {
	BidderID    string `json:"bidder_id"`
	AmountCents int64  `json:"amount_cents"`
}

type purchaseRequest struct {
	BuyerID string `json:"buyer_id"`
}

type withdrawRequest struct {
	RequesterID string `json:"requester_id"`
}

type editAuctionRequest struct {
	RequesterID string `json:"requester_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type auctionResponse struct {
	ID              string `json:"id"`
	OwnerID         string `json:"owner_id"`
	ItemName        string `json:"item_name"`
	Quantity        int    `json:"quantity"`
	Name            string `json:"name"`
	Description     string `json:"description,omitempty"`
	ImageURL        string `json:"image_url,omitempty"`
	BinPriceCents   *int64 `json:"bin_price_cents,omitempty"`
	CurrentBidCents int64  `json:"current_bid_cents"`
	MinimumBidCents int64  `json:"minimum_bid_cents"`
	CurrentBidderID string `json:"current_bidder_id,omitempty"`
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
	TimeRemaining   string `json:"time_remaining"`
	Status          string `json:"status"`
}

type bidResponse struct {
	Auction          auctionResponse `json:"auction"`
	Extended         bool            `json:"extended"`
	ExtensionMinutes int             `json:"extension_minutes,omitempty"`
}

type settlementResponse struct {
	AuctionID     string `json:"auction_id"`
	ItemName      string `json:"item_name"`
	FinalBidCents int64  `json:"final_bid_cents"`
	OwnerID       string `json:"owner_id"`
	WinnerID      string `json:"winner_id,omitempty"`
	Reason        string `json:"reason"`
}

func (h *Handler) toAuctionResponse(a *auction.Auction) auctionResponse {
	resp := auctionResponse{
		ID:              a.ID.String(),
		OwnerID:         a.OwnerID,
		ItemName:        a.ItemName,
		Quantity:        a.Quantity,
		Name:            a.Name,
		Description:     a.Description,
		ImageURL:        a.ImageURL,
		BinPriceCents:   a.BinPrice,
		CurrentBidCents: a.CurrentBid,
		MinimumBidCents: auction.MinimumBid(a.CurrentBid, h.policy),
		StartTime:       a.StartTime.Format(time.RFC3339),
		EndTime:         a.EndTime.Format(time.RFC3339),
		TimeRemaining:   a.TimeRemaining(),
		Status:          string(a.Status),
	}
	if a.CurrentBidderID != nil {
		resp.CurrentBidderID = *a.CurrentBidderID
	}
	return resp
}

func toSettlementResponse(s *auction.Settlement) settlementResponse {
	resp := settlementResponse{
		AuctionID:     s.AuctionID.String(),
		ItemName:      s.ItemName,
		FinalBidCents: s.FinalBid,
		OwnerID:       s.OwnerID,
		Reason:        string(s.Reason),
	}
	if s.WinnerID != nil {
		resp.WinnerID = *s.WinnerID
	}
	return resp
}

// CreateAuction handles POST /v1/auctions
func (h *Handler) CreateAuction(w http.ResponseWriter, r *http.Request) {
	var req createAuctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.OwnerID == "" {
		writeError(w, http.StatusBadRequest, "owner_id is required")
		return
	}
	if req.ItemName == "" {
		writeError(w, http.StatusBadRequest, "item_name is required")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	created, err := h.service.CreateAuction(r.Context(), auction.CreateAuctionCommand{
		OwnerID:     req.OwnerID,
		ItemName:    req.ItemName,
		Quantity:    req.Quantity,
		Name:        req.Name,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		BinPrice:    req.BinPriceCents,
		Duration:    time.Duration(req.DurationSeconds) * time.Second,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, h.toAuctionResponse(created))
}

// ListAuctions handles GET /v1/auctions
func (h *Handler) ListAuctions(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)
	if limit < 1 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	auctions, err := h.service.ListActive(r.Context(), limit, offset)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := make([]auctionResponse, 0, len(auctions))
	for _, a := range auctions {
		resp = append(resp, h.toAuctionResponse(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{"auctions": resp})
}

// GetSummary handles GET /v1/auctions/summary
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.summary.GetSummary(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// GetAuction handles GET /v1/auctions/{auctionID}
func (h *Handler) GetAuction(w http.ResponseWriter, r *http.Request) {
	id, ok := auctionIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid auction id")
		return
	}

	a, err := h.service.GetAuction(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toAuctionResponse(a))
}

// ListOwnerAuctions handles GET /v1/owners/{ownerID}/auctions
func (h *Handler) ListOwnerAuctions(w http.ResponseWriter, r *http.Request) {
	ownerID := chi.URLParam(r, "ownerID")
	if ownerID == "" {
		writeError(w, http.StatusBadRequest, "owner id is required")
		return
	}

	auctions, err := h.service.ListOwnerAuctions(r.Context(), ownerID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := make([]auctionResponse, 0, len(auctions))
	for _, a := range auctions {
		resp = append(resp, h.toAuctionResponse(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{"auctions": resp})
}

// PlaceBid handles POST /v1/auctions/{auctionID}/bids
func (h *Handler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	id, ok := auctionIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid auction id")
		return
	}

	var req placeBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.BidderID == "" {
		writeError(w, http.StatusBadRequest, "bidder_id is required")
		return
	}

	a, snipe, err := h.service.PlaceBid(r.Context(), auction.PlaceBidCommand{
		AuctionID: id,
		BidderID:  req.BidderID,
		Amount:    req.AmountCents,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, bidResponse{
		Auction:          h.toAuctionResponse(a),
		Extended:         snipe.Extended,
		ExtensionMinutes: snipe.ExtensionMinutes,
	})
}

// BuyNow handles POST /v1/auctions/{auctionID}/purchase
func (h *Handler) BuyNow(w http.ResponseWriter, r *http.Request) {
	id, ok := auctionIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid auction id")
		return
	}

	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.BuyerID == "" {
		writeError(w, http.StatusBadRequest, "buyer_id is required")
		return
	}

	settlement, err := h.service.BuyNow(r.Context(), id, req.BuyerID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettlementResponse(settlement))
}

// Withdraw handles POST /v1/auctions/{auctionID}/withdraw
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	id, ok := auctionIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid auction id")
		return
	}

	var req withdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.RequesterID == "" {
		writeError(w, http.StatusBadRequest, "requester_id is required")
		return
	}

	settlement, err := h.service.Withdraw(r.Context(), id, req.RequesterID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettlementResponse(settlement))
}

// EditAuction handles PATCH /v1/auctions/{auctionID}
func (h *Handler) EditAuction(w http.ResponseWriter, r *http.Request) {
	id, ok := auctionIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid auction id")
		return
	}

	var req editAuctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.RequesterID == "" {
		writeError(w, http.StatusBadRequest, "requester_id is required")
		return
	}

	a, err := h.service.EditDetails(r.Context(), id, req.RequesterID, req.Name, req.Description)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toAuctionResponse(a))
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
