package api

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"github.com/florik/hammerbot/pkg/auth"
)

const adminTokenTTL = 15 * time.Minute

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

type extendRequest struct {
	Minutes int `json:"minutes"`
}

// AdminLogin handles POST /v1/admin/login
func (h *Handler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	usernameMatch := subtle.ConstantTimeCompare([]byte(req.Username), []byte(h.admin.Username)) == 1
	passwordMatch, err := auth.VerifyPassword(h.admin.PasswordHash, req.Password)
	if err != nil || !usernameMatch || !passwordMatch {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, expiresAt, err := h.signer.GenerateToken(req.Username, []string{auth.PermissionAdmin}, adminTokenTTL)
	if err != nil {
		h.logger.Error("failed to generate admin token", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("admin logged in", "username", req.Username)

	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: expiresAt.Format(time.RFC3339),
	})
}

// AdminForceEnd handles POST /v1/admin/auctions/{auctionID}/end
func (h *Handler) AdminForceEnd(w http.ResponseWriter, r *http.Request) {
	id, ok := auctionIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid auction id")
		return
	}

	settlement, err := h.service.ForceEnd(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	h.logger.Info("auction force-ended by admin", "auction_id", id)

	writeJSON(w, http.StatusOK, toSettlementResponse(settlement))
}

// AdminExtend handles POST /v1/admin/auctions/{auctionID}/extend
func (h *Handler) AdminExtend(w http.ResponseWriter, r *http.Request) {
	id, ok := auctionIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid auction id")
		return
	}

	var req extendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.Minutes <= 0 {
		writeError(w, http.StatusBadRequest, "minutes must be positive")
		return
	}

	a, err := h.service.Extend(r.Context(), id, time.Duration(req.Minutes)*time.Minute)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	h.logger.Info("auction extended by admin", "auction_id", id, "minutes", req.Minutes)

	writeJSON(w, http.StatusOK, h.toAuctionResponse(a))
}

// AdminStats handles GET /v1/admin/stats
func (h *Handler) AdminStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"auctions": map[string]any{
			"by_status":          stats.ByStatus,
			"active_value_cents": stats.ActiveValue,
			"unique_sellers":     stats.UniqueSellers,
			"unique_bidders":     stats.UniqueBidders,
		},
		"sniping_protection": h.service.SnipeStats(),
	})
}
