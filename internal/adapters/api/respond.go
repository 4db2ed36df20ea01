package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/florik/hammerbot/internal/auction"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to write json response", "status", status, "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

var validationErrors = []error{
	auction.ErrItemNameRequired,
	auction.ErrInvalidQuantity,
	auction.ErrInvalidBinPrice,
	auction.ErrInvalidDuration,
	auction.ErrBidTooLow,
	auction.ErrAlreadyLeading,
	auction.ErrRebidTooSoon,
	auction.ErrTooManyActive,
	auction.ErrCreateRateLimited,
	auction.ErrNoBinPrice,
	auction.ErrInvalidExtension,
}

var permissionErrors = []error{
	auction.ErrOwnerCannotBid,
	auction.ErrOwnerCannotBuy,
	auction.ErrNotOwner,
}

// writeDomainError maps domain sentinels to HTTP statuses. Anything
// unmatched is a 500 with a generic body; the detail goes to the log.
func writeDomainError(w http.ResponseWriter, err error) {
	for _, sentinel := range validationErrors {
		if errors.Is(err, sentinel) {
			writeError(w, http.StatusBadRequest, sentinel.Error())
			return
		}
	}
	for _, sentinel := range permissionErrors {
		if errors.Is(err, sentinel) {
			writeError(w, http.StatusForbidden, sentinel.Error())
			return
		}
	}
	if errors.Is(err, auction.ErrAuctionNotFound) {
		writeError(w, http.StatusNotFound, auction.ErrAuctionNotFound.Error())
		return
	}
	if errors.Is(err, auction.ErrAuctionNotActive) {
		writeError(w, http.StatusConflict, auction.ErrAuctionNotActive.Error())
		return
	}

	slog.Error("request failed", "error", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}
