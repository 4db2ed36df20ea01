package api

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/florik/hammerbot/internal/adapters/cache"
	"github.com/florik/hammerbot/internal/auction"
	"github.com/florik/hammerbot/pkg/auth"
)

// fakeService implements AuctionService with overridable behavior
type fakeService struct {
	createFn   func(ctx context.Context, cmd auction.CreateAuctionCommand) (*auction.Auction, error)
	getFn      func(ctx context.Context, id uuid.UUID) (*auction.Auction, error)
	placeBidFn func(ctx context.Context, cmd auction.PlaceBidCommand) (*auction.Auction, auction.SnipeEvent, error)
	buyNowFn   func(ctx context.Context, id uuid.UUID, buyerID string) (*auction.Settlement, error)
	withdrawFn func(ctx context.Context, id uuid.UUID, requesterID string) (*auction.Settlement, error)
	forceEndFn func(ctx context.Context, id uuid.UUID) (*auction.Settlement, error)
	statsFn    func(ctx context.Context) (*auction.Stats, error)
}

func (f *fakeService) CreateAuction(ctx context.Context, cmd auction.CreateAuctionCommand) (*auction.Auction, error) {
	return f.createFn(ctx, cmd)
}

func (f *fakeService) GetAuction(ctx context.Context, id uuid.UUID) (*auction.Auction, error) {
	return f.getFn(ctx, id)
}

func (f *fakeService) ListActive(ctx context.Context, limit, offset int) ([]*auction.Auction, error) {
	return []*auction.Auction{}, nil
}

func (f *fakeService) ListOwnerAuctions(ctx context.Context, ownerID string) ([]*auction.Auction, error) {
	return []*auction.Auction{}, nil
}

func (f *fakeService) PlaceBid(ctx context.Context, cmd auction.PlaceBidCommand) (*auction.Auction, auction.SnipeEvent, error) {
	return f.placeBidFn(ctx, cmd)
}

func (f *fakeService) BuyNow(ctx context.Context, id uuid.UUID, buyerID string) (*auction.Settlement, error) {
	return f.buyNowFn(ctx, id, buyerID)
}

func (f *fakeService) Withdraw(ctx context.Context, id uuid.UUID, requesterID string) (*auction.Settlement, error) {
	return f.withdrawFn(ctx, id, requesterID)
}

func (f *fakeService) ForceEnd(ctx context.Context, id uuid.UUID) (*auction.Settlement, error) {
	return f.forceEndFn(ctx, id)
}

func (f *fakeService) Extend(ctx context.Context, id uuid.UUID, by time.Duration) (*auction.Auction, error) {
	return &auction.Auction{ID: id, EndTime: time.Now().Add(by), Status: auction.StatusActive}, nil
}

func (f *fakeService) EditDetails(ctx context.Context, id uuid.UUID, requesterID, name, description string) (*auction.Auction, error) {
	return &auction.Auction{ID: id, Name: name, Description: description, Status: auction.StatusActive}, nil
}

func (f *fakeService) Stats(ctx context.Context) (*auction.Stats, error) {
	return f.statsFn(ctx)
}

func (f *fakeService) SnipeStats() auction.SnipeStats {
	return auction.SnipeStats{Enabled: true}
}

type fakeSummaryReader struct {
	summary *cache.Summary
}

func (f *fakeSummaryReader) GetSummary(ctx context.Context) (*cache.Summary, error) {
	return f.summary, nil
}

func testSigner(t *testing.T) *auth.Signer {
	t.Helper()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	privPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
	})
	pubBytes, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	require.NoError(t, err)
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes})

	signer, err := auth.NewSigner(privPEM, pubPEM, "test-issuer")
	require.NoError(t, err)
	return signer
}

func testHandler(t *testing.T, svc *fakeService) *Handler {
	t.Helper()

	hash, err := auth.HashPassword("letmein")
	require.NoError(t, err)

	return NewHandler(
		svc,
		&fakeSummaryReader{summary: &cache.Summary{Auctions: []cache.AuctionSummary{}}},
		testSigner(t),
		AdminCredentials{Username: "admin", PasswordHash: hash},
		auction.DefaultPolicy(),
		nil,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateAuctionEndpoint(t *testing.T) {
	svc := &fakeService{
		createFn: func(ctx context.Context, cmd auction.CreateAuctionCommand) (*auction.Auction, error) {
			assert.Equal(t, "100", cmd.OwnerID)
			assert.Equal(t, 72*time.Hour, cmd.Duration)
			return &auction.Auction{
				ID:       uuid.New(),
				OwnerID:  cmd.OwnerID,
				ItemName: cmd.ItemName,
				Quantity: cmd.Quantity,
				Name:     cmd.ItemName,
				EndTime:  time.Now().Add(cmd.Duration),
				Status:   auction.StatusActive,
			}, nil
		},
	}
	router := testHandler(t, svc).Routes()

	rec := doJSON(t, router, http.MethodPost, "/v1/auctions", map[string]any{
		"owner_id":         "100",
		"item_name":        "Ancient Relic",
		"quantity":         1,
		"duration_seconds": 259200,
	}, nil)

	assert.Equal(t, http.StatusCreated, rec.Code)

	var resp auctionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "Ancient Relic", resp.ItemName)
	assert.Equal(t, "active", resp.Status)
	assert.Equal(t, int64(50), resp.MinimumBidCents)
}

func TestCreateAuctionEndpoint_ValidationErrors(t *testing.T) {
	svc := &fakeService{
		createFn: func(ctx context.Context, cmd auction.CreateAuctionCommand) (*auction.Auction, error) {
			return nil, auction.ErrInvalidDuration
		},
	}
	router := testHandler(t, svc).Routes()

	t.Run("missing owner", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/v1/auctions", map[string]any{"item_name": "x"}, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("domain validation maps to 400", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/v1/auctions", map[string]any{
			"owner_id":  "100",
			"item_name": "x",
		}, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("whitespace item name maps to 400", func(t *testing.T) {
		svc := &fakeService{
			createFn: func(ctx context.Context, cmd auction.CreateAuctionCommand) (*auction.Auction, error) {
				return nil, auction.ErrItemNameRequired
			},
		}
		router := testHandler(t, svc).Routes()

		rec := doJSON(t, router, http.MethodPost, "/v1/auctions", map[string]any{
			"owner_id":         "100",
			"item_name":        "   ",
			"duration_seconds": 3600,
		}, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestPlaceBidEndpoint(t *testing.T) {
	auctionID := uuid.New()
	bidder := "300"

	svc := &fakeService{
		placeBidFn: func(ctx context.Context, cmd auction.PlaceBidCommand) (*auction.Auction, auction.SnipeEvent, error) {
			assert.Equal(t, auctionID, cmd.AuctionID)
			assert.Equal(t, int64(1100), cmd.Amount)
			return &auction.Auction{
					ID:              auctionID,
					CurrentBid:      cmd.Amount,
					CurrentBidderID: &bidder,
					EndTime:         time.Now().Add(time.Hour),
					Status:          auction.StatusActive,
				}, auction.SnipeEvent{
					Extended:         true,
					ExtensionMinutes: 5,
				}, nil
		},
	}
	router := testHandler(t, svc).Routes()

	rec := doJSON(t, router, http.MethodPost, "/v1/auctions/"+auctionID.String()+"/bids", map[string]any{
		"bidder_id":    "300",
		"amount_cents": 1100,
	}, nil)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp bidResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Extended)
	assert.Equal(t, 5, resp.ExtensionMinutes)
	assert.Equal(t, int64(1100), resp.Auction.CurrentBidCents)
}

func TestPlaceBidEndpoint_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		serviceErr error
		wantStatus int
	}{
		{"bid too low", auction.ErrBidTooLow, http.StatusBadRequest},
		{"re-bid too soon", auction.ErrRebidTooSoon, http.StatusBadRequest},
		{"owner cannot bid", auction.ErrOwnerCannotBid, http.StatusForbidden},
		{"not found", auction.ErrAuctionNotFound, http.StatusNotFound},
		{"not active", auction.ErrAuctionNotActive, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{
				placeBidFn: func(ctx context.Context, cmd auction.PlaceBidCommand) (*auction.Auction, auction.SnipeEvent, error) {
					return nil, auction.SnipeEvent{}, tt.serviceErr
				},
			}
			router := testHandler(t, svc).Routes()

			rec := doJSON(t, router, http.MethodPost, "/v1/auctions/"+uuid.NewString()+"/bids", map[string]any{
				"bidder_id":    "300",
				"amount_cents": 100,
			}, nil)

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestBuyNowEndpoint(t *testing.T) {
	auctionID := uuid.New()
	winner := "300"

	svc := &fakeService{
		buyNowFn: func(ctx context.Context, id uuid.UUID, buyerID string) (*auction.Settlement, error) {
			return &auction.Settlement{
				AuctionID: id,
				ItemName:  "Ancient Relic",
				FinalBid:  5000,
				OwnerID:   "100",
				WinnerID:  &winner,
				Reason:    auction.EndReasonPurchase,
			}, nil
		},
	}
	router := testHandler(t, svc).Routes()

	rec := doJSON(t, router, http.MethodPost, "/v1/auctions/"+auctionID.String()+"/purchase", map[string]any{
		"buyer_id": "300",
	}, nil)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp settlementResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "purchase", resp.Reason)
	assert.Equal(t, int64(5000), resp.FinalBidCents)
	assert.Equal(t, "300", resp.WinnerID)
}

func TestGetAuctionEndpoint_InvalidID(t *testing.T) {
	router := testHandler(t, &fakeService{}).Routes()

	rec := doJSON(t, router, http.MethodGet, "/v1/auctions/not-a-uuid", nil, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSummaryEndpoint(t *testing.T) {
	router := testHandler(t, &fakeService{}).Routes()

	rec := doJSON(t, router, http.MethodGet, "/v1/auctions/summary", nil, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminLoginAndStats(t *testing.T) {
	svc := &fakeService{
		statsFn: func(ctx context.Context) (*auction.Stats, error) {
			return &auction.Stats{
				ByStatus:      map[string]int64{"active": 3},
				ActiveValue:   4500,
				UniqueSellers: 2,
				UniqueBidders: 4,
			}, nil
		},
	}
	router := testHandler(t, svc).Routes()

	// Stats require a token
	rec := doJSON(t, router, http.MethodGet, "/v1/admin/stats", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Wrong password is rejected
	rec = doJSON(t, router, http.MethodPost, "/v1/admin/login", map[string]string{
		"username": "admin",
		"password": "wrong",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Valid login yields a token
	rec = doJSON(t, router, http.MethodPost, "/v1/admin/login", map[string]string{
		"username": "admin",
		"password": "letmein",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var login loginResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&login))
	require.NotEmpty(t, login.Token)

	// The token opens the stats endpoint
	rec = doJSON(t, router, http.MethodGet, "/v1/admin/stats", nil, map[string]string{
		"Authorization": "Bearer " + login.Token,
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminForceEndEndpoint(t *testing.T) {
	auctionID := uuid.New()
	svc := &fakeService{
		forceEndFn: func(ctx context.Context, id uuid.UUID) (*auction.Settlement, error) {
			return &auction.Settlement{AuctionID: id, Reason: auction.EndReasonForced}, nil
		},
	}
	h := testHandler(t, svc)
	router := h.Routes()

	// Without a token the endpoint is closed
	rec := doJSON(t, router, http.MethodPost, "/v1/admin/auctions/"+auctionID.String()+"/end", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/v1/admin/login", map[string]string{
		"username": "admin",
		"password": "letmein",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var login loginResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&login))

	rec = doJSON(t, router, http.MethodPost, "/v1/admin/auctions/"+auctionID.String()+"/end", nil, map[string]string{
		"Authorization": "Bearer " + login.Token,
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp settlementResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "force_end", resp.Reason)
}
