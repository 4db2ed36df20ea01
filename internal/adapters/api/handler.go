package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/florik/hammerbot/internal/adapters/cache"
	"github.com/florik/hammerbot/internal/auction"
	"github.com/florik/hammerbot/pkg/auth"
)

// AuctionService is the slice of the lifecycle engine the API needs
type AuctionService interface {
	CreateAuction(ctx context.Context, cmd auction.CreateAuctionCommand) (*auction.Auction, error)
	GetAuction(ctx context.Context, id uuid.UUID) (*auction.Auction, error)
	ListActive(ctx context.Context, limit, offset int) ([]*auction.Auction, error)
	ListOwnerAuctions(ctx context.Context, ownerID string) ([]*auction.Auction, error)
	PlaceBid(ctx context.Context, cmd auction.PlaceBidCommand) (*auction.Auction, auction.SnipeEvent, error)
	BuyNow(ctx context.Context, id uuid.UUID, buyerID string) (*auction.Settlement, error)
	Withdraw(ctx context.Context, id uuid.UUID, requesterID string) (*auction.Settlement, error)
	ForceEnd(ctx context.Context, id uuid.UUID) (*auction.Settlement, error)
	Extend(ctx context.Context, id uuid.UUID, by time.Duration) (*auction.Auction, error)
	EditDetails(ctx context.Context, id uuid.UUID, requesterID, name, description string) (*auction.Auction, error)
	Stats(ctx context.Context) (*auction.Stats, error)
	SnipeStats() auction.SnipeStats
}

// SummaryReader serves the cached active auction board
type SummaryReader interface {
	GetSummary(ctx context.Context) (*cache.Summary, error)
}

// AdminCredentials is the single administrative login
type AdminCredentials struct {
	Username     string
	PasswordHash string
}

// Handler wires the HTTP surface to the auction service
type Handler struct {
	service AuctionService
	summary SummaryReader
	signer  *auth.Signer
	admin   AdminCredentials
	policy  auction.Policy
	health  *HealthChecker
	logger  *slog.Logger
}

// NewHandler creates the API handler
func NewHandler(
	service AuctionService,
	summary SummaryReader,
	signer *auth.Signer,
	admin AdminCredentials,
	policy auction.Policy,
	health *HealthChecker,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		service: service,
		summary: summary,
		signer:  signer,
		admin:   admin,
		policy:  policy,
		health:  health,
		logger:  logger,
	}
}

// Routes builds the router
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", h.Health)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/auctions", func(r chi.Router) {
			r.Post("/", h.CreateAuction)
			r.Get("/", h.ListAuctions)
			r.Get("/summary", h.GetSummary)

			r.Route("/{auctionID}", func(r chi.Router) {
				r.Get("/", h.GetAuction)
				r.Patch("/", h.EditAuction)
				r.Post("/bids", h.PlaceBid)
				r.Post("/purchase", h.BuyNow)
				r.Post("/withdraw", h.Withdraw)
			})
		})

		r.Get("/owners/{ownerID}/auctions", h.ListOwnerAuctions)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/login", h.AdminLogin)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAuth(h.signer))
				r.Use(auth.RequirePermission(auth.PermissionAdmin))
				r.Post("/auctions/{auctionID}/end", h.AdminForceEnd)
				r.Post("/auctions/{auctionID}/extend", h.AdminExtend)
				r.Get("/stats", h.AdminStats)
			})
		})
	})

	return r
}

func auctionIDParam(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "auctionID"))
	return id, err == nil
}
