package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/florik/hammerbot/internal/adapters/api"
	"github.com/florik/hammerbot/internal/adapters/cache"
	"github.com/florik/hammerbot/internal/adapters/database"
	"github.com/florik/hammerbot/internal/auction"
	"github.com/florik/hammerbot/internal/config"
	"github.com/florik/hammerbot/pkg/auth"
	pkgdb "github.com/florik/hammerbot/pkg/database"
	pkgevents "github.com/florik/hammerbot/pkg/events"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Local overrides .env
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	if err := run(logger); err != nil {
		logger.Error("service exited with error", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Postgres
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return err
	}
	logger.Info("postgres connected")

	if err := database.Migrate(cfg.DatabaseURL); err != nil {
		return err
	}
	logger.Info("migrations applied")

	// RabbitMQ
	amqpConn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		return err
	}
	defer amqpConn.Close()
	logger.Info("rabbitmq connected")

	publisher, err := pkgevents.NewRabbitMQPublisher(amqpConn, cfg.EventExchange)
	if err != nil {
		return err
	}
	defer publisher.Close()

	// Redis
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return err
	}
	logger.Info("redis connected")

	// JWT signer for the admin surface
	privPEM, err := os.ReadFile(cfg.JWTPrivateKeyPath)
	if err != nil {
		return err
	}
	pubPEM, err := os.ReadFile(cfg.JWTPublicKeyPath)
	if err != nil {
		return err
	}
	signer, err := auth.NewSigner(privPEM, pubPEM, cfg.JWTIssuer)
	if err != nil {
		return err
	}

	// Infrastructure
	txManager := pkgdb.NewPostgresTransactionManager(pool, 3*time.Second)
	auctionRepo := database.NewPostgresAuctionRepository(pool)
	outboxRepo := database.NewPostgresOutboxRepository(pool)
	summaryCache := cache.NewRedisSummaryCache(rdb, cfg.Policy, cfg.SummaryTTL)

	// Domain
	guard := auction.NewSnipeGuard(cfg.Snipe, logger)
	analyzer := auction.NewAnalyzer(cfg.Analyzer)
	service := auction.NewService(txManager, auctionRepo, outboxRepo, guard, analyzer, cfg.Policy, logger)
	sweeper := auction.NewSweeper(service, auctionRepo, summaryCache, guard, analyzer, cfg.SweepInterval, cfg.Retention, logger)

	relay := pkgevents.NewOutboxRelay(
		outboxRepo,
		publisher,
		txManager,
		cfg.OutboxBatchSize,
		cfg.OutboxInterval,
		cfg.EventExchange,
		logger,
	)

	// API
	health := api.NewHealthChecker(pool, amqpConn, rdb)
	handler := api.NewHandler(
		service,
		summaryCache,
		signer,
		api.AdminCredentials{Username: cfg.AdminUsername, PasswordHash: cfg.AdminPasswordHash},
		cfg.Policy,
		health,
		logger,
	)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("starting expiry sweeper", "interval", cfg.SweepInterval)
		return sweeper.Run(gctx)
	})

	g.Go(func() error {
		logger.Info("starting outbox relay", "interval", cfg.OutboxInterval)
		return relay.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	logger.Info("service stopped")
	return err
}
