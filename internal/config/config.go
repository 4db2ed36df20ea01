package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/florik/hammerbot/internal/auction"
)

// Config is the single authority for all tunables. Every bidding and
// timing rule lives here; nothing else hard-codes policy values.
type Config struct {
	HTTPAddr    string
	DatabaseURL string
	RabbitMQURL string
	RedisAddr   string

	AdminUsername     string
	AdminPasswordHash string
	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTIssuer         string

	Policy   auction.Policy
	Snipe    auction.SnipeConfig
	Analyzer auction.AnalyzerConfig

	SweepInterval time.Duration
	Retention     time.Duration

	OutboxBatchSize int
	OutboxInterval  time.Duration
	EventExchange   string

	SummaryTTL time.Duration
}

// Load reads the configuration from the environment. Connection strings
// and admin credentials are required; everything else has a default.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RabbitMQURL: os.Getenv("RABBITMQ_URL"),
		RedisAddr:   getEnv("REDIS_ADDR", "localhost:6379"),

		AdminUsername:     os.Getenv("ADMIN_USERNAME"),
		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
		JWTPrivateKeyPath: os.Getenv("JWT_PRIVATE_KEY_PATH"),
		JWTPublicKeyPath:  os.Getenv("JWT_PUBLIC_KEY_PATH"),
		JWTIssuer:         getEnv("JWT_ISSUER", "hammerbot"),

		Policy: auction.Policy{
			MinBidFloor:       getEnvInt64("MIN_BID_FLOOR_CENTS", 50),
			MinIncrement:      getEnvFloat("MIN_BID_INCREMENT", 0.10),
			BidSpacing:        getEnvDuration("BID_SPACING", 5*time.Second),
			MaxActivePerOwner: getEnvInt("MAX_ACTIVE_PER_OWNER", 5),
			MaxCreatesPerHour: getEnvInt("MAX_CREATES_PER_HOUR", 3),
			MinDuration:       getEnvDuration("MIN_AUCTION_DURATION", time.Minute),
			MaxDuration:       getEnvDuration("MAX_AUCTION_DURATION", 14*24*time.Hour),
		},

		Snipe: auction.SnipeConfig{
			Enabled:   getEnvBool("SNIPE_PROTECTION_ENABLED", true),
			Window:    getEnvDuration("SNIPE_WINDOW", 5*time.Minute),
			Extension: getEnvDuration("SNIPE_EXTENSION", 5*time.Minute),
			Cooldown:  getEnvDuration("SNIPE_COOLDOWN", 60*time.Second),
			Retention: getEnvDuration("TRACKING_RETENTION", 24*time.Hour),
		},

		Analyzer: auction.AnalyzerConfig{
			LateWindow:      getEnvDuration("ANALYZER_LATE_WINDOW", 5*time.Minute),
			VeryLateWindow:  getEnvDuration("ANALYZER_VERY_LATE_WINDOW", time.Minute),
			LateShare:       getEnvFloat("ANALYZER_LATE_SHARE", 0.5),
			CompetitiveBids: getEnvInt("ANALYZER_COMPETITIVE_BIDS", 10),
			Retention:       getEnvDuration("TRACKING_RETENTION", 24*time.Hour),
		},

		SweepInterval: getEnvDuration("SWEEP_INTERVAL", time.Minute),
		Retention:     getEnvDuration("TRACKING_RETENTION", 24*time.Hour),

		OutboxBatchSize: getEnvInt("OUTBOX_BATCH_SIZE", 10),
		OutboxInterval:  getEnvDuration("OUTBOX_INTERVAL", time.Second),
		EventExchange:   getEnv("EVENT_EXCHANGE", "auction.events"),

		SummaryTTL: getEnvDuration("SUMMARY_TTL", 2*time.Minute),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}
	if cfg.RabbitMQURL == "" {
		return nil, fmt.Errorf("RABBITMQ_URL is not set")
	}
	if cfg.AdminUsername == "" || cfg.AdminPasswordHash == "" {
		return nil, fmt.Errorf("ADMIN_USERNAME and ADMIN_PASSWORD_HASH are not set")
	}
	if cfg.JWTPrivateKeyPath == "" || cfg.JWTPublicKeyPath == "" {
		return nil, fmt.Errorf("JWT_PRIVATE_KEY_PATH and JWT_PUBLIC_KEY_PATH are not set")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return fallback
}
