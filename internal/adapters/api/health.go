package api

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
)

const healthCheckTimeout = 3 * time.Second

// HealthChecker probes the service's dependencies
type HealthChecker struct {
	pool  *pgxpool.Pool
	amqp  *amqp.Connection
	redis *redis.Client
}

// NewHealthChecker creates a health checker over the live connections
func NewHealthChecker(pool *pgxpool.Pool, amqpConn *amqp.Connection, redisClient *redis.Client) *HealthChecker {
	return &HealthChecker{
		pool:  pool,
		amqp:  amqpConn,
		redis: redisClient,
	}
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
	Time   string            `json:"time"`
}

// Health handles GET /health. Degraded dependencies turn the overall
// status unhealthy and the response into a 503.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := healthResponse{
		Status: "ok",
		Checks: h.health.Run(ctx),
		Time:   time.Now().UTC().Format(time.RFC3339),
	}

	status := http.StatusOK
	for _, check := range resp.Checks {
		if check != "ok" {
			resp.Status = "unhealthy"
			status = http.StatusServiceUnavailable
			break
		}
	}

	writeJSON(w, status, resp)
}

// Run probes each dependency and reports "ok" or the failure text
func (c *HealthChecker) Run(ctx context.Context) map[string]string {
	checks := make(map[string]string, 3)

	if err := c.pool.Ping(ctx); err != nil {
		checks["postgres"] = err.Error()
	} else {
		checks["postgres"] = "ok"
	}

	if c.amqp.IsClosed() {
		checks["rabbitmq"] = "connection closed"
	} else {
		checks["rabbitmq"] = "ok"
	}

	if err := c.redis.Ping(ctx).Err(); err != nil {
		checks["redis"] = err.Error()
	} else {
		checks["redis"] = "ok"
	}

	return checks
}
