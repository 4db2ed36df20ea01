//go:build integration

package events_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"

	"github.com/florik/hammerbot/internal/adapters/database"
	pkgdb "github.com/florik/hammerbot/pkg/database"
	pkgevents "github.com/florik/hammerbot/pkg/events"
	"github.com/florik/hammerbot/pkg/testhelpers"
)

const testExchange = "auction.events"

// TestRelayIntegrationWithRabbitMQ drives a pending outbox row through the
// relay and asserts it arrives on the broker and is marked published.
func TestRelayIntegrationWithRabbitMQ(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	rabbitmqContainer, err := rabbitmq.Run(ctx,
		"rabbitmq:3.12-management-alpine",
		rabbitmq.WithAdminPassword("password"),
	)
	require.NoError(t, err)
	defer func() {
		if termErr := rabbitmqContainer.Terminate(ctx); termErr != nil {
			t.Fatalf("failed to terminate container: %s", termErr)
		}
	}()

	amqpURL, err := rabbitmqContainer.AmqpURL(ctx)
	require.NoError(t, err)

	testDB := testhelpers.NewTestDatabase(t, "../../internal/adapters/database/migrations")
	defer testDB.Close(t)
	dbPool := testDB.Pool

	pubConn, err := amqp.Dial(amqpURL)
	require.NoError(t, err)
	defer pubConn.Close()

	rabbitPublisher, err := pkgevents.NewRabbitMQPublisher(pubConn, testExchange)
	require.NoError(t, err)
	defer rabbitPublisher.Close()

	txManager := pkgdb.NewPostgresTransactionManager(dbPool, time.Second)
	outboxRepo := database.NewPostgresOutboxRepository(dbPool)
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	relay := pkgevents.NewOutboxRelay(
		outboxRepo,
		rabbitPublisher,
		txManager,
		10,
		50*time.Millisecond,
		testExchange,
		logger,
	)

	// Separate consumer to verify delivery
	conn, err := amqp.Dial(amqpURL)
	require.NoError(t, err)
	defer conn.Close()

	ch, err := conn.Channel()
	require.NoError(t, err)
	defer ch.Close()

	q, err := ch.QueueDeclare("", false, false, true, false, nil)
	require.NoError(t, err)

	err = ch.QueueBind(q.Name, "auction.ended", testExchange, false, nil)
	require.NoError(t, err)

	msgs, err := ch.Consume(q.Name, "", true, false, false, false, nil)
	require.NoError(t, err)

	// Seed a pending event
	eventID := uuid.New()
	expectedPayload := []byte(`{"auction_id":"integration"}`)
	query := `
		INSERT INTO outbox_events (id, event_type, payload, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = dbPool.Exec(ctx, query,
		eventID,
		"auction.ended",
		expectedPayload,
		pkgevents.OutboxStatusPending,
		time.Now(),
	)
	require.NoError(t, err)

	ctxRelay, cancelRelay := context.WithCancel(ctx)
	defer cancelRelay()
	go func() {
		_ = relay.Run(ctxRelay)
	}()

	select {
	case msg := <-msgs:
		assert.JSONEq(t, string(expectedPayload), string(msg.Body))
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for relayed event")
	}

	// The row is marked published
	require.Eventually(t, func() bool {
		var status string
		err := dbPool.QueryRow(ctx, `SELECT status FROM outbox_events WHERE id = $1`, eventID).Scan(&status)
		return err == nil && status == string(pkgevents.OutboxStatusPublished)
	}, 5*time.Second, 100*time.Millisecond)
}
