package auction

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/mock"

	"github.com/florik/hammerbot/pkg/events"
)

// stubTx is a no-op pgx.Tx for exercising services without a database.
// Only Commit and Rollback are expected to run.
type stubTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (t *stubTx) Commit(ctx context.Context) error {
	t.committed = true
	return nil
}

func (t *stubTx) Rollback(ctx context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

// stubTxManager hands out stub transactions
type stubTxManager struct {
	last *stubTx
}

func (m *stubTxManager) BeginTx(ctx context.Context) (pgx.Tx, error) {
	m.last = &stubTx{}
	return m.last, nil
}

// MockRepository is a mock implementation of Repository for testing
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, tx pgx.Tx, a *Auction) error {
	args := m.Called(ctx, tx, a)
	return args.Error(0)
}

func (m *MockRepository) GetByID(ctx context.Context, id uuid.UUID) (*Auction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Auction), args.Error(1)
}

func (m *MockRepository) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*Auction, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Auction), args.Error(1)
}

func (m *MockRepository) ListActive(ctx context.Context, limit, offset int) ([]*Auction, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Auction), args.Error(1)
}

func (m *MockRepository) ListActiveByOwner(ctx context.Context, ownerID string) ([]*Auction, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Auction), args.Error(1)
}

func (m *MockRepository) ListRecentByOwner(ctx context.Context, ownerID string, since time.Time) ([]*Auction, error) {
	args := m.Called(ctx, ownerID, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Auction), args.Error(1)
}

func (m *MockRepository) CountActiveByOwner(ctx context.Context, ownerID string) (int64, error) {
	args := m.Called(ctx, ownerID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRepository) ListExpired(ctx context.Context, now time.Time) ([]*Auction, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Auction), args.Error(1)
}

func (m *MockRepository) ListTerminated(ctx context.Context) ([]*Auction, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Auction), args.Error(1)
}

func (m *MockRepository) UpdateBid(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int64, bidderID string) error {
	args := m.Called(ctx, tx, id, amount, bidderID)
	return args.Error(0)
}

func (m *MockRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status Status) error {
	args := m.Called(ctx, tx, id, status)
	return args.Error(0)
}

func (m *MockRepository) UpdateEndTime(ctx context.Context, tx pgx.Tx, id uuid.UUID, endTime time.Time, duration time.Duration) error {
	args := m.Called(ctx, tx, id, endTime, duration)
	return args.Error(0)
}

func (m *MockRepository) UpdateDetails(ctx context.Context, tx pgx.Tx, id uuid.UUID, name, description string) error {
	args := m.Called(ctx, tx, id, name, description)
	return args.Error(0)
}

func (m *MockRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRepository) Stats(ctx context.Context) (*Stats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Stats), args.Error(1)
}

// MockOutboxRepository is a mock implementation of events.OutboxRepository
type MockOutboxRepository struct {
	mock.Mock
}

func (m *MockOutboxRepository) SaveEvent(ctx context.Context, tx pgx.Tx, event *events.OutboxEvent) error {
	args := m.Called(ctx, tx, event)
	return args.Error(0)
}

func (m *MockOutboxRepository) GetPendingEvents(ctx context.Context, tx pgx.Tx, limit int) ([]*events.OutboxEvent, error) {
	args := m.Called(ctx, tx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*events.OutboxEvent), args.Error(1)
}

func (m *MockOutboxRepository) UpdateEventStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status events.OutboxStatus) error {
	args := m.Called(ctx, tx, id, status)
	return args.Error(0)
}

// MockSummaryCache is a mock implementation of SummaryCache
type MockSummaryCache struct {
	mock.Mock
}

func (m *MockSummaryCache) RefreshActive(ctx context.Context, auctions []*Auction) error {
	args := m.Called(ctx, auctions)
	return args.Error(0)
}
