package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/Domenick1991/airsettle/internal/domain"
	"github.com/Domenick1991/airsettle/internal/repository"
	"github.com/Domenick1991/airsettle/internal/tasks"
	"github.com/stretchr/testify/mock"
)

type MockSettlementRepository struct {
	mock.Mock
}

func (m *MockSettlementRepository) Create(ctx context.Context, record *domain.SettlementRecord) (bool, error) {
	args := m.Called(ctx, record)
	return args.Bool(0), args.Error(1)
}

func (m *MockSettlementRepository) GetByInvoiceID(ctx context.Context, invoiceID string) (*domain.SettlementRecord, error) {
	args := m.Called(ctx, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SettlementRecord), args.Error(1)
}

type MockStagingStore struct {
	mock.Mock
}

func (m *MockStagingStore) ClaimStagedBooking(ctx context.Context, invoiceID string) (*domain.StagedBooking, error) {
	args := m.Called(ctx, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.StagedBooking), args.Error(1)
}

type MockInventory struct {
	mock.Mock
}

func (m *MockInventory) Book(ctx context.Context, payload domain.BookingPayload) (*domain.Order, error) {
	args := m.Called(ctx, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Capture(ctx context.Context, key domain.PaymentKey, amount float64) (json.RawMessage, error) {
	args := m.Called(ctx, key, amount)
	raw, _ := args.Get(0).(json.RawMessage)
	return raw, args.Error(1)
}

func (m *MockGateway) Release(ctx context.Context, key domain.PaymentKey, amount float64) (json.RawMessage, error) {
	args := m.Called(ctx, key, amount)
	raw, _ := args.Get(0).(json.RawMessage)
	return raw, args.Error(1)
}

type MockReferenceLookup struct {
	mock.Mock
}

func (m *MockReferenceLookup) Airlines(ctx context.Context, codes []string) (map[string]domain.Airline, error) {
	args := m.Called(ctx, codes)
	found, _ := args.Get(0).(map[string]domain.Airline)
	return found, args.Error(1)
}

func (m *MockReferenceLookup) Airports(ctx context.Context, codes []string) (map[string]domain.Airport, error) {
	args := m.Called(ctx, codes)
	found, _ := args.Get(0).(map[string]domain.Airport)
	return found, args.Error(1)
}

type MockCompensationQueue struct {
	mock.Mock
}

func (m *MockCompensationQueue) EnqueueCompensation(ctx context.Context, p tasks.CompensationPayload) error {
	return m.Called(ctx, p).Error(0)
}

func (m *MockCompensationQueue) EnqueueSettlement(ctx context.Context, p tasks.SettlementPayload) error {
	return m.Called(ctx, p).Error(0)
}

type MockProducer struct {
	mock.Mock
}

func (m *MockProducer) Publish(ctx context.Context, topic, key string, value interface{}) error {
	return m.Called(ctx, topic, key, value).Error(0)
}

// memoryStaging claims atomically, like the Redis GETDEL it stands in for.
type memoryStaging struct {
	mu    sync.Mutex
	items map[string]*domain.StagedBooking
}

func newMemoryStaging(bookings ...*domain.StagedBooking) *memoryStaging {
	s := &memoryStaging{items: make(map[string]*domain.StagedBooking)}
	for _, b := range bookings {
		s.items[b.InvoiceID] = b
	}
	return s
}

func (s *memoryStaging) ClaimStagedBooking(_ context.Context, invoiceID string) (*domain.StagedBooking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.items[invoiceID]
	delete(s.items, invoiceID)
	return b, nil
}

func (s *memoryStaging) get(invoiceID string) *domain.StagedBooking {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items[invoiceID]
}

// memoryRecords enforces one record per invoice, like the unique index.
type memoryRecords struct {
	mu        sync.Mutex
	byInvoice map[string]*domain.SettlementRecord
}

func newMemoryRecords() *memoryRecords {
	return &memoryRecords{byInvoice: make(map[string]*domain.SettlementRecord)}
}

func (r *memoryRecords) Create(_ context.Context, record *domain.SettlementRecord) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byInvoice[record.InvoiceID]; ok {
		return false, nil
	}
	record.ID = int64(len(r.byInvoice) + 1)
	stored := *record
	r.byInvoice[record.InvoiceID] = &stored
	return true, nil
}

func (r *memoryRecords) GetByInvoiceID(_ context.Context, invoiceID string) (*domain.SettlementRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.byInvoice[invoiceID]
	if !ok {
		return nil, repository.ErrSettlementNotFound
	}
	return rec, nil
}

func (r *memoryRecords) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byInvoice)
}

// flakyRecords fails the first failures writes, then behaves like memoryRecords.
type flakyRecords struct {
	*memoryRecords
	mu       sync.Mutex
	failures int
}

func (r *flakyRecords) Create(ctx context.Context, record *domain.SettlementRecord) (bool, error) {
	r.mu.Lock()
	if r.failures > 0 {
		r.failures--
		r.mu.Unlock()
		return false, errors.New("connection reset")
	}
	r.mu.Unlock()
	return r.memoryRecords.Create(ctx, record)
}

type inventoryFunc func(ctx context.Context, payload domain.BookingPayload) (*domain.Order, error)

func (f inventoryFunc) Book(ctx context.Context, payload domain.BookingPayload) (*domain.Order, error) {
	return f(ctx, payload)
}
