package purchasing

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/atelier-erp/backend/internal/domain/purchasing"
	"github.com/atelier-erp/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockAllocator is a mock implementation of DocumentNumberAllocator
type MockAllocator struct {
	mock.Mock
}

func (m *MockAllocator) Next(ctx context.Context, tenantID, branchID uuid.UUID, docType purchasing.DocumentType) (int64, error) {
	args := m.Called(ctx, tenantID, branchID, docType)
	return args.Get(0).(int64), args.Error(1)
}

// MockPurchaseOrderRepository is a mock implementation of PurchaseOrderRepository
type MockPurchaseOrderRepository struct {
	mock.Mock
}

func (m *MockPurchaseOrderRepository) InsertHeader(ctx context.Context, order *purchasing.PurchaseOrder) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockPurchaseOrderRepository) InsertItems(ctx context.Context, items []purchasing.PurchaseLineItem) error {
	args := m.Called(ctx, items)
	return args.Error(0)
}

func (m *MockPurchaseOrderRepository) DeleteHeader(ctx context.Context, tenantID, id uuid.UUID) error {
	args := m.Called(ctx, tenantID, id)
	return args.Error(0)
}

func (m *MockPurchaseOrderRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*purchasing.PurchaseOrder, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*purchasing.PurchaseOrder), args.Error(1)
}

func (m *MockPurchaseOrderRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter purchasing.ListFilter) ([]purchasing.PurchaseOrder, error) {
	args := m.Called(ctx, tenantID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]purchasing.PurchaseOrder), args.Error(1)
}

func (m *MockPurchaseOrderRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter purchasing.ListFilter) (int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockPurchaseOrderRepository) UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, from []purchasing.Status, status purchasing.Status) (bool, error) {
	args := m.Called(ctx, tenantID, id, from, status)
	return args.Bool(0), args.Error(1)
}

func (m *MockPurchaseOrderRepository) FindOrphanHeaders(ctx context.Context, olderThan time.Time, limit int) ([]purchasing.OrphanHeader, error) {
	args := m.Called(ctx, olderThan, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]purchasing.OrphanHeader), args.Error(1)
}

func (m *MockPurchaseOrderRepository) DeleteOrphanHeader(ctx context.Context, tenantID, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, tenantID, id)
	return args.Bool(0), args.Error(1)
}

// MockSettlementAccounts is a mock implementation of SettlementAccountDirectory
type MockSettlementAccounts struct {
	mock.Mock
}

func (m *MockSettlementAccounts) ListActiveAccountIDs(ctx context.Context, tenantID uuid.UUID) ([]uuid.UUID, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

// MockPaymentRecorder is a mock implementation of PaymentRecorder
type MockPaymentRecorder struct {
	mock.Mock
}

func (m *MockPaymentRecorder) Record(ctx context.Context, req purchasing.PaymentRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

// MockEventPublisher is a mock implementation of EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

// MockLocker is a mock implementation of DistributedLocker
type MockLocker struct {
	mock.Mock
}

func (m *MockLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (shared.Lock, error) {
	args := m.Called(ctx, key, ttl)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(shared.Lock), args.Error(1)
}

// MockLock is a mock implementation of Lock
type MockLock struct {
	mock.Mock
}

func (m *MockLock) Release(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// memoryAllocator increments per key under a mutex, like the server-side upsert
type memoryAllocator struct {
	mu   sync.Mutex
	last map[string]int64
}

func newMemoryAllocator() *memoryAllocator {
	return &memoryAllocator{last: make(map[string]int64)}
}

func (a *memoryAllocator) Next(_ context.Context, tenantID, branchID uuid.UUID, docType purchasing.DocumentType) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	key := tenantID.String() + ":" + branchID.String() + ":" + string(docType)
	a.last[key]++
	return a.last[key], nil
}

// memoryOrders stores headers and items separately so that tests can
// inject failures into either write.
type memoryOrders struct {
	mu         sync.Mutex
	headers    map[uuid.UUID]purchasing.PurchaseOrder
	items      map[uuid.UUID][]purchasing.PurchaseLineItem
	headerErr  error
	itemsErr   error
	deleteErr  error
	statusSets int
}

func newMemoryOrders() *memoryOrders {
	return &memoryOrders{
		headers: make(map[uuid.UUID]purchasing.PurchaseOrder),
		items:   make(map[uuid.UUID][]purchasing.PurchaseLineItem),
	}
}

func (r *memoryOrders) InsertHeader(_ context.Context, order *purchasing.PurchaseOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.headerErr != nil {
		return r.headerErr
	}
	for _, h := range r.headers {
		if h.TenantID == order.TenantID && h.BranchID == order.BranchID && h.DocumentNumber == order.DocumentNumber {
			return shared.ErrAlreadyExists
		}
	}
	header := *order
	header.Items = nil
	r.headers[order.ID] = header
	return nil
}

func (r *memoryOrders) InsertItems(_ context.Context, items []purchasing.PurchaseLineItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.itemsErr != nil {
		return r.itemsErr
	}
	for _, item := range items {
		if _, ok := r.headers[item.PurchaseID]; !ok {
			return shared.ErrNotFound
		}
		r.items[item.PurchaseID] = append(r.items[item.PurchaseID], item)
	}
	return nil
}

func (r *memoryOrders) DeleteHeader(_ context.Context, tenantID, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleteErr != nil {
		return r.deleteErr
	}
	if h, ok := r.headers[id]; ok && h.TenantID == tenantID {
		delete(r.headers, id)
		delete(r.items, id)
	}
	return nil
}

func (r *memoryOrders) FindByIDForTenant(_ context.Context, tenantID, id uuid.UUID) (*purchasing.PurchaseOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.headers[id]
	if !ok || h.TenantID != tenantID {
		return nil, shared.ErrNotFound
	}
	order := h
	order.Items = append([]purchasing.PurchaseLineItem(nil), r.items[id]...)
	return &order, nil
}

func (r *memoryOrders) FindAllForTenant(_ context.Context, tenantID uuid.UUID, _ purchasing.ListFilter) ([]purchasing.PurchaseOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	orders := make([]purchasing.PurchaseOrder, 0)
	for _, h := range r.headers {
		if h.TenantID == tenantID {
			orders = append(orders, h)
		}
	}
	return orders, nil
}

func (r *memoryOrders) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter purchasing.ListFilter) (int64, error) {
	orders, err := r.FindAllForTenant(ctx, tenantID, filter)
	return int64(len(orders)), err
}

func (r *memoryOrders) UpdateStatus(_ context.Context, tenantID, id uuid.UUID, from []purchasing.Status, status purchasing.Status) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.headers[id]
	if !ok || h.TenantID != tenantID || h.CancelledAt != nil || !slices.Contains(from, h.Status) {
		return false, nil
	}
	h.Status = status
	h.IncrementVersion()
	r.headers[id] = h
	r.statusSets++
	return true, nil
}

// setStatus changes a stored header out-of-band, as another writer would
func (r *memoryOrders) setStatus(id uuid.UUID, status purchasing.Status, cancelledAt *time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.headers[id]
	h.Status = status
	h.CancelledAt = cancelledAt
	r.headers[id] = h
}

func (r *memoryOrders) FindOrphanHeaders(_ context.Context, olderThan time.Time, limit int) ([]purchasing.OrphanHeader, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	orphans := make([]purchasing.OrphanHeader, 0)
	for id, h := range r.headers {
		if len(r.items[id]) == 0 && h.CreatedAt.Before(olderThan) && len(orphans) < limit {
			orphans = append(orphans, purchasing.OrphanHeader{
				ID: id, TenantID: h.TenantID, BranchID: h.BranchID,
				DocumentNumber: h.DocumentNumber, CreatedAt: h.CreatedAt,
			})
		}
	}
	return orphans, nil
}

func (r *memoryOrders) DeleteOrphanHeader(_ context.Context, tenantID, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.headers[id]
	if !ok || h.TenantID != tenantID || len(r.items[id]) > 0 {
		return false, nil
	}
	delete(r.headers, id)
	return true, nil
}

func (r *memoryOrders) itemCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, items := range r.items {
		n += len(items)
	}
	return n
}

type staticAccounts []uuid.UUID

func (a staticAccounts) ListActiveAccountIDs(context.Context, uuid.UUID) ([]uuid.UUID, error) {
	return a, nil
}

// recordingPayments counts Record calls
type recordingPayments struct {
	mu       sync.Mutex
	requests []purchasing.PaymentRequest
	err      error
}

func (p *recordingPayments) Record(_ context.Context, req purchasing.PaymentRequest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	return p.err
}

func (p *recordingPayments) calls() []purchasing.PaymentRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]purchasing.PaymentRequest(nil), p.requests...)
}

var (
	_ purchasing.DocumentNumberAllocator    = (*MockAllocator)(nil)
	_ purchasing.PurchaseOrderRepository    = (*MockPurchaseOrderRepository)(nil)
	_ purchasing.PurchaseOrderRepository    = (*memoryOrders)(nil)
	_ purchasing.SettlementAccountDirectory = (*MockSettlementAccounts)(nil)
	_ purchasing.PaymentRecorder            = (*MockPaymentRecorder)(nil)
	_ shared.EventPublisher                 = (*MockEventPublisher)(nil)
	_ shared.DistributedLocker              = (*MockLocker)(nil)
)
