package purchasing

import (
	"context"
	"time"

	"github.com/atelier-erp/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// DocumentNumberAllocator hands out sequence values with a single atomic
// server-side increment. Values are strictly increasing and never repeat per
// (tenant, branch, document type); gaps are allowed.
type DocumentNumberAllocator interface {
	// Next increments and returns the sequence for the key
	Next(ctx context.Context, tenantID, branchID uuid.UUID, docType DocumentType) (int64, error)
}

// PurchaseOrderWriter performs the independent writes of the creation saga
type PurchaseOrderWriter interface {
	// InsertHeader persists the order header without its items
	InsertHeader(ctx context.Context, order *PurchaseOrder) error
	// InsertItems persists all line items of one order as a single batch
	InsertItems(ctx context.Context, items []PurchaseLineItem) error
	// DeleteHeader hard-deletes a header; used only as compensation
	DeleteHeader(ctx context.Context, tenantID, id uuid.UUID) error
}

// ListFilter narrows purchase order list queries
type ListFilter struct {
	shared.Filter
	BranchID         *uuid.UUID
	SupplierID       *uuid.UUID
	Status           *Status
	PaymentStatus    *PaymentStatus
	From             *time.Time
	To               *time.Time
	IncludeCancelled bool
}

// PurchaseOrderReader reconstructs orders for the read side
type PurchaseOrderReader interface {
	// FindByIDForTenant loads a header with its items
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*PurchaseOrder, error)
	// FindAllForTenant lists headers (without items) matching the filter
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter ListFilter) ([]PurchaseOrder, error)
	// CountForTenant counts headers matching the filter
	CountForTenant(ctx context.Context, tenantID uuid.UUID, filter ListFilter) (int64, error)
}

// PurchaseOrderStatusUpdater persists status promotions
type PurchaseOrderStatusUpdater interface {
	// UpdateStatus moves an order to status only while its current status is
	// one of from and it carries no cancellation marker. It reports whether a
	// row changed; false covers both a missing order and a failed condition.
	UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, from []Status, status Status) (bool, error)
}

// OrphanHeader identifies a header that has no line items
type OrphanHeader struct {
	ID             uuid.UUID
	TenantID       uuid.UUID
	BranchID       uuid.UUID
	DocumentNumber string
	CreatedAt      time.Time
}

// OrphanHeaderStore finds and removes headers left behind by failed compensation
type OrphanHeaderStore interface {
	// FindOrphanHeaders returns headers with zero items created before olderThan
	FindOrphanHeaders(ctx context.Context, olderThan time.Time, limit int) ([]OrphanHeader, error)
	// DeleteOrphanHeader deletes the header only if it still has zero items.
	// It reports whether a row was deleted.
	DeleteOrphanHeader(ctx context.Context, tenantID, id uuid.UUID) (bool, error)
}

// PurchaseOrderRepository is the full storage port for purchase orders
type PurchaseOrderRepository interface {
	PurchaseOrderWriter
	PurchaseOrderReader
	PurchaseOrderStatusUpdater
	OrphanHeaderStore
}

// PaymentRecorder is the ledger collaborator. Record is called at most once
// per creation attempt and is never retried by the pipeline.
type PaymentRecorder interface {
	Record(ctx context.Context, req PaymentRequest) error
}

// SettlementAccountDirectory lists the accounts a tenant can settle into
type SettlementAccountDirectory interface {
	// ListActiveAccountIDs returns the active settlement accounts of a tenant
	ListActiveAccountIDs(ctx context.Context, tenantID uuid.UUID) ([]uuid.UUID, error)
}
