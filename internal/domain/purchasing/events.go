package purchasing

import (
	"github.com/atelier-erp/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Aggregate type constant
const AggregateTypePurchaseOrder = "PurchaseOrder"

// Event type constants
const (
	EventTypePurchaseOrderCreated        = "PurchaseOrderCreated"
	EventTypePurchaseOrderFinalized      = "PurchaseOrderFinalized"
	EventTypePurchasePaymentRecordFailed = "PurchasePaymentRecordFailed"
	EventTypePurchaseOrphanReconciled    = "PurchaseOrphanReconciled"
)

// PurchaseOrderCreatedEvent is raised after a purchase order header and its
// items were both written
type PurchaseOrderCreatedEvent struct {
	shared.BaseDomainEvent
	OrderID        uuid.UUID       `json:"order_id"`
	BranchID       uuid.UUID       `json:"branch_id"`
	DocumentNumber string          `json:"document_number"`
	Status         Status          `json:"status"`
	PaymentStatus  PaymentStatus   `json:"payment_status"`
	Total          decimal.Decimal `json:"total"`
	PaidAmount     decimal.Decimal `json:"paid_amount"`
	ItemCount      int             `json:"item_count"`
}

// NewPurchaseOrderCreatedEvent creates a new PurchaseOrderCreatedEvent
func NewPurchaseOrderCreatedEvent(order *PurchaseOrder) *PurchaseOrderCreatedEvent {
	return &PurchaseOrderCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePurchaseOrderCreated, AggregateTypePurchaseOrder, order.ID, order.TenantID),
		OrderID:         order.ID,
		BranchID:        order.BranchID,
		DocumentNumber:  order.DocumentNumber,
		Status:          order.Status,
		PaymentStatus:   order.PaymentStatus,
		Total:           order.Total,
		PaidAmount:      order.PaidAmount,
		ItemCount:       order.ItemCount(),
	}
}

// PurchaseOrderFinalizedEvent is raised when an order is promoted to final
type PurchaseOrderFinalizedEvent struct {
	shared.BaseDomainEvent
	OrderID        uuid.UUID `json:"order_id"`
	DocumentNumber string    `json:"document_number"`
}

// NewPurchaseOrderFinalizedEvent creates a new PurchaseOrderFinalizedEvent
func NewPurchaseOrderFinalizedEvent(order *PurchaseOrder) *PurchaseOrderFinalizedEvent {
	return &PurchaseOrderFinalizedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePurchaseOrderFinalized, AggregateTypePurchaseOrder, order.ID, order.TenantID),
		OrderID:         order.ID,
		DocumentNumber:  order.DocumentNumber,
	}
}

// PurchasePaymentRecordFailedEvent is raised when the ledger payment for a
// settled order could not be recorded. The order itself stands.
type PurchasePaymentRecordFailedEvent struct {
	shared.BaseDomainEvent
	OrderID   uuid.UUID       `json:"order_id"`
	AccountID uuid.UUID       `json:"account_id"`
	Amount    decimal.Decimal `json:"amount"`
	Reason    string          `json:"reason"`
}

// NewPurchasePaymentRecordFailedEvent creates a new PurchasePaymentRecordFailedEvent
func NewPurchasePaymentRecordFailedEvent(req PaymentRequest, cause error) *PurchasePaymentRecordFailedEvent {
	reason := ""
	if cause != nil {
		reason = cause.Error()
	}
	return &PurchasePaymentRecordFailedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePurchasePaymentRecordFailed, AggregateTypePurchaseOrder, req.PurchaseOrderID, req.TenantID),
		OrderID:         req.PurchaseOrderID,
		AccountID:       req.AccountID,
		Amount:          req.Amount,
		Reason:          reason,
	}
}

// PurchaseOrphanReconciledEvent is raised when the sweep removes a header that
// was left without items by a failed compensation
type PurchaseOrphanReconciledEvent struct {
	shared.BaseDomainEvent
	OrderID        uuid.UUID `json:"order_id"`
	BranchID       uuid.UUID `json:"branch_id"`
	DocumentNumber string    `json:"document_number"`
}

// NewPurchaseOrphanReconciledEvent creates a new PurchaseOrphanReconciledEvent
func NewPurchaseOrphanReconciledEvent(orphan OrphanHeader) *PurchaseOrphanReconciledEvent {
	return &PurchaseOrphanReconciledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePurchaseOrphanReconciled, AggregateTypePurchaseOrder, orphan.ID, orphan.TenantID),
		OrderID:         orphan.ID,
		BranchID:        orphan.BranchID,
		DocumentNumber:  orphan.DocumentNumber,
	}
}
