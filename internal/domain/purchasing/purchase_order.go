package purchasing

import (
	"encoding/json"
	"time"

	"github.com/atelier-erp/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status represents the lifecycle status of a purchase order
type Status string

const (
	StatusDraft     Status = "draft"
	StatusOrdered   Status = "ordered"
	StatusSent      Status = "sent"
	StatusConfirmed Status = "confirmed"
	StatusReceived  Status = "received"
	StatusFinal     Status = "final"
	StatusCancelled Status = "cancelled"
)

// IsValid checks if the status is a valid Status
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusOrdered, StatusSent, StatusConfirmed,
		StatusReceived, StatusFinal, StatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// CanFinalize returns true if the order may be promoted to final from this status
func (s Status) CanFinalize() bool {
	switch s {
	case StatusDraft, StatusOrdered, StatusSent, StatusConfirmed:
		return true
	}
	return false
}

// FinalizableStatuses lists the statuses that may be promoted to final
func FinalizableStatuses() []Status {
	return []Status{StatusDraft, StatusOrdered, StatusSent, StatusConfirmed}
}

// CanCreateWith returns true if a new order may start in this status.
// Cancellation is only ever applied out-of-band.
func (s Status) CanCreateWith() bool {
	return s.IsValid() && s != StatusCancelled
}

// PurchaseLineItem is a single product line of a purchase order. Line items
// are written once, together, and never mutated afterwards.
type PurchaseLineItem struct {
	ID            uuid.UUID
	PurchaseID    uuid.UUID
	ProductID     uuid.UUID
	VariantID     *uuid.UUID
	ProductName   string
	SKU           string
	Quantity      decimal.Decimal
	UnitPrice     decimal.Decimal
	LineTotal     decimal.Decimal
	PackingDetail json.RawMessage // opaque, stored as-is
	CreatedAt     time.Time
}

// NewPurchaseLineItem creates a validated line item for the given order
func NewPurchaseLineItem(purchaseID, productID uuid.UUID, variantID *uuid.UUID, productName, sku string, quantity, unitPrice decimal.Decimal, packing json.RawMessage) (*PurchaseLineItem, error) {
	if productID == uuid.Nil {
		return nil, NewValidationError("Product ID cannot be empty")
	}
	if productName == "" {
		return nil, NewValidationError("Product name cannot be empty")
	}
	if quantity.LessThanOrEqual(decimal.Zero) {
		return nil, NewValidationError("Quantity must be positive")
	}
	if unitPrice.IsNegative() {
		return nil, NewValidationError("Unit price cannot be negative")
	}
	if len(packing) > 0 && !json.Valid(packing) {
		return nil, NewValidationError("Packing detail must be valid JSON")
	}

	return &PurchaseLineItem{
		ID:            uuid.New(),
		PurchaseID:    purchaseID,
		ProductID:     productID,
		VariantID:     variantID,
		ProductName:   productName,
		SKU:           sku,
		Quantity:      quantity,
		UnitPrice:     unitPrice,
		LineTotal:     quantity.Mul(unitPrice).Round(4),
		PackingDetail: packing,
		CreatedAt:     time.Now(),
	}, nil
}

// Amounts holds the caller-supplied monetary fields of an order
type Amounts struct {
	Subtotal       decimal.Decimal
	DiscountAmount decimal.Decimal
	TaxAmount      decimal.Decimal
	ShippingCost   decimal.Decimal
	Total          decimal.Decimal
}

// Validate checks that no amount is negative
func (a Amounts) Validate() error {
	switch {
	case a.Total.IsNegative():
		return NewValidationError("Total cannot be negative")
	case a.Subtotal.IsNegative():
		return NewValidationError("Subtotal cannot be negative")
	case a.DiscountAmount.IsNegative():
		return NewValidationError("Discount amount cannot be negative")
	case a.TaxAmount.IsNegative():
		return NewValidationError("Tax amount cannot be negative")
	case a.ShippingCost.IsNegative():
		return NewValidationError("Shipping cost cannot be negative")
	}
	return nil
}

// PurchaseOrder is the purchase order aggregate root
type PurchaseOrder struct {
	shared.TenantAggregateRoot
	DocumentNumber string
	SupplierID     *uuid.UUID
	SupplierName   string
	OrderDate      time.Time
	Subtotal       decimal.Decimal
	DiscountAmount decimal.Decimal
	TaxAmount      decimal.Decimal
	ShippingCost   decimal.Decimal
	Total          decimal.Decimal
	PaidAmount     decimal.Decimal
	DueAmount      decimal.Decimal
	Status         Status
	PaymentStatus  PaymentStatus
	Notes          string
	CancelledAt    *time.Time
	Items          []PurchaseLineItem
}

// NewPurchaseOrder creates an unnumbered purchase order. Payment fields start
// unpaid and are set by ApplyPayment; the document number by AssignDocumentNumber.
func NewPurchaseOrder(tenantID, branchID, actorID uuid.UUID, status Status, amounts Amounts) (*PurchaseOrder, error) {
	if tenantID == uuid.Nil {
		return nil, NewValidationError("Tenant ID is required")
	}
	if branchID == uuid.Nil {
		return nil, NewValidationError("Branch ID is required")
	}
	if actorID == uuid.Nil {
		return nil, NewValidationError("Actor ID is required")
	}
	if !status.CanCreateWith() {
		return nil, NewValidationError("Invalid initial status: " + string(status))
	}
	if err := amounts.Validate(); err != nil {
		return nil, err
	}

	order := &PurchaseOrder{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID, branchID),
		OrderDate:           time.Now(),
		Subtotal:            amounts.Subtotal,
		DiscountAmount:      amounts.DiscountAmount,
		TaxAmount:           amounts.TaxAmount,
		ShippingCost:        amounts.ShippingCost,
		Total:               amounts.Total,
		PaidAmount:          decimal.Zero,
		DueAmount:           amounts.Total,
		Status:              status,
		PaymentStatus:       PaymentStatusUnpaid,
		Items:               make([]PurchaseLineItem, 0),
	}
	order.SetCreatedBy(actorID)
	return order, nil
}

// SetSupplier sets the counterparty of the order
func (o *PurchaseOrder) SetSupplier(supplierID *uuid.UUID, name string) {
	o.SupplierID = supplierID
	o.SupplierName = name
}

// AddItem appends a validated line item to the order
func (o *PurchaseOrder) AddItem(productID uuid.UUID, variantID *uuid.UUID, productName, sku string, quantity, unitPrice decimal.Decimal, packing json.RawMessage) (*PurchaseLineItem, error) {
	item, err := NewPurchaseLineItem(o.ID, productID, variantID, productName, sku, quantity, unitPrice, packing)
	if err != nil {
		return nil, err
	}
	o.Items = append(o.Items, *item)
	return item, nil
}

// AssignDocumentNumber stores the allocated document number
func (o *PurchaseOrder) AssignDocumentNumber(number string) {
	o.DocumentNumber = number
}

// ApplyPayment stores derived payment fields on the order
func (o *PurchaseOrder) ApplyPayment(b PaymentBreakdown) {
	o.PaidAmount = b.Paid
	o.DueAmount = b.Due
	o.PaymentStatus = b.Status
}

// MarkFinal promotes the order to final. It returns false without error if
// the order is already final, and ErrInvalidState from any status that
// cannot be finalized.
func (o *PurchaseOrder) MarkFinal() (bool, error) {
	if o.Status == StatusFinal {
		return false, nil
	}
	if o.IsCancelled() || !o.Status.CanFinalize() {
		return false, shared.NewDomainError("INVALID_STATE", "Cannot finalize purchase order in "+string(o.Status)+" status")
	}

	o.Status = StatusFinal
	o.UpdatedAt = time.Now()
	o.IncrementVersion()
	o.AddDomainEvent(NewPurchaseOrderFinalizedEvent(o))
	return true, nil
}

// IsCancelled reports whether the order carries a cancellation marker
func (o *PurchaseOrder) IsCancelled() bool {
	return o.CancelledAt != nil || o.Status == StatusCancelled
}

// ItemCount returns the number of line items
func (o *PurchaseOrder) ItemCount() int {
	return len(o.Items)
}

// ItemsTotal returns the sum of line totals
func (o *PurchaseOrder) ItemsTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, item := range o.Items {
		sum = sum.Add(item.LineTotal)
	}
	return sum
}

// RequiresPaymentRecord reports whether creating this order must also record
// a ledger payment: it is settled on creation with a positive paid amount.
func (o *PurchaseOrder) RequiresPaymentRecord() bool {
	return o.Status == StatusFinal && o.PaidAmount.GreaterThan(decimal.Zero)
}
