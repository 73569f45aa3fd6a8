package purchasing

import (
	"encoding/json"
	"time"

	"github.com/atelier-erp/backend/internal/domain/purchasing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreatePurchaseInput is the order data a caller submits for creation.
// Identity fields are filled from the request context, never from the body.
type CreatePurchaseInput struct {
	TenantID uuid.UUID `json:"-" validate:"required"`
	BranchID uuid.UUID `json:"-" validate:"required"`
	ActorID  uuid.UUID `json:"-" validate:"required"`

	SupplierID   *uuid.UUID `json:"supplier_id"`
	SupplierName string     `json:"supplier_name" validate:"max=200"`
	OrderDate    *time.Time `json:"order_date"`
	Status       string     `json:"status" validate:"omitempty,oneof=draft ordered sent confirmed received final"`
	Notes        string     `json:"notes" validate:"max=2000"`

	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	ShippingCost   decimal.Decimal `json:"shipping_cost"`
	Total          decimal.Decimal `json:"total"`
	PaidAmount     decimal.Decimal `json:"paid_amount"`

	SettlementAccountID *uuid.UUID `json:"settlement_account_id"`
	PaymentMethod       string     `json:"payment_method" validate:"omitempty,oneof=cash bank_transfer card mobile_wallet"`
	PaymentDate         *time.Time `json:"payment_date"`

	Items []CreatePurchaseItemInput `json:"items" validate:"required,min=1,dive"`
}

// CreatePurchaseItemInput is one line item of a new order
type CreatePurchaseItemInput struct {
	ProductID     uuid.UUID       `json:"product_id" validate:"required"`
	VariantID     *uuid.UUID      `json:"variant_id"`
	ProductName   string          `json:"product_name" validate:"required,max=200"`
	SKU           string          `json:"sku" validate:"max=64"`
	Quantity      decimal.Decimal `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	PackingDetail json.RawMessage `json:"packing_detail,omitempty"`
}

// CreatePurchaseResult identifies a created order
type CreatePurchaseResult struct {
	ID             uuid.UUID `json:"id"`
	DocumentNumber string    `json:"document_number"`
}

// ListPurchaseOrdersFilter holds list query parameters
type ListPurchaseOrdersFilter struct {
	Page             int    `form:"page"`
	PageSize         int    `form:"page_size"`
	OrderBy          string `form:"order_by"`
	OrderDir         string `form:"order_dir"`
	Search           string `form:"search"`
	BranchID         string `form:"branch_id"`
	SupplierID       string `form:"supplier_id"`
	Status           string `form:"status"`
	PaymentStatus    string `form:"payment_status"`
	From             string `form:"from"`
	To               string `form:"to"`
	IncludeCancelled bool   `form:"include_cancelled"`
}

// PurchaseLineItemResponse is the read model of a line item
type PurchaseLineItemResponse struct {
	ID            uuid.UUID       `json:"id"`
	ProductID     uuid.UUID       `json:"product_id"`
	VariantID     *uuid.UUID      `json:"variant_id,omitempty"`
	ProductName   string          `json:"product_name"`
	SKU           string          `json:"sku"`
	Quantity      decimal.Decimal `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	LineTotal     decimal.Decimal `json:"line_total"`
	PackingDetail json.RawMessage `json:"packing_detail,omitempty"`
}

// PurchaseOrderResponse is the detail read model of an order
type PurchaseOrderResponse struct {
	ID             uuid.UUID                  `json:"id"`
	TenantID       uuid.UUID                  `json:"tenant_id"`
	BranchID       uuid.UUID                  `json:"branch_id"`
	DocumentNumber string                     `json:"document_number"`
	SupplierID     *uuid.UUID                 `json:"supplier_id,omitempty"`
	SupplierName   string                     `json:"supplier_name"`
	OrderDate      time.Time                  `json:"order_date"`
	Subtotal       decimal.Decimal            `json:"subtotal"`
	DiscountAmount decimal.Decimal            `json:"discount_amount"`
	TaxAmount      decimal.Decimal            `json:"tax_amount"`
	ShippingCost   decimal.Decimal            `json:"shipping_cost"`
	Total          decimal.Decimal            `json:"total"`
	PaidAmount     decimal.Decimal            `json:"paid_amount"`
	DueAmount      decimal.Decimal            `json:"due_amount"`
	Status         string                     `json:"status"`
	PaymentStatus  string                     `json:"payment_status"`
	Notes          string                     `json:"notes,omitempty"`
	CreatedBy      *uuid.UUID                 `json:"created_by,omitempty"`
	CancelledAt    *time.Time                 `json:"cancelled_at,omitempty"`
	ItemCount      int                        `json:"item_count"`
	Items          []PurchaseLineItemResponse `json:"items"`
	CreatedAt      time.Time                  `json:"created_at"`
	UpdatedAt      time.Time                  `json:"updated_at"`
	Version        int                        `json:"version"`
}

// PurchaseOrderListItem is the list read model of an order (no items)
type PurchaseOrderListItem struct {
	ID             uuid.UUID       `json:"id"`
	BranchID       uuid.UUID       `json:"branch_id"`
	DocumentNumber string          `json:"document_number"`
	SupplierID     *uuid.UUID      `json:"supplier_id,omitempty"`
	SupplierName   string          `json:"supplier_name"`
	OrderDate      time.Time       `json:"order_date"`
	Total          decimal.Decimal `json:"total"`
	PaidAmount     decimal.Decimal `json:"paid_amount"`
	DueAmount      decimal.Decimal `json:"due_amount"`
	Status         string          `json:"status"`
	PaymentStatus  string          `json:"payment_status"`
	CreatedAt      time.Time       `json:"created_at"`
}

// ToPurchaseOrderResponse converts the aggregate to its detail read model
func ToPurchaseOrderResponse(order *purchasing.PurchaseOrder) PurchaseOrderResponse {
	items := make([]PurchaseLineItemResponse, len(order.Items))
	for i, item := range order.Items {
		items[i] = PurchaseLineItemResponse{
			ID:            item.ID,
			ProductID:     item.ProductID,
			VariantID:     item.VariantID,
			ProductName:   item.ProductName,
			SKU:           item.SKU,
			Quantity:      item.Quantity,
			UnitPrice:     item.UnitPrice,
			LineTotal:     item.LineTotal,
			PackingDetail: item.PackingDetail,
		}
	}

	return PurchaseOrderResponse{
		ID:             order.ID,
		TenantID:       order.TenantID,
		BranchID:       order.BranchID,
		DocumentNumber: order.DocumentNumber,
		SupplierID:     order.SupplierID,
		SupplierName:   order.SupplierName,
		OrderDate:      order.OrderDate,
		Subtotal:       order.Subtotal,
		DiscountAmount: order.DiscountAmount,
		TaxAmount:      order.TaxAmount,
		ShippingCost:   order.ShippingCost,
		Total:          order.Total,
		PaidAmount:     order.PaidAmount,
		DueAmount:      order.DueAmount,
		Status:         string(order.Status),
		PaymentStatus:  string(order.PaymentStatus),
		Notes:          order.Notes,
		CreatedBy:      order.CreatedBy,
		CancelledAt:    order.CancelledAt,
		ItemCount:      order.ItemCount(),
		Items:          items,
		CreatedAt:      order.CreatedAt,
		UpdatedAt:      order.UpdatedAt,
		Version:        order.GetVersion(),
	}
}

// ToPurchaseOrderListItem converts the aggregate to its list read model
func ToPurchaseOrderListItem(order *purchasing.PurchaseOrder) PurchaseOrderListItem {
	return PurchaseOrderListItem{
		ID:             order.ID,
		BranchID:       order.BranchID,
		DocumentNumber: order.DocumentNumber,
		SupplierID:     order.SupplierID,
		SupplierName:   order.SupplierName,
		OrderDate:      order.OrderDate,
		Total:          order.Total,
		PaidAmount:     order.PaidAmount,
		DueAmount:      order.DueAmount,
		Status:         string(order.Status),
		PaymentStatus:  string(order.PaymentStatus),
		CreatedAt:      order.CreatedAt,
	}
}

// ToPurchaseOrderListItems converts a page of aggregates
func ToPurchaseOrderListItems(orders []purchasing.PurchaseOrder) []PurchaseOrderListItem {
	items := make([]PurchaseOrderListItem, len(orders))
	for i := range orders {
		items[i] = ToPurchaseOrderListItem(&orders[i])
	}
	return items
}
