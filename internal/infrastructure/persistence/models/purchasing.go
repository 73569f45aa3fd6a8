package models

import (
	"encoding/json"
	"time"

	"github.com/atelier-erp/backend/internal/domain/purchasing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// DocumentSequenceModel is the per (tenant, branch, document type) counter row.
type DocumentSequenceModel struct {
	TenantID     uuid.UUID `gorm:"type:uuid;primaryKey"`
	BranchID     uuid.UUID `gorm:"type:uuid;primaryKey"`
	DocumentType string    `gorm:"type:varchar(32);primaryKey"`
	LastValue    int64     `gorm:"not null;default:0"`
	UpdatedAt    time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (DocumentSequenceModel) TableName() string {
	return "document_sequences"
}

// PurchaseOrderModel is the persistence model for the PurchaseOrder header.
type PurchaseOrderModel struct {
	BranchAggregateModel
	DocumentNumber string                   `gorm:"type:varchar(50);not null"`
	SupplierID     *uuid.UUID               `gorm:"type:uuid;index"`
	SupplierName   string                   `gorm:"type:varchar(200)"`
	OrderDate      time.Time                `gorm:"not null;index"`
	Subtotal       decimal.Decimal          `gorm:"type:decimal(18,4);not null;default:0"`
	DiscountAmount decimal.Decimal          `gorm:"type:decimal(18,4);not null;default:0"`
	TaxAmount      decimal.Decimal          `gorm:"type:decimal(18,4);not null;default:0"`
	ShippingCost   decimal.Decimal          `gorm:"type:decimal(18,4);not null;default:0"`
	Total          decimal.Decimal          `gorm:"type:decimal(18,4);not null;default:0"`
	PaidAmount     decimal.Decimal          `gorm:"type:decimal(18,4);not null;default:0"`
	DueAmount      decimal.Decimal          `gorm:"type:decimal(18,4);not null;default:0"`
	Status         string                   `gorm:"type:varchar(20);not null;default:'draft'"`
	PaymentStatus  string                   `gorm:"type:varchar(20);not null;default:'unpaid'"`
	Notes          string                   `gorm:"type:text"`
	CancelledAt    *time.Time               `gorm:"index"`
	Items          []PurchaseOrderItemModel `gorm:"foreignKey:PurchaseID;references:ID"`
}

// TableName returns the table name for GORM
func (PurchaseOrderModel) TableName() string {
	return "purchase_orders"
}

// ToDomain converts the persistence model to a domain PurchaseOrder
func (m *PurchaseOrderModel) ToDomain() *purchasing.PurchaseOrder {
	order := &purchasing.PurchaseOrder{
		DocumentNumber: m.DocumentNumber,
		SupplierID:     m.SupplierID,
		SupplierName:   m.SupplierName,
		OrderDate:      m.OrderDate,
		Subtotal:       m.Subtotal,
		DiscountAmount: m.DiscountAmount,
		TaxAmount:      m.TaxAmount,
		ShippingCost:   m.ShippingCost,
		Total:          m.Total,
		PaidAmount:     m.PaidAmount,
		DueAmount:      m.DueAmount,
		Status:         purchasing.Status(m.Status),
		PaymentStatus:  purchasing.PaymentStatus(m.PaymentStatus),
		Notes:          m.Notes,
		CancelledAt:    m.CancelledAt,
	}
	m.PopulateTenantAggregateRoot(&order.TenantAggregateRoot)

	if len(m.Items) > 0 {
		order.Items = make([]purchasing.PurchaseLineItem, len(m.Items))
		for i := range m.Items {
			order.Items[i] = *m.Items[i].ToDomain()
		}
	}
	return order
}

// FromDomain populates the header columns from a domain PurchaseOrder.
// Items are not copied; they are written by a separate statement.
func (m *PurchaseOrderModel) FromDomain(o *purchasing.PurchaseOrder) {
	m.FromDomainTenantAggregateRoot(o.TenantAggregateRoot)
	m.DocumentNumber = o.DocumentNumber
	m.SupplierID = o.SupplierID
	m.SupplierName = o.SupplierName
	m.OrderDate = o.OrderDate
	m.Subtotal = o.Subtotal
	m.DiscountAmount = o.DiscountAmount
	m.TaxAmount = o.TaxAmount
	m.ShippingCost = o.ShippingCost
	m.Total = o.Total
	m.PaidAmount = o.PaidAmount
	m.DueAmount = o.DueAmount
	m.Status = string(o.Status)
	m.PaymentStatus = string(o.PaymentStatus)
	m.Notes = o.Notes
	m.CancelledAt = o.CancelledAt
}

// PurchaseOrderModelFromDomain creates a header model from a domain PurchaseOrder
func PurchaseOrderModelFromDomain(o *purchasing.PurchaseOrder) *PurchaseOrderModel {
	m := &PurchaseOrderModel{}
	m.FromDomain(o)
	return m
}

// PurchaseOrderItemModel is the persistence model for a purchase line item.
type PurchaseOrderItemModel struct {
	ID            uuid.UUID       `gorm:"type:uuid;primary_key"`
	PurchaseID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	VariantID     *uuid.UUID      `gorm:"type:uuid"`
	ProductName   string          `gorm:"type:varchar(200);not null"`
	SKU           string          `gorm:"column:sku;type:varchar(64)"`
	Quantity      decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	UnitPrice     decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	LineTotal     decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	PackingDetail datatypes.JSON  `gorm:"type:jsonb"`
	CreatedAt     time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PurchaseOrderItemModel) TableName() string {
	return "purchase_order_items"
}

// ToDomain converts the persistence model to a domain PurchaseLineItem
func (m *PurchaseOrderItemModel) ToDomain() *purchasing.PurchaseLineItem {
	item := &purchasing.PurchaseLineItem{
		ID:          m.ID,
		PurchaseID:  m.PurchaseID,
		ProductID:   m.ProductID,
		VariantID:   m.VariantID,
		ProductName: m.ProductName,
		SKU:         m.SKU,
		Quantity:    m.Quantity,
		UnitPrice:   m.UnitPrice,
		LineTotal:   m.LineTotal,
		CreatedAt:   m.CreatedAt,
	}
	if len(m.PackingDetail) > 0 {
		item.PackingDetail = json.RawMessage(m.PackingDetail)
	}
	return item
}

// FromDomain populates the persistence model from a domain PurchaseLineItem
func (m *PurchaseOrderItemModel) FromDomain(i *purchasing.PurchaseLineItem) {
	m.ID = i.ID
	m.PurchaseID = i.PurchaseID
	m.ProductID = i.ProductID
	m.VariantID = i.VariantID
	m.ProductName = i.ProductName
	m.SKU = i.SKU
	m.Quantity = i.Quantity
	m.UnitPrice = i.UnitPrice
	m.LineTotal = i.LineTotal
	m.PackingDetail = datatypes.JSON(i.PackingDetail)
	m.CreatedAt = i.CreatedAt
}

// PurchaseOrderItemModelFromDomain creates an item model from a domain PurchaseLineItem
func PurchaseOrderItemModelFromDomain(i *purchasing.PurchaseLineItem) *PurchaseOrderItemModel {
	m := &PurchaseOrderItemModel{}
	m.FromDomain(i)
	return m
}

// SettlementAccountModel is a cash or bank account purchases can be settled into.
type SettlementAccountModel struct {
	BaseModel
	TenantID    uuid.UUID `gorm:"type:uuid;not null;index"`
	Name        string    `gorm:"type:varchar(100);not null"`
	AccountType string    `gorm:"type:varchar(20);not null;default:'cash'"`
	IsActive    bool      `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SettlementAccountModel) TableName() string {
	return "settlement_accounts"
}

// LedgerPaymentModel is the payment the purchasing pipeline asked the ledger to
// record. One row per purchase order at most.
type LedgerPaymentModel struct {
	ID              uuid.UUID       `gorm:"type:uuid;primary_key"`
	TenantID        uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_ledger_payment_order,priority:1"`
	BranchID        uuid.UUID       `gorm:"type:uuid;not null"`
	PurchaseOrderID uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_ledger_payment_order,priority:2"`
	AccountID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	Amount          decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Method          string          `gorm:"type:varchar(20);not null"`
	PaymentDate     time.Time       `gorm:"type:date;not null"`
	CreatedBy       uuid.UUID       `gorm:"type:uuid;not null"`
	CreatedAt       time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (LedgerPaymentModel) TableName() string {
	return "ledger_payments"
}

// LedgerPaymentModelFromRequest creates a ledger payment row from a payment request
func LedgerPaymentModelFromRequest(req purchasing.PaymentRequest) *LedgerPaymentModel {
	return &LedgerPaymentModel{
		ID:              uuid.New(),
		TenantID:        req.TenantID,
		BranchID:        req.BranchID,
		PurchaseOrderID: req.PurchaseOrderID,
		AccountID:       req.AccountID,
		Amount:          req.Amount,
		Method:          string(req.Method),
		PaymentDate:     purchasing.DateOnly(req.PaymentDate),
		CreatedBy:       req.ActorID,
		CreatedAt:       time.Now(),
	}
}
