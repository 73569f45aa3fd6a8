package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atelier-erp/backend/internal/domain/purchasing"
	"github.com/atelier-erp/backend/internal/domain/shared"
	"github.com/atelier-erp/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// noItemsCondition matches headers that have no line items
const noItemsCondition = "NOT EXISTS (SELECT 1 FROM purchase_order_items i WHERE i.purchase_id = purchase_orders.id)"

// GormPurchaseOrderRepository implements purchasing.PurchaseOrderRepository using GORM.
// Header and items are written by separate statements; callers own the
// compensation between them.
type GormPurchaseOrderRepository struct {
	db *gorm.DB
}

// NewGormPurchaseOrderRepository creates a new GormPurchaseOrderRepository
func NewGormPurchaseOrderRepository(db *gorm.DB) *GormPurchaseOrderRepository {
	return &GormPurchaseOrderRepository{db: db}
}

// InsertHeader persists the order header without its items
func (r *GormPurchaseOrderRepository) InsertHeader(ctx context.Context, order *purchasing.PurchaseOrder) error {
	model := models.PurchaseOrderModelFromDomain(order)
	if err := r.db.WithContext(ctx).Omit("Items").Create(model).Error; err != nil {
		return fmt.Errorf("insert purchase order header: %w", err)
	}
	return nil
}

// InsertItems persists all items with a single INSERT so either every row
// lands or none does
func (r *GormPurchaseOrderRepository) InsertItems(ctx context.Context, items []purchasing.PurchaseLineItem) error {
	if len(items) == 0 {
		return nil
	}
	rows := make([]models.PurchaseOrderItemModel, len(items))
	for i := range items {
		rows[i].FromDomain(&items[i])
	}
	if err := r.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return fmt.Errorf("insert purchase order items: %w", err)
	}
	return nil
}

// DeleteHeader hard-deletes a header. Deleting a header that is already gone
// is not an error.
func (r *GormPurchaseOrderRepository) DeleteHeader(ctx context.Context, tenantID, id uuid.UUID) error {
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Delete(&models.PurchaseOrderModel{}).Error; err != nil {
		return fmt.Errorf("delete purchase order header: %w", err)
	}
	return nil
}

// FindByIDForTenant loads a header with its items
func (r *GormPurchaseOrderRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*purchasing.PurchaseOrder, error) {
	var model models.PurchaseOrderModel
	if err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAllForTenant lists headers matching the filter. Items are not loaded.
func (r *GormPurchaseOrderRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter purchasing.ListFilter) ([]purchasing.PurchaseOrder, error) {
	var orderModels []models.PurchaseOrderModel

	query := r.db.WithContext(ctx).Model(&models.PurchaseOrderModel{}).Where("tenant_id = ?", tenantID)
	query = r.applyFilter(query, filter)

	if err := query.Find(&orderModels).Error; err != nil {
		return nil, err
	}
	orders := make([]purchasing.PurchaseOrder, len(orderModels))
	for i := range orderModels {
		orders[i] = *orderModels[i].ToDomain()
	}
	return orders, nil
}

// CountForTenant counts headers matching the filter, ignoring pagination
func (r *GormPurchaseOrderRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter purchasing.ListFilter) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&models.PurchaseOrderModel{}).Where("tenant_id = ?", tenantID)
	query = r.applyFilterWithoutPagination(query, filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// UpdateStatus sets the status and bumps the version of an order whose
// current status is one of from. The condition is part of the UPDATE so a
// concurrent change between read and write is never overwritten.
func (r *GormPurchaseOrderRepository) UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, from []purchasing.Status, status purchasing.Status) (bool, error) {
	if len(from) == 0 {
		return false, nil
	}
	fromValues := make([]string, len(from))
	for i, s := range from {
		fromValues[i] = string(s)
	}

	result := r.db.WithContext(ctx).
		Model(&models.PurchaseOrderModel{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Where("status IN ? AND cancelled_at IS NULL", fromValues).
		Updates(map[string]any{
			"status":     string(status),
			"updated_at": time.Now(),
			"version":    gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// orphanRow is the projection scanned by FindOrphanHeaders
type orphanRow struct {
	ID             uuid.UUID
	TenantID       uuid.UUID
	BranchID       uuid.UUID
	DocumentNumber string
	CreatedAt      time.Time
}

// FindOrphanHeaders returns the oldest headers without items created before olderThan
func (r *GormPurchaseOrderRepository) FindOrphanHeaders(ctx context.Context, olderThan time.Time, limit int) ([]purchasing.OrphanHeader, error) {
	var rows []orphanRow
	if err := r.db.WithContext(ctx).
		Model(&models.PurchaseOrderModel{}).
		Select("id, tenant_id, branch_id, document_number, created_at").
		Where("created_at < ?", olderThan).
		Where(noItemsCondition).
		Order("created_at ASC").
		Limit(limit).
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	orphans := make([]purchasing.OrphanHeader, len(rows))
	for i, row := range rows {
		orphans[i] = purchasing.OrphanHeader(row)
	}
	return orphans, nil
}

// DeleteOrphanHeader deletes the header only if it still has no items. The
// condition is re-checked by the DELETE itself, so a header whose items were
// written after it was found survives.
func (r *GormPurchaseOrderRepository) DeleteOrphanHeader(ctx context.Context, tenantID, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Where(noItemsCondition).
		Delete(&models.PurchaseOrderModel{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// applyFilter applies filters, pagination and ordering
func (r *GormPurchaseOrderRepository) applyFilter(query *gorm.DB, filter purchasing.ListFilter) *gorm.DB {
	query = r.applyFilterWithoutPagination(query, filter)

	if filter.Page > 0 && filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	// Ordering is whitelisted to keep user input out of the ORDER BY clause
	sortField := ValidateSortField(filter.OrderBy, PurchaseOrderSortFields, "created_at")
	sortOrder := ValidateSortOrder(filter.OrderDir)
	return query.Order(sortField + " " + sortOrder).Order("id " + sortOrder)
}

// applyFilterWithoutPagination applies the WHERE conditions of the filter
func (r *GormPurchaseOrderRepository) applyFilterWithoutPagination(query *gorm.DB, filter purchasing.ListFilter) *gorm.DB {
	if !filter.IncludeCancelled {
		query = query.Where("cancelled_at IS NULL")
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(document_number) LIKE ? OR LOWER(supplier_name) LIKE ?", pattern, pattern)
	}
	if filter.BranchID != nil {
		query = query.Where("branch_id = ?", *filter.BranchID)
	}
	if filter.SupplierID != nil {
		query = query.Where("supplier_id = ?", *filter.SupplierID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", string(*filter.Status))
	}
	if filter.PaymentStatus != nil {
		query = query.Where("payment_status = ?", string(*filter.PaymentStatus))
	}
	if filter.From != nil {
		query = query.Where("order_date >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("order_date <= ?", *filter.To)
	}
	return query
}

var _ purchasing.PurchaseOrderRepository = (*GormPurchaseOrderRepository)(nil)
