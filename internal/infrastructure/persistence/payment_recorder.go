package persistence

import (
	"context"
	"fmt"

	"github.com/atelier-erp/backend/internal/domain/purchasing"
	"github.com/atelier-erp/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormPaymentRecorder writes purchase payments into the ledger_payments table.
// A second request for the same (tenant, purchase order) is ignored.
type GormPaymentRecorder struct {
	db *gorm.DB
}

// NewGormPaymentRecorder creates a new GormPaymentRecorder
func NewGormPaymentRecorder(db *gorm.DB) *GormPaymentRecorder {
	return &GormPaymentRecorder{db: db}
}

// Record inserts the ledger row for the request
func (r *GormPaymentRecorder) Record(ctx context.Context, req purchasing.PaymentRequest) error {
	if !req.Amount.IsPositive() {
		return fmt.Errorf("payment amount must be positive, got %s", req.Amount)
	}

	row := models.LedgerPaymentModelFromRequest(req)
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "purchase_order_id"}},
			DoNothing: true,
		}).
		Create(row).Error; err != nil {
		return fmt.Errorf("record ledger payment: %w", err)
	}
	return nil
}

var _ purchasing.PaymentRecorder = (*GormPaymentRecorder)(nil)
