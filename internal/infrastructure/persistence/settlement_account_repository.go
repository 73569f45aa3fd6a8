package persistence

import (
	"context"

	"github.com/atelier-erp/backend/internal/domain/purchasing"
	"github.com/atelier-erp/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormSettlementAccountRepository reads the settlement accounts of a tenant
type GormSettlementAccountRepository struct {
	db *gorm.DB
}

// NewGormSettlementAccountRepository creates a new GormSettlementAccountRepository
func NewGormSettlementAccountRepository(db *gorm.DB) *GormSettlementAccountRepository {
	return &GormSettlementAccountRepository{db: db}
}

// ListActiveAccountIDs returns the IDs of the tenant's active accounts
func (r *GormSettlementAccountRepository) ListActiveAccountIDs(ctx context.Context, tenantID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.SettlementAccountModel{}).
		Where("tenant_id = ? AND is_active = ?", tenantID, true).
		Order("created_at ASC").
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

var _ purchasing.SettlementAccountDirectory = (*GormSettlementAccountRepository)(nil)
