package persistence

import (
	"context"
	"fmt"

	"github.com/atelier-erp/backend/internal/domain/purchasing"
	"github.com/atelier-erp/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// nextSequenceSQL creates the counter row on first use and otherwise bumps it.
// The increment and the read happen in one statement so concurrent callers
// serialize on the row lock and each observes a distinct value.
const nextSequenceSQL = `INSERT INTO document_sequences (tenant_id, branch_id, document_type, last_value, updated_at)
VALUES (?, ?, ?, 1, now())
ON CONFLICT (tenant_id, branch_id, document_type)
DO UPDATE SET last_value = document_sequences.last_value + 1, updated_at = now()
RETURNING last_value`

// GormDocumentSequenceRepository allocates document numbers from the
// document_sequences table
type GormDocumentSequenceRepository struct {
	db *gorm.DB
}

// NewGormDocumentSequenceRepository creates a new GormDocumentSequenceRepository
func NewGormDocumentSequenceRepository(db *gorm.DB) *GormDocumentSequenceRepository {
	return &GormDocumentSequenceRepository{db: db}
}

// Next increments and returns the sequence value for the key
func (r *GormDocumentSequenceRepository) Next(ctx context.Context, tenantID, branchID uuid.UUID, docType purchasing.DocumentType) (int64, error) {
	if !docType.IsValid() {
		return 0, fmt.Errorf("unknown document type %q", docType)
	}

	var value int64
	if err := r.db.WithContext(ctx).
		Raw(nextSequenceSQL, tenantID, branchID, docType.String()).
		Scan(&value).Error; err != nil {
		return 0, fmt.Errorf("increment %s sequence: %w", docType, err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("sequence %s returned non-positive value %d", docType, value)
	}
	return value, nil
}

// Current returns the last value handed out for the key, or 0 when the
// sequence has never been used
func (r *GormDocumentSequenceRepository) Current(ctx context.Context, tenantID, branchID uuid.UUID, docType purchasing.DocumentType) (int64, error) {
	var value int64
	if err := r.db.WithContext(ctx).
		Table("document_sequences").
		Select("last_value").
		Where("tenant_id = ? AND branch_id = ? AND document_type = ?", tenantID, branchID, docType.String()).
		Scan(&value).Error; err != nil {
		return 0, err
	}
	return value, nil
}

// recentNumbersWindow bounds how many stored purchase orders HighWaterMark
// inspects. Numbers are allocated in creation order, so the newest rows hold
// the maximum.
const recentNumbersWindow = 100

// HighWaterMark returns the highest value known to have been issued for the
// key. It covers the postgres counter and, for purchases, the document
// numbers already stored, so a counter kept elsewhere can resume above both.
func (r *GormDocumentSequenceRepository) HighWaterMark(ctx context.Context, tenantID, branchID uuid.UUID, docType purchasing.DocumentType) (int64, error) {
	high, err := r.Current(ctx, tenantID, branchID, docType)
	if err != nil {
		return 0, fmt.Errorf("read %s sequence: %w", docType, err)
	}
	if docType != purchasing.DocumentTypePurchase {
		return high, nil
	}

	var numbers []string
	if err := r.db.WithContext(ctx).
		Model(&models.PurchaseOrderModel{}).
		Where("tenant_id = ? AND branch_id = ?", tenantID, branchID).
		Order("created_at DESC").
		Limit(recentNumbersWindow).
		Pluck("document_number", &numbers).Error; err != nil {
		return 0, fmt.Errorf("read issued %s numbers: %w", docType, err)
	}
	for _, n := range numbers {
		if seq, ok := purchasing.ParseSequence(n); ok && seq > high {
			high = seq
		}
	}
	return high, nil
}

var _ purchasing.DocumentNumberAllocator = (*GormDocumentSequenceRepository)(nil)
