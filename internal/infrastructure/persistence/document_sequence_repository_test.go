package persistence

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/atelier-erp/backend/internal/domain/purchasing"
	"github.com/atelier-erp/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upsertSequencePattern = "(?s)" + regexp.QuoteMeta("INSERT INTO document_sequences") +
	".*ON CONFLICT \\(tenant_id, branch_id, document_type\\).*RETURNING last_value"

func TestGormDocumentSequenceRepository_Next(t *testing.T) {
	tenantID := uuid.New()
	branchID := uuid.New()

	t.Run("returns the value produced by the upsert", func(t *testing.T) {
		db, mock, mockDB := newMockDatabase(t)
		defer mockDB.Close()
		repo := NewGormDocumentSequenceRepository(db.DB)

		mock.ExpectQuery(upsertSequencePattern).
			WithArgs(tenantID, branchID, "purchase").
			WillReturnRows(sqlmock.NewRows([]string{"last_value"}).AddRow(int64(42)))

		v, err := repo.Next(context.Background(), tenantID, branchID, purchasing.DocumentTypePurchase)
		require.NoError(t, err)
		assert.Equal(t, int64(42), v)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("uses the document type as part of the key", func(t *testing.T) {
		db, mock, mockDB := newMockDatabase(t)
		defer mockDB.Close()
		repo := NewGormDocumentSequenceRepository(db.DB)

		mock.ExpectQuery(upsertSequencePattern).
			WithArgs(tenantID, branchID, "purchase_return").
			WillReturnRows(sqlmock.NewRows([]string{"last_value"}).AddRow(int64(1)))

		v, err := repo.Next(context.Background(), tenantID, branchID, purchasing.DocumentTypePurchaseReturn)
		require.NoError(t, err)
		assert.Equal(t, int64(1), v)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects an unknown document type without touching the database", func(t *testing.T) {
		db, mock, mockDB := newMockDatabase(t)
		defer mockDB.Close()
		repo := NewGormDocumentSequenceRepository(db.DB)

		_, err := repo.Next(context.Background(), tenantID, branchID, purchasing.DocumentType("invoice"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown document type")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("wraps driver errors", func(t *testing.T) {
		db, mock, mockDB := newMockDatabase(t)
		defer mockDB.Close()
		repo := NewGormDocumentSequenceRepository(db.DB)

		driverErr := errors.New("connection reset by peer")
		mock.ExpectQuery(upsertSequencePattern).WillReturnError(driverErr)

		_, err := repo.Next(context.Background(), tenantID, branchID, purchasing.DocumentTypePurchase)
		require.Error(t, err)
		assert.ErrorIs(t, err, driverErr)
	})

	t.Run("rejects a non-positive value", func(t *testing.T) {
		db, mock, mockDB := newMockDatabase(t)
		defer mockDB.Close()
		repo := NewGormDocumentSequenceRepository(db.DB)

		mock.ExpectQuery(upsertSequencePattern).
			WillReturnRows(sqlmock.NewRows([]string{"last_value"}).AddRow(int64(0)))

		_, err := repo.Next(context.Background(), tenantID, branchID, purchasing.DocumentTypePurchase)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "non-positive")
	})
}

func TestGormDocumentSequenceRepository_Current(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()
	repo := NewGormDocumentSequenceRepository(db.DB)
	tenantID := uuid.New()
	branchID := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT last_value FROM "document_sequences"`)).
		WithArgs(tenantID, branchID, "sale").
		WillReturnRows(sqlmock.NewRows([]string{"last_value"}).AddRow(int64(9)))

	v, err := repo.Current(context.Background(), tenantID, branchID, purchasing.DocumentTypeSale)
	require.NoError(t, err)
	assert.Equal(t, int64(9), v)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormDocumentSequenceRepository_HighWaterMark(t *testing.T) {
	db := newSQLiteDB(t)
	repo := NewGormDocumentSequenceRepository(db)
	ctx := context.Background()
	tenantID, branchID := uuid.New(), uuid.New()

	t.Run("unused key", func(t *testing.T) {
		v, err := repo.HighWaterMark(ctx, tenantID, uuid.New(), purchasing.DocumentTypePurchase)
		require.NoError(t, err)
		assert.Zero(t, v)
	})

	require.NoError(t, db.Create(&models.DocumentSequenceModel{
		TenantID:     tenantID,
		BranchID:     branchID,
		DocumentType: "purchase",
		LastValue:    7,
		UpdatedAt:    baseTime,
	}).Error)

	t.Run("counter only", func(t *testing.T) {
		v, err := repo.HighWaterMark(ctx, tenantID, branchID, purchasing.DocumentTypePurchase)
		require.NoError(t, err)
		assert.Equal(t, int64(7), v)
	})

	orders := NewGormPurchaseOrderRepository(db)
	for i, number := range []string{"PO-00011", "PUR-00012", "PO-00009"} {
		order := newTestOrder(t, tenantID, branchID, number, baseTime.Add(time.Duration(i)*time.Minute))
		require.NoError(t, orders.InsertHeader(ctx, order))
	}
	// Another tenant's numbers never count
	require.NoError(t, orders.InsertHeader(ctx, newTestOrder(t, uuid.New(), branchID, "PO-00500", baseTime)))

	t.Run("stored numbers above the counter", func(t *testing.T) {
		v, err := repo.HighWaterMark(ctx, tenantID, branchID, purchasing.DocumentTypePurchase)
		require.NoError(t, err)
		assert.Equal(t, int64(12), v)
	})

	t.Run("other document types use the counter alone", func(t *testing.T) {
		v, err := repo.HighWaterMark(ctx, tenantID, branchID, purchasing.DocumentTypeSale)
		require.NoError(t, err)
		assert.Zero(t, v)
	})
}
