package purchasing

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/atelier-erp/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrder(t *testing.T, status Status) *PurchaseOrder {
	t.Helper()
	order, err := NewPurchaseOrder(uuid.New(), uuid.New(), uuid.New(), status, Amounts{
		Subtotal: d("1000"),
		Total:    d("1000"),
	})
	require.NoError(t, err)
	return order
}

func TestStatus_CanFinalize(t *testing.T) {
	for _, s := range []Status{StatusDraft, StatusOrdered, StatusSent, StatusConfirmed} {
		assert.True(t, s.CanFinalize(), s)
	}
	for _, s := range []Status{StatusReceived, StatusFinal, StatusCancelled, Status("bogus")} {
		assert.False(t, s.CanFinalize(), s)
	}
}

func TestNewPurchaseOrder(t *testing.T) {
	tenantID, branchID, actorID := uuid.New(), uuid.New(), uuid.New()

	t.Run("creates unnumbered unpaid order", func(t *testing.T) {
		order, err := NewPurchaseOrder(tenantID, branchID, actorID, StatusOrdered, Amounts{Total: d("250")})
		require.NoError(t, err)

		assert.Equal(t, tenantID, order.TenantID)
		assert.Equal(t, branchID, order.BranchID)
		assert.Equal(t, actorID, *order.CreatedBy)
		assert.Empty(t, order.DocumentNumber)
		assert.Equal(t, PaymentStatusUnpaid, order.PaymentStatus)
		assert.True(t, order.DueAmount.Equal(d("250")))
	})

	t.Run("requires identifiers", func(t *testing.T) {
		_, err := NewPurchaseOrder(uuid.Nil, branchID, actorID, StatusOrdered, Amounts{})
		assert.True(t, IsKind(err, KindValidation))
		_, err = NewPurchaseOrder(tenantID, uuid.Nil, actorID, StatusOrdered, Amounts{})
		assert.True(t, IsKind(err, KindValidation))
		_, err = NewPurchaseOrder(tenantID, branchID, uuid.Nil, StatusOrdered, Amounts{})
		assert.True(t, IsKind(err, KindValidation))
	})

	t.Run("rejects negative total", func(t *testing.T) {
		_, err := NewPurchaseOrder(tenantID, branchID, actorID, StatusOrdered, Amounts{Total: d("-1")})
		assert.True(t, IsKind(err, KindValidation))
	})

	t.Run("rejects cancelled as initial status", func(t *testing.T) {
		_, err := NewPurchaseOrder(tenantID, branchID, actorID, StatusCancelled, Amounts{})
		assert.True(t, IsKind(err, KindValidation))
	})
}

func TestPurchaseOrder_AddItem(t *testing.T) {
	order := newTestOrder(t, StatusOrdered)
	packing := json.RawMessage(`{"bales":2,"meters_per_bale":45}`)

	item, err := order.AddItem(uuid.New(), nil, "Linen 150cm", "LIN-150", d("90"), d("12.5"), packing)
	require.NoError(t, err)

	assert.Equal(t, order.ID, item.PurchaseID)
	assert.True(t, item.LineTotal.Equal(d("1125")))
	assert.JSONEq(t, string(packing), string(item.PackingDetail))
	assert.Equal(t, 1, order.ItemCount())
	assert.True(t, order.ItemsTotal().Equal(d("1125")))

	_, err = order.AddItem(uuid.New(), nil, "Thread", "THR", decimal.Zero, d("1"), nil)
	assert.True(t, IsKind(err, KindValidation))

	_, err = order.AddItem(uuid.New(), nil, "Thread", "THR", d("1"), d("-1"), nil)
	assert.True(t, IsKind(err, KindValidation))

	_, err = order.AddItem(uuid.Nil, nil, "Thread", "THR", d("1"), d("1"), nil)
	assert.True(t, IsKind(err, KindValidation))

	_, err = order.AddItem(uuid.New(), nil, "Thread", "THR", d("1"), d("1"), json.RawMessage(`{oops`))
	assert.True(t, IsKind(err, KindValidation))

	assert.Equal(t, 1, order.ItemCount())
}

func TestPurchaseOrder_ApplyPayment(t *testing.T) {
	order := newTestOrder(t, StatusFinal)
	order.ApplyPayment(DerivePayment(order.Total, d("400")))

	assert.True(t, order.PaidAmount.Equal(d("400")))
	assert.True(t, order.DueAmount.Equal(d("600")))
	assert.Equal(t, PaymentStatusPartial, order.PaymentStatus)
	assert.True(t, order.RequiresPaymentRecord())

	order.ApplyPayment(DerivePayment(order.Total, decimal.Zero))
	assert.False(t, order.RequiresPaymentRecord())
}

func TestPurchaseOrder_MarkFinal(t *testing.T) {
	t.Run("promotes allowed statuses", func(t *testing.T) {
		for _, s := range []Status{StatusDraft, StatusOrdered, StatusSent, StatusConfirmed} {
			order := newTestOrder(t, s)
			version := order.Version

			changed, err := order.MarkFinal()
			require.NoError(t, err)
			assert.True(t, changed)
			assert.Equal(t, StatusFinal, order.Status)
			assert.Equal(t, version+1, order.Version)
			require.Len(t, order.GetDomainEvents(), 1)
			assert.Equal(t, EventTypePurchaseOrderFinalized, order.GetDomainEvents()[0].EventType())
		}
	})

	t.Run("already final is a no-op", func(t *testing.T) {
		order := newTestOrder(t, StatusFinal)
		version := order.Version

		changed, err := order.MarkFinal()
		require.NoError(t, err)
		assert.False(t, changed)
		assert.Equal(t, version, order.Version)
		assert.Empty(t, order.GetDomainEvents())
	})

	t.Run("rejects received", func(t *testing.T) {
		order := newTestOrder(t, StatusReceived)

		_, err := order.MarkFinal()
		assert.True(t, errors.Is(err, shared.ErrInvalidState))
		assert.Equal(t, StatusReceived, order.Status)
	})

	t.Run("rejects soft-cancelled order", func(t *testing.T) {
		order := newTestOrder(t, StatusOrdered)
		now := time.Now()
		order.CancelledAt = &now

		_, err := order.MarkFinal()
		assert.True(t, errors.Is(err, shared.ErrInvalidState))
	})
}
