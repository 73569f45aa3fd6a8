package purchasing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus is derived from an order's total and paid amount; it is never set directly.
type PaymentStatus string

const (
	PaymentStatusUnpaid  PaymentStatus = "unpaid"
	PaymentStatusPartial PaymentStatus = "partial"
	PaymentStatusPaid    PaymentStatus = "paid"
)

// IsValid checks if the status is a valid PaymentStatus
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusUnpaid, PaymentStatusPartial, PaymentStatusPaid:
		return true
	}
	return false
}

// String returns the string representation of PaymentStatus
func (s PaymentStatus) String() string {
	return string(s)
}

// PaymentBreakdown is the result of deriving payment fields for an order.
type PaymentBreakdown struct {
	Paid   decimal.Decimal
	Due    decimal.Decimal
	Status PaymentStatus
}

// DerivePayment clamps paidAmount into [0, total] and computes the due amount
// and payment status from the clamped value. It has no side effects and
// DerivePayment(total, b.Paid) returns b again for any result b.
// A negative total is treated as zero.
func DerivePayment(total, paidAmount decimal.Decimal) PaymentBreakdown {
	if total.IsNegative() {
		total = decimal.Zero
	}

	paid := paidAmount
	if paid.IsNegative() {
		paid = decimal.Zero
	}
	if paid.GreaterThan(total) {
		paid = total
	}

	var status PaymentStatus
	switch {
	case paid.LessThanOrEqual(decimal.Zero):
		status = PaymentStatusUnpaid
	case paid.LessThan(total):
		status = PaymentStatusPartial
	default:
		status = PaymentStatusPaid
	}

	return PaymentBreakdown{
		Paid:   paid,
		Due:    total.Sub(paid),
		Status: status,
	}
}

// PaymentMethod is how a settled order was paid
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodMobileWallet PaymentMethod = "mobile_wallet"
)

// IsValid checks if the method is a known PaymentMethod
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodBankTransfer, PaymentMethodCard, PaymentMethodMobileWallet:
		return true
	}
	return false
}

// PaymentRequest is what the order pipeline asks the ledger to record for an
// immediately settled purchase.
type PaymentRequest struct {
	TenantID        uuid.UUID
	BranchID        uuid.UUID
	PurchaseOrderID uuid.UUID
	Amount          decimal.Decimal
	PaymentDate     time.Time // calendar date; time of day is ignored
	AccountID       uuid.UUID
	Method          PaymentMethod
	ActorID         uuid.UUID
}

// DateOnly truncates t to midnight UTC of its calendar day.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
