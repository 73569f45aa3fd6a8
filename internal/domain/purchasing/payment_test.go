package purchasing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestDerivePayment(t *testing.T) {
	tests := []struct {
		name       string
		total      string
		paidAmount string
		wantPaid   string
		wantDue    string
		wantStatus PaymentStatus
	}{
		{"fully paid", "10000", "10000", "10000", "0", PaymentStatusPaid},
		{"unpaid", "5000", "0", "0", "5000", PaymentStatusUnpaid},
		{"partial", "5000", "1250.50", "1250.50", "3749.50", PaymentStatusPartial},
		{"overpaid is clamped to total", "8000", "9000", "8000", "0", PaymentStatusPaid},
		{"negative paid is clamped to zero", "3000", "-200", "0", "3000", PaymentStatusUnpaid},
		{"zero total", "0", "0", "0", "0", PaymentStatusUnpaid},
		{"zero total with payment", "0", "100", "0", "0", PaymentStatusUnpaid},
		{"tiny payment", "100", "0.0001", "0.0001", "99.9999", PaymentStatusPartial},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DerivePayment(d(tt.total), d(tt.paidAmount))

			assert.True(t, d(tt.wantPaid).Equal(got.Paid), "paid: want %s got %s", tt.wantPaid, got.Paid)
			assert.True(t, d(tt.wantDue).Equal(got.Due), "due: want %s got %s", tt.wantDue, got.Due)
			assert.Equal(t, tt.wantStatus, got.Status)
		})
	}
}

func TestDerivePayment_DueIsTotalMinusPaid(t *testing.T) {
	totals := []string{"0", "1", "99.99", "5000", "123456.7890"}
	fractions := []string{"0", "0.1", "0.5", "0.999", "1"}

	for _, ts := range totals {
		for _, fs := range fractions {
			total := d(ts)
			paid := total.Mul(d(fs)).Round(4)

			got := DerivePayment(total, paid)

			assert.True(t, got.Due.Equal(total.Sub(got.Paid)))
			assert.False(t, got.Due.IsNegative())
			switch {
			case got.Paid.IsZero():
				assert.Equal(t, PaymentStatusUnpaid, got.Status)
			case got.Paid.GreaterThanOrEqual(total):
				assert.Equal(t, PaymentStatusPaid, got.Status)
			default:
				assert.Equal(t, PaymentStatusPartial, got.Status)
			}
		}
	}
}

func TestDerivePayment_ClampIsIdempotent(t *testing.T) {
	inputs := [][2]string{
		{"8000", "9000"},
		{"8000", "-1"},
		{"8000", "4000"},
		{"0", "50"},
	}

	for _, in := range inputs {
		first := DerivePayment(d(in[0]), d(in[1]))
		second := DerivePayment(d(in[0]), first.Paid)

		assert.True(t, first.Paid.Equal(second.Paid))
		assert.True(t, first.Due.Equal(second.Due))
		assert.Equal(t, first.Status, second.Status)
	}
}

func TestPaymentStatus_IsValid(t *testing.T) {
	assert.True(t, PaymentStatusPartial.IsValid())
	assert.False(t, PaymentStatus("refunded").IsValid())
}

func TestPaymentMethod_IsValid(t *testing.T) {
	assert.True(t, PaymentMethodCash.IsValid())
	assert.True(t, PaymentMethodMobileWallet.IsValid())
	assert.False(t, PaymentMethod("cheque").IsValid())
}

func TestDateOnly(t *testing.T) {
	in := time.Date(2026, 3, 14, 17, 45, 12, 999, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), DateOnly(in))
}
