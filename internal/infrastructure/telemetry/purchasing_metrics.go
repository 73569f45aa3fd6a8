package telemetry

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// PurchasingMetrics tracks the purchase order creation pipeline: created
// orders, saga failures by kind, compensation outcomes, ledger payment
// outcomes and orphan sweeps.
type PurchasingMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	createdTotal      *Counter
	amountTotal       *Counter
	sagaFailedTotal   *Counter
	compensationTotal *Counter
	paymentTotal      *Counter
	orphanSweptTotal  *Counter
	sagaDuration      *Histogram
}

// PurchasingMetricsConfig holds configuration for purchasing metrics.
type PurchasingMetricsConfig struct {
	Meter  metric.Meter
	Logger *zap.Logger
}

// Outcome labels a compensation or side-effect result.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
)

// Purchasing attribute keys
var (
	AttrFailureKind = attribute.Key("failure_kind")
	AttrOutcome     = attribute.Key("outcome")
)

// SagaDurationBuckets are bucket boundaries for the creation pipeline (seconds).
var SagaDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

// NewPurchasingMetrics creates a new PurchasingMetrics instance.
func NewPurchasingMetrics(cfg PurchasingMetricsConfig) (*PurchasingMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	pm := &PurchasingMetrics{
		meter:  cfg.Meter,
		logger: logger,
	}

	var err error
	pm.createdTotal, err = NewCounter(cfg.Meter,
		"erp_purchase_created_total",
		"Total number of purchase orders created",
		"{orders}",
	)
	if err != nil {
		return nil, err
	}

	pm.amountTotal, err = NewCounter(cfg.Meter,
		"erp_purchase_amount_total",
		"Total purchase order amount in minor currency units",
		"{cents}",
	)
	if err != nil {
		return nil, err
	}

	pm.sagaFailedTotal, err = NewCounter(cfg.Meter,
		"erp_purchase_saga_failed_total",
		"Total number of failed purchase order creations by failure kind",
		"{failures}",
	)
	if err != nil {
		return nil, err
	}

	pm.compensationTotal, err = NewCounter(cfg.Meter,
		"erp_purchase_compensation_total",
		"Total number of header rollbacks after an items write failure",
		"{compensations}",
	)
	if err != nil {
		return nil, err
	}

	pm.paymentTotal, err = NewCounter(cfg.Meter,
		"erp_purchase_payment_record_total",
		"Total number of ledger payment record attempts",
		"{payments}",
	)
	if err != nil {
		return nil, err
	}

	pm.orphanSweptTotal, err = NewCounter(cfg.Meter,
		"erp_purchase_orphan_swept_total",
		"Total number of orphan purchase order headers removed by the sweep",
		"{headers}",
	)
	if err != nil {
		return nil, err
	}

	pm.sagaDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "erp_purchase_saga_duration_seconds",
		Description: "Duration of purchase order creation",
		Unit:        "s",
		Boundaries:  SagaDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	return pm, nil
}

// RecordCreated records a successfully created order and its total.
func (pm *PurchasingMetrics) RecordCreated(ctx context.Context, tenantID uuid.UUID, total decimal.Decimal) {
	attrs := []attribute.KeyValue{AttrTenantID.String(tenantID.String())}
	pm.createdTotal.Inc(ctx, attrs...)
	pm.amountTotal.Add(ctx, total.Mul(decimal.NewFromInt(100)).IntPart(), attrs...)
}

// RecordSagaFailure records a failed creation labelled by failure kind.
func (pm *PurchasingMetrics) RecordSagaFailure(ctx context.Context, tenantID uuid.UUID, kind string) {
	pm.sagaFailedTotal.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrFailureKind.String(kind),
	)
}

// RecordCompensation records whether a header rollback succeeded.
func (pm *PurchasingMetrics) RecordCompensation(ctx context.Context, tenantID uuid.UUID, outcome Outcome) {
	pm.compensationTotal.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrOutcome.String(string(outcome)),
	)
}

// RecordPaymentRecord records the outcome of a ledger payment call.
func (pm *PurchasingMetrics) RecordPaymentRecord(ctx context.Context, tenantID uuid.UUID, method string, outcome Outcome) {
	pm.paymentTotal.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrPaymentMethod.String(method),
		AttrOutcome.String(string(outcome)),
	)
}

// RecordOrphansSwept records orphan headers removed in one sweep.
func (pm *PurchasingMetrics) RecordOrphansSwept(ctx context.Context, count int) {
	if count <= 0 {
		return
	}
	pm.orphanSweptTotal.Add(ctx, int64(count))
}

// RecordSagaDuration records how long one creation attempt took.
func (pm *PurchasingMetrics) RecordSagaDuration(ctx context.Context, d time.Duration, outcome Outcome) {
	pm.sagaDuration.RecordDuration(ctx, d, AttrOutcome.String(string(outcome)))
}

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewPurchasingMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
