package event

import (
	"context"

	"github.com/atelier-erp/backend/internal/domain/purchasing"
	"github.com/atelier-erp/backend/internal/domain/shared"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// PurchaseAuditHandler writes every purchasing event to the log. Payment
// record failures log at warn so they surface in alerting.
type PurchaseAuditHandler struct {
	logger *zap.Logger
}

// NewPurchaseAuditHandler creates a new PurchaseAuditHandler
func NewPurchaseAuditHandler(logger *zap.Logger) *PurchaseAuditHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PurchaseAuditHandler{logger: logger.Named("purchase-audit")}
}

// EventTypes returns the purchasing event types
func (h *PurchaseAuditHandler) EventTypes() []string {
	return []string{
		purchasing.EventTypePurchaseOrderCreated,
		purchasing.EventTypePurchaseOrderFinalized,
		purchasing.EventTypePurchasePaymentRecordFailed,
		purchasing.EventTypePurchaseOrphanReconciled,
	}
}

// Handle logs the event with its payload
func (h *PurchaseAuditHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	level := zapcore.InfoLevel
	if event.EventType() == purchasing.EventTypePurchasePaymentRecordFailed {
		level = zapcore.WarnLevel
	}
	h.logger.Log(level, "purchasing event",
		zap.String("event_type", event.EventType()),
		zap.String("event_id", event.EventID().String()),
		zap.String("tenant_id", event.TenantID().String()),
		zap.String("aggregate_id", event.AggregateID().String()),
		zap.Time("occurred_at", event.OccurredAt()),
		zap.Reflect("payload", event),
	)
	return nil
}

var _ shared.EventHandler = (*PurchaseAuditHandler)(nil)
