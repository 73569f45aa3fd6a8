// Package purchasing implements purchase order creation, finalization and
// the read side on top of the purchasing domain ports.
package purchasing

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/atelier-erp/backend/internal/application/saga"
	"github.com/atelier-erp/backend/internal/domain/purchasing"
	"github.com/atelier-erp/backend/internal/domain/shared"
	"github.com/atelier-erp/backend/internal/infrastructure/logger"
	"github.com/atelier-erp/backend/internal/infrastructure/telemetry"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Saga step names
const (
	stepAllocate    = "allocate"
	stepDerive      = "derive"
	stepWriteHeader = "write_header"
	stepWriteItems  = "write_items"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	dateLayout      = "2006-01-02"
)

// PurchaseServiceDeps lists the collaborators PurchaseService cannot run without
type PurchaseServiceDeps struct {
	Allocator    purchasing.DocumentNumberAllocator
	Orders       purchasing.PurchaseOrderRepository
	Accounts     purchasing.SettlementAccountDirectory
	Payments     purchasing.PaymentRecorder
	NumberFormat *purchasing.NumberFormat
}

// PurchaseService handles purchase order business operations
type PurchaseService struct {
	allocator  purchasing.DocumentNumberAllocator
	orders     purchasing.PurchaseOrderRepository
	accounts   purchasing.SettlementAccountDirectory
	payments   purchasing.PaymentRecorder
	format     purchasing.NumberFormat
	validate   *validator.Validate
	dispatcher SideEffectDispatcher

	eventPublisher shared.EventPublisher
	metrics        *telemetry.PurchasingMetrics
	logger         *zap.Logger
	tracer         trace.Tracer
}

// NewPurchaseService creates a new PurchaseService
func NewPurchaseService(deps PurchaseServiceDeps) (*PurchaseService, error) {
	switch {
	case deps.Allocator == nil:
		return nil, errors.New("purchase service: allocator is required")
	case deps.Orders == nil:
		return nil, errors.New("purchase service: order repository is required")
	case deps.Accounts == nil:
		return nil, errors.New("purchase service: settlement account directory is required")
	case deps.Payments == nil:
		return nil, errors.New("purchase service: payment recorder is required")
	}

	format := purchasing.DefaultNumberFormat()
	if deps.NumberFormat != nil {
		format = *deps.NumberFormat
	}

	return &PurchaseService{
		allocator:  deps.Allocator,
		orders:     deps.Orders,
		accounts:   deps.Accounts,
		payments:   deps.Payments,
		format:     format,
		validate:   newInputValidator(),
		dispatcher: NewInlineDispatcher(),
		logger:     zap.NewNop(),
	}, nil
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *PurchaseService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetMetrics sets the purchasing metrics collector
func (s *PurchaseService) SetMetrics(metrics *telemetry.PurchasingMetrics) {
	s.metrics = metrics
}

// SetLogger sets the logger
func (s *PurchaseService) SetLogger(logger *zap.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// SetTracer sets the tracer used for saga spans
func (s *PurchaseService) SetTracer(tracer trace.Tracer) {
	s.tracer = tracer
}

// SetDispatcher sets how post-commit side effects run
func (s *PurchaseService) SetDispatcher(dispatcher SideEffectDispatcher) {
	if dispatcher != nil {
		s.dispatcher = dispatcher
	}
}

// CreatePurchase validates the input, allocates a document number, writes the
// header and then the items, removing the header again if the items write
// fails. A settled order with a positive paid amount additionally gets a
// ledger payment after the order is committed; that payment never affects
// the result.
func (s *PurchaseService) CreatePurchase(ctx context.Context, input CreatePurchaseInput) (*CreatePurchaseResult, error) {
	start := time.Now()

	order, breakdown, err := s.buildOrder(input)
	if err != nil {
		s.recordFailure(ctx, input.TenantID, start, err)
		return nil, err
	}

	if err := s.guardSettlement(ctx, input, order.Status, breakdown); err != nil {
		s.recordFailure(ctx, input.TenantID, start, err)
		return nil, err
	}

	if err := s.newRunner().Run(ctx, s.creationSteps(order, breakdown)...); err != nil {
		perr := s.classifySagaError(ctx, order, err)
		s.recordFailure(ctx, input.TenantID, start, perr)
		return nil, perr
	}

	if s.metrics != nil {
		s.metrics.RecordCreated(ctx, order.TenantID, order.Total)
		s.metrics.RecordSagaDuration(ctx, time.Since(start), telemetry.OutcomeSuccess)
	}
	s.log(ctx).Info("Purchase order created",
		zap.String("tenant_id", order.TenantID.String()),
		zap.String("order_id", order.ID.String()),
		zap.String("document_number", order.DocumentNumber),
		zap.String("payment_status", string(order.PaymentStatus)),
	)

	order.AddDomainEvent(purchasing.NewPurchaseOrderCreatedEvent(order))
	s.publishEvents(ctx, order)

	if order.RequiresPaymentRecord() && input.SettlementAccountID != nil {
		req := s.paymentRequest(input, order)
		s.dispatcher.Dispatch(ctx, "record_payment", func(ctx context.Context) error {
			return s.recordPayment(ctx, req)
		})
	}

	return &CreatePurchaseResult{ID: order.ID, DocumentNumber: order.DocumentNumber}, nil
}

// buildOrder turns the input into an unnumbered aggregate. It performs no I/O.
func (s *PurchaseService) buildOrder(input CreatePurchaseInput) (*purchasing.PurchaseOrder, purchasing.PaymentBreakdown, error) {
	var breakdown purchasing.PaymentBreakdown

	if err := s.validate.Struct(input); err != nil {
		return nil, breakdown, toValidationError(err)
	}

	status := purchasing.StatusDraft
	if input.Status != "" {
		status = purchasing.Status(input.Status)
	}

	order, err := purchasing.NewPurchaseOrder(input.TenantID, input.BranchID, input.ActorID, status, purchasing.Amounts{
		Subtotal:       input.Subtotal,
		DiscountAmount: input.DiscountAmount,
		TaxAmount:      input.TaxAmount,
		ShippingCost:   input.ShippingCost,
		Total:          input.Total,
	})
	if err != nil {
		return nil, breakdown, err
	}

	order.SetSupplier(input.SupplierID, strings.TrimSpace(input.SupplierName))
	order.Notes = input.Notes
	if input.OrderDate != nil && !input.OrderDate.IsZero() {
		order.OrderDate = *input.OrderDate
	}

	for i, item := range input.Items {
		if _, err := order.AddItem(item.ProductID, item.VariantID, strings.TrimSpace(item.ProductName),
			strings.TrimSpace(item.SKU), item.Quantity, item.UnitPrice, item.PackingDetail); err != nil {
			var perr *purchasing.PurchaseError
			if errors.As(err, &perr) {
				return nil, breakdown, purchasing.NewValidationError(fmt.Sprintf("Item %d: %s", i+1, perr.Message))
			}
			return nil, breakdown, err
		}
	}

	breakdown = purchasing.DerivePayment(order.Total, input.PaidAmount)
	return order, breakdown, nil
}

// guardSettlement rejects an immediately settled order whose settlement
// account is missing or unknown to the tenant. It runs before allocation so
// that a rejected order consumes no number.
func (s *PurchaseService) guardSettlement(ctx context.Context, input CreatePurchaseInput, status purchasing.Status, breakdown purchasing.PaymentBreakdown) error {
	if status != purchasing.StatusFinal || !breakdown.Paid.GreaterThan(decimal.Zero) {
		return nil
	}
	if input.SettlementAccountID == nil || *input.SettlementAccountID == uuid.Nil {
		return purchasing.NewValidationError("A settlement account is required for a paid final purchase")
	}

	accountIDs, err := s.accounts.ListActiveAccountIDs(ctx, input.TenantID)
	if err != nil {
		return fmt.Errorf("list settlement accounts: %w", err)
	}
	if len(accountIDs) == 0 {
		return purchasing.NewValidationError("No settlement accounts are configured for this tenant")
	}
	for _, id := range accountIDs {
		if id == *input.SettlementAccountID {
			return nil
		}
	}
	return purchasing.NewValidationError("The settlement account does not belong to this tenant")
}

func (s *PurchaseService) newRunner() *saga.Runner {
	opts := []saga.Option{saga.WithLogger(s.logger)}
	if s.tracer != nil {
		opts = append(opts, saga.WithTracer(s.tracer))
	}
	return saga.NewRunner("create_purchase", opts...)
}

func (s *PurchaseService) creationSteps(order *purchasing.PurchaseOrder, breakdown purchasing.PaymentBreakdown) []saga.Step {
	return []saga.Step{
		{
			Name: stepAllocate,
			Action: func(ctx context.Context) error {
				seq, err := s.allocator.Next(ctx, order.TenantID, order.BranchID, purchasing.DocumentTypePurchase)
				if err != nil {
					return purchasing.NewAllocationError(err)
				}
				if seq <= 0 {
					return purchasing.NewAllocationError(fmt.Errorf("allocator returned non-positive sequence %d", seq))
				}
				number, err := s.format.Format(purchasing.DocumentTypePurchase, seq)
				if err != nil {
					return purchasing.NewAllocationError(err)
				}
				order.AssignDocumentNumber(number)
				return nil
			},
		},
		{
			Name: stepDerive,
			Action: func(ctx context.Context) error {
				order.ApplyPayment(breakdown)
				return nil
			},
		},
		{
			Name: stepWriteHeader,
			Action: func(ctx context.Context) error {
				if err := s.orders.InsertHeader(ctx, order); err != nil {
					return purchasing.NewHeaderWriteError(err)
				}
				return nil
			},
			Compensate: func(ctx context.Context) error {
				return s.orders.DeleteHeader(ctx, order.TenantID, order.ID)
			},
		},
		{
			Name: stepWriteItems,
			Action: func(ctx context.Context) error {
				if err := s.orders.InsertItems(ctx, order.Items); err != nil {
					return purchasing.NewItemsWriteError(err)
				}
				return nil
			},
		},
	}
}

// classifySagaError maps a failed run onto the purchase error kinds
func (s *PurchaseService) classifySagaError(ctx context.Context, order *purchasing.PurchaseOrder, err error) *purchasing.PurchaseError {
	sagaErr, ok := saga.AsError(err)
	if !ok {
		return purchasing.NewHeaderWriteError(err)
	}

	if sagaErr.Step == stepWriteItems {
		outcome := telemetry.OutcomeSuccess
		if sagaErr.CompensationFailed() {
			outcome = telemetry.OutcomeFailed
		}
		if s.metrics != nil {
			s.metrics.RecordCompensation(ctx, order.TenantID, outcome)
		}
	}

	if sagaErr.CompensationFailed() {
		s.log(ctx).Error("Purchase order header left without items",
			zap.String("tenant_id", order.TenantID.String()),
			zap.String("order_id", order.ID.String()),
			zap.String("document_number", order.DocumentNumber),
			zap.Error(sagaErr),
		)
		return purchasing.NewCompensationError(sagaErr.Cause, sagaErr.CompensationErr())
	}

	var perr *purchasing.PurchaseError
	if errors.As(sagaErr.Cause, &perr) {
		return perr
	}

	// Panics and other unclassified step failures
	switch sagaErr.Step {
	case stepAllocate:
		return purchasing.NewAllocationError(sagaErr.Cause)
	case stepWriteItems:
		return purchasing.NewItemsWriteError(sagaErr.Cause)
	default:
		return purchasing.NewHeaderWriteError(sagaErr.Cause)
	}
}

func (s *PurchaseService) recordFailure(ctx context.Context, tenantID uuid.UUID, start time.Time, err error) {
	kind, ok := purchasing.KindOf(err)
	if !ok {
		kind = "unknown"
	}
	s.log(ctx).Warn("Purchase order creation failed",
		zap.String("tenant_id", tenantID.String()),
		zap.String("kind", string(kind)),
		zap.Error(err),
	)
	if s.metrics != nil {
		s.metrics.RecordSagaFailure(ctx, tenantID, string(kind))
		s.metrics.RecordSagaDuration(ctx, time.Since(start), telemetry.OutcomeFailed)
	}
}

func (s *PurchaseService) paymentRequest(input CreatePurchaseInput, order *purchasing.PurchaseOrder) purchasing.PaymentRequest {
	method := purchasing.PaymentMethodCash
	if input.PaymentMethod != "" {
		method = purchasing.PaymentMethod(input.PaymentMethod)
	}
	paymentDate := order.OrderDate
	if input.PaymentDate != nil && !input.PaymentDate.IsZero() {
		paymentDate = *input.PaymentDate
	}

	return purchasing.PaymentRequest{
		TenantID:        order.TenantID,
		BranchID:        order.BranchID,
		PurchaseOrderID: order.ID,
		Amount:          order.PaidAmount,
		PaymentDate:     purchasing.DateOnly(paymentDate),
		AccountID:       *input.SettlementAccountID,
		Method:          method,
		ActorID:         input.ActorID,
	}
}

// recordPayment calls the ledger once. A failure is logged, metered and
// published; the order is left as it is.
func (s *PurchaseService) recordPayment(ctx context.Context, req purchasing.PaymentRequest) error {
	err := s.payments.Record(ctx, req)
	if err == nil {
		if s.metrics != nil {
			s.metrics.RecordPaymentRecord(ctx, req.TenantID, string(req.Method), telemetry.OutcomeSuccess)
		}
		return nil
	}

	perr := purchasing.NewPaymentRecordError(err)
	s.log(ctx).Warn("Ledger payment for purchase order was not recorded",
		zap.String("tenant_id", req.TenantID.String()),
		zap.String("order_id", req.PurchaseOrderID.String()),
		zap.String("amount", req.Amount.String()),
		zap.Error(perr),
	)
	if s.metrics != nil {
		s.metrics.RecordPaymentRecord(ctx, req.TenantID, string(req.Method), telemetry.OutcomeFailed)
	}
	if s.eventPublisher != nil {
		if pubErr := s.eventPublisher.Publish(ctx, purchasing.NewPurchasePaymentRecordFailedEvent(req, err)); pubErr != nil {
			s.log(ctx).Error("Failed to publish payment record failure", zap.Error(pubErr))
		}
	}
	return perr
}

// UpdateStatusToFinal promotes an order to final. Finalizing an order that is
// already final succeeds without writing anything.
func (s *PurchaseService) UpdateStatusToFinal(ctx context.Context, tenantID, orderID uuid.UUID) error {
	order, err := s.orders.FindByIDForTenant(ctx, tenantID, orderID)
	if err != nil {
		return err
	}

	changed, err := order.MarkFinal()
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	updated, err := s.orders.UpdateStatus(ctx, tenantID, orderID, purchasing.FinalizableStatuses(), purchasing.StatusFinal)
	if err != nil {
		return err
	}
	if !updated {
		// The row moved after it was read; decide from its current state.
		return s.resolveLostFinalize(ctx, tenantID, orderID)
	}

	s.publishEvents(ctx, order)
	return nil
}

// resolveLostFinalize re-reads an order whose conditional promotion matched
// no row. Another caller finalizing it first counts as success.
func (s *PurchaseService) resolveLostFinalize(ctx context.Context, tenantID, orderID uuid.UUID) error {
	current, err := s.orders.FindByIDForTenant(ctx, tenantID, orderID)
	if err != nil {
		return err
	}
	if current.Status == purchasing.StatusFinal && !current.IsCancelled() {
		return nil
	}
	s.log(ctx).Info("Finalize lost to a concurrent status change",
		zap.String("purchase_order_id", orderID.String()),
		zap.String("status", string(current.Status)),
	)
	return shared.NewDomainError("INVALID_STATE", "Cannot finalize purchase order in "+string(current.Status)+" status")
}

// GetByID retrieves a purchase order with its items
func (s *PurchaseService) GetByID(ctx context.Context, tenantID, orderID uuid.UUID) (*PurchaseOrderResponse, error) {
	order, err := s.orders.FindByIDForTenant(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}
	response := ToPurchaseOrderResponse(order)
	return &response, nil
}

// List retrieves a page of purchase orders and the total number of matches
func (s *PurchaseService) List(ctx context.Context, tenantID uuid.UUID, filter ListPurchaseOrdersFilter) ([]PurchaseOrderListItem, int64, error) {
	domainFilter, err := toListFilter(filter)
	if err != nil {
		return nil, 0, err
	}

	orders, err := s.orders.FindAllForTenant(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.orders.CountForTenant(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	return ToPurchaseOrderListItems(orders), total, nil
}

// log returns the service logger correlated with the request and trace in ctx
func (s *PurchaseService) log(ctx context.Context) *logger.ContextLogger {
	return logger.WithLogger(ctx, s.logger)
}

func (s *PurchaseService) publishEvents(ctx context.Context, order *purchasing.PurchaseOrder) {
	events := order.GetDomainEvents()
	order.ClearDomainEvents()
	if s.eventPublisher == nil || len(events) == 0 {
		return
	}
	if err := s.eventPublisher.Publish(ctx, events...); err != nil {
		s.log(ctx).Error("Failed to publish purchase order events",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
	}
}

// EffectivePage returns the page and page size List will apply for f.
func EffectivePage(f ListPurchaseOrdersFilter) (page, pageSize int) {
	page = 1
	if f.Page > 0 {
		page = f.Page
	}
	switch {
	case f.PageSize > maxPageSize:
		pageSize = maxPageSize
	case f.PageSize > 0:
		pageSize = f.PageSize
	default:
		pageSize = defaultPageSize
	}
	return page, pageSize
}

func toListFilter(f ListPurchaseOrdersFilter) (purchasing.ListFilter, error) {
	out := purchasing.ListFilter{Filter: shared.DefaultFilter(), IncludeCancelled: f.IncludeCancelled}

	out.Page, out.PageSize = EffectivePage(f)
	if f.OrderBy != "" {
		out.OrderBy = f.OrderBy
	}
	if f.OrderDir != "" {
		out.OrderDir = strings.ToLower(f.OrderDir)
	}
	out.Search = strings.TrimSpace(f.Search)

	var err error
	if out.BranchID, err = parseOptionalUUID("branch_id", f.BranchID); err != nil {
		return out, err
	}
	if out.SupplierID, err = parseOptionalUUID("supplier_id", f.SupplierID); err != nil {
		return out, err
	}
	if f.Status != "" {
		status := purchasing.Status(f.Status)
		if !status.IsValid() {
			return out, shared.NewDomainError("INVALID_INPUT", "Invalid status: "+f.Status)
		}
		out.Status = &status
	}
	if f.PaymentStatus != "" {
		ps := purchasing.PaymentStatus(f.PaymentStatus)
		if !ps.IsValid() {
			return out, shared.NewDomainError("INVALID_INPUT", "Invalid payment status: "+f.PaymentStatus)
		}
		out.PaymentStatus = &ps
	}
	if out.From, err = parseOptionalDate("from", f.From); err != nil {
		return out, err
	}
	if out.To, err = parseOptionalDate("to", f.To); err != nil {
		return out, err
	}
	if out.To != nil {
		// inclusive upper bound
		end := out.To.Add(24*time.Hour - time.Nanosecond)
		out.To = &end
	}
	return out, nil
}

func parseOptionalUUID(field, value string) (*uuid.UUID, error) {
	if value == "" {
		return nil, nil
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Invalid "+field+": "+value)
	}
	return &id, nil
}

func parseOptionalDate(field, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Invalid "+field+" date, expected YYYY-MM-DD")
	}
	return &t, nil
}

func newInputValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// toValidationError reduces validator output to a single user-facing message
func toValidationError(err error) *purchasing.PurchaseError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return purchasing.NewValidationError("Invalid purchase order")
	}

	e := verrs[0]
	field := strings.TrimPrefix(e.Namespace(), "CreatePurchaseInput.")
	switch {
	case field == "TenantID":
		return purchasing.NewValidationError("Tenant ID is required")
	case field == "BranchID":
		return purchasing.NewValidationError("Branch ID is required")
	case field == "ActorID":
		return purchasing.NewValidationError("Actor ID is required")
	case field == "items" && (e.Tag() == "required" || e.Tag() == "min"):
		return purchasing.NewValidationError("At least one line item is required")
	}

	switch e.Tag() {
	case "required":
		return purchasing.NewValidationError(field + " is required")
	case "max":
		return purchasing.NewValidationError(field + " must be at most " + e.Param() + " characters")
	case "oneof":
		return purchasing.NewValidationError(field + " must be one of: " + e.Param())
	}
	return purchasing.NewValidationError(field + " is invalid")
}
