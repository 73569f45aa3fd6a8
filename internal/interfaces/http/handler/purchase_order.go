package handler

import (
	"context"
	"errors"
	"io"

	purchasingapp "github.com/atelier-erp/backend/internal/application/purchasing"
	"github.com/atelier-erp/backend/internal/interfaces/http/dto"
	"github.com/atelier-erp/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PurchaseOrderService is the application service behind PurchaseOrderHandler
type PurchaseOrderService interface {
	CreatePurchase(ctx context.Context, input purchasingapp.CreatePurchaseInput) (*purchasingapp.CreatePurchaseResult, error)
	GetByID(ctx context.Context, tenantID, orderID uuid.UUID) (*purchasingapp.PurchaseOrderResponse, error)
	List(ctx context.Context, tenantID uuid.UUID, filter purchasingapp.ListPurchaseOrdersFilter) ([]purchasingapp.PurchaseOrderListItem, int64, error)
	UpdateStatusToFinal(ctx context.Context, tenantID, orderID uuid.UUID) error
}

// PurchaseOrderHandler serves the purchase order endpoints
type PurchaseOrderHandler struct {
	BaseHandler
	service PurchaseOrderService
}

// NewPurchaseOrderHandler creates a new PurchaseOrderHandler
func NewPurchaseOrderHandler(service PurchaseOrderService) *PurchaseOrderHandler {
	return &PurchaseOrderHandler{service: service}
}

// Create godoc
// @ID           createPurchaseOrder
// @Summary      Create a purchase order
// @Description  Allocate a document number and write the header and items. The tenant, branch and actor come from the authenticated identity; body values for them are ignored.
// @Tags         purchase-orders
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (development only)"
// @Param        X-Branch-ID header string false "Branch ID (development only)"
// @Param        X-User-ID header string false "User ID (development only)"
// @Param        request body purchasingapp.CreatePurchaseInput true "Purchase order creation request"
// @Success      201 {object} dto.Response{data=purchasingapp.CreatePurchaseResult}
// @Failure      400 {object} dto.Response
// @Failure      401 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Failure      503 {object} dto.Response
// @Security     BearerAuth
// @Router       /purchase-orders [post]
func (h *PurchaseOrderHandler) Create(c *gin.Context) {
	id, ok := middleware.GetIdentity(c)
	if !ok {
		h.Unauthorized(c)
		return
	}

	var input purchasingapp.CreatePurchaseInput
	if err := c.ShouldBindJSON(&input); err != nil {
		if errors.Is(err, io.EOF) {
			h.Error(c, dto.ErrCodeInvalidJSON, "Request body is required")
			return
		}
		h.Error(c, dto.ErrCodeInvalidJSON, "Request body is not valid JSON: "+err.Error())
		return
	}
	input.TenantID = id.TenantID
	input.BranchID = id.BranchID
	input.ActorID = id.UserID

	result, err := h.service.CreatePurchase(c.Request.Context(), input)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// GetByID godoc
// @ID           getPurchaseOrderById
// @Summary      Get purchase order by ID
// @Description  Retrieve a purchase order with its line items
// @Tags         purchase-orders
// @Produce      json
// @Param        id path string true "Purchase Order ID" format(uuid)
// @Success      200 {object} dto.Response{data=purchasingapp.PurchaseOrderResponse}
// @Failure      400 {object} dto.Response
// @Failure      401 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Security     BearerAuth
// @Router       /purchase-orders/{id} [get]
func (h *PurchaseOrderHandler) GetByID(c *gin.Context) {
	tenantID, orderID, ok := h.identityAndOrderID(c)
	if !ok {
		return
	}

	order, err := h.service.GetByID(c.Request.Context(), tenantID, orderID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}

// List godoc
// @ID           listPurchaseOrders
// @Summary      List purchase orders
// @Description  List purchase order headers with filtering and pagination
// @Tags         purchase-orders
// @Produce      json
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20) maximum(100)
// @Param        order_by query string false "Sort field" default(created_at)
// @Param        order_dir query string false "Sort direction" Enums(asc, desc)
// @Param        search query string false "Search by document number or supplier name"
// @Param        branch_id query string false "Branch ID" format(uuid)
// @Param        supplier_id query string false "Supplier ID" format(uuid)
// @Param        status query string false "Order status" Enums(draft, ordered, sent, confirmed, received, final, cancelled)
// @Param        payment_status query string false "Payment status" Enums(unpaid, partial, paid)
// @Param        from query string false "Order date from (YYYY-MM-DD)"
// @Param        to query string false "Order date to (YYYY-MM-DD)"
// @Param        include_cancelled query bool false "Include cancelled orders"
// @Success      200 {object} dto.Response{data=[]purchasingapp.PurchaseOrderListItem,meta=dto.Meta}
// @Failure      400 {object} dto.Response
// @Failure      401 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Security     BearerAuth
// @Router       /purchase-orders [get]
func (h *PurchaseOrderHandler) List(c *gin.Context) {
	id, ok := middleware.GetIdentity(c)
	if !ok {
		h.Unauthorized(c)
		return
	}

	var filter purchasingapp.ListPurchaseOrdersFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}

	orders, total, err := h.service.List(c.Request.Context(), id.TenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	page, pageSize := purchasingapp.EffectivePage(filter)
	h.SuccessWithMeta(c, orders, total, page, pageSize)
}

// Finalize godoc
// @ID           finalizePurchaseOrder
// @Summary      Finalize a purchase order
// @Description  Promote a draft, ordered, sent or confirmed order to final. Finalizing a final order is a no-op.
// @Tags         purchase-orders
// @Produce      json
// @Param        id path string true "Purchase Order ID" format(uuid)
// @Success      200 {object} dto.Response
// @Failure      400 {object} dto.Response
// @Failure      401 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Security     BearerAuth
// @Router       /purchase-orders/{id}/finalize [post]
func (h *PurchaseOrderHandler) Finalize(c *gin.Context) {
	tenantID, orderID, ok := h.identityAndOrderID(c)
	if !ok {
		return
	}

	if err := h.service.UpdateStatusToFinal(c.Request.Context(), tenantID, orderID); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"id": orderID, "status": "final"})
}

func (h *PurchaseOrderHandler) identityAndOrderID(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	id, ok := middleware.GetIdentity(c)
	if !ok {
		h.Unauthorized(c)
		return uuid.Nil, uuid.Nil, false
	}

	var req dto.IDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		h.BadRequest(c, "Invalid purchase order ID format")
		return uuid.Nil, uuid.Nil, false
	}
	return id.TenantID, uuid.MustParse(req.ID), true
}
