// Package handler holds the gin handlers of the purchasing API.
package handler

import (
	"errors"
	"net/http"

	"github.com/atelier-erp/backend/internal/domain/purchasing"
	"github.com/atelier-erp/backend/internal/domain/shared"
	"github.com/atelier-erp/backend/internal/interfaces/http/dto"
	"github.com/atelier-erp/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a success response with pagination meta
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, page, pageSize))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Error sends an error response, deriving the status from the code
func (h *BaseHandler) Error(c *gin.Context, code, message string) {
	c.JSON(dto.GetHTTPStatus(code), dto.NewErrorResponseWithRequestID(code, message, middleware.GetRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, dto.ErrCodeBadRequest, message)
}

// Unauthorized sends a 401 response
func (h *BaseHandler) Unauthorized(c *gin.Context) {
	h.Error(c, dto.ErrCodeUnauthorized, "Authentication required")
}

// purchaseErrorCodes maps pipeline failure kinds to API codes
var purchaseErrorCodes = map[purchasing.ErrorKind]string{
	purchasing.KindValidation:    dto.ErrCodeValidation,
	purchasing.KindAllocation:    dto.ErrCodeDocumentNumber,
	purchasing.KindHeaderWrite:   dto.ErrCodePurchaseWrite,
	purchasing.KindItemsWrite:    dto.ErrCodePurchaseWrite,
	purchasing.KindCompensation:  dto.ErrCodePurchaseInconsistent,
	purchasing.KindPaymentRecord: dto.ErrCodeInternal,
}

// HandleError converts an application error into an API error response and
// attaches it to the gin context for the request log
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)

	var purchaseErr *purchasing.PurchaseError
	if errors.As(err, &purchaseErr) {
		code, ok := purchaseErrorCodes[purchaseErr.Kind]
		if !ok {
			code = dto.ErrCodeInternal
		}
		h.Error(c, code, purchaseErr.UserMessage())
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		h.Error(c, dto.NormalizeErrorCode(domainErr.Code), domainErr.Message)
		return
	}

	h.Error(c, dto.ErrCodeInternal, "An unexpected error occurred")
}
