package persistence

import (
	"strings"
)

// ValidateSortOrder normalizes the sort order to ASC or DESC. Anything other
// than "asc" (case-insensitive) yields DESC.
func ValidateSortOrder(orderDir string) string {
	if strings.ToUpper(strings.TrimSpace(orderDir)) == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField checks the sort field against a whitelist and returns
// defaultField when it is empty or not allowed.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed == "" || !allowedFields[trimmed] {
		return defaultField
	}
	return trimmed
}

// PurchaseOrderSortFields contains allowed sort fields for purchase orders
var PurchaseOrderSortFields = map[string]bool{
	"id":              true,
	"created_at":      true,
	"updated_at":      true,
	"order_date":      true,
	"document_number": true,
	"supplier_name":   true,
	"status":          true,
	"payment_status":  true,
	"total":           true,
	"paid_amount":     true,
	"due_amount":      true,
}
