package purchasing

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed purchase creation. Callers branch on the kind;
// the message is for humans.
type ErrorKind string

const (
	// KindValidation means the input was rejected before any I/O that writes
	KindValidation ErrorKind = "validation"
	// KindAllocation means no document number could be obtained; nothing was written
	KindAllocation ErrorKind = "allocation"
	// KindHeaderWrite means the header insert failed; the allocated number is a gap
	KindHeaderWrite ErrorKind = "header_write"
	// KindItemsWrite means the items insert failed and the header was removed again
	KindItemsWrite ErrorKind = "items_write"
	// KindCompensation means the items insert failed and the header could not be
	// removed, leaving an orphan header with zero items
	KindCompensation ErrorKind = "compensation_failed"
	// KindPaymentRecord means the ledger payment could not be recorded. It never
	// fails the order.
	KindPaymentRecord ErrorKind = "payment_record"
)

// PurchaseError is the error returned by the purchase creation pipeline
type PurchaseError struct {
	Kind    ErrorKind
	Op      string
	Message string
	Err     error
}

// Error implements the error interface
func (e *PurchaseError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *PurchaseError) Unwrap() error {
	return e.Err
}

// UserMessage returns the single human-readable message shown to end users
func (e *PurchaseError) UserMessage() string {
	switch e.Kind {
	case KindValidation:
		if e.Message != "" {
			return e.Message
		}
		return "The purchase order is invalid"
	case KindAllocation:
		return "Could not allocate a document number, please try again"
	case KindHeaderWrite, KindItemsWrite:
		return "The purchase order could not be saved, please try again"
	case KindCompensation:
		return "The purchase order could not be saved and left an incomplete record; it will be cleaned up automatically"
	case KindPaymentRecord:
		return "The payment could not be recorded"
	}
	return "The purchase order could not be created"
}

// NewValidationError creates a validation error with the given message
func NewValidationError(message string) *PurchaseError {
	return &PurchaseError{Kind: KindValidation, Op: "validate", Message: message}
}

func newPurchaseError(kind ErrorKind, op, message string, err error) *PurchaseError {
	return &PurchaseError{Kind: kind, Op: op, Message: message, Err: err}
}

// NewAllocationError wraps a document number allocation failure
func NewAllocationError(err error) *PurchaseError {
	return newPurchaseError(KindAllocation, "allocate", "document number allocation failed", err)
}

// NewHeaderWriteError wraps a header insert failure
func NewHeaderWriteError(err error) *PurchaseError {
	return newPurchaseError(KindHeaderWrite, "write_header", "purchase order header write failed", err)
}

// NewItemsWriteError wraps an items insert failure after the header was rolled back
func NewItemsWriteError(err error) *PurchaseError {
	return newPurchaseError(KindItemsWrite, "write_items", "line items write failed, order rolled back", err)
}

// NewCompensationError reports an orphan header: the items insert failed with
// itemsErr and removing the header failed with deleteErr.
func NewCompensationError(itemsErr, deleteErr error) *PurchaseError {
	return newPurchaseError(KindCompensation, "write_items",
		"line items write failed and rollback failed, orphan header left behind",
		errors.Join(itemsErr, deleteErr))
}

// NewPaymentRecordError wraps a ledger payment failure
func NewPaymentRecordError(err error) *PurchaseError {
	return newPurchaseError(KindPaymentRecord, "record_payment", "ledger payment record failed", err)
}

// KindOf returns the kind of the first PurchaseError in err's chain
func KindOf(err error) (ErrorKind, bool) {
	var pe *PurchaseError
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return "", false
}

// IsKind reports whether err carries a PurchaseError of the given kind
func IsKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
