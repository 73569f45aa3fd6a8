package purchasing

import (
	"fmt"
	"strconv"
	"strings"
)

// DocumentType identifies an independent numbering sequence
type DocumentType string

const (
	DocumentTypePurchase       DocumentType = "purchase"
	DocumentTypePurchaseReturn DocumentType = "purchase_return"
	DocumentTypeSale           DocumentType = "sale"
)

// IsValid checks if the document type is known
func (t DocumentType) IsValid() bool {
	switch t {
	case DocumentTypePurchase, DocumentTypePurchaseReturn, DocumentTypeSale:
		return true
	}
	return false
}

// String returns the string representation of DocumentType
func (t DocumentType) String() string {
	return string(t)
}

// DefaultNumberPadWidth is the zero-padding applied to sequence values
const DefaultNumberPadWidth = 5

// NumberFormat renders allocated sequence values as document numbers.
type NumberFormat struct {
	Prefixes map[DocumentType]string
	PadWidth int
}

// DefaultNumberFormat returns the format used when nothing is configured
func DefaultNumberFormat() NumberFormat {
	return NumberFormat{
		Prefixes: map[DocumentType]string{
			DocumentTypePurchase:       "PO-",
			DocumentTypePurchaseReturn: "PR-",
			DocumentTypeSale:           "SO-",
		},
		PadWidth: DefaultNumberPadWidth,
	}
}

// WithPrefix returns a copy of the format with the prefix for docType replaced
func (f NumberFormat) WithPrefix(docType DocumentType, prefix string) NumberFormat {
	prefixes := make(map[DocumentType]string, len(f.Prefixes)+1)
	for k, v := range f.Prefixes {
		prefixes[k] = v
	}
	prefixes[docType] = prefix
	return NumberFormat{Prefixes: prefixes, PadWidth: f.PadWidth}
}

// Format renders seq for docType. seq must come from the allocator and be positive.
func (f NumberFormat) Format(docType DocumentType, seq int64) (string, error) {
	if !docType.IsValid() {
		return "", fmt.Errorf("unknown document type %q", docType)
	}
	if seq <= 0 {
		return "", fmt.Errorf("invalid sequence value %d for %s", seq, docType)
	}
	pad := f.PadWidth
	if pad <= 0 {
		pad = DefaultNumberPadWidth
	}
	prefix, ok := f.Prefixes[docType]
	if !ok {
		prefix = strings.ToUpper(string(docType)) + "-"
	}
	return fmt.Sprintf("%s%0*d", prefix, pad, seq), nil
}

// ParseSequence extracts the sequence value from a formatted document number.
// It reads the trailing digits, so it does not depend on the prefix in use.
func ParseSequence(documentNumber string) (int64, bool) {
	end := len(documentNumber)
	start := end
	for start > 0 && documentNumber[start-1] >= '0' && documentNumber[start-1] <= '9' {
		start--
	}
	if start == end {
		return 0, false
	}
	seq, err := strconv.ParseInt(documentNumber[start:end], 10, 64)
	if err != nil || seq <= 0 {
		return 0, false
	}
	return seq, true
}
