package invoice

import "errors"

var (
	// ErrNoInvoiceNumber is returned when no invoice number pattern matches the text
	ErrNoInvoiceNumber = errors.New("invoice number not found")
	// ErrEmptyDocument is returned when a PDF yields no extractable text
	ErrEmptyDocument = errors.New("document contains no text")
)

// Reasons recorded for table lines that could not be turned into items
const (
	ReasonTooFewSections   = "multi-product line has fewer than 4 sections"
	ReasonTooFewNumbers    = "fewer than 2 numeric tokens"
	ReasonNoQtyPrice       = "no token splits into a plausible qty and unit price"
	ReasonEmptyDescription = "empty description"
	ReasonNonPositiveQty   = "quantity is not positive"
)
