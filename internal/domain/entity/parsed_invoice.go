package entity

import "github.com/shopspring/decimal"

// ParsedInvoice is the structured result of parsing supplier invoice text
type ParsedInvoice struct {
	InvoiceNumber string              `json:"invoice_number"`
	IsCreditNote  bool                `json:"is_credit_note"`
	Items         []ParsedInvoiceItem `json:"items"`
}

// ParsedInvoiceItem is one line item recovered from the invoice table
type ParsedInvoiceItem struct {
	ItemID      string           `json:"item_id"`
	Description string           `json:"description"`
	Qty         float64          `json:"qty"`
	UnitPrice   *decimal.Decimal `json:"unit_price,omitempty"`
}

// MovementNote returns the note recorded against stock movements for this invoice
func (p *ParsedInvoice) MovementNote() string {
	if p.IsCreditNote {
		return "MYOB Credit Note " + p.InvoiceNumber
	}
	return "MYOB Invoice " + p.InvoiceNumber
}

// SignedQty converts an item quantity into a stock delta.
// Credit notes return stock, invoices consume it.
func (p *ParsedInvoice) SignedQty(qty float64) float64 {
	if p.IsCreditNote {
		return qty
	}
	return -qty
}

// MalformedLine is an item table row that could not be turned into an item
type MalformedLine struct {
	Line   string `json:"line"`
	Reason string `json:"reason"`
}

// ParseReport is a parsed invoice together with the table rows that were skipped
type ParseReport struct {
	Invoice *ParsedInvoice  `json:"invoice"`
	Skipped []MalformedLine `json:"skipped"`
}
