package invoice

import (
	"strings"

	"github.com/spiritmate/myob-stock-sync/internal/domain/entity"
)

// Parser turns extracted invoice text into line items.
// It holds no state and is safe for concurrent use.
type Parser struct{}

// NewParser creates a new invoice text parser
func NewParser() *Parser {
	return &Parser{}
}

// Parse extracts the invoice number, credit note flag and line items from text
func (p *Parser) Parse(text string) (*entity.ParsedInvoice, error) {
	result, err := p.ParseDetailed(text)
	if err != nil {
		return nil, err
	}
	return result.Invoice, nil
}

// ParseDetailed is Parse plus the list of table rows that were dropped
func (p *Parser) ParseDetailed(text string) (*entity.ParseReport, error) {
	number, ok := ExtractInvoiceNumber(text)
	if !ok {
		return nil, ErrNoInvoiceNumber
	}

	items, skipped := ParseLines(text)
	return &entity.ParseReport{
		Invoice: &entity.ParsedInvoice{
			InvoiceNumber: number,
			IsCreditNote:  IsCreditNote(text),
			Items:         items,
		},
		Skipped: skipped,
	}, nil
}

// ExtractInvoiceNumber returns the first invoice number found by the ordered pattern table
func ExtractInvoiceNumber(text string) (string, bool) {
	for _, p := range invoiceNumberPatterns {
		if groups := p.re.FindStringSubmatch(text); groups != nil {
			return p.extract(groups), true
		}
	}
	return "", false
}

// IsCreditNote reports whether the document is a credit note
func IsCreditNote(text string) bool {
	return creditNotePattern.MatchString(text)
}

// ParseLines extracts the line items of the item table.
// Text without a recognisable table header yields no items.
func ParseLines(text string) ([]entity.ParsedInvoiceItem, []entity.MalformedLine) {
	items := []entity.ParsedInvoiceItem{}
	var skipped []entity.MalformedLine

	table, ok := locateTable(text)
	if !ok {
		return items, skipped
	}

	for _, raw := range strings.Split(table, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || !rowStartPattern.MatchString(line) {
			continue
		}

		var parsed []entity.ParsedInvoiceItem
		var reason string
		if sectionGapPattern.MatchString(line) {
			parsed, reason = parseMultiProductLine(line)
		} else {
			var item *entity.ParsedInvoiceItem
			item, reason = parseCompactLine(line)
			if item != nil {
				parsed = append(parsed, *item)
			}
		}

		if reason != "" {
			skipped = append(skipped, entity.MalformedLine{Line: line, Reason: reason})
			continue
		}

		for _, item := range parsed {
			if item.Qty > 0 {
				items = append(items, item)
			} else {
				skipped = append(skipped, entity.MalformedLine{Line: line, Reason: ReasonNonPositiveQty})
			}
		}
	}

	return items, skipped
}

// locateTable returns the text between the table header and the totals block
func locateTable(text string) (string, bool) {
	var loc []int
	for _, re := range tableHeaderPatterns {
		if loc = re.FindStringIndex(text); loc != nil {
			break
		}
	}
	if loc == nil {
		return "", false
	}

	body := text[loc[1]:]
	if end := tableEndPattern.FindStringIndex(body); end != nil {
		body = body[:end[0]]
	}
	return body, true
}
