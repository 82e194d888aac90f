package invoice

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spiritmate/myob-stock-sync/internal/domain/entity"
)

const (
	minCompactQty = 1
	maxCompactQty = 50
)

var (
	minCompactPrice = decimal.NewFromInt(10)
	maxCompactPrice = decimal.NewFromInt(300)
)

// parseMultiProductLine handles rows where several products share one line,
// laid out as column sections separated by runs of whitespace:
//
//	001 002  Aviator Dry Gin 500ml Aviatrix Rose Gin 500ml  3 2  64.90 64.90
func parseMultiProductLine(line string) ([]entity.ParsedInvoiceItem, string) {
	var sections []string
	for _, s := range sectionGapPattern.Split(line, -1) {
		if s != "" {
			sections = append(sections, s)
		}
	}
	if len(sections) < 4 {
		return nil, ReasonTooFewSections
	}

	itemIDs := strings.Fields(sections[0])
	descriptions := splitDescriptions(sections[1], len(itemIDs))
	quantities := strings.Fields(sections[2])
	prices := strings.Fields(sections[3])

	n := min(len(itemIDs), len(descriptions), len(quantities), len(prices))
	items := make([]entity.ParsedInvoiceItem, 0, n)
	for i := 0; i < n; i++ {
		qty, err := strconv.ParseFloat(quantities[i], 64)
		if err != nil {
			qty = 0
		}
		item := entity.ParsedInvoiceItem{
			ItemID:      itemIDs[i],
			Description: descriptions[i],
			Qty:         qty,
		}
		if price, err := decimal.NewFromString(prices[i]); err == nil {
			item.UnitPrice = &price
		}
		items = append(items, item)
	}
	return items, ""
}

// parseCompactLine handles rows whose columns were glued together by text extraction:
//
//	001Aviator Dry Gin 500ml364.90FRE194.70
//
// The quantity and unit price are fused into one token ("364.90" is qty 3 at 64.90)
// and the final number is the line total.
func parseCompactLine(line string) (*entity.ParsedInvoiceItem, string) {
	itemID := rowStartPattern.FindString(line)
	rest := line[len(itemID):]

	matches := numericTokenPattern.FindAllStringIndex(rest, -1)
	if len(matches) < 2 {
		return nil, ReasonTooFewNumbers
	}

	var (
		qty   int
		price decimal.Decimal
		found bool
	)
	for i, m := range matches {
		if isBottleSize(rest, m) || i == len(matches)-1 {
			continue
		}
		token := rest[m[0]:m[1]]
		if len(token) < 4 || !strings.Contains(token, ".") {
			continue
		}
		if qty, price, found = splitQtyPrice(token); found {
			break
		}
	}
	if !found {
		return nil, ReasonNoQtyPrice
	}

	descEnd := len(rest)
	for _, m := range matches {
		if !isBottleSize(rest, m) {
			descEnd = m[0]
			break
		}
	}
	description := strings.TrimSpace(rest[:descEnd])
	if description == "" {
		return nil, ReasonEmptyDescription
	}

	return &entity.ParsedInvoiceItem{
		ItemID:      itemID,
		Description: description,
		Qty:         float64(qty),
		UnitPrice:   &price,
	}, ""
}

// splitQtyPrice tries a one or two digit quantity prefix followed by a decimal price
func splitQtyPrice(token string) (int, decimal.Decimal, bool) {
	for d := 1; d <= 2; d++ {
		head, tail := token[:d], token[d:]
		if !strings.Contains(tail, ".") {
			continue
		}
		q, err := strconv.Atoi(head)
		if err != nil || q < minCompactQty || q > maxCompactQty {
			continue
		}
		p, err := decimal.NewFromString(tail)
		if err != nil || p.LessThan(minCompactPrice) || p.GreaterThan(maxCompactPrice) {
			continue
		}
		return q, p, true
	}
	return 0, decimal.Zero, false
}

func isBottleSize(s string, m []int) bool {
	return strings.HasPrefix(s[m[1]:], "ml")
}
