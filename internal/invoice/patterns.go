package invoice

import "regexp"

type numberPattern struct {
	re      *regexp.Regexp
	extract func(groups []string) string
}

func firstGroup(groups []string) string {
	return groups[1]
}

// invoiceNumberPatterns are tried in order; the first match wins
var invoiceNumberPatterns = []numberPattern{
	{regexp.MustCompile(`(?i)Invoice\s+number\s+(INV[0-9]+)`), firstGroup},
	{regexp.MustCompile(`(?i)Invoice\s+no[:\s]+(INV[0-9]+)`), firstGroup},
	{regexp.MustCompile(`(?i)(INV[0-9]{6})`), firstGroup},
	{regexp.MustCompile(`(?i)Invoice\s+number[^\w]*(INV[0-9]+)`), firstGroup},
	{regexp.MustCompile(`(?i)Invoice[:\s]+(INV[0-9]+)`), firstGroup},
	{regexp.MustCompile(`(?i)INV([0-9]{6})`), func(groups []string) string { return "INV" + groups[1] }},
}

// tableHeaderPatterns cover the spaced, compacted and loose header layouts
var tableHeaderPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)Item\s*ID\s+Description\s+UoM\s+Qty\s+Unit\s+price`),
	regexp.MustCompile(`(?i)Item\s*IDDescription\s*UoMQty`),
	regexp.MustCompile(`(?i)Item\s*ID.*?Description.*?UoM.*?Qty.*?Unit\s+price`),
}

var (
	creditNotePattern   = regexp.MustCompile(`(?i)Credit\s*Note`)
	tableEndPattern     = regexp.MustCompile(`(?i)Tax\s*\$|Total\s+Amount|Subtotal`)
	rowStartPattern     = regexp.MustCompile(`^[0-9]{1,5}`)
	sectionGapPattern   = regexp.MustCompile(`\s{2,}`)
	numericTokenPattern = regexp.MustCompile(`\d+\.?\d*`)
	bottleBoundary      = regexp.MustCompile(`(\d+ml)\s+([A-Z])`)
)
