package invoice

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const header = "Item ID Description UoM Qty Unit price"

func invoiceText(lines ...string) string {
	text := "SpiritMate Distillers\nTax Invoice\nInvoice number INV001240\n" + header + "\n"
	for _, l := range lines {
		text += l + "\n"
	}
	return text + "Subtotal $194.70\nTax $19.47\nTotal Amount $214.17\n"
}

func assertPrice(t *testing.T, want string, got *decimal.Decimal) {
	t.Helper()
	require.NotNil(t, got)
	assert.True(t, decimal.RequireFromString(want).Equal(*got), "want %s, got %s", want, got)
}

func TestParser_CompactLineRoundTrip(t *testing.T) {
	inv, err := NewParser().Parse(invoiceText("001Aviator Dry Gin 500ml364.90FRE194.70"))
	require.NoError(t, err)

	assert.Equal(t, "INV001240", inv.InvoiceNumber)
	assert.False(t, inv.IsCreditNote)
	require.Len(t, inv.Items, 1)

	item := inv.Items[0]
	assert.Equal(t, "001", item.ItemID)
	assert.Equal(t, "Aviator Dry Gin 500ml", item.Description)
	assert.Equal(t, 3.0, item.Qty)
	assertPrice(t, "64.90", item.UnitPrice)
}

func TestParser_MultiProductLine(t *testing.T) {
	inv, err := NewParser().Parse(invoiceText(
		"001 002  Aviator Dry Gin 500ml Aviatrix Rose Gin 500ml  3 2  64.90 64.90"))
	require.NoError(t, err)
	require.Len(t, inv.Items, 2)

	assert.Equal(t, "001", inv.Items[0].ItemID)
	assert.Equal(t, "Aviator Dry Gin 500ml", inv.Items[0].Description)
	assert.Equal(t, 3.0, inv.Items[0].Qty)
	assertPrice(t, "64.90", inv.Items[0].UnitPrice)

	assert.Equal(t, "002", inv.Items[1].ItemID)
	assert.Equal(t, "Aviatrix Rose Gin 500ml", inv.Items[1].Description)
	assert.Equal(t, 2.0, inv.Items[1].Qty)
	assertPrice(t, "64.90", inv.Items[1].UnitPrice)
}

func TestParser_MixedRowsKeepSourceOrder(t *testing.T) {
	inv, err := NewParser().Parse(invoiceText(
		"003Navy Strength Gin 700ml289.50FRE179.00",
		"Freight charge 10.00",
		"001 002  Aviator Dry Gin 500ml Aviatrix Rose Gin 500ml  3 2  64.90 64.90",
	))
	require.NoError(t, err)
	require.Len(t, inv.Items, 3)

	assert.Equal(t, []string{"003", "001", "002"},
		[]string{inv.Items[0].ItemID, inv.Items[1].ItemID, inv.Items[2].ItemID})
	assert.Equal(t, "Navy Strength Gin 700ml", inv.Items[0].Description)
	assert.Equal(t, 2.0, inv.Items[0].Qty)
	assertPrice(t, "89.50", inv.Items[0].UnitPrice)
}

func TestParser_NonPositiveQuantityDropped(t *testing.T) {
	result, err := NewParser().ParseDetailed(invoiceText(
		"001 002  Gin A 700ml Gin B 700ml  0 2  50.00 60.00"))
	require.NoError(t, err)

	require.Len(t, result.Invoice.Items, 1)
	assert.Equal(t, "002", result.Invoice.Items[0].ItemID)
	assert.Equal(t, "Gin B 700ml", result.Invoice.Items[0].Description)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, ReasonNonPositiveQty, result.Skipped[0].Reason)
}

func TestParser_NoHeaderYieldsEmptyItems(t *testing.T) {
	inv, err := NewParser().Parse("Invoice number INV001240\n001Aviator Dry Gin 500ml364.90FRE194.70\n")
	require.NoError(t, err)

	assert.Equal(t, "INV001240", inv.InvoiceNumber)
	assert.NotNil(t, inv.Items)
	assert.Empty(t, inv.Items)
}

func TestParser_NoInvoiceNumber(t *testing.T) {
	inv, err := NewParser().Parse("Statement for March\n" + header + "\n001Gin 500ml364.90FRE194.70\n")
	assert.ErrorIs(t, err, ErrNoInvoiceNumber)
	assert.Nil(t, inv)
}

func TestParser_RowsAfterTotalsIgnored(t *testing.T) {
	text := "Invoice number INV001240\n" + header + "\n" +
		"001Aviator Dry Gin 500ml364.90FRE194.70\n" +
		"Total Amount $194.70\n" +
		"002Aviatrix Rose Gin 500ml264.90FRE129.80\n"

	inv, err := NewParser().Parse(text)
	require.NoError(t, err)
	require.Len(t, inv.Items, 1)
	assert.Equal(t, "001", inv.Items[0].ItemID)
}

func TestParser_TotalsBeforeHeaderDoNotTruncateTable(t *testing.T) {
	text := "Subtotal of previous statement\nInvoice number INV001240\n" + header + "\r\n" +
		"001Aviator Dry Gin 500ml364.90FRE194.70\r\n"

	inv, err := NewParser().Parse(text)
	require.NoError(t, err)
	require.Len(t, inv.Items, 1)
}

func TestParser_CompactedHeader(t *testing.T) {
	text := "Invoice number INV001240\nItem IDDescription UoMQtyUnit price\n001Aviator Dry Gin 500ml364.90FRE194.70\n"

	inv, err := NewParser().Parse(text)
	require.NoError(t, err)
	require.Len(t, inv.Items, 1)
	assert.Equal(t, "Aviator Dry Gin 500ml", inv.Items[0].Description)
}

func TestParser_CreditNote(t *testing.T) {
	inv, err := NewParser().Parse("CREDIT NOTE\nInvoice number INV001300\n")
	require.NoError(t, err)
	assert.True(t, inv.IsCreditNote)

	assert.True(t, IsCreditNote("CreditNote"))
	assert.False(t, IsCreditNote("Credit card payment"))
}

func TestExtractInvoiceNumber(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
		ok   bool
	}{
		{"labelled number wins over later reference", "Invoice number INV001240\nRef INV999999", "INV001240", true},
		{"invoice no with colon", "Invoice no: INV12345", "INV12345", true},
		{"bare six digit number", "Reference INV004321 attached", "INV004321", true},
		{"labelled number after punctuation", "Invoice number: INV77", "INV77", true},
		{"invoice prefix", "Invoice: INV1234", "INV1234", true},
		{"no match", "Purchase order PO123456", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractInvoiceNumber(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCompactLine_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		line   string
		reason string
	}{
		{"only bottle size", "001Gin 500ml", ReasonTooFewNumbers},
		{"no plausible qty price split", "001Gin 12.5 5", ReasonNoQtyPrice},
		{"price out of range", "001Gin 9350.00FRE350.00", ReasonNoQtyPrice},
		{"empty description", "001 364.90FRE194.70", ReasonEmptyDescription},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item, reason := parseCompactLine(tt.line)
			assert.Nil(t, item)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestParseCompactLine_TwoDigitQuantity(t *testing.T) {
	item, reason := parseCompactLine("005Classic Vodka 700ml1545.00FRE675.00")
	require.Empty(t, reason)
	require.NotNil(t, item)

	assert.Equal(t, "Classic Vodka 700ml", item.Description)
	assert.Equal(t, 15.0, item.Qty)
	assertPrice(t, "45.00", item.UnitPrice)
}

func TestParseMultiProductLine_TooFewSections(t *testing.T) {
	items, reason := parseMultiProductLine("001 002  Gin A Gin B  3 2")
	assert.Nil(t, items)
	assert.Equal(t, ReasonTooFewSections, reason)
}

func TestSplitDescriptions(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want []string
	}{
		{"single", "  Aviator Dry Gin 500ml ", 1, []string{"Aviator Dry Gin 500ml"}},
		{"bottle boundary", "Gin 700ml Vodka 700ml", 2, []string{"Gin 700ml", "Vodka 700ml"}},
		{"midpoint", "Alpha Beta Gamma Delta", 2, []string{"Alpha Beta Gamma", "Delta"}},
		{"ambiguous boundaries use midpoint", "Gin 500ml Vodka 700ml Rum", 2, []string{"Gin 500ml Vodka", "700ml Rum"}},
		{"no space after midpoint", "Alpha Betagammadelta", 2, []string{"Alpha Betagammadelta", "Unknown Product"}},
		{"three way word groups", "a b c d e f g", 3, []string{"a b", "c d", "e f g"}},
		{"fewer words than products", "a b", 3, []string{"a", "b", ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, splitDescriptions(tt.in, tt.n))
		})
	}
}
