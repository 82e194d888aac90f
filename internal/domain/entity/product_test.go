package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProduct_MatchesSupplierItem(t *testing.T) {
	tests := []struct {
		name        string
		product     Product
		itemID      string
		description string
		want        bool
	}{
		{
			name:        "mapping item id",
			product:     Product{MyobMappings: []MyobMapping{{ItemID: "001", Description: "Other"}}},
			itemID:      "001",
			description: "Aviator Dry Gin 500ml",
			want:        true,
		},
		{
			name:        "mapping description",
			product:     Product{MyobMappings: []MyobMapping{{ItemID: "999", Description: "Aviator Dry Gin 500ml"}}},
			itemID:      "001",
			description: "Aviator Dry Gin 500ml",
			want:        true,
		},
		{
			name:        "legacy item id list with spaces",
			product:     Product{MyobItemID: "010, 001 ,020"},
			itemID:      "001",
			description: "x",
			want:        true,
		},
		{
			name:        "legacy description list",
			product:     Product{MyobDescription: "Gin A,Aviatrix Rose Gin 500ml"},
			itemID:      "002",
			description: "Aviatrix Rose Gin 500ml",
			want:        true,
		},
		{
			name:        "product name",
			product:     Product{ProductName: "Aviator Dry Gin 500ml"},
			itemID:      "001",
			description: "Aviator Dry Gin 500ml",
			want:        true,
		},
		{
			name:        "partial id does not match",
			product:     Product{MyobItemID: "0011"},
			itemID:      "001",
			description: "x",
			want:        false,
		},
		{
			name:        "deleted product never matches",
			product:     Product{Deleted: true, MyobItemID: "001"},
			itemID:      "001",
			description: "x",
			want:        false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.product.MatchesSupplierItem(tt.itemID, tt.description))
		})
	}
}

func TestClampStock(t *testing.T) {
	assert.Equal(t, 7.0, ClampStock(10, -3))
	assert.Equal(t, 0.0, ClampStock(2, -5))
	assert.Equal(t, 12.0, ClampStock(10, 2))
	assert.Equal(t, 0.0, ClampStock(0, 0))
}

func TestParsedInvoice_SignAndNote(t *testing.T) {
	inv := &ParsedInvoice{InvoiceNumber: "INV001240"}
	assert.Equal(t, -3.0, inv.SignedQty(3))
	assert.Equal(t, "MYOB Invoice INV001240", inv.MovementNote())

	credit := &ParsedInvoice{InvoiceNumber: "INV001241", IsCreditNote: true}
	assert.Equal(t, 3.0, credit.SignedQty(3))
	assert.Equal(t, "MYOB Credit Note INV001241", credit.MovementNote())
}
