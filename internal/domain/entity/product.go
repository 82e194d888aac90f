package entity

import (
	"strings"
	"time"
)

// Product represents a stock-tracked product with its supplier item mappings
type Product struct {
	ID              string        `json:"id"`
	ProductName     string        `json:"product_name"`
	BrandName       string        `json:"brand_name"`
	OnHand          float64       `json:"on_hand"`
	Deleted         bool          `json:"deleted"`
	MyobItemID      string        `json:"myob_item_id"`      // comma-separated legacy list
	MyobDescription string        `json:"myob_description"`  // comma-separated legacy list
	MyobMappings    []MyobMapping `json:"myob_mappings"`
	LastMovementAt  *time.Time    `json:"last_movement_at"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// MyobMapping links a supplier item id/description pair to a product
type MyobMapping struct {
	ItemID      string `json:"item_id"`
	Description string `json:"description"`
}

// MatchesSupplierItem reports whether a supplier line belongs to this product.
// Checks run in order: structured mappings, legacy item id list,
// legacy description list, then exact product name.
func (p *Product) MatchesSupplierItem(itemID, description string) bool {
	if p.Deleted {
		return false
	}

	for _, m := range p.MyobMappings {
		if m.ItemID == itemID || m.Description == description {
			return true
		}
	}

	if p.MyobItemID != "" && containsTrimmed(p.MyobItemID, itemID) {
		return true
	}

	if p.MyobDescription != "" && containsTrimmed(p.MyobDescription, description) {
		return true
	}

	return p.ProductName == description
}

func containsTrimmed(list, value string) bool {
	for _, part := range strings.Split(list, ",") {
		if strings.TrimSpace(part) == value {
			return true
		}
	}
	return false
}
