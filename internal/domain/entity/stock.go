package entity

import (
	"math"
	"time"
)

// MovementTypeMyobSync marks movements created by invoice synchronisation
const MovementTypeMyobSync = "myob-sync"

// ProductMovement is an audit record of a single stock change
type ProductMovement struct {
	ID        string    `json:"id"`
	ProductID string    `json:"product_id"`
	Type      string    `json:"type"`
	Qty       float64   `json:"qty"`
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"created_at"`
}

// SupplierLine is an invoice line as it was matched to a product
type SupplierLine struct {
	ItemID      string  `json:"item_id"`
	Description string  `json:"description"`
	Qty         float64 `json:"qty"`
}

// StockUpdate is the planned change for one product
type StockUpdate struct {
	ProductID    string  `json:"product_id"`
	ItemID       string  `json:"item_id"`     // matched supplier ids joined with ","
	Description  string  `json:"description"` // matched descriptions joined with ", "
	QtyChange    float64 `json:"qty_change"`
	CurrentStock float64 `json:"current_stock"`
	NewStock     float64 `json:"new_stock"`
}

// ProductDetail is the per-product section of a processed invoice record
type ProductDetail struct {
	ProductID      string         `json:"product_id"`
	ProductName    string         `json:"product_name"`
	BrandName      string         `json:"brand_name"`
	MyobItems      []SupplierLine `json:"myob_items"`
	StockBefore    float64        `json:"stock_before"`
	StockAfter     float64        `json:"stock_after"`
	TotalQtyChange float64        `json:"total_qty_change"`
}

// ProcessedInvoice is the idempotency marker written once an invoice has been applied
type ProcessedInvoice struct {
	InvoiceNumber     string          `json:"invoice_number"`
	RunID             string          `json:"run_id"`
	SourceRef         string          `json:"source_ref"`
	ArchivePath       string          `json:"archive_path,omitempty"`
	ProcessedAt       time.Time       `json:"processed_at"`
	ItemsProcessed    int             `json:"items_processed"`
	ProductsUpdated   []string        `json:"products_updated"`
	IsCreditNote      bool            `json:"is_credit_note"`
	TotalQtyProcessed float64         `json:"total_qty_processed"`
	ProductDetails    []ProductDetail `json:"product_details"`
	Success           bool            `json:"success"`
}

// InvoiceSource identifies where an invoice came from
type InvoiceSource struct {
	RunID       string
	SourceRef   string
	ArchivePath string
}

// ReconciliationPlan holds every write required to apply one invoice
type ReconciliationPlan struct {
	InvoiceNumber    string            `json:"invoice_number"`
	AlreadyProcessed bool              `json:"already_processed"`
	ItemsProcessed   int               `json:"items_processed"`
	Errors           []string          `json:"errors"`
	Updates          []StockUpdate     `json:"updates"`
	Movements        []ProductMovement `json:"movements"`
	Marker           *ProcessedInvoice `json:"marker,omitempty"`
}

// HasWrites reports whether committing the plan changes anything
func (p *ReconciliationPlan) HasWrites() bool {
	return !p.AlreadyProcessed && len(p.Updates) > 0
}

// ProcessingResult summarises the outcome of applying one invoice
type ProcessingResult struct {
	Success          bool          `json:"success"`
	InvoiceNumber    string        `json:"invoice_number"`
	AlreadyProcessed bool          `json:"already_processed"`
	ItemsProcessed   int           `json:"items_processed"`
	ProductsUpdated  int           `json:"products_updated"`
	Errors           []string      `json:"errors"`
	StockUpdates     []StockUpdate `json:"stock_updates"`
}

// ClampStock applies delta to current and floors the result at zero
func ClampStock(current, delta float64) float64 {
	return math.Max(0, current+delta)
}
