package port

import (
	"context"
	"time"

	"github.com/spiritmate/myob-stock-sync/internal/domain/entity"
)

// TransactionManager runs fn inside a single atomic unit of work.
// Repositories called with the context passed to fn join the transaction.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ProductRepository defines persistence operations for Product
type ProductRepository interface {
	// FindBySupplierItem returns the first live product matching the supplier line, or nil
	FindBySupplierItem(ctx context.Context, itemID, description string) (*entity.Product, error)
	GetByID(ctx context.Context, id string) (*entity.Product, error)
	List(ctx context.Context) ([]*entity.Product, error)
	Upsert(ctx context.Context, product *entity.Product) error
	// UpdateStock sets on_hand to newOnHand only if it still equals expectedOnHand.
	// Returns entity.ErrStockConflict otherwise.
	UpdateStock(ctx context.Context, id string, expectedOnHand, newOnHand float64, movedAt time.Time) error
}

// MovementRepository defines persistence operations for ProductMovement
type MovementRepository interface {
	Create(ctx context.Context, movement *entity.ProductMovement) error
	ListByProduct(ctx context.Context, productID string, limit int) ([]*entity.ProductMovement, error)
}

// ProcessedInvoiceRepository stores the idempotency markers of applied invoices
type ProcessedInvoiceRepository interface {
	Exists(ctx context.Context, invoiceNumber string) (bool, error)
	Create(ctx context.Context, record *entity.ProcessedInvoice) error
	GetByInvoiceNumber(ctx context.Context, invoiceNumber string) (*entity.ProcessedInvoice, error)
	ListByRunID(ctx context.Context, runID string) ([]*entity.ProcessedInvoice, error)
}

// SyncRunRepository defines persistence operations for SyncRun
type SyncRunRepository interface {
	Create(ctx context.Context, run *entity.SyncRun) error
	Update(ctx context.Context, run *entity.SyncRun) error
	GetByID(ctx context.Context, id string) (*entity.SyncRun, error)
	List(ctx context.Context, limit int) ([]*entity.SyncRun, error)
	GetLatest(ctx context.Context) (*entity.SyncRun, error)
}

// UnmatchedInvoiceRepository counts attempts at invoices that matched no product
type UnmatchedInvoiceRepository interface {
	// RecordAttempt increments and returns the attempt count for the invoice
	RecordAttempt(ctx context.Context, invoiceNumber string, at time.Time) (int, error)
	Clear(ctx context.Context, invoiceNumber string) error
}
