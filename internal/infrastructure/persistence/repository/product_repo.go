package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spiritmate/myob-stock-sync/internal/application/port"
	"github.com/spiritmate/myob-stock-sync/internal/domain/entity"
	"github.com/spiritmate/myob-stock-sync/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

const productColumns = `
	id, product_name, brand_name, on_hand, deleted,
	myob_item_id, myob_description, myob_mappings,
	last_movement_at, created_at, updated_at`

// ProductRepository implements port.ProductRepository
type ProductRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewProductRepository creates a new product repository
func NewProductRepository(db *sql.DB, logger *zap.Logger) port.ProductRepository {
	return &ProductRepository{
		db:     db,
		logger: logger,
	}
}

// FindBySupplierItem scans live products in insertion order and returns the first match
func (r *ProductRepository) FindBySupplierItem(ctx context.Context, itemID, description string) (*entity.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE deleted = 0 ORDER BY rowid`

	products, err := r.queryProducts(ctx, query)
	if err != nil {
		r.logger.Error("Failed to find product by supplier item",
			zap.String("item_id", itemID),
			zap.String("description", description),
			zap.Error(err))
		return nil, fmt.Errorf("failed to find product: %w", err)
	}

	for _, p := range products {
		if p.MatchesSupplierItem(itemID, description) {
			return p, nil
		}
	}
	return nil, nil
}

// GetByID retrieves a product by its ID
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*entity.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = ?`

	product, err := scanProduct(r.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get product by ID", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return product, nil
}

// List returns every product, deleted ones included
func (r *ProductRepository) List(ctx context.Context) ([]*entity.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products ORDER BY rowid`

	products, err := r.queryProducts(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list products", zap.Error(err))
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

// Upsert inserts a product or replaces the catalogue fields of an existing one
func (r *ProductRepository) Upsert(ctx context.Context, product *entity.Product) error {
	query := `
		INSERT INTO products (
			id, product_name, brand_name, on_hand, deleted,
			myob_item_id, myob_description, myob_mappings,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			product_name = excluded.product_name,
			brand_name = excluded.brand_name,
			on_hand = excluded.on_hand,
			deleted = excluded.deleted,
			myob_item_id = excluded.myob_item_id,
			myob_description = excluded.myob_description,
			myob_mappings = excluded.myob_mappings,
			updated_at = excluded.updated_at
	`

	mappings := product.MyobMappings
	if mappings == nil {
		mappings = []entity.MyobMapping{}
	}
	mappingsJSON, err := json.Marshal(mappings)
	if err != nil {
		return fmt.Errorf("failed to marshal mappings: %w", err)
	}

	now := time.Now()
	_, err = r.getExecutor(ctx).ExecContext(ctx, query,
		product.ID,
		product.ProductName,
		product.BrandName,
		product.OnHand,
		product.Deleted,
		product.MyobItemID,
		product.MyobDescription,
		string(mappingsJSON),
		now,
		now,
	)
	if err != nil {
		r.logger.Error("Failed to upsert product", zap.String("id", product.ID), zap.Error(err))
		return fmt.Errorf("failed to upsert product: %w", err)
	}
	return nil
}

// UpdateStock performs a compare-and-set on on_hand
func (r *ProductRepository) UpdateStock(ctx context.Context, id string, expectedOnHand, newOnHand float64, movedAt time.Time) error {
	query := `
		UPDATE products
		SET on_hand = ?, last_movement_at = ?, updated_at = ?
		WHERE id = ? AND on_hand = ?
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query, newOnHand, movedAt, time.Now(), id, expectedOnHand)
	if err != nil {
		r.logger.Error("Failed to update stock", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to update stock: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	current, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if current == nil {
		return fmt.Errorf("%w: %s", entity.ErrProductNotFound, id)
	}

	r.logger.Warn("Stock changed since it was read",
		zap.String("id", id),
		zap.Float64("expected_on_hand", expectedOnHand),
		zap.Float64("actual_on_hand", current.OnHand))
	return fmt.Errorf("%w: product %s", entity.ErrStockConflict, id)
}

func (r *ProductRepository) queryProducts(ctx context.Context, query string, args ...interface{}) ([]*entity.Product, error) {
	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []*entity.Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	return products, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProduct(row rowScanner) (*entity.Product, error) {
	var (
		p              entity.Product
		mappingsJSON   string
		lastMovementAt sql.NullTime
	)

	err := row.Scan(
		&p.ID,
		&p.ProductName,
		&p.BrandName,
		&p.OnHand,
		&p.Deleted,
		&p.MyobItemID,
		&p.MyobDescription,
		&mappingsJSON,
		&lastMovementAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if mappingsJSON != "" {
		if err := json.Unmarshal([]byte(mappingsJSON), &p.MyobMappings); err != nil {
			return nil, fmt.Errorf("invalid myob_mappings for product %s: %w", p.ID, err)
		}
	}
	if lastMovementAt.Valid {
		p.LastMovementAt = &lastMovementAt.Time
	}
	return &p, nil
}

// getExecutor returns the transaction carried by ctx or the database
func (r *ProductRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFrom(ctx, r.db)
}

// Verify interface compliance
var _ port.ProductRepository = (*ProductRepository)(nil)
