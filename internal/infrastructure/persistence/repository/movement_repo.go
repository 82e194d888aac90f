package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/spiritmate/myob-stock-sync/internal/application/port"
	"github.com/spiritmate/myob-stock-sync/internal/domain/entity"
	"github.com/spiritmate/myob-stock-sync/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// MovementRepository implements port.MovementRepository
type MovementRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewMovementRepository creates a new movement repository
func NewMovementRepository(db *sql.DB, logger *zap.Logger) port.MovementRepository {
	return &MovementRepository{
		db:     db,
		logger: logger,
	}
}

// Create records a stock movement
func (r *MovementRepository) Create(ctx context.Context, movement *entity.ProductMovement) error {
	query := `
		INSERT INTO product_movements (id, product_id, type, qty, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := r.getExecutor(ctx).ExecContext(ctx, query,
		movement.ID,
		movement.ProductID,
		movement.Type,
		movement.Qty,
		movement.Note,
		movement.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create movement",
			zap.String("product_id", movement.ProductID),
			zap.String("note", movement.Note),
			zap.Error(err))
		return fmt.Errorf("failed to create movement: %w", err)
	}
	return nil
}

// ListByProduct returns the most recent movements of a product first
func (r *MovementRepository) ListByProduct(ctx context.Context, productID string, limit int) ([]*entity.ProductMovement, error) {
	query := `
		SELECT id, product_id, type, qty, note, created_at
		FROM product_movements
		WHERE product_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, productID, limit)
	if err != nil {
		r.logger.Error("Failed to list movements", zap.String("product_id", productID), zap.Error(err))
		return nil, fmt.Errorf("failed to list movements: %w", err)
	}
	defer rows.Close()

	var movements []*entity.ProductMovement
	for rows.Next() {
		var m entity.ProductMovement
		if err := rows.Scan(&m.ID, &m.ProductID, &m.Type, &m.Qty, &m.Note, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan movement: %w", err)
		}
		movements = append(movements, &m)
	}
	return movements, rows.Err()
}

func (r *MovementRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFrom(ctx, r.db)
}

var _ port.MovementRepository = (*MovementRepository)(nil)
