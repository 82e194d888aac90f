package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/spiritmate/myob-stock-sync/internal/application/port"
	"github.com/spiritmate/myob-stock-sync/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// UnmatchedInvoiceRepository implements port.UnmatchedInvoiceRepository
type UnmatchedInvoiceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewUnmatchedInvoiceRepository creates a new unmatched invoice repository
func NewUnmatchedInvoiceRepository(db *sql.DB, logger *zap.Logger) port.UnmatchedInvoiceRepository {
	return &UnmatchedInvoiceRepository{
		db:     db,
		logger: logger,
	}
}

// RecordAttempt increments the attempt counter and returns the new value
func (r *UnmatchedInvoiceRepository) RecordAttempt(ctx context.Context, invoiceNumber string, at time.Time) (int, error) {
	query := `
		INSERT INTO unmatched_invoices (invoice_number, attempts, first_seen_at, last_seen_at)
		VALUES (?, 1, ?, ?)
		ON CONFLICT(invoice_number) DO UPDATE SET
			attempts = attempts + 1,
			last_seen_at = excluded.last_seen_at
		RETURNING attempts
	`

	var attempts int
	if err := r.getExecutor(ctx).QueryRowContext(ctx, query, invoiceNumber, at, at).Scan(&attempts); err != nil {
		r.logger.Error("Failed to record unmatched attempt",
			zap.String("invoice_number", invoiceNumber),
			zap.Error(err))
		return 0, fmt.Errorf("failed to record unmatched attempt: %w", err)
	}
	return attempts, nil
}

// Clear forgets the attempts of an invoice
func (r *UnmatchedInvoiceRepository) Clear(ctx context.Context, invoiceNumber string) error {
	_, err := r.getExecutor(ctx).ExecContext(ctx,
		`DELETE FROM unmatched_invoices WHERE invoice_number = ?`, invoiceNumber)
	if err != nil {
		r.logger.Error("Failed to clear unmatched invoice",
			zap.String("invoice_number", invoiceNumber),
			zap.Error(err))
		return fmt.Errorf("failed to clear unmatched invoice: %w", err)
	}
	return nil
}

func (r *UnmatchedInvoiceRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFrom(ctx, r.db)
}

var _ port.UnmatchedInvoiceRepository = (*UnmatchedInvoiceRepository)(nil)
