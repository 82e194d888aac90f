package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/spiritmate/myob-stock-sync/internal/application/port"
	"github.com/spiritmate/myob-stock-sync/internal/domain/entity"
	"github.com/spiritmate/myob-stock-sync/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

const processedInvoiceColumns = `
	invoice_number, run_id, source_ref, archive_path, processed_at,
	items_processed, products_updated, is_credit_note,
	total_qty_processed, product_details, success`

// ProcessedInvoiceRepository implements port.ProcessedInvoiceRepository
type ProcessedInvoiceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewProcessedInvoiceRepository creates a new processed invoice repository
func NewProcessedInvoiceRepository(db *sql.DB, logger *zap.Logger) port.ProcessedInvoiceRepository {
	return &ProcessedInvoiceRepository{
		db:     db,
		logger: logger,
	}
}

// Exists reports whether the invoice number has already been applied
func (r *ProcessedInvoiceRepository) Exists(ctx context.Context, invoiceNumber string) (bool, error) {
	var one int
	err := r.getExecutor(ctx).QueryRowContext(ctx,
		`SELECT 1 FROM processed_invoices WHERE invoice_number = ?`, invoiceNumber).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		r.logger.Error("Failed to check processed invoice",
			zap.String("invoice_number", invoiceNumber),
			zap.Error(err))
		return false, fmt.Errorf("failed to check processed invoice: %w", err)
	}
	return true, nil
}

// Create writes the idempotency marker. A duplicate invoice number fails
// the enclosing transaction.
func (r *ProcessedInvoiceRepository) Create(ctx context.Context, record *entity.ProcessedInvoice) error {
	query := `INSERT INTO processed_invoices (` + processedInvoiceColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	productsUpdated, err := json.Marshal(nonNilStrings(record.ProductsUpdated))
	if err != nil {
		return fmt.Errorf("failed to marshal products updated: %w", err)
	}
	details := record.ProductDetails
	if details == nil {
		details = []entity.ProductDetail{}
	}
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("failed to marshal product details: %w", err)
	}

	_, err = r.getExecutor(ctx).ExecContext(ctx, query,
		record.InvoiceNumber,
		record.RunID,
		record.SourceRef,
		record.ArchivePath,
		record.ProcessedAt,
		record.ItemsProcessed,
		string(productsUpdated),
		record.IsCreditNote,
		record.TotalQtyProcessed,
		string(detailsJSON),
		record.Success,
	)
	if sqlite.IsUniqueViolation(err) {
		return fmt.Errorf("invoice %s: %w", record.InvoiceNumber, port.ErrAlreadyProcessed)
	}
	if err != nil {
		r.logger.Error("Failed to create processed invoice",
			zap.String("invoice_number", record.InvoiceNumber),
			zap.Error(err))
		return fmt.Errorf("failed to create processed invoice: %w", err)
	}
	return nil
}

// GetByInvoiceNumber retrieves a processed invoice record
func (r *ProcessedInvoiceRepository) GetByInvoiceNumber(ctx context.Context, invoiceNumber string) (*entity.ProcessedInvoice, error) {
	query := `SELECT ` + processedInvoiceColumns + ` FROM processed_invoices WHERE invoice_number = ?`

	record, err := scanProcessedInvoice(r.getExecutor(ctx).QueryRowContext(ctx, query, invoiceNumber))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get processed invoice",
			zap.String("invoice_number", invoiceNumber),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get processed invoice: %w", err)
	}
	return record, nil
}

// ListByRunID returns the invoices applied during a sync run
func (r *ProcessedInvoiceRepository) ListByRunID(ctx context.Context, runID string) ([]*entity.ProcessedInvoice, error) {
	query := `SELECT ` + processedInvoiceColumns + `
		FROM processed_invoices
		WHERE run_id = ?
		ORDER BY processed_at, invoice_number`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, runID)
	if err != nil {
		r.logger.Error("Failed to list processed invoices", zap.String("run_id", runID), zap.Error(err))
		return nil, fmt.Errorf("failed to list processed invoices: %w", err)
	}
	defer rows.Close()

	var records []*entity.ProcessedInvoice
	for rows.Next() {
		record, err := scanProcessedInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan processed invoice: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func scanProcessedInvoice(row rowScanner) (*entity.ProcessedInvoice, error) {
	var (
		record          entity.ProcessedInvoice
		productsUpdated string
		details         string
	)

	err := row.Scan(
		&record.InvoiceNumber,
		&record.RunID,
		&record.SourceRef,
		&record.ArchivePath,
		&record.ProcessedAt,
		&record.ItemsProcessed,
		&productsUpdated,
		&record.IsCreditNote,
		&record.TotalQtyProcessed,
		&details,
		&record.Success,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(productsUpdated), &record.ProductsUpdated); err != nil {
		return nil, fmt.Errorf("invalid products_updated: %w", err)
	}
	if err := json.Unmarshal([]byte(details), &record.ProductDetails); err != nil {
		return nil, fmt.Errorf("invalid product_details: %w", err)
	}
	return &record, nil
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (r *ProcessedInvoiceRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFrom(ctx, r.db)
}

var _ port.ProcessedInvoiceRepository = (*ProcessedInvoiceRepository)(nil)
