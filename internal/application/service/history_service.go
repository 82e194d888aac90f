package service

import (
	"context"
	"fmt"
	"path"

	"github.com/spiritmate/myob-stock-sync/internal/application/port"
	"github.com/spiritmate/myob-stock-sync/internal/domain/entity"
)

const defaultRunListLimit = 20

// HistoryService reads back sync runs, processed invoices and stock movements
type HistoryService interface {
	ListRuns(ctx context.Context, limit int) ([]*entity.SyncRun, error)
	GetRun(ctx context.Context, id string) (*entity.SyncRun, error)
	LatestRun(ctx context.Context) (*entity.SyncRun, error)
	GetProcessedInvoice(ctx context.Context, invoiceNumber string) (*entity.ProcessedInvoice, error)
	ListMovements(ctx context.Context, productID string, limit int) ([]*entity.ProductMovement, error)
	ExportRun(ctx context.Context, id string) ([]byte, error)
	// GetInvoiceDocument returns the archived PDF of a processed invoice and its file name
	GetInvoiceDocument(ctx context.Context, invoiceNumber string) ([]byte, string, error)
}

type historyServiceImpl struct {
	runRepo       port.SyncRunRepository
	processedRepo port.ProcessedInvoiceRepository
	movementRepo  port.MovementRepository
	exporter      port.ReportExporter
	archive       port.DocumentArchive
	logger        Logger
}

// NewHistoryService creates a new HistoryService
func NewHistoryService(
	runRepo port.SyncRunRepository,
	processedRepo port.ProcessedInvoiceRepository,
	movementRepo port.MovementRepository,
	exporter port.ReportExporter,
	archive port.DocumentArchive,
	logger Logger,
) HistoryService {
	return &historyServiceImpl{
		runRepo:       runRepo,
		processedRepo: processedRepo,
		movementRepo:  movementRepo,
		exporter:      exporter,
		archive:       archive,
		logger:        logger,
	}
}

// ListRuns returns the most recent runs first
func (s *historyServiceImpl) ListRuns(ctx context.Context, limit int) ([]*entity.SyncRun, error) {
	if limit <= 0 {
		limit = defaultRunListLimit
	}
	runs, err := s.runRepo.List(ctx, limit)
	if err != nil {
		s.logger.Error("Failed to list sync runs", "error", err, "limit", limit)
		return nil, err
	}
	return runs, nil
}

// GetRun returns ErrRunNotFound for unknown ids
func (s *historyServiceImpl) GetRun(ctx context.Context, id string) (*entity.SyncRun, error) {
	run, err := s.runRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("Failed to get sync run", "error", err, "run_id", id)
		return nil, err
	}
	if run == nil {
		return nil, ErrRunNotFound
	}
	return run, nil
}

// LatestRun returns nil when no run has been recorded yet
func (s *historyServiceImpl) LatestRun(ctx context.Context) (*entity.SyncRun, error) {
	return s.runRepo.GetLatest(ctx)
}

func (s *historyServiceImpl) GetProcessedInvoice(ctx context.Context, invoiceNumber string) (*entity.ProcessedInvoice, error) {
	record, err := s.processedRepo.GetByInvoiceNumber(ctx, invoiceNumber)
	if err != nil {
		s.logger.Error("Failed to get processed invoice", "error", err, "invoice_number", invoiceNumber)
		return nil, err
	}
	if record == nil {
		return nil, ErrInvoiceNotFound
	}
	return record, nil
}

func (s *historyServiceImpl) ListMovements(ctx context.Context, productID string, limit int) ([]*entity.ProductMovement, error) {
	if limit <= 0 {
		limit = defaultRunListLimit
	}
	return s.movementRepo.ListByProduct(ctx, productID, limit)
}

// ExportRun renders a spreadsheet report of the run and the invoices it applied
func (s *historyServiceImpl) ExportRun(ctx context.Context, id string) ([]byte, error) {
	run, err := s.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}

	invoices, err := s.processedRepo.ListByRunID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list processed invoices: %w", err)
	}

	content, err := s.exporter.ExportRun(run, invoices)
	if err != nil {
		s.logger.Error("Failed to export sync run", "error", err, "run_id", id)
		return nil, fmt.Errorf("export run: %w", err)
	}

	s.logger.Info("Sync run exported", "run_id", id, "invoices", len(invoices), "bytes", len(content))
	return content, nil
}

func (s *historyServiceImpl) GetInvoiceDocument(ctx context.Context, invoiceNumber string) ([]byte, string, error) {
	record, err := s.GetProcessedInvoice(ctx, invoiceNumber)
	if err != nil {
		return nil, "", err
	}
	if s.archive == nil || record.ArchivePath == "" {
		return nil, "", ErrDocumentNotArchived
	}

	content, err := s.archive.Read(ctx, record.ArchivePath)
	if err != nil {
		return nil, "", fmt.Errorf("read archived document: %w", err)
	}
	return content, path.Base(record.ArchivePath), nil
}
