package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/spiritmate/myob-stock-sync/internal/application/port"
	"github.com/spiritmate/myob-stock-sync/internal/domain/entity"
)

// SyncService runs passes over the invoice mailbox
type SyncService interface {
	// RunSync processes every pending invoice email once and records the run
	RunSync(ctx context.Context) (*entity.SyncRun, error)
	// ProcessDocument applies a single invoice PDF outside of a mailbox run.
	// It holds the sync lock, so it never overlaps a mailbox run.
	ProcessDocument(ctx context.Context, content []byte, sourceRef string) (*entity.ProcessingResult, error)
	// PreviewDocument parses a PDF and optionally plans it without writing anything
	PreviewDocument(ctx context.Context, content []byte, withPlan bool) (*DocumentPreview, error)
	// PreviewText is PreviewDocument for text that was already extracted
	PreviewText(ctx context.Context, text string, withPlan bool) (*DocumentPreview, error)
	IsRunning() bool
}

// SyncConfig holds sync behaviour settings
type SyncConfig struct {
	LockKey string
	// MaxUnmatchedAttempts dead-letters invoices that matched no product this many times.
	// Zero keeps retrying forever.
	MaxUnmatchedAttempts int
}

// SyncDependencies are the collaborators of the sync service.
// Notifier, Archive and UnmatchedRepo are optional.
type SyncDependencies struct {
	Mailbox       port.MailboxOpener
	Extractor     port.TextExtractor
	Parser        port.InvoiceParser
	Reconciler    ReconciliationService
	RunRepo       port.SyncRunRepository
	UnmatchedRepo port.UnmatchedInvoiceRepository
	Locker        port.SyncLocker
	Notifier      port.RunNotifier
	Archive       port.DocumentArchive
}

// DocumentPreview is the dry-run view of an invoice document
type DocumentPreview struct {
	Report *entity.ParseReport         `json:"report"`
	Plan   *entity.ReconciliationPlan `json:"plan,omitempty"`
}

type attachmentOutcome int

const (
	outcomeRejected attachmentOutcome = iota
	outcomeRetry
	outcomeApplied
)

type syncServiceImpl struct {
	deps    SyncDependencies
	config  SyncConfig
	logger  Logger
	running atomic.Bool
	now     func() time.Time
}

// NewSyncService creates a new SyncService
func NewSyncService(deps SyncDependencies, config SyncConfig, logger Logger) SyncService {
	if config.LockKey == "" {
		config.LockKey = "myob-stock-sync"
	}
	return &syncServiceImpl{
		deps:   deps,
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// IsRunning reports whether this instance is currently executing a run
func (s *syncServiceImpl) IsRunning() bool {
	return s.running.Load()
}

// lock takes the sync lock and marks the instance running.
// The returned release must be called once the work is done.
func (s *syncServiceImpl) lock(ctx context.Context) (func(), error) {
	unlock, err := s.deps.Locker.Acquire(ctx, s.config.LockKey)
	if errors.Is(err, port.ErrLockNotObtained) {
		return nil, ErrSyncInProgress
	}
	if err != nil {
		return nil, fmt.Errorf("acquire sync lock: %w", err)
	}

	s.running.Store(true)
	return func() {
		s.running.Store(false)
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("Failed to release sync lock", "error", err)
		}
	}, nil
}

// RunSync implements SyncService
func (s *syncServiceImpl) RunSync(ctx context.Context) (*entity.SyncRun, error) {
	release, err := s.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	run := &entity.SyncRun{
		ID:        uuid.NewString(),
		Status:    entity.SyncRunStatusRunning,
		StartedAt: s.now(),
		Failures:  []entity.SyncFailure{},
	}
	if err := s.deps.RunRepo.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("create sync run: %w", err)
	}

	s.logger.Info("Sync run started", "run_id", run.ID)

	runErr := s.processMailbox(ctx, run)
	if runErr != nil {
		run.Status = entity.SyncRunStatusFailed
		run.AddFailure(entity.FailureTypeSystem, runErr.Error(), nil)
	} else {
		run.Status = entity.SyncRunStatusCompleted
	}
	completedAt := s.now()
	run.CompletedAt = &completedAt

	// The run record is written even when the caller's context was cancelled
	finishCtx := context.WithoutCancel(ctx)
	if err := s.deps.RunRepo.Update(finishCtx, run); err != nil {
		s.logger.Error("Failed to update sync run", "run_id", run.ID, "error", err)
	}

	if s.deps.Notifier != nil {
		if err := s.deps.Notifier.NotifyRunCompleted(finishCtx, run); err != nil {
			s.logger.Warn("Failed to send run notification", "run_id", run.ID, "error", err)
		}
	}

	s.logger.Info("Sync run finished",
		"run_id", run.ID,
		"status", run.Status,
		"emails_scanned", run.EmailsScanned,
		"invoices_processed", run.InvoicesProcessed,
		"products_updated", run.ProductsUpdated,
		"failures", len(run.Failures))

	if runErr != nil {
		return run, fmt.Errorf("sync run %s failed: %w", run.ID, runErr)
	}
	return run, nil
}

func (s *syncServiceImpl) processMailbox(ctx context.Context, run *entity.SyncRun) error {
	mailbox, err := s.deps.Mailbox.Open(ctx)
	if err != nil {
		return fmt.Errorf("open mailbox: %w", err)
	}
	defer func() {
		if err := mailbox.Close(); err != nil {
			s.logger.Warn("Failed to close mailbox", "error", err)
		}
	}()

	messages, err := mailbox.FetchInvoiceMessages(ctx)
	if err != nil {
		return fmt.Errorf("fetch invoice messages: %w", err)
	}
	run.EmailsScanned = len(messages)

	for _, msg := range messages {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.processMessage(ctx, mailbox, run, msg)
	}
	return nil
}

// processMessage applies every attachment of a message. The message is only
// marked processed when something was applied and nothing needs a retry, so
// failed or unmatched invoices are picked up again on the next run.
func (s *syncServiceImpl) processMessage(ctx context.Context, mailbox port.InvoiceMailbox, run *entity.SyncRun, msg *entity.InvoiceMessage) {
	var applied, retry int
	for _, att := range msg.Attachments {
		switch s.processAttachment(ctx, run, msg, att) {
		case outcomeApplied:
			applied++
		case outcomeRetry:
			retry++
		}
	}

	if applied == 0 || retry > 0 {
		s.logger.Info("Leaving message for retry",
			"uid", msg.UID, "applied", applied, "retry", retry)
		return
	}

	if err := mailbox.MarkProcessed(ctx, msg.UID); err != nil {
		s.logger.Error("Failed to mark message processed", "uid", msg.UID, "error", err)
		run.AddFailure(entity.FailureTypeEmail,
			fmt.Sprintf("Failed to mark message %d processed: %v", msg.UID, err),
			map[string]string{"uid": msg.SourceRef()})
	}
}

func (s *syncServiceImpl) processAttachment(ctx context.Context, run *entity.SyncRun, msg *entity.InvoiceMessage, att entity.Attachment) attachmentOutcome {
	details := map[string]string{
		"uid":      msg.SourceRef(),
		"filename": att.Filename,
	}

	text, err := s.deps.Extractor.ExtractText(ctx, att.Content)
	if err != nil {
		run.AddFailure(entity.FailureTypePDF,
			fmt.Sprintf("Failed to read PDF %s: %v", att.Filename, err), details)
		return outcomeRejected
	}

	invoice, err := s.deps.Parser.Parse(text)
	if err != nil {
		run.AddFailure(entity.FailureTypePDF,
			fmt.Sprintf("Failed to parse PDF %s: %v", att.Filename, err), details)
		return outcomeRejected
	}
	details["invoice_number"] = invoice.InvoiceNumber

	source := entity.InvoiceSource{RunID: run.ID, SourceRef: msg.SourceRef()}
	source.ArchivePath = s.archive(ctx, invoice.InvoiceNumber, att)

	result, err := s.deps.Reconciler.ProcessInvoice(ctx, invoice, source)
	if err != nil {
		run.AddFailure(entity.FailureTypeStorage,
			fmt.Sprintf("Failed invoice %s: %v", invoice.InvoiceNumber, err), details)
		return outcomeRetry
	}

	// Every invoice the reconciler accepted counts, matched or not
	run.InvoicesProcessed++
	run.ProductsUpdated += result.ProductsUpdated

	if len(result.Errors) > 0 {
		run.AddFailure(entity.FailureTypeUnmatched,
			fmt.Sprintf("Invoice %s: %s", invoice.InvoiceNumber, strings.Join(result.Errors, ", ")), details)
	}

	if result.AlreadyProcessed || result.ProductsUpdated > 0 {
		if result.ProductsUpdated > 0 {
			s.clearUnmatched(ctx, invoice.InvoiceNumber)
		}
		return outcomeApplied
	}

	return s.handleUnmatched(ctx, run, invoice.InvoiceNumber, details)
}

// handleUnmatched counts attempts at an invoice that matched no product and
// dead-letters it once the configured limit is reached.
func (s *syncServiceImpl) handleUnmatched(ctx context.Context, run *entity.SyncRun, invoiceNumber string, details map[string]string) attachmentOutcome {
	if s.deps.UnmatchedRepo == nil {
		return outcomeRetry
	}

	attempts, err := s.deps.UnmatchedRepo.RecordAttempt(ctx, invoiceNumber, s.now())
	if err != nil {
		s.logger.Error("Failed to record unmatched attempt", "invoice_number", invoiceNumber, "error", err)
		return outcomeRetry
	}

	if s.config.MaxUnmatchedAttempts > 0 && attempts >= s.config.MaxUnmatchedAttempts {
		s.logger.Warn("Dead-lettering invoice", "invoice_number", invoiceNumber, "attempts", attempts)
		run.AddFailure(entity.FailureTypeDeadLetter,
			fmt.Sprintf("Invoice %s matched no products after %d attempts", invoiceNumber, attempts), details)
		return outcomeApplied
	}

	s.logger.Info("Invoice matched no products", "invoice_number", invoiceNumber, "attempts", attempts)
	return outcomeRetry
}

func (s *syncServiceImpl) clearUnmatched(ctx context.Context, invoiceNumber string) {
	if s.deps.UnmatchedRepo == nil {
		return
	}
	if err := s.deps.UnmatchedRepo.Clear(ctx, invoiceNumber); err != nil {
		s.logger.Warn("Failed to clear unmatched attempts", "invoice_number", invoiceNumber, "error", err)
	}
}

func (s *syncServiceImpl) archive(ctx context.Context, invoiceNumber string, att entity.Attachment) string {
	if s.deps.Archive == nil {
		return ""
	}
	path, err := s.deps.Archive.Store(ctx, invoiceNumber, att.Filename, att.Content)
	if err != nil {
		s.logger.Warn("Failed to archive invoice document", "invoice_number", invoiceNumber, "error", err)
		return ""
	}
	return path
}

// ProcessDocument implements SyncService
func (s *syncServiceImpl) ProcessDocument(ctx context.Context, content []byte, sourceRef string) (*entity.ProcessingResult, error) {
	release, err := s.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	text, err := s.deps.Extractor.ExtractText(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("extract text: %w", err)
	}

	invoice, err := s.deps.Parser.Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse invoice: %w", err)
	}

	source := entity.InvoiceSource{SourceRef: sourceRef}
	source.ArchivePath = s.archive(ctx, invoice.InvoiceNumber, entity.Attachment{
		Filename: invoice.InvoiceNumber + ".pdf",
		Content:  content,
	})

	return s.deps.Reconciler.ProcessInvoice(ctx, invoice, source)
}

// PreviewDocument implements SyncService
func (s *syncServiceImpl) PreviewDocument(ctx context.Context, content []byte, withPlan bool) (*DocumentPreview, error) {
	text, err := s.deps.Extractor.ExtractText(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("extract text: %w", err)
	}

	return s.PreviewText(ctx, text, withPlan)
}

// PreviewText implements SyncService
func (s *syncServiceImpl) PreviewText(ctx context.Context, text string, withPlan bool) (*DocumentPreview, error) {
	report, err := s.deps.Parser.ParseDetailed(text)
	if err != nil {
		return nil, fmt.Errorf("parse invoice: %w", err)
	}

	preview := &DocumentPreview{Report: report}
	if withPlan {
		plan, err := s.deps.Reconciler.Plan(ctx, report.Invoice, entity.InvoiceSource{})
		if err != nil {
			return nil, fmt.Errorf("plan invoice: %w", err)
		}
		preview.Plan = plan
	}
	return preview, nil
}
