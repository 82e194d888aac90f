package port

import (
	"context"

	"github.com/spiritmate/myob-stock-sync/internal/domain/entity"
)

// MailboxOpener opens a session against the invoice mailbox
type MailboxOpener interface {
	Open(ctx context.Context) (InvoiceMailbox, error)
}

// InvoiceMailbox is an open mailbox session
type InvoiceMailbox interface {
	// FetchInvoiceMessages returns unseen supplier messages with their PDF attachments
	FetchInvoiceMessages(ctx context.Context) ([]*entity.InvoiceMessage, error)
	// MarkProcessed flags the message as seen and files it away
	MarkProcessed(ctx context.Context, uid uint32) error
	Close() error
}

// TextExtractor turns a PDF document into plain text
type TextExtractor interface {
	ExtractText(ctx context.Context, content []byte) (string, error)
}

// InvoiceParser turns extracted text into a structured invoice
type InvoiceParser interface {
	Parse(text string) (*entity.ParsedInvoice, error)
	ParseDetailed(text string) (*entity.ParseReport, error)
}

// Unlock releases a lock obtained from a SyncLocker
type Unlock func(ctx context.Context) error

// SyncLocker guarantees a single active sync job
type SyncLocker interface {
	// Acquire returns ErrLockNotObtained when another holder owns the lock
	Acquire(ctx context.Context, key string) (Unlock, error)
}

// RunNotifier publishes sync run summaries
type RunNotifier interface {
	NotifyRunCompleted(ctx context.Context, run *entity.SyncRun) error
}

// ReportExporter renders sync run reports
type ReportExporter interface {
	ExportRun(run *entity.SyncRun, invoices []*entity.ProcessedInvoice) ([]byte, error)
}

// DocumentArchive keeps a copy of every processed invoice document
type DocumentArchive interface {
	Store(ctx context.Context, invoiceNumber, filename string, content []byte) (string, error)
	Read(ctx context.Context, path string) ([]byte, error)
}
