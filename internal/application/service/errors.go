package service

import "errors"

var (
	// ErrSyncInProgress is returned when another sync job holds the sync lock
	ErrSyncInProgress = errors.New("sync already in progress")
	// ErrCommitFailed wraps storage errors raised while applying an invoice
	ErrCommitFailed = errors.New("failed to commit stock updates")
	// ErrRunNotFound is returned when a sync run id does not exist
	ErrRunNotFound = errors.New("sync run not found")
	// ErrInvoiceNotFound is returned when no processed record exists for an invoice number
	ErrInvoiceNotFound = errors.New("processed invoice not found")
	// ErrDocumentNotArchived is returned when a processed invoice has no stored document
	ErrDocumentNotArchived = errors.New("invoice document not archived")
)
