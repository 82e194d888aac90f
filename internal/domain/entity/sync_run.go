package entity

import "time"

// SyncRun status values
const (
	SyncRunStatusRunning   = "running"
	SyncRunStatusCompleted = "completed"
	SyncRunStatusFailed    = "failed"
)

// Failure types recorded on a sync run
const (
	FailureTypePDF        = "pdf"
	FailureTypeParsing    = "parsing"
	FailureTypeStorage    = "storage"
	FailureTypeUnmatched  = "unmatched"
	FailureTypeEmail      = "email"
	FailureTypeDeadLetter = "dead-letter"
	FailureTypeSystem     = "system"
)

// SyncRun records one pass over the invoice mailbox
type SyncRun struct {
	ID                string        `json:"id"`
	Status            string        `json:"status"`
	StartedAt         time.Time     `json:"started_at"`
	CompletedAt       *time.Time    `json:"completed_at"`
	EmailsScanned     int           `json:"emails_scanned"`
	InvoicesProcessed int           `json:"invoices_processed"`
	ProductsUpdated   int           `json:"products_updated"`
	Failures          []SyncFailure `json:"failures"`
}

// SyncFailure describes a problem encountered during a run
type SyncFailure struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// AddFailure appends a failure to the run
func (r *SyncRun) AddFailure(failureType, message string, details map[string]string) {
	r.Failures = append(r.Failures, SyncFailure{
		Type:    failureType,
		Message: message,
		Details: details,
	})
}
