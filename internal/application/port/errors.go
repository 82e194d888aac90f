package port

import "errors"

var (
	// ErrLockNotObtained is returned by SyncLocker when the lock is already held
	ErrLockNotObtained = errors.New("lock not obtained")
	// ErrAlreadyProcessed is returned when a processed marker for the invoice number exists
	ErrAlreadyProcessed = errors.New("invoice already processed")
)
