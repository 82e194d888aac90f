package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/spiritmate/myob-stock-sync/internal/domain/entity"
	"go.uber.org/zap"
)

// SyncRunner executes one pass over the invoice mailbox
type SyncRunner interface {
	RunSync(ctx context.Context) (*entity.SyncRun, error)
}

// SyncWorkerConfig holds configuration for the sync worker
type SyncWorkerConfig struct {
	Interval   time.Duration
	RunOnStart bool
	RunTimeout time.Duration
}

// DefaultSyncWorkerConfig returns default configuration
func DefaultSyncWorkerConfig() SyncWorkerConfig {
	return SyncWorkerConfig{
		Interval:   15 * time.Minute,
		RunOnStart: true,
		RunTimeout: 10 * time.Minute,
	}
}

// SyncWorker triggers mailbox syncs on a fixed interval
type SyncWorker struct {
	config SyncWorkerConfig
	runner SyncRunner
	// skipErr is returned by the runner when another job holds the sync lock
	skipErr error
	logger  *zap.Logger

	// Runtime state
	mu           sync.RWMutex
	ctx          context.Context
	cancel       context.CancelFunc
	done         chan struct{}
	isRunning    bool
	startTime    time.Time
	lastRunAt    time.Time
	lastRunID    string
	runCount     int
	failedCount  int
	skippedCount int
	lastError    error
}

// NewSyncWorker creates a new sync worker. Runs failing with skipErr are
// counted as skipped instead of failed.
func NewSyncWorker(config SyncWorkerConfig, runner SyncRunner, skipErr error, logger *zap.Logger) *SyncWorker {
	return &SyncWorker{
		config:  config,
		runner:  runner,
		skipErr: skipErr,
		logger:  logger,
	}
}

// Start begins the worker polling loop
func (w *SyncWorker) Start(ctx context.Context) error {
	if w.config.Interval <= 0 {
		return fmt.Errorf("sync worker interval must be positive")
	}

	w.mu.Lock()
	if w.isRunning {
		w.mu.Unlock()
		return fmt.Errorf("sync worker already running")
	}

	w.ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	w.isRunning = true
	w.startTime = time.Now()
	w.mu.Unlock()

	w.logger.Info("SyncWorker started",
		zap.Duration("interval", w.config.Interval),
		zap.Bool("run_on_start", w.config.RunOnStart))

	go w.pollLoop()

	return nil
}

// Stop cancels the loop and waits for an in-flight run to finish
func (w *SyncWorker) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	done := w.done
	w.mu.Unlock()

	if w.cancel != nil {
		w.cancel()
	}
	<-done

	w.logger.Info("SyncWorker stopped",
		zap.Int("run_count", w.runCount),
		zap.Int("failed_count", w.failedCount))

	return nil
}

// Name returns the worker name for identification
func (w *SyncWorker) Name() string {
	return "SyncWorker"
}

func (w *SyncWorker) pollLoop() {
	defer close(w.done)

	if w.config.RunOnStart {
		w.runOnce()
	}

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			w.logger.Debug("Poll loop context cancelled")
			return
		case <-ticker.C:
			w.runOnce()
		}
	}
}

func (w *SyncWorker) runOnce() {
	ctx := w.ctx
	if w.config.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(w.ctx, w.config.RunTimeout)
		defer cancel()
	}

	run, err := w.runner.RunSync(ctx)

	w.mu.Lock()
	defer w.mu.Unlock()

	w.lastRunAt = time.Now()
	switch {
	case err != nil && w.skipErr != nil && errors.Is(err, w.skipErr):
		w.skippedCount++
		w.logger.Info("Sync skipped, another run holds the lock")
	case err != nil:
		w.failedCount++
		w.lastError = err
		w.logger.Error("Scheduled sync failed", zap.Error(err))
	default:
		w.runCount++
		w.lastError = nil
	}
	if run != nil {
		w.lastRunID = run.ID
	}
}

// GetStats returns worker statistics
func (w *SyncWorker) GetStats() map[string]interface{} {
	w.mu.RLock()
	defer w.mu.RUnlock()

	stats := map[string]interface{}{
		"is_running":    w.isRunning,
		"interval":      w.config.Interval.String(),
		"run_count":     w.runCount,
		"failed_count":  w.failedCount,
		"skipped_count": w.skippedCount,
		"last_run_id":   w.lastRunID,
	}
	if !w.startTime.IsZero() {
		stats["uptime"] = time.Since(w.startTime).String()
	}
	if !w.lastRunAt.IsZero() {
		stats["last_run_at"] = w.lastRunAt
	}
	if w.lastError != nil {
		stats["last_error"] = w.lastError.Error()
	}
	return stats
}

var _ Worker = (*SyncWorker)(nil)
var _ StatsProvider = (*SyncWorker)(nil)
