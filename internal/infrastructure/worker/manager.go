package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Worker defines the interface for background workers
type Worker interface {
	Start(ctx context.Context) error
	Stop() error
	Name() string
}

// StatsProvider is implemented by workers that report runtime statistics
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// WorkerManager starts registered workers together and stops them in reverse order.
// If any worker fails to start, the ones already started are stopped again.
type WorkerManager struct {
	workers []Worker
	logger  *zap.Logger

	mu      sync.RWMutex
	started []Worker
	cancel  context.CancelFunc
}

// NewWorkerManager creates a new worker manager
func NewWorkerManager(logger *zap.Logger) *WorkerManager {
	return &WorkerManager{logger: logger}
}

// Register adds a worker. Workers registered after StartAll are not started.
func (m *WorkerManager) Register(worker Worker) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.workers = append(m.workers, worker)
	m.logger.Debug("Worker registered", zap.String("worker_name", worker.Name()))
}

// StartAll starts every registered worker in registration order
func (m *WorkerManager) StartAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		return fmt.Errorf("workers already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	started := make([]Worker, 0, len(m.workers))

	for _, w := range m.workers {
		if err := w.Start(runCtx); err != nil {
			m.logger.Error("Failed to start worker",
				zap.String("worker_name", w.Name()),
				zap.Error(err))
			cancel()
			stopErr := stopReverse(started, m.logger)
			return errors.Join(fmt.Errorf("failed to start %s: %w", w.Name(), err), stopErr)
		}
		started = append(started, w)
		m.logger.Info("Worker started", zap.String("worker_name", w.Name()))
	}

	m.started = started
	m.cancel = cancel
	return nil
}

// StopAll stops the started workers, last started first. Safe to call when not running.
func (m *WorkerManager) StopAll() error {
	m.mu.Lock()
	started, cancel := m.started, m.cancel
	m.started, m.cancel = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	if err := stopReverse(started, m.logger); err != nil {
		return err
	}
	m.logger.Info("All workers stopped", zap.Int("count", len(started)))
	return nil
}

func stopReverse(workers []Worker, logger *zap.Logger) error {
	var errs []error
	for i := len(workers) - 1; i >= 0; i-- {
		w := workers[i]
		if err := w.Stop(); err != nil {
			logger.Error("Failed to stop worker",
				zap.String("worker_name", w.Name()),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", w.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// GetWorkerCount returns the number of registered workers
func (m *WorkerManager) GetWorkerCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.workers)
}

// Stats returns the statistics of every worker that reports them, keyed by worker name
func (m *WorkerManager) Stats() map[string]map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := make(map[string]map[string]interface{}, len(m.workers))
	for _, w := range m.workers {
		if p, ok := w.(StatsProvider); ok {
			stats[w.Name()] = p.GetStats()
		}
	}
	return stats
}

// IsRunning reports whether StartAll succeeded and StopAll has not been called since
func (m *WorkerManager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cancel != nil
}
