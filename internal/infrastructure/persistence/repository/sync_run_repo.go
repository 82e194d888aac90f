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

const syncRunColumns = `
	id, status, started_at, completed_at,
	emails_scanned, invoices_processed, products_updated, failures`

// SyncRunRepository implements port.SyncRunRepository
type SyncRunRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSyncRunRepository creates a new sync run repository
func NewSyncRunRepository(db *sql.DB, logger *zap.Logger) port.SyncRunRepository {
	return &SyncRunRepository{
		db:     db,
		logger: logger,
	}
}

// Create records a new run
func (r *SyncRunRepository) Create(ctx context.Context, run *entity.SyncRun) error {
	failures, err := marshalFailures(run.Failures)
	if err != nil {
		return err
	}

	query := `INSERT INTO sync_runs (` + syncRunColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.getExecutor(ctx).ExecContext(ctx, query,
		run.ID,
		run.Status,
		run.StartedAt,
		run.CompletedAt,
		run.EmailsScanned,
		run.InvoicesProcessed,
		run.ProductsUpdated,
		failures,
	)
	if err != nil {
		r.logger.Error("Failed to create sync run", zap.String("run_id", run.ID), zap.Error(err))
		return fmt.Errorf("failed to create sync run: %w", err)
	}
	return nil
}

// Update stores the counters, failures and status of a run
func (r *SyncRunRepository) Update(ctx context.Context, run *entity.SyncRun) error {
	failures, err := marshalFailures(run.Failures)
	if err != nil {
		return err
	}

	query := `
		UPDATE sync_runs
		SET status = ?, completed_at = ?, emails_scanned = ?,
			invoices_processed = ?, products_updated = ?, failures = ?
		WHERE id = ?
	`
	_, err = r.getExecutor(ctx).ExecContext(ctx, query,
		run.Status,
		run.CompletedAt,
		run.EmailsScanned,
		run.InvoicesProcessed,
		run.ProductsUpdated,
		failures,
		run.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update sync run", zap.String("run_id", run.ID), zap.Error(err))
		return fmt.Errorf("failed to update sync run: %w", err)
	}
	return nil
}

// GetByID retrieves a run by its ID
func (r *SyncRunRepository) GetByID(ctx context.Context, id string) (*entity.SyncRun, error) {
	query := `SELECT ` + syncRunColumns + ` FROM sync_runs WHERE id = ?`

	run, err := scanSyncRun(r.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get sync run", zap.String("run_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get sync run: %w", err)
	}
	return run, nil
}

// GetLatest returns the most recently started run
func (r *SyncRunRepository) GetLatest(ctx context.Context) (*entity.SyncRun, error) {
	runs, err := r.List(ctx, 1)
	if err != nil || len(runs) == 0 {
		return nil, err
	}
	return runs[0], nil
}

// List returns the most recent runs first
func (r *SyncRunRepository) List(ctx context.Context, limit int) ([]*entity.SyncRun, error) {
	query := `SELECT ` + syncRunColumns + ` FROM sync_runs ORDER BY started_at DESC, rowid DESC LIMIT ?`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, limit)
	if err != nil {
		r.logger.Error("Failed to list sync runs", zap.Error(err))
		return nil, fmt.Errorf("failed to list sync runs: %w", err)
	}
	defer rows.Close()

	var runs []*entity.SyncRun
	for rows.Next() {
		run, err := scanSyncRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func scanSyncRun(row rowScanner) (*entity.SyncRun, error) {
	var (
		run         entity.SyncRun
		completedAt sql.NullTime
		failures    string
	)

	err := row.Scan(
		&run.ID,
		&run.Status,
		&run.StartedAt,
		&completedAt,
		&run.EmailsScanned,
		&run.InvoicesProcessed,
		&run.ProductsUpdated,
		&failures,
	)
	if err != nil {
		return nil, err
	}

	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	if err := json.Unmarshal([]byte(failures), &run.Failures); err != nil {
		return nil, fmt.Errorf("invalid failures for run %s: %w", run.ID, err)
	}
	return &run, nil
}

func marshalFailures(failures []entity.SyncFailure) (string, error) {
	if failures == nil {
		failures = []entity.SyncFailure{}
	}
	data, err := json.Marshal(failures)
	if err != nil {
		return "", fmt.Errorf("failed to marshal failures: %w", err)
	}
	return string(data), nil
}

func (r *SyncRunRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFrom(ctx, r.db)
}

var _ port.SyncRunRepository = (*SyncRunRepository)(nil)
