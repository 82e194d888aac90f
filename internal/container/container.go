package container

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/spiritmate/myob-stock-sync/internal/application/port"
	"github.com/spiritmate/myob-stock-sync/internal/application/service"
	"github.com/spiritmate/myob-stock-sync/internal/infrastructure/persistence/sqlite"
	"github.com/spiritmate/myob-stock-sync/internal/infrastructure/worker"
	"github.com/spiritmate/myob-stock-sync/pkg/database"
	"go.uber.org/zap"
)

// Container owns every component of the sync service.
// Each init step pushes its teardown, and Close runs them last-in first-out,
// so a Start that fails halfway releases exactly what it acquired.
type Container struct {
	config *Config
	logger *zap.Logger

	conn         *database.DB
	db           *sqlite.DB
	repositories *RepositoryBundle

	lock     *LockBundle
	mailbox  port.MailboxOpener
	notifier port.RunNotifier
	archive  port.DocumentArchive

	services *ServiceBundle
	workers  *worker.WorkerManager

	mu        sync.Mutex
	teardowns []teardown
	ctx       context.Context
	cancel    context.CancelFunc
	ready     atomic.Bool
	closed    atomic.Bool
}

type teardown struct {
	name string
	fn   func() error
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Product          port.ProductRepository
	Movement         port.MovementRepository
	ProcessedInvoice port.ProcessedInvoiceRepository
	SyncRun          port.SyncRunRepository
	Unmatched        port.UnmatchedInvoiceRepository
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Reconciliation service.ReconciliationService
	Sync           service.SyncService
	History        service.HistoryService
	Catalog        service.CatalogService
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer validates the configuration. Nothing is opened until Start.
func NewContainer(cfg *Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes components in dependency order:
// database and repositories, then the lock and external clients,
// then services, then the scheduler.
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)

	steps := []struct {
		name string
		init func() error
	}{
		{"database", c.initDatabase},
		{"external clients", c.initExternal},
		{"services", c.initServices},
		{"workers", c.initWorkers},
	}
	for _, step := range steps {
		if err := step.init(); err != nil {
			c.logger.Error("Container start failed", zap.String("step", step.name), zap.Error(err))
			if unwindErr := c.unwind(); unwindErr != nil {
				c.logger.Error("Failed to release partially started components", zap.Error(unwindErr))
			}
			return fmt.Errorf("failed to initialize %s: %w", step.name, err)
		}
		c.logger.Debug("Container step initialized", zap.String("step", step.name))
	}

	c.ready.Store(true)
	c.logger.Info("Container started",
		zap.Bool("scheduler", c.config.EnableScheduler),
		zap.String("lock_backend", c.lock.Backend))
	return nil
}

// Close shuts down all components in reverse start order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Swap(true) {
		return fmt.Errorf("container already closed")
	}
	c.ready.Store(false)

	if err := c.unwind(); err != nil {
		c.logger.Error("Container closed with errors", zap.Error(err))
		return err
	}
	c.logger.Info("Container closed")
	return nil
}

func (c *Container) onClose(name string, fn func() error) {
	c.teardowns = append(c.teardowns, teardown{name: name, fn: fn})
}

func (c *Container) unwind() error {
	if c.cancel != nil {
		c.cancel()
	}

	var errs []error
	for i := len(c.teardowns) - 1; i >= 0; i-- {
		td := c.teardowns[i]
		if err := td.fn(); err != nil {
			c.logger.Error("Failed to close component", zap.String("component", td.name), zap.Error(err))
			errs = append(errs, fmt.Errorf("close %s: %w", td.name, err))
		}
	}
	c.teardowns = nil
	return errors.Join(errs...)
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}
	report := func(name string, err error) {
		if err != nil {
			status.Components[name] = ComponentHealth{Healthy: false, Message: err.Error()}
			status.Overall = false
			return
		}
		status.Components[name] = ComponentHealth{Healthy: true}
	}

	if c.conn == nil {
		report("database", errors.New("not initialized"))
	} else {
		report("database", c.conn.Health(ctx))
	}

	if c.lock != nil && c.lock.health != nil {
		report("lock", c.lock.health(ctx))
	}

	if c.workers != nil && c.config.EnableScheduler {
		var err error
		if !c.workers.IsRunning() {
			err = errors.New("scheduler not running")
		}
		report("scheduler", err)
	}

	return status
}

func (c *Container) initDatabase() error {
	bundle, err := ProvideDatabase(c.ctx, c.config.Database, c.logger)
	if err != nil {
		return err
	}
	c.conn = bundle.Conn
	c.db = bundle.TransactionMgr
	c.onClose("database", c.conn.Close)

	repos, err := ProvideRepositories(c.conn, c.logger)
	if err != nil {
		return err
	}
	c.repositories = repos
	return nil
}

func (c *Container) initExternal() error {
	lockBundle, err := ProvideLocker(c.ctx, c.config.Lock, c.logger)
	if err != nil {
		return err
	}
	c.lock = lockBundle
	if lockBundle.closer != nil {
		c.onClose("lock backend", lockBundle.closer)
	}

	c.mailbox = ProvideMailbox(c.config.Mail, c.logger)
	c.notifier = ProvideNotifier(c.config.Lark, c.logger)
	c.archive = ProvideArchive(c.config.Storage, c.logger)
	return nil
}

func (c *Container) initServices() error {
	services, err := ProvideServices(&ServiceDeps{
		Repos:     c.repositories,
		TxManager: c.db,
		Mailbox:   c.mailbox,
		Locker:    c.lock.Locker,
		Notifier:  c.notifier,
		Archive:   c.archive,
		SyncCfg:   c.config.Sync,
		MaxPages:  c.config.Storage.PDFMaxPages,
		Logger:    c.logger,
	})
	if err != nil {
		return err
	}
	c.services = services
	return nil
}

func (c *Container) initWorkers() error {
	c.workers = ProvideWorkers(c.config.Worker, c.config.EnableScheduler, c.services.Sync, c.logger)
	if c.workers.GetWorkerCount() == 0 {
		return nil
	}
	if err := c.workers.StartAll(c.ctx); err != nil {
		return err
	}
	c.onClose("workers", c.workers.StopAll)
	return nil
}

// Database returns the database connection.
func (c *Container) Database() *database.DB {
	return c.conn
}

// DB returns the transaction manager.
func (c *Container) DB() port.TransactionManager {
	return c.db
}

// Repositories returns all repositories.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Workers returns the worker manager.
func (c *Container) Workers() *worker.WorkerManager {
	return c.workers
}
