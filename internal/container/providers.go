package container

import (
	"context"
	"fmt"

	"github.com/spiritmate/myob-stock-sync/internal/application/port"
	"github.com/spiritmate/myob-stock-sync/internal/application/service"
	"github.com/spiritmate/myob-stock-sync/internal/infrastructure/external/lark"
	"github.com/spiritmate/myob-stock-sync/internal/infrastructure/lock"
	"github.com/spiritmate/myob-stock-sync/internal/infrastructure/mail"
	"github.com/spiritmate/myob-stock-sync/internal/infrastructure/persistence/repository"
	"github.com/spiritmate/myob-stock-sync/internal/infrastructure/persistence/sqlite"
	"github.com/spiritmate/myob-stock-sync/internal/infrastructure/spreadsheet"
	"github.com/spiritmate/myob-stock-sync/internal/infrastructure/storage"
	"github.com/spiritmate/myob-stock-sync/internal/infrastructure/worker"
	"github.com/spiritmate/myob-stock-sync/internal/invoice"
	"github.com/spiritmate/myob-stock-sync/pkg/database"
	"github.com/spiritmate/myob-stock-sync/pkg/utils"
	"go.uber.org/zap"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	Conn           *database.DB
	TransactionMgr *sqlite.DB
}

// LockBundle holds the sync locker and the connection it owns, if any.
type LockBundle struct {
	Locker  port.SyncLocker
	Backend string
	health  func(ctx context.Context) error
	closer  func() error
}

// ServiceDeps holds the collaborators the application services are built from.
type ServiceDeps struct {
	Repos     *RepositoryBundle
	TxManager port.TransactionManager
	Mailbox   port.MailboxOpener
	Locker    port.SyncLocker
	Notifier  port.RunNotifier
	Archive   port.DocumentArchive
	SyncCfg   service.SyncConfig
	MaxPages  int
	Logger    *zap.Logger
}

// ProvideDatabase opens the database and applies the embedded migrations.
func ProvideDatabase(ctx context.Context, cfg database.Config, logger *zap.Logger) (*DatabaseBundle, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	conn, err := database.New(cfg, logger)
	if err != nil {
		return nil, err
	}

	migrator := database.NewMigrator(conn, logger)
	if err := migrator.RunMigrations(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		Conn:           conn,
		TransactionMgr: sqlite.NewDB(conn.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
func ProvideRepositories(conn *database.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if conn == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	return &RepositoryBundle{
		Product:          repository.NewProductRepository(conn.DB, logger),
		Movement:         repository.NewMovementRepository(conn.DB, logger),
		ProcessedInvoice: repository.NewProcessedInvoiceRepository(conn.DB, logger),
		SyncRun:          repository.NewSyncRunRepository(conn.DB, logger),
		Unmatched:        repository.NewUnmatchedInvoiceRepository(conn.DB, logger),
	}, nil
}

// ProvideLocker creates the sync lock for the configured backend.
func ProvideLocker(ctx context.Context, cfg LockConfig, logger *zap.Logger) (*LockBundle, error) {
	if cfg.Backend != LockBackendRedis {
		return &LockBundle{Locker: lock.NewLocalLocker(), Backend: LockBackendLocal}, nil
	}

	redisLocker, err := lock.NewRedisLocker(ctx, cfg.Redis, logger)
	if err != nil {
		return nil, err
	}
	return &LockBundle{
		Locker:  redisLocker,
		Backend: LockBackendRedis,
		health:  redisLocker.Health,
		closer:  redisLocker.Close,
	}, nil
}

// ProvideNotifier returns a Lark notifier when chat notifications are configured.
func ProvideNotifier(cfg lark.Config, logger *zap.Logger) port.RunNotifier {
	if !cfg.Enabled() {
		logger.Info("Lark notifications disabled")
		return lark.NoopNotifier{}
	}
	return lark.NewRunNotifier(cfg, logger)
}

// ProvideArchive returns the document archive, or nil when archiving is disabled.
func ProvideArchive(cfg StorageConfig, logger *zap.Logger) port.DocumentArchive {
	if cfg.ArchiveDir == "" {
		return nil
	}
	return storage.NewLocalDocumentArchive(cfg.ArchiveDir, logger)
}

// ProvideMailbox returns the IMAP mailbox opener. No connection is made until a sync runs.
func ProvideMailbox(cfg mail.Config, logger *zap.Logger) port.MailboxOpener {
	return mail.NewIMAPOpener(cfg, logger)
}

// ProvideServices creates all application services.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil || deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}

	logger := utils.NewKVLogger(deps.Logger)

	reconciler := service.NewReconciliationService(
		deps.Repos.Product,
		deps.Repos.Movement,
		deps.Repos.ProcessedInvoice,
		deps.TxManager,
		logger,
	)

	syncService := service.NewSyncService(service.SyncDependencies{
		Mailbox:       deps.Mailbox,
		Extractor:     invoice.NewPDFTextExtractor(deps.MaxPages, deps.Logger),
		Parser:        invoice.NewParser(),
		Reconciler:    reconciler,
		RunRepo:       deps.Repos.SyncRun,
		UnmatchedRepo: deps.Repos.Unmatched,
		Locker:        deps.Locker,
		Notifier:      deps.Notifier,
		Archive:       deps.Archive,
	}, deps.SyncCfg, logger)

	history := service.NewHistoryService(
		deps.Repos.SyncRun,
		deps.Repos.ProcessedInvoice,
		deps.Repos.Movement,
		spreadsheet.NewReportExporter(deps.Logger),
		deps.Archive,
		logger,
	)

	return &ServiceBundle{
		Reconciliation: reconciler,
		Sync:           syncService,
		History:        history,
		Catalog:        service.NewCatalogService(deps.Repos.Product, deps.TxManager, logger),
	}, nil
}

// ProvideWorkers creates the worker manager and registers the scheduled sync.
func ProvideWorkers(cfg worker.SyncWorkerConfig, enabled bool, syncService service.SyncService, logger *zap.Logger) *worker.WorkerManager {
	manager := worker.NewWorkerManager(logger)
	if enabled {
		manager.Register(worker.NewSyncWorker(cfg, syncService, service.ErrSyncInProgress, logger))
	}
	return manager
}
