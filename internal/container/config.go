// Package container provides dependency injection and lifecycle management
// for the stock sync service.
package container

import (
	"fmt"

	"github.com/spiritmate/myob-stock-sync/internal/application/service"
	"github.com/spiritmate/myob-stock-sync/internal/infrastructure/external/lark"
	"github.com/spiritmate/myob-stock-sync/internal/infrastructure/lock"
	"github.com/spiritmate/myob-stock-sync/internal/infrastructure/mail"
	"github.com/spiritmate/myob-stock-sync/internal/infrastructure/worker"
	"github.com/spiritmate/myob-stock-sync/pkg/database"
)

// Lock backends
const (
	LockBackendLocal = "local"
	LockBackendRedis = "redis"
)

// Config holds all configuration for the Container.
type Config struct {
	// Database connection settings
	Database database.Config

	// Mail is the supplier invoice mailbox
	Mail mail.Config

	// Sync holds the lock key and dead-letter threshold
	Sync service.SyncConfig

	// Worker schedules syncs when EnableScheduler is set
	Worker          worker.SyncWorkerConfig
	EnableScheduler bool

	Lock    LockConfig
	Lark    lark.Config
	Storage StorageConfig
}

// LockConfig selects the sync lock implementation.
type LockConfig struct {
	Backend string
	Redis   lock.RedisConfig
}

// StorageConfig holds document settings.
type StorageConfig struct {
	// ArchiveDir keeps processed invoice PDFs. Empty disables archiving.
	ArchiveDir string

	// PDFMaxPages bounds text extraction per document
	PDFMaxPages int
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	switch c.Lock.Backend {
	case "", LockBackendLocal:
	case LockBackendRedis:
		if c.Lock.Redis.Addr == "" {
			return fmt.Errorf("lock.redis_addr is required")
		}
	default:
		return fmt.Errorf("unknown lock backend %q", c.Lock.Backend)
	}

	if c.EnableScheduler && c.Worker.Interval <= 0 {
		return fmt.Errorf("sync.interval must be positive when the scheduler is enabled")
	}

	return nil
}
