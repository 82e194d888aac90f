package config

import (
	"github.com/spiritmate/myob-stock-sync/internal/application/service"
	"github.com/spiritmate/myob-stock-sync/internal/container"
	"github.com/spiritmate/myob-stock-sync/internal/infrastructure/external/lark"
	"github.com/spiritmate/myob-stock-sync/internal/infrastructure/lock"
	"github.com/spiritmate/myob-stock-sync/internal/infrastructure/mail"
	"github.com/spiritmate/myob-stock-sync/internal/infrastructure/worker"
	"github.com/spiritmate/myob-stock-sync/pkg/database"
)

// ToContainerConfig converts the application Config to a container.Config.
// The scheduler only runs when enableScheduler is set and sync.interval is positive.
func (c *Config) ToContainerConfig(enableScheduler bool) *container.Config {
	return &container.Config{
		Database: database.Config{
			Path:            c.Database.Path,
			JournalMode:     c.Database.JournalMode,
			BusyTimeout:     c.Database.BusyTimeout,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
		},
		Mail: mail.Config{
			Host:           c.IMAP.Host,
			Port:           c.IMAP.Port,
			Username:       c.IMAP.User,
			Password:       c.IMAP.Password,
			Mailbox:        c.IMAP.Mailbox,
			UseTLS:         c.IMAP.UseTLS,
			DialTimeout:    c.IMAP.DialTimeout,
			FromExact:      c.Email.FromExact,
			SubjectPrefix:  c.Email.SubjectPrefix,
			ProcessedLabel: c.Email.ProcessedLabel,
		},
		Sync: service.SyncConfig{
			LockKey:              c.Lock.Key,
			MaxUnmatchedAttempts: c.Sync.MaxUnmatchedAttempts,
		},
		Worker: worker.SyncWorkerConfig{
			Interval:   c.Sync.Interval,
			RunOnStart: c.Sync.RunOnStart,
			RunTimeout: c.Sync.RunTimeout,
		},
		EnableScheduler: enableScheduler && c.Sync.Interval > 0,
		Lock: container.LockConfig{
			Backend: c.Lock.Backend,
			Redis: lock.RedisConfig{
				Addr:     c.Lock.RedisAddr,
				Password: c.Lock.RedisPassword,
				DB:       c.Lock.RedisDB,
				TTL:      c.Lock.TTL,
				Prefix:   "lock:",
			},
		},
		Lark: lark.Config{
			AppID:        c.Lark.AppID,
			AppSecret:    c.Lark.AppSecret,
			NotifyChatID: c.Lark.NotifyChatID,
		},
		Storage: container.StorageConfig{
			ArchiveDir:  c.Sync.ArchiveDir,
			PDFMaxPages: c.Sync.PDFMaxPages,
		},
	}
}
