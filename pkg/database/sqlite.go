package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Config holds database configuration
type Config struct {
	Path            string
	JournalMode     string
	BusyTimeout     time.Duration
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DB is the stock database connection
type DB struct {
	*sql.DB
	path   string
	logger *zap.Logger
}

// DefaultConfig returns settings suited to a single sync process.
// SQLite serialises writers, so one open connection avoids busy errors.
func DefaultConfig(path string) Config {
	return Config{
		Path:            path,
		JournalMode:     "WAL",
		BusyTimeout:     5 * time.Second,
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Hour,
	}
}

// DSN builds the go-sqlite3 connection string
func (c Config) DSN() string {
	params := url.Values{}
	if c.JournalMode != "" {
		params.Set("_journal_mode", c.JournalMode)
	}
	if c.BusyTimeout > 0 {
		params.Set("_busy_timeout", strconv.FormatInt(c.BusyTimeout.Milliseconds(), 10))
	}
	params.Set("_foreign_keys", "on")
	return "file:" + c.Path + "?" + params.Encode()
}

// New opens the database file, creating its directory if needed
func New(cfg Config, logger *zap.Logger) (*DB, error) {
	if cfg.Path == "" {
		return nil, errors.New("database path is required")
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite3", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Database opened",
		zap.String("path", cfg.Path),
		zap.String("journal_mode", cfg.JournalMode))
	return &DB{DB: sqlDB, path: cfg.Path, logger: logger}, nil
}

// Path returns the database file path
func (db *DB) Path() string {
	return db.path
}

// Health checks that the database answers queries
func (db *DB) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

// Close closes the database connection
func (db *DB) Close() error {
	db.logger.Info("Closing database", zap.String("path", db.path))
	return db.DB.Close()
}
