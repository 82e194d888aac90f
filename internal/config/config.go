package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/spiritmate/myob-stock-sync/internal/container"
	"github.com/spiritmate/myob-stock-sync/pkg/utils"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	IMAP     IMAPConfig     `mapstructure:"imap"`
	Email    EmailConfig    `mapstructure:"email"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Lock     LockConfig     `mapstructure:"lock"`
	Lark     LarkConfig     `mapstructure:"lark"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	JournalMode     string        `mapstructure:"journal_mode"`
	BusyTimeout     time.Duration `mapstructure:"busy_timeout"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// IMAPConfig holds mailbox connection settings
type IMAPConfig struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	User        string        `mapstructure:"user"`
	Password    string        `mapstructure:"password"`
	Mailbox     string        `mapstructure:"mailbox"`
	UseTLS      bool          `mapstructure:"use_tls"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// EmailConfig selects which messages are supplier invoices
type EmailConfig struct {
	FromExact      string `mapstructure:"from_exact"`
	SubjectPrefix  string `mapstructure:"subject_prefix"`
	ProcessedLabel string `mapstructure:"processed_label"`
}

// SyncConfig holds sync scheduling and processing settings
type SyncConfig struct {
	Interval             time.Duration `mapstructure:"interval"`
	RunOnStart           bool          `mapstructure:"run_on_start"`
	RunTimeout           time.Duration `mapstructure:"run_timeout"`
	MaxUnmatchedAttempts int           `mapstructure:"max_unmatched_attempts"`
	ArchiveDir           string        `mapstructure:"archive_dir"`
	PDFMaxPages          int           `mapstructure:"pdf_max_pages"`
}

// LockConfig selects the sync lock backend
type LockConfig struct {
	Backend       string        `mapstructure:"backend"` // local or redis
	Key           string        `mapstructure:"key"`
	TTL           time.Duration `mapstructure:"ttl"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
}

// LarkConfig holds Lark notification settings
type LarkConfig struct {
	AppID        string `mapstructure:"app_id"`
	AppSecret    string `mapstructure:"app_secret"`
	NotifyChatID string `mapstructure:"notify_chat_id"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Lock backends accepted by lock.backend
const (
	LockBackendLocal = container.LockBackendLocal
	LockBackendRedis = container.LockBackendRedis
)

// LoadEnvFile loads a .env file into the process environment when present.
// Variables already set are not overridden.
func LoadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := gotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Load loads configuration from an optional YAML file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := bindEnvVars(v); err != nil {
		return nil, fmt.Errorf("failed to bind environment: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 5*time.Minute)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	// Database defaults
	v.SetDefault("database.path", "data/stock.db")
	v.SetDefault("database.journal_mode", "WAL")
	v.SetDefault("database.busy_timeout", 5*time.Second)
	v.SetDefault("database.max_open_conns", 1)
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("database.conn_max_lifetime", time.Hour)

	// IMAP defaults
	v.SetDefault("imap.port", 993)
	v.SetDefault("imap.mailbox", "INBOX")
	v.SetDefault("imap.use_tls", true)
	v.SetDefault("imap.dial_timeout", 30*time.Second)

	// Email filter defaults
	v.SetDefault("email.subject_prefix", "Invoice")
	v.SetDefault("email.processed_label", "MYOB/Processed")

	// Sync defaults
	v.SetDefault("sync.interval", 15*time.Minute)
	v.SetDefault("sync.run_on_start", true)
	v.SetDefault("sync.run_timeout", 10*time.Minute)
	v.SetDefault("sync.max_unmatched_attempts", 0)
	v.SetDefault("sync.archive_dir", "data/invoices")
	v.SetDefault("sync.pdf_max_pages", 20)

	// Lock defaults
	v.SetDefault("lock.backend", LockBackendLocal)
	v.SetDefault("lock.key", "myob-stock-sync")
	v.SetDefault("lock.ttl", 15*time.Minute)
	v.SetDefault("lock.redis_addr", "localhost:6379")

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// bindEnvVars binds the deployment environment variables to configuration keys
func bindEnvVars(v *viper.Viper) error {
	bindings := map[string]string{
		"server.port":                 "PORT",
		"server.allowed_origins":      "CORS_ALLOWED_ORIGINS",
		"database.path":               "DATABASE_PATH",
		"imap.host":                   "IMAP_HOST",
		"imap.port":                   "IMAP_PORT",
		"imap.user":                   "IMAP_USER",
		"imap.password":               "IMAP_PASS",
		"imap.mailbox":                "IMAP_MAILBOX",
		"email.from_exact":            "FROM_EXACT",
		"email.subject_prefix":        "SUBJECT_PREFIX",
		"email.processed_label":       "LABEL_PROCESSED",
		"lock.redis_addr":             "REDIS_ADDR",
		"lock.redis_password":         "REDIS_PASSWORD",
		"lark.app_id":                 "LARK_APP_ID",
		"lark.app_secret":             "LARK_APP_SECRET",
		"lark.notify_chat_id":         "LARK_NOTIFY_CHAT_ID",
		"logger.level":                "LOG_LEVEL",
		"sync.interval":               "SYNC_INTERVAL",
		"sync.max_unmatched_attempts": "SYNC_MAX_UNMATCHED_ATTEMPTS",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks settings every command depends on
func (c *Config) Validate() error {
	if err := utils.ValidatePort(c.Server.Port); err != nil {
		return fmt.Errorf("server.port: %w", err)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Sync.Interval < 0 {
		return fmt.Errorf("sync.interval cannot be negative")
	}
	if c.Sync.MaxUnmatchedAttempts < 0 {
		return fmt.Errorf("sync.max_unmatched_attempts cannot be negative")
	}

	switch c.Lock.Backend {
	case LockBackendLocal:
	case LockBackendRedis:
		if c.Lock.RedisAddr == "" {
			return fmt.Errorf("lock.redis_addr is required for the redis lock backend")
		}
	default:
		return fmt.Errorf("lock.backend must be %q or %q, got %q", LockBackendLocal, LockBackendRedis, c.Lock.Backend)
	}

	if c.Lock.TTL > 0 && c.Sync.RunTimeout > 0 && c.Lock.TTL <= c.Sync.RunTimeout {
		return fmt.Errorf("lock.ttl (%s) must exceed sync.run_timeout (%s)", c.Lock.TTL, c.Sync.RunTimeout)
	}

	if c.Lark.NotifyChatID != "" && (c.Lark.AppID == "" || c.Lark.AppSecret == "") {
		return fmt.Errorf("lark.app_id and lark.app_secret are required when lark.notify_chat_id is set")
	}

	return nil
}

// ValidateMail checks the mailbox settings needed by commands that read email
func (c *Config) ValidateMail() error {
	if c.IMAP.Host == "" {
		return fmt.Errorf("imap.host is required")
	}
	if err := utils.ValidatePort(c.IMAP.Port); err != nil {
		return fmt.Errorf("imap.port: %w", err)
	}
	if c.IMAP.User == "" {
		return fmt.Errorf("imap.user is required")
	}
	if c.IMAP.Password == "" {
		return fmt.Errorf("imap.password is required")
	}
	if err := utils.ValidateMailboxName(c.IMAP.Mailbox); err != nil {
		return fmt.Errorf("imap.mailbox: %w", err)
	}
	if c.Email.FromExact != "" {
		if err := utils.ValidateEmail(c.Email.FromExact); err != nil {
			return fmt.Errorf("email.from_exact: %w", err)
		}
	}
	if c.Email.ProcessedLabel != "" {
		if err := utils.ValidateMailboxName(c.Email.ProcessedLabel); err != nil {
			return fmt.Errorf("email.processed_label: %w", err)
		}
	}
	return nil
}
