package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spiritmate/myob-stock-sync/internal/config"
	"github.com/spiritmate/myob-stock-sync/internal/container"
	"github.com/spiritmate/myob-stock-sync/pkg/utils"
)

var version = "1.0.0"

var (
	configPath string
	envFile    string
)

var rootCmd = &cobra.Command{
	Use:   "stocksync",
	Short: "Apply MYOB supplier invoices to product stock",
	Long: `stocksync reads supplier invoice emails from an IMAP mailbox, extracts the
line items from the attached MYOB invoice PDFs and adjusts product stock,
applying each invoice exactly once.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file (optional, environment variables override it)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to a .env file loaded before configuration")
}

// app bundles what every command needs
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	container *container.Container
}

// loadConfig reads the .env file and configuration, then builds the logger
func loadConfig() (*config.Config, *zap.Logger, error) {
	if err := config.LoadEnvFile(envFile); err != nil {
		return nil, nil, err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return cfg, logger, nil
}

// startApp loads configuration and starts the dependency container
func startApp(ctx context.Context, requireMail, enableScheduler bool) (*app, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}

	if requireMail {
		if err := cfg.ValidateMail(); err != nil {
			return nil, fmt.Errorf("invalid mail configuration: %w", err)
		}
	}

	c, err := container.NewContainer(cfg.ToContainerConfig(enableScheduler), logger)
	if err != nil {
		return nil, err
	}
	if err := c.Start(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}

	return &app{cfg: cfg, logger: logger, container: c}, nil
}

func (a *app) close() {
	if err := a.container.Close(); err != nil {
		a.logger.Error("Failed to close container", zap.Error(err))
	}
	_ = a.logger.Sync()
}
