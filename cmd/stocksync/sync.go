package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one mailbox sync and print the run summary",
	Long: `Process every unseen supplier invoice email once, apply the invoices to
stock and print the resulting sync run as JSON.

Exits non-zero when the run fails or another sync holds the lock.`,
	Example: `  # One-off sync using environment configuration
  stocksync sync

  # Sync with a config file
  stocksync sync --config configs/config.yaml`,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := startApp(ctx, true, false)
	if err != nil {
		return err
	}
	defer a.close()

	run, runErr := a.container.Services().Sync.RunSync(ctx)
	if run != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(run); err != nil {
			return fmt.Errorf("failed to print run: %w", err)
		}
	}
	return runErr
}
