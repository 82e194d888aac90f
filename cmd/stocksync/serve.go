package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spiritmate/myob-stock-sync/internal/container"
	httpapi "github.com/spiritmate/myob-stock-sync/internal/interfaces/http"
	"github.com/spiritmate/myob-stock-sync/pkg/utils"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the scheduled mailbox sync",
	Long: `Start the HTTP control API and, when sync.interval is positive, a background
worker that syncs the invoice mailbox on that interval.

Shuts down gracefully on SIGINT or SIGTERM.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().Bool("no-scheduler", false, "Serve the API without the scheduled sync")
}

func runServe(cmd *cobra.Command, args []string) error {
	noScheduler, _ := cmd.Flags().GetBool("no-scheduler")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := startApp(ctx, !noScheduler, !noScheduler)
	if err != nil {
		return err
	}
	defer a.close()

	a.logger.Info("Starting MYOB stock sync",
		zap.String("version", version),
		zap.Int("port", a.cfg.Server.Port),
		zap.Bool("scheduler", !noScheduler && a.cfg.Sync.Interval > 0))

	services := a.container.Services()
	server := httpapi.NewServer(httpapi.ServerConfig{
		Host:            a.cfg.Server.Host,
		Port:            a.cfg.Server.Port,
		ReadTimeout:     a.cfg.Server.ReadTimeout,
		WriteTimeout:    a.cfg.Server.WriteTimeout,
		ShutdownTimeout: a.cfg.Server.ShutdownTimeout,
		AllowedOrigins:  a.cfg.Server.AllowedOrigins,
	}, httpapi.Dependencies{
		Sync:    services.Sync,
		History: services.History,
		Workers: a.container.Workers(),
		Health:  containerHealth{a.container},
	}, utils.NewKVLogger(a.logger))

	if err := server.Start(ctx); err != nil && ctx.Err() == nil {
		return err
	}

	a.logger.Info("Shutdown complete")
	return nil
}

// containerHealth reports the first unhealthy component to the /health endpoint
type containerHealth struct {
	c *container.Container
}

func (h containerHealth) Health(ctx context.Context) error {
	status := h.c.Health(ctx)
	if status.Overall {
		return nil
	}

	names := make([]string, 0, len(status.Components))
	for name := range status.Components {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if component := status.Components[name]; !component.Healthy {
			return fmt.Errorf("%s: %s", name, component.Message)
		}
	}
	return errors.New("unhealthy")
}
