// Package http exposes sync runs, run history and document parsing over HTTP.
// Handlers only translate requests into service calls.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/spiritmate/myob-stock-sync/internal/application/service"
)

const requestIDHeader = "X-Request-ID"

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// WorkerStats reports background worker statistics
type WorkerStats interface {
	Stats() map[string]map[string]interface{}
}

// HealthChecker verifies a backing dependency is reachable
type HealthChecker interface {
	Health(ctx context.Context) error
}

// ServerConfig holds HTTP server configuration.
// WriteTimeout must cover a full sync run triggered by POST /api/run.
// AllowedOrigins enables CORS for these origins, "*" allows any, empty disables CORS.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    5 * time.Minute,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Dependencies are the application services exposed over HTTP.
// Workers and Health are optional.
type Dependencies struct {
	Sync    service.SyncService
	History service.HistoryService
	Workers WorkerStats
	Health  HealthChecker
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	deps       Dependencies
	logger     Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(config ServerConfig, deps Dependencies, logger Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	server := &Server{
		config: config,
		router: router,
		deps:   deps,
		logger: logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(requestIDMiddleware())
	if len(s.config.AllowedOrigins) > 0 {
		s.router.Use(cors.New(corsConfig(s.config.AllowedOrigins)))
	}
	s.router.Use(s.loggingMiddleware())
	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, Response{Success: false, Error: "route not found"})
	})
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	for _, origin := range origins {
		if origin == "*" {
			cfg.AllowAllOrigins = true
			break
		}
	}
	if !cfg.AllowAllOrigins {
		cfg.AllowOrigins = origins
	}
	cfg.AddAllowHeaders(requestIDHeader)
	cfg.AddExposeHeaders(requestIDHeader, "Content-Disposition")
	return cfg
}

// requestIDMiddleware keeps the caller's X-Request-ID or assigns a new one
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// loggingMiddleware logs every request except /health checks
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		if path == "/health" && c.Writer.Status() == http.StatusOK {
			return
		}

		fields := []interface{}{
			"request_id", c.GetString("request_id"),
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			s.logger.Error("HTTP request failed", fields...)
			return
		}
		s.logger.Info("HTTP request", fields...)
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	handlers := NewHandlers(s.deps, s.logger)

	s.router.GET("/health", handlers.HealthCheck)

	api := s.router.Group("/api")
	{
		api.GET("/status", handlers.Status)
		api.POST("/run", handlers.TriggerRun)
		api.POST("/parse", handlers.ParseDocument)

		// Run history
		api.GET("/runs", handlers.ListRuns)
		api.GET("/runs/:id", handlers.GetRun)
		api.GET("/runs/:id/export", handlers.ExportRun)

		// Processed invoices
		api.POST("/invoices", handlers.ImportDocument)
		api.GET("/invoices/:number", handlers.GetInvoice)
		api.GET("/invoices/:number/document", handlers.GetInvoiceDocument)

		api.GET("/products/:id/movements", handlers.ListMovements)
	}
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop waits up to ShutdownTimeout for in-flight requests
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	s.logger.Info("Stopping HTTP server", "timeout", timeout.String())

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
