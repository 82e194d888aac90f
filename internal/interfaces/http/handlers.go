package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/spiritmate/myob-stock-sync/internal/application/service"
	"github.com/spiritmate/myob-stock-sync/internal/domain/entity"
	"github.com/spiritmate/myob-stock-sync/internal/invoice"
)

const (
	// maxUploadSize bounds PDFs posted to the parse endpoint
	maxUploadSize = 2 << 20
	xlsxMediaType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	deps   Dependencies
	logger Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(deps Dependencies, logger Logger) *Handlers {
	return &Handlers{
		deps:   deps,
		logger: logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Detail    string `json:"detail,omitempty"`
}

// StatusResponse describes the sync service state
type StatusResponse struct {
	SyncRunning bool                              `json:"sync_running"`
	LatestRun   *entity.SyncRun                   `json:"latest_run"`
	Workers     map[string]map[string]interface{} `json:"workers,omitempty"`
}

// ListRequest represents query parameters for list endpoints
type ListRequest struct {
	Limit int `form:"limit"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	if h.deps.Health != nil {
		if err := h.deps.Health.Health(c.Request.Context()); err != nil {
			h.logger.Error("Health check failed", "error", err)
			response.Status = "unhealthy"
			response.Detail = err.Error()
			c.JSON(http.StatusServiceUnavailable, Response{
				Success: false,
				Data:    response,
				Error:   "dependency unavailable",
			})
			return
		}
		response.Detail = "ok"
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    response,
	})
}

// Status handles GET /api/status
func (h *Handlers) Status(c *gin.Context) {
	latest, err := h.deps.History.LatestRun(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to load latest run", "error", err)
		h.fail(c, http.StatusInternalServerError, "failed to retrieve status")
		return
	}

	response := StatusResponse{
		SyncRunning: h.deps.Sync.IsRunning(),
		LatestRun:   latest,
	}
	if h.deps.Workers != nil {
		response.Workers = h.deps.Workers.Stats()
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    response,
	})
}

// TriggerRun handles POST /api/run
func (h *Handlers) TriggerRun(c *gin.Context) {
	if h.deps.Sync.IsRunning() {
		h.fail(c, http.StatusConflict, service.ErrSyncInProgress.Error())
		return
	}

	h.logger.Info("Manual sync requested", "client_ip", c.ClientIP())

	run, err := h.deps.Sync.RunSync(c.Request.Context())
	if errors.Is(err, service.ErrSyncInProgress) {
		h.fail(c, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("Manual sync failed", "error", err)
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Data:    run,
			Error:   "sync failed: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    run,
	})
}

// ListRuns handles GET /api/runs
func (h *Handlers) ListRuns(c *gin.Context) {
	var req ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", "error", err)
		h.fail(c, http.StatusBadRequest, "invalid query parameters")
		return
	}
	if req.Limit <= 0 || req.Limit > 100 {
		req.Limit = 20
	}

	runs, err := h.deps.History.ListRuns(c.Request.Context(), req.Limit)
	if err != nil {
		h.logger.Error("Failed to list runs", "error", err)
		h.fail(c, http.StatusInternalServerError, "failed to retrieve runs")
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    runs,
	})
}

// GetRun handles GET /api/runs/:id
func (h *Handlers) GetRun(c *gin.Context) {
	id := c.Param("id")

	run, err := h.deps.History.GetRun(c.Request.Context(), id)
	if err != nil {
		h.handleLookupError(c, err, "run_id", id)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    run,
	})
}

// ExportRun handles GET /api/runs/:id/export
func (h *Handlers) ExportRun(c *gin.Context) {
	id := c.Param("id")

	content, err := h.deps.History.ExportRun(c.Request.Context(), id)
	if err != nil {
		h.handleLookupError(c, err, "run_id", id)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="sync-run-%s.xlsx"`, id))
	c.Data(http.StatusOK, xlsxMediaType, content)
}

// GetInvoice handles GET /api/invoices/:number
func (h *Handlers) GetInvoice(c *gin.Context) {
	number := c.Param("number")

	record, err := h.deps.History.GetProcessedInvoice(c.Request.Context(), number)
	if err != nil {
		h.handleLookupError(c, err, "invoice_number", number)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    record,
	})
}

// GetInvoiceDocument handles GET /api/invoices/:number/document
func (h *Handlers) GetInvoiceDocument(c *gin.Context) {
	number := c.Param("number")

	content, filename, err := h.deps.History.GetInvoiceDocument(c.Request.Context(), number)
	if err != nil {
		h.handleLookupError(c, err, "invoice_number", number)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`inline; filename="%s"`, filename))
	c.Data(http.StatusOK, "application/pdf", content)
}

// ListMovements handles GET /api/products/:id/movements
func (h *Handlers) ListMovements(c *gin.Context) {
	productID := c.Param("id")

	var req ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.fail(c, http.StatusBadRequest, "invalid query parameters")
		return
	}
	if req.Limit <= 0 || req.Limit > 500 {
		req.Limit = 50
	}

	movements, err := h.deps.History.ListMovements(c.Request.Context(), productID, req.Limit)
	if err != nil {
		h.logger.Error("Failed to list movements", "product_id", productID, "error", err)
		h.fail(c, http.StatusInternalServerError, "failed to retrieve movements")
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    movements,
	})
}

// ParseDocument handles POST /api/parse. The upload is parsed and planned
// against current stock, nothing is written.
func (h *Handlers) ParseDocument(c *gin.Context) {
	content, _, ok := h.readUpload(c)
	if !ok {
		return
	}

	withPlan := true
	if raw := c.Query("plan"); raw != "" {
		var err error
		if withPlan, err = strconv.ParseBool(raw); err != nil {
			h.fail(c, http.StatusBadRequest, "invalid plan parameter")
			return
		}
	}

	preview, err := h.deps.Sync.PreviewDocument(c.Request.Context(), content, withPlan)
	if err != nil {
		if errors.Is(err, invoice.ErrNoInvoiceNumber) || errors.Is(err, invoice.ErrEmptyDocument) {
			h.fail(c, http.StatusUnprocessableEntity, err.Error())
			return
		}
		h.logger.Error("Failed to preview document", "error", err)
		h.fail(c, http.StatusInternalServerError, "failed to parse document")
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    preview,
	})
}

// ImportDocument handles POST /api/invoices. The upload is applied to stock
// like a mailbox attachment. It returns 409 while a sync holds the lock.
func (h *Handlers) ImportDocument(c *gin.Context) {
	content, filename, ok := h.readUpload(c)
	if !ok {
		return
	}

	h.logger.Info("Invoice upload received", "filename", filename, "client_ip", c.ClientIP())

	result, err := h.deps.Sync.ProcessDocument(c.Request.Context(), content, "upload:"+filename)
	switch {
	case errors.Is(err, service.ErrSyncInProgress):
		h.fail(c, http.StatusConflict, err.Error())
		return
	case errors.Is(err, invoice.ErrNoInvoiceNumber), errors.Is(err, invoice.ErrEmptyDocument):
		h.fail(c, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		h.logger.Error("Failed to import document", "filename", filename, "error", err)
		h.fail(c, http.StatusInternalServerError, "failed to import document")
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    result,
	})
}

// readUpload reads the multipart "file" field, capped at maxUploadSize.
// On failure the response has been written and ok is false.
func (h *Handlers) readUpload(c *gin.Context) (content []byte, filename string, ok bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize+64<<10)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		h.fail(c, http.StatusBadRequest, "missing file field")
		return nil, "", false
	}
	if fileHeader.Size > maxUploadSize {
		h.fail(c, http.StatusRequestEntityTooLarge, "file exceeds 2 MiB")
		return nil, "", false
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.fail(c, http.StatusBadRequest, "failed to open upload")
		return nil, "", false
	}
	defer file.Close()

	content, err = io.ReadAll(io.LimitReader(file, maxUploadSize+1))
	if err != nil {
		h.fail(c, http.StatusBadRequest, "failed to read upload")
		return nil, "", false
	}
	if len(content) > maxUploadSize {
		h.fail(c, http.StatusRequestEntityTooLarge, "file exceeds 2 MiB")
		return nil, "", false
	}
	return content, fileHeader.Filename, true
}

func (h *Handlers) handleLookupError(c *gin.Context, err error, key, value string) {
	switch {
	case errors.Is(err, service.ErrRunNotFound), errors.Is(err, service.ErrInvoiceNotFound):
		h.fail(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrDocumentNotArchived):
		h.fail(c, http.StatusNotFound, err.Error())
	default:
		h.logger.Error("Lookup failed", key, value, "error", err)
		h.fail(c, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handlers) fail(c *gin.Context, status int, message string) {
	c.JSON(status, Response{
		Success: false,
		Error:   message,
	})
}
