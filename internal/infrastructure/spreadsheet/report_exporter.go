package spreadsheet

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spiritmate/myob-stock-sync/internal/application/port"
	"github.com/spiritmate/myob-stock-sync/internal/domain/entity"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	sheetRun      = "Run"
	sheetInvoices = "Invoices"
	sheetUpdates  = "Stock Updates"
)

var (
	invoiceHeader = []interface{}{"Invoice Number", "Processed At", "Credit Note", "Items Processed", "Total Qty", "Products Updated", "Source", "Archive Path"}
	updateHeader  = []interface{}{"Invoice Number", "Product ID", "Product Name", "Brand", "MYOB Items", "Stock Before", "Qty Change", "Stock After"}
)

// ReportExporter renders sync runs as xlsx workbooks
type ReportExporter struct {
	logger *zap.Logger
}

// NewReportExporter creates a new xlsx report exporter
func NewReportExporter(logger *zap.Logger) *ReportExporter {
	return &ReportExporter{logger: logger}
}

// ExportRun writes the run summary, its invoices and every stock change to a workbook
func (e *ReportExporter) ExportRun(run *entity.SyncRun, invoices []*entity.ProcessedInvoice) ([]byte, error) {
	if run == nil {
		return nil, fmt.Errorf("run cannot be nil")
	}

	f := excelize.NewFile()
	defer f.Close()

	// NewFile starts with Sheet1
	if err := f.SetSheetName("Sheet1", sheetRun); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	for _, name := range []string{sheetInvoices, sheetUpdates} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
	}

	if err := e.writeRunSheet(f, run); err != nil {
		return nil, err
	}
	if err := e.writeInvoiceSheet(f, invoices); err != nil {
		return nil, err
	}
	if err := e.writeUpdateSheet(f, invoices); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}

	e.logger.Debug("Run report exported",
		zap.String("run_id", run.ID),
		zap.Int("invoices", len(invoices)),
		zap.Int("size", buf.Len()))

	return buf.Bytes(), nil
}

func (e *ReportExporter) writeRunSheet(f *excelize.File, run *entity.SyncRun) error {
	completed := ""
	if run.CompletedAt != nil {
		completed = run.CompletedAt.Format(time.RFC3339)
	}

	rows := [][]interface{}{
		{"Run ID", run.ID},
		{"Status", run.Status},
		{"Started At", run.StartedAt.Format(time.RFC3339)},
		{"Completed At", completed},
		{"Emails Scanned", run.EmailsScanned},
		{"Invoices Processed", run.InvoicesProcessed},
		{"Products Updated", run.ProductsUpdated},
		{"Failures", len(run.Failures)},
	}

	if len(run.Failures) > 0 {
		rows = append(rows, []interface{}{}, []interface{}{"Failure Type", "Message", "Details"})
		for _, failure := range run.Failures {
			rows = append(rows, []interface{}{failure.Type, failure.Message, formatDetails(failure.Details)})
		}
	}

	return writeRows(f, sheetRun, rows)
}

func (e *ReportExporter) writeInvoiceSheet(f *excelize.File, invoices []*entity.ProcessedInvoice) error {
	rows := [][]interface{}{invoiceHeader}
	for _, inv := range invoices {
		rows = append(rows, []interface{}{
			inv.InvoiceNumber,
			inv.ProcessedAt.Format(time.RFC3339),
			inv.IsCreditNote,
			inv.ItemsProcessed,
			inv.TotalQtyProcessed,
			len(inv.ProductsUpdated),
			inv.SourceRef,
			inv.ArchivePath,
		})
	}
	return writeRows(f, sheetInvoices, rows)
}

func (e *ReportExporter) writeUpdateSheet(f *excelize.File, invoices []*entity.ProcessedInvoice) error {
	rows := [][]interface{}{updateHeader}
	for _, inv := range invoices {
		for _, detail := range inv.ProductDetails {
			rows = append(rows, []interface{}{
				inv.InvoiceNumber,
				detail.ProductID,
				detail.ProductName,
				detail.BrandName,
				formatSupplierLines(detail.MyobItems),
				detail.StockBefore,
				detail.TotalQtyChange,
				detail.StockAfter,
			})
		}
	}
	return writeRows(f, sheetUpdates, rows)
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func formatSupplierLines(lines []entity.SupplierLine) string {
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		parts = append(parts, fmt.Sprintf("%s %s x%g", l.ItemID, l.Description, l.Qty))
	}
	return strings.Join(parts, "; ")
}

func formatDetails(details map[string]string) string {
	if len(details) == 0 {
		return ""
	}
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+details[k])
	}
	return strings.Join(parts, ", ")
}

var _ port.ReportExporter = (*ReportExporter)(nil)
