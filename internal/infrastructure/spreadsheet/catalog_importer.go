package spreadsheet

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spiritmate/myob-stock-sync/internal/domain/entity"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// Catalogue columns, matched case-insensitively against the header row
const (
	colID              = "id"
	colProductName     = "product_name"
	colBrandName       = "brand_name"
	colOnHand          = "on_hand"
	colMyobItemID      = "myob_item_id"
	colMyobDescription = "myob_description"
	colMyobMappings    = "myob_mappings"
)

// RowError describes a catalogue row that could not be imported
type RowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// CatalogImporter reads a product catalogue with supplier mappings from xlsx
type CatalogImporter struct {
	logger *zap.Logger
}

// NewCatalogImporter creates a new catalogue importer
func NewCatalogImporter(logger *zap.Logger) *CatalogImporter {
	return &CatalogImporter{logger: logger}
}

// Import reads products from the first sheet. Rows that cannot be read are
// reported and skipped.
func (c *CatalogImporter) Import(r io.Reader) ([]*entity.Product, []RowError, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("sheet %s is empty", sheets[0])
	}

	columns := indexHeader(rows[0])
	for _, required := range []string{colID, colProductName} {
		if _, ok := columns[required]; !ok {
			return nil, nil, fmt.Errorf("missing required column %q", required)
		}
	}

	products := make([]*entity.Product, 0, len(rows)-1)
	var rowErrors []RowError

	for i, row := range rows[1:] {
		rowNum := i + 2
		get := func(name string) string {
			idx, ok := columns[name]
			if !ok || idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}

		if isBlankRow(row) {
			continue
		}

		product := &entity.Product{
			ID:              get(colID),
			ProductName:     get(colProductName),
			BrandName:       get(colBrandName),
			MyobItemID:      get(colMyobItemID),
			MyobDescription: get(colMyobDescription),
			MyobMappings:    parseMappings(get(colMyobMappings)),
		}
		if product.ID == "" {
			rowErrors = append(rowErrors, RowError{Row: rowNum, Reason: "missing id"})
			continue
		}

		if raw := get(colOnHand); raw != "" {
			onHand, err := strconv.ParseFloat(raw, 64)
			if err != nil || onHand < 0 {
				rowErrors = append(rowErrors, RowError{Row: rowNum, Reason: fmt.Sprintf("invalid on_hand %q", raw)})
				continue
			}
			product.OnHand = onHand
		}

		products = append(products, product)
	}

	c.logger.Info("Catalogue read",
		zap.String("sheet", sheets[0]),
		zap.Int("products", len(products)),
		zap.Int("rejected", len(rowErrors)))

	return products, rowErrors, nil
}

func indexHeader(header []string) map[string]int {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		if _, seen := columns[key]; !seen {
			columns[key] = i
		}
	}
	return columns
}

// parseMappings reads "id|description" pairs separated by semicolons
func parseMappings(raw string) []entity.MyobMapping {
	if raw == "" {
		return nil
	}
	var mappings []entity.MyobMapping
	for _, pair := range strings.Split(raw, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		itemID, description, _ := strings.Cut(pair, "|")
		mappings = append(mappings, entity.MyobMapping{
			ItemID:      strings.TrimSpace(itemID),
			Description: strings.TrimSpace(description),
		})
	}
	return mappings
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
