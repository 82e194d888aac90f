package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spiritmate/myob-stock-sync/internal/application/service"
	"github.com/spiritmate/myob-stock-sync/internal/infrastructure/spreadsheet"
)

var importProductsCmd = &cobra.Command{
	Use:   "import-products <catalogue.xlsx>",
	Short: "Import products and their MYOB item mappings from a spreadsheet",
	Long: `Read products from the first sheet of an xlsx workbook and upsert them.

Header row columns (case-insensitive):
  id, product_name           required
  brand_name, on_hand        optional
  myob_item_id               comma-separated supplier item ids
  myob_description           comma-separated supplier descriptions
  myob_mappings              "id|description" pairs separated by ";"

Existing stock levels are kept unless --overwrite-stock is given.`,
	Example: `  stocksync import-products products.xlsx --dry-run
  stocksync import-products products.xlsx --overwrite-stock`,
	Args: cobra.ExactArgs(1),
	RunE: runImportProducts,
}

func init() {
	rootCmd.AddCommand(importProductsCmd)
	importProductsCmd.Flags().Bool("dry-run", false, "Report what would change without writing")
	importProductsCmd.Flags().Bool("overwrite-stock", false, "Replace on_hand of existing products with the sheet value")
}

func runImportProducts(cmd *cobra.Command, args []string) error {
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	overwriteStock, _ := cmd.Flags().GetBool("overwrite-stock")

	file, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", args[0], err)
	}
	defer file.Close()

	a, err := startApp(cmd.Context(), false, false)
	if err != nil {
		return err
	}
	defer a.close()

	products, rowErrors, err := spreadsheet.NewCatalogImporter(a.logger).Import(file)
	if err != nil {
		return err
	}
	for _, rowErr := range rowErrors {
		a.logger.Warn("Skipping catalogue row", zap.Int("row", rowErr.Row), zap.String("reason", rowErr.Reason))
	}

	summary, err := a.container.Services().Catalog.ImportProducts(cmd.Context(), products, service.ImportOptions{
		KeepStock: !overwriteStock,
		DryRun:    dryRun,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]interface{}{
		"summary":    summary,
		"row_errors": rowErrors,
		"dry_run":    dryRun,
	})
}
