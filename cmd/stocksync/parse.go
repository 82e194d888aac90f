package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spiritmate/myob-stock-sync/internal/application/service"
	"github.com/spiritmate/myob-stock-sync/internal/invoice"
)

var parseCmd = &cobra.Command{
	Use:   "parse <invoice.pdf>",
	Short: "Parse an invoice PDF without changing stock",
	Long: `Extract the text of an invoice PDF and print the parsed invoice with any
line rows that could not be read.

With --plan the invoice is also matched against the configured database and
the stock changes it would make are printed. Nothing is written.`,
	Example: `  stocksync parse INV00123.pdf
  stocksync parse INV00123.pdf --plan
  stocksync parse INV00123.pdf --text`,
	Args: cobra.ExactArgs(1),
	RunE: runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)
	parseCmd.Flags().Bool("plan", false, "Plan the invoice against the database (read only)")
	parseCmd.Flags().Bool("text", false, "Print the extracted text instead of the parsed invoice")
	parseCmd.Flags().Int("max-pages", 20, "Maximum number of pages to read")
	parseCmd.MarkFlagsMutuallyExclusive("plan", "text")
}

func runParse(cmd *cobra.Command, args []string) error {
	withPlan, _ := cmd.Flags().GetBool("plan")
	textOnly, _ := cmd.Flags().GetBool("text")
	maxPages, _ := cmd.Flags().GetInt("max-pages")

	text, err := invoice.NewPDFTextExtractor(maxPages, zap.NewNop()).ExtractFile(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to extract %s: %w", args[0], err)
	}
	if textOnly {
		fmt.Println(text)
		return nil
	}

	var preview *service.DocumentPreview
	if withPlan {
		a, err := startApp(cmd.Context(), false, false)
		if err != nil {
			return err
		}
		defer a.close()

		preview, err = a.container.Services().Sync.PreviewText(cmd.Context(), text, true)
		if err != nil {
			return err
		}
	} else {
		report, err := invoice.NewParser().ParseDetailed(text)
		if err != nil {
			return err
		}
		preview = &service.DocumentPreview{Report: report}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(preview)
}
