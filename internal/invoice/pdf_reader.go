package invoice

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"
)

// PDFTextExtractor extracts the text layer of PDF invoices with MuPDF
type PDFTextExtractor struct {
	maxPages int
	logger   *zap.Logger
}

// NewPDFTextExtractor creates a new extractor. maxPages <= 0 reads every page.
func NewPDFTextExtractor(maxPages int, logger *zap.Logger) *PDFTextExtractor {
	return &PDFTextExtractor{
		maxPages: maxPages,
		logger:   logger,
	}
}

// ExtractText returns the text of all pages joined by newlines
func (e *PDFTextExtractor) ExtractText(ctx context.Context, content []byte) (string, error) {
	if len(content) == 0 {
		return "", ErrEmptyDocument
	}

	doc, err := fitz.NewFromMemory(content)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	pages := doc.NumPage()
	if e.maxPages > 0 && pages > e.maxPages {
		pages = e.maxPages
	}

	var sb strings.Builder
	for i := 0; i < pages; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		text, err := doc.Text(i)
		if err != nil {
			return "", fmt.Errorf("failed to extract text from page %d: %w", i+1, err)
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}

	text := sb.String()
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyDocument
	}

	e.logger.Debug("Extracted PDF text",
		zap.Int("pages", pages),
		zap.Int("bytes", len(content)),
		zap.Int("text_length", len(text)))

	return text, nil
}

// ExtractFile reads a PDF from disk and extracts its text
func (e *PDFTextExtractor) ExtractFile(ctx context.Context, path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read PDF file: %w", err)
	}
	return e.ExtractText(ctx, content)
}
