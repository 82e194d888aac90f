package invoice

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// buildPDF writes a minimal PDF with one Helvetica text line per page.
// An empty string produces a page without any text.
func buildPDF(pages ...string) []byte {
	var objects []string
	objects = append(objects, "<< /Type /Catalog /Pages 2 0 R >>")

	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	objects = append(objects,
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>")

	for i, text := range pages {
		var stream string
		if text != "" {
			stream = fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
		}
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream))
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestPDFTextExtractor_EmptyContent(t *testing.T) {
	e := NewPDFTextExtractor(0, zap.NewNop())

	_, err := e.ExtractText(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyDocument)

	_, err = e.ExtractText(context.Background(), []byte{})
	assert.ErrorIs(t, err, ErrEmptyDocument)
}

func TestPDFTextExtractor_NotAPDF(t *testing.T) {
	e := NewPDFTextExtractor(0, zap.NewNop())

	assert.NotPanics(t, func() {
		_, err := e.ExtractText(context.Background(), []byte("Invoice number INV001240, plain text"))
		assert.Error(t, err)
	})
}

func TestPDFTextExtractor_JoinsPages(t *testing.T) {
	e := NewPDFTextExtractor(0, zap.NewNop())

	text, err := e.ExtractText(context.Background(), buildPDF("Tax Invoice", "Invoice number INV001240", "Subtotal 194.70"))
	require.NoError(t, err)

	first := strings.Index(text, "Tax Invoice")
	second := strings.Index(text, "Invoice number INV001240")
	third := strings.Index(text, "Subtotal 194.70")
	require.True(t, first >= 0 && second > first && third > second, "pages out of order: %q", text)

	assert.Contains(t, text[first:second], "\n")
	assert.Contains(t, text[second:third], "\n")
	assert.True(t, strings.HasSuffix(text, "\n"))
}

func TestPDFTextExtractor_MaxPages(t *testing.T) {
	e := NewPDFTextExtractor(2, zap.NewNop())

	text, err := e.ExtractText(context.Background(), buildPDF("Page one", "Page two", "Page three"))
	require.NoError(t, err)

	assert.Contains(t, text, "Page one")
	assert.Contains(t, text, "Page two")
	assert.NotContains(t, text, "Page three")
}

func TestPDFTextExtractor_NoTextLayer(t *testing.T) {
	e := NewPDFTextExtractor(0, zap.NewNop())

	_, err := e.ExtractText(context.Background(), buildPDF("", ""))
	assert.ErrorIs(t, err, ErrEmptyDocument)
}

func TestPDFTextExtractor_Cancelled(t *testing.T) {
	e := NewPDFTextExtractor(0, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.ExtractText(ctx, buildPDF("Tax Invoice"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPDFTextExtractor_ExtractFile(t *testing.T) {
	e := NewPDFTextExtractor(0, zap.NewNop())
	path := filepath.Join(t.TempDir(), "INV001240.pdf")
	require.NoError(t, os.WriteFile(path, buildPDF("Invoice number INV001240"), 0o644))

	text, err := e.ExtractFile(context.Background(), path)
	require.NoError(t, err)
	assert.Contains(t, text, "INV001240")

	_, err = e.ExtractFile(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
