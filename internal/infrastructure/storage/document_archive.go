package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spiritmate/myob-stock-sync/internal/application/port"
	"go.uber.org/zap"
)

var (
	unsafeFolderChars = regexp.MustCompile(`[^a-zA-Z0-9\-_]`)
	unsafeFileChars   = regexp.MustCompile(`[^a-zA-Z0-9\-_.]`)
)

// LocalDocumentArchive keeps invoice PDFs on the local filesystem,
// one folder per invoice number
type LocalDocumentArchive struct {
	baseDir string
	logger  *zap.Logger
}

// NewLocalDocumentArchive creates a new LocalDocumentArchive
func NewLocalDocumentArchive(baseDir string, logger *zap.Logger) *LocalDocumentArchive {
	return &LocalDocumentArchive{
		baseDir: baseDir,
		logger:  logger,
	}
}

// Store writes the document and returns its path relative to the archive root.
// Storing the same invoice file twice overwrites the earlier copy.
func (a *LocalDocumentArchive) Store(ctx context.Context, invoiceNumber, filename string, content []byte) (string, error) {
	folder := SanitizeFolderName(invoiceNumber)
	if folder == "" {
		return "", fmt.Errorf("cannot archive document: invalid invoice number %q", invoiceNumber)
	}

	name := SanitizeFileName(filename)
	if name == "" {
		name = folder + ".pdf"
	}

	relativePath := filepath.Join(folder, name)
	fullPath := a.GetFullPath(relativePath)

	if err := a.validatePath(fullPath); err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		a.logger.Error("Failed to create archive folder",
			zap.String("path", filepath.Dir(fullPath)),
			zap.Error(err))
		return "", fmt.Errorf("failed to create directories: %w", err)
	}

	if err := os.WriteFile(fullPath, content, 0644); err != nil {
		a.logger.Error("Failed to write archived document",
			zap.String("path", fullPath),
			zap.Error(err))
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	a.logger.Debug("Document archived",
		zap.String("invoice_number", invoiceNumber),
		zap.String("path", relativePath),
		zap.Int("size", len(content)))

	return relativePath, nil
}

// Read returns an archived document by its relative path
func (a *LocalDocumentArchive) Read(ctx context.Context, path string) ([]byte, error) {
	fullPath := a.GetFullPath(path)

	if err := a.validatePath(fullPath); err != nil {
		return nil, err
	}

	content, err := os.ReadFile(fullPath)
	if err != nil {
		a.logger.Error("Failed to read archived document",
			zap.String("path", fullPath),
			zap.Error(err))
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return content, nil
}

// GetFullPath converts a relative path to full path
func (a *LocalDocumentArchive) GetFullPath(relativePath string) string {
	return filepath.Join(a.baseDir, relativePath)
}

// validatePath checks that the path is within baseDir
func (a *LocalDocumentArchive) validatePath(fullPath string) error {
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	absBase, err := filepath.Abs(a.baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base path: %w", err)
	}

	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		return fmt.Errorf("path escapes archive directory: %s", fullPath)
	}

	return nil
}

// SanitizeFolderName keeps only alphanumerics, hyphens and underscores
func SanitizeFolderName(name string) string {
	name = strings.ReplaceAll(name, "..", "")
	return unsafeFolderChars.ReplaceAllString(name, "")
}

// SanitizeFileName strips directories and unsafe characters from an attachment name
func SanitizeFileName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "..", "")
	name = unsafeFileChars.ReplaceAllString(strings.ReplaceAll(name, " ", "_"), "")
	if strings.Trim(name, ".") == "" {
		return ""
	}
	return name
}

var _ port.DocumentArchive = (*LocalDocumentArchive)(nil)
