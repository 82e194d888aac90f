package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLocalDocumentArchive_StoreAndRead(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	archive := NewLocalDocumentArchive(dir, zap.NewNop())

	path, err := archive.Store(ctx, "INV00123", "Invoice INV00123.pdf", []byte("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("INV00123", "Invoice_INV00123.pdf"), path)

	onDisk, err := os.ReadFile(filepath.Join(dir, path))
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(onDisk))

	content, err := archive.Read(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(content))

	_, err = archive.Store(ctx, "INV00123", "Invoice INV00123.pdf", []byte("%PDF-2"))
	require.NoError(t, err)
	content, err = archive.Read(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-2", string(content))
}

func TestLocalDocumentArchive_RejectsTraversal(t *testing.T) {
	ctx := context.Background()
	archive := NewLocalDocumentArchive(t.TempDir(), zap.NewNop())

	path, err := archive.Store(ctx, "../../INV9", "../../etc/passwd", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("INV9", "passwd"), path)

	_, err = archive.Read(ctx, "../outside.pdf")
	assert.Error(t, err)

	_, err = archive.Store(ctx, "../", "a.pdf", []byte("x"))
	assert.Error(t, err)
}

func TestLocalDocumentArchive_DefaultsFileName(t *testing.T) {
	archive := NewLocalDocumentArchive(t.TempDir(), zap.NewNop())

	path, err := archive.Store(context.Background(), "INV7", "..", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("INV7", "INV7.pdf"), path)
}

func TestSanitizeNames(t *testing.T) {
	assert.Equal(t, "INV00123", SanitizeFolderName("INV/00123"))
	assert.Equal(t, "credit_note.pdf", SanitizeFileName(`C:\mail\credit note.pdf`))
	assert.Equal(t, "", SanitizeFileName("..."))
}
