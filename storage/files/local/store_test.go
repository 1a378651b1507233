package localfs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhuluh247/MySchool/core"
)

func TestStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := New(dir, "http://localhost:8000/files/")
	require.NoError(t, err)

	url, err := store.Upload(ctx, strings.NewReader("report"), "documents/1700000000000_report.pdf", "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000/files/documents/1700000000000_report.pdf", url)

	data, err := os.ReadFile(filepath.Join(dir, "documents", "1700000000000_report.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "report", string(data))

	require.NoError(t, store.Delete(ctx, "documents/1700000000000_report.pdf"))
	assert.True(t, core.IsNotFound(store.Delete(ctx, "documents/1700000000000_report.pdf")))
}

func TestStore_staysInsideRoot(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	dir := filepath.Join(root, "files")
	store, err := New(dir, "http://localhost/files")
	require.NoError(t, err)

	_, err = store.Upload(ctx, strings.NewReader("x"), "../../escape.txt", "text/plain")
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(root, "escape.txt"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "escape.txt"))
	assert.NoError(t, err)

	_, err = store.Upload(ctx, strings.NewReader("x"), "/", "text/plain")
	assert.Error(t, err)
}
