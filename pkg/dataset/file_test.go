package dataset

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datapilot/datapilot/pkg/workspace"
)

func newTestStore(t *testing.T) (*FileStore, string) {
	t.Helper()

	root := t.TempDir()

	ws, err := workspace.New(root)
	require.NoError(t, err)

	store, err := NewFileStore(ws, t.TempDir())
	require.NoError(t, err)

	return store, root
}

func TestGetDatasetPreview(t *testing.T) {
	store, root := newTestStore(t)

	csv := "name,age\nalice,30\nbob,25\ncarol,41\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "people.csv"), []byte(csv), 0600))

	preview, err := store.GetDatasetPreview(context.Background(), "people.csv", 2)
	require.NoError(t, err)

	assert.Equal(t, "people.csv", preview.DatasetID)
	assert.Equal(t, []string{"name", "age"}, preview.Columns)
	require.Len(t, preview.Rows, 2)
	assert.Equal(t, []string{"alice", "30"}, preview.Rows[0])
	assert.True(t, preview.Truncated)
}

func TestGetDatasetPreviewSmallFile(t *testing.T) {
	store, root := newTestStore(t)

	require.NoError(t, os.WriteFile(filepath.Join(root, "tiny.csv"),
		[]byte("col\nvalue\n"), 0600))

	preview, err := store.GetDatasetPreview(context.Background(), "tiny.csv", 20)
	require.NoError(t, err)

	require.Len(t, preview.Rows, 1)
	assert.False(t, preview.Truncated)
}

func TestGetDatasetPreviewEmptyFile(t *testing.T) {
	store, root := newTestStore(t)

	require.NoError(t, os.WriteFile(filepath.Join(root, "empty.csv"), nil, 0600))

	preview, err := store.GetDatasetPreview(context.Background(), "empty.csv", 20)
	require.NoError(t, err)

	assert.Empty(t, preview.Columns)
	assert.Empty(t, preview.Rows)
}

func TestGetDatasetPreviewRaggedRows(t *testing.T) {
	store, root := newTestStore(t)

	require.NoError(t, os.WriteFile(filepath.Join(root, "ragged.csv"),
		[]byte("a,b\n1\n2,3,4\n"), 0600))

	preview, err := store.GetDatasetPreview(context.Background(), "ragged.csv", 20)
	require.NoError(t, err)

	require.Len(t, preview.Rows, 2)
	assert.Equal(t, []string{"1"}, preview.Rows[0])
	assert.Equal(t, []string{"2", "3", "4"}, preview.Rows[1])
}

func TestGetDatasetPreviewOutsideWorkspace(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.GetDatasetPreview(context.Background(), "/etc/passwd", 5)
	assert.ErrorIs(t, err, workspace.ErrPathNotAllowed)
}

func TestArtifactRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	id, err := store.SaveArtifact(ctx, "run-1", []byte(`{"plan":true}`), "application/json")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	data, meta, err := store.GetArtifact(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, `{"plan":true}`, string(data))
	assert.Equal(t, "run-1", meta.RunID)
	assert.Equal(t, "application/json", meta.MimeType)
	assert.EqualValues(t, 13, meta.SizeBytes)
}

func TestGetArtifactNotFound(t *testing.T) {
	store, _ := newTestStore(t)

	_, _, err := store.GetArtifact(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrArtifactNotFound)
}
