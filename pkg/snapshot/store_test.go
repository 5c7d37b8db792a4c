package snapshot

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datapilot/datapilot/pkg/locker"
	"github.com/datapilot/datapilot/pkg/models"
	"github.com/datapilot/datapilot/pkg/persistence/file"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()

	p, err := file.NewFilePersistence(t.TempDir())
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	store, err := NewStore(logger, p.SnapshotRepository(), locker.NewMemoryLocker(), t.TempDir())
	require.NoError(t, err)

	return store, t.TempDir()
}

func TestCaptureAndRestoreRoundTrip(t *testing.T) {
	store, ws := newTestStore(t)
	ctx := context.Background()

	target := filepath.Join(ws, "config.yaml")
	require.NoError(t, os.WriteFile(target, []byte("version: 1\n"), 0600))

	captured, err := store.Capture(ctx, CaptureRequest{
		RunID:      "run-1",
		StepID:     "step-1",
		Kind:       models.SnapshotKindFile,
		TargetPath: target,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, captured.ID)
	assert.NotEmpty(t, captured.Checksum)
	assert.EqualValues(t, 11, captured.SizeBytes)
	assert.Equal(t, true, captured.Details["existed"])

	// Mutate the target the way a destructive step would, then record it.
	require.NoError(t, os.WriteFile(target, []byte("version: 2\n"), 0600))
	require.NoError(t, store.RecordMutation(ctx, target))

	result, err := store.Restore(ctx, captured.ID, false)
	require.NoError(t, err)
	assert.EqualValues(t, 11, result.BytesRestored)
	assert.False(t, result.Forced)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "version: 1\n", string(data))
}

func TestCaptureDedupesPerStepTarget(t *testing.T) {
	store, ws := newTestStore(t)
	ctx := context.Background()

	target := filepath.Join(ws, "file.txt")
	require.NoError(t, os.WriteFile(target, []byte("content"), 0600))

	req := CaptureRequest{RunID: "run-1", StepID: "step-1", Kind: models.SnapshotKindFile, TargetPath: target}

	first, err := store.Capture(ctx, req)
	require.NoError(t, err)

	second, err := store.Capture(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
}

func TestCaptureAbsentTargetAndRestoreDeletes(t *testing.T) {
	store, ws := newTestStore(t)
	ctx := context.Background()

	target := filepath.Join(ws, "created-later.txt")

	captured, err := store.Capture(ctx, CaptureRequest{
		RunID:      "run-1",
		StepID:     "step-1",
		Kind:       models.SnapshotKindFile,
		TargetPath: target,
	})
	require.NoError(t, err)
	assert.Equal(t, false, captured.Details["existed"])

	// The step creates the file; the mutation joins the lineage.
	require.NoError(t, os.WriteFile(target, []byte("new file"), 0600))
	require.NoError(t, store.RecordMutation(ctx, target))

	result, err := store.Restore(ctx, captured.ID, false)
	require.NoError(t, err)
	assert.Zero(t, result.BytesRestored)

	_, err = os.Stat(target)
	assert.True(t, os.IsNotExist(err))
}

func TestRestoreRejectsOutOfLineageTarget(t *testing.T) {
	store, ws := newTestStore(t)
	ctx := context.Background()

	target := filepath.Join(ws, "file.txt")
	require.NoError(t, os.WriteFile(target, []byte("original"), 0600))

	captured, err := store.Capture(ctx, CaptureRequest{
		RunID: "run-1", StepID: "step-1", Kind: models.SnapshotKindFile, TargetPath: target,
	})
	require.NoError(t, err)

	// An edit outside the orchestrator: no RecordMutation.
	require.NoError(t, os.WriteFile(target, []byte("tampered"), 0600))

	_, err = store.Restore(ctx, captured.ID, false)
	assert.ErrorIs(t, err, ErrTargetConflict)

	// The target is untouched on a refused restore.
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "tampered", string(data))
}

func TestRestoreForceOverridesConflict(t *testing.T) {
	store, ws := newTestStore(t)
	ctx := context.Background()

	target := filepath.Join(ws, "file.txt")
	require.NoError(t, os.WriteFile(target, []byte("original"), 0600))

	captured, err := store.Capture(ctx, CaptureRequest{
		RunID: "run-1", StepID: "step-1", Kind: models.SnapshotKindFile, TargetPath: target,
	})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(target, []byte("tampered"), 0600))

	result, err := store.Restore(ctx, captured.ID, true)
	require.NoError(t, err)
	assert.True(t, result.Forced)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))
}

func TestCaptureAndRestoreDirectoryTarget(t *testing.T) {
	store, ws := newTestStore(t)
	ctx := context.Background()

	target := filepath.Join(ws, "reports")
	require.NoError(t, os.MkdirAll(filepath.Join(target, "nested"), 0750))
	require.NoError(t, os.WriteFile(filepath.Join(target, "summary.txt"), []byte("summary"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(target, "nested", "detail.txt"), []byte("detail"), 0600))

	captured, err := store.Capture(ctx, CaptureRequest{
		RunID:      "run-1",
		StepID:     "step-1",
		Kind:       models.SnapshotKindWorkspace,
		TargetPath: target,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, captured.Checksum)
	assert.Equal(t, true, captured.Details["directory"])

	// A destructive step reshapes the subtree, then records the mutation.
	require.NoError(t, os.WriteFile(filepath.Join(target, "summary.txt"), []byte("rewritten"), 0600))
	require.NoError(t, os.Remove(filepath.Join(target, "nested", "detail.txt")))
	require.NoError(t, os.WriteFile(filepath.Join(target, "extra.txt"), []byte("extra"), 0600))
	require.NoError(t, store.RecordMutation(ctx, target))

	_, err = store.Restore(ctx, captured.ID, false)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(target, "summary.txt"))
	require.NoError(t, err)
	assert.Equal(t, "summary", string(data))

	data, err = os.ReadFile(filepath.Join(target, "nested", "detail.txt"))
	require.NoError(t, err)
	assert.Equal(t, "detail", string(data))

	// Files created after the capture do not survive the restore.
	_, err = os.Stat(filepath.Join(target, "extra.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestDirectoryRestoreRejectsOutOfLineageSubtree(t *testing.T) {
	store, ws := newTestStore(t)
	ctx := context.Background()

	target := filepath.Join(ws, "reports")
	require.NoError(t, os.MkdirAll(target, 0750))
	require.NoError(t, os.WriteFile(filepath.Join(target, "summary.txt"), []byte("summary"), 0600))

	captured, err := store.Capture(ctx, CaptureRequest{
		RunID:      "run-1",
		StepID:     "step-1",
		Kind:       models.SnapshotKindWorkspace,
		TargetPath: target,
	})
	require.NoError(t, err)

	// An edit outside the orchestrator: no RecordMutation.
	require.NoError(t, os.WriteFile(filepath.Join(target, "summary.txt"), []byte("tampered"), 0600))

	_, err = store.Restore(ctx, captured.ID, false)
	assert.ErrorIs(t, err, ErrTargetConflict)
}

func TestRestoreUnchangedTargetStaysOnLineage(t *testing.T) {
	store, ws := newTestStore(t)
	ctx := context.Background()

	target := filepath.Join(ws, "file.txt")
	require.NoError(t, os.WriteFile(target, []byte("same"), 0600))

	captured, err := store.Capture(ctx, CaptureRequest{
		RunID: "run-1", StepID: "step-1", Kind: models.SnapshotKindFile, TargetPath: target,
	})
	require.NoError(t, err)

	// Nothing changed since the capture; the restore is a no-op rewrite.
	_, err = store.Restore(ctx, captured.ID, false)
	assert.NoError(t, err)
}
