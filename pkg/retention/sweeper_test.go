package retention

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datapilot/datapilot/pkg/models"
	"github.com/datapilot/datapilot/pkg/persistence"
	"github.com/datapilot/datapilot/pkg/persistence/file"
)

func TestSweepPrunesExpiredSnapshots(t *testing.T) {
	p, err := file.NewFilePersistence(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, p.SnapshotRepository().Save(ctx, &models.Snapshot{
		ID: "expired", TargetPath: "/ws/a", CreatedAt: now.Add(-72 * time.Hour),
	}))
	require.NoError(t, p.SnapshotRepository().Save(ctx, &models.Snapshot{
		ID: "recent", TargetPath: "/ws/b", CreatedAt: now.Add(-time.Hour),
	}))

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	sweeper := NewSweeper(logger, p.SnapshotRepository(), "0 3 * * *", 24*time.Hour)

	sweeper.Sweep(ctx)

	_, err = p.SnapshotRepository().GetByID(ctx, "expired")
	assert.True(t, persistence.IsSnapshotNotFound(err))

	_, err = p.SnapshotRepository().GetByID(ctx, "recent")
	assert.NoError(t, err)
}

func TestStartRejectsInvalidSchedule(t *testing.T) {
	p, err := file.NewFilePersistence(t.TempDir())
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	sweeper := NewSweeper(logger, p.SnapshotRepository(), "not a schedule", time.Hour)

	assert.Error(t, sweeper.Start(context.Background()))
}

func TestStartAndStop(t *testing.T) {
	p, err := file.NewFilePersistence(t.TempDir())
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	sweeper := NewSweeper(logger, p.SnapshotRepository(), "@every 1h", time.Hour)

	require.NoError(t, sweeper.Start(context.Background()))
	sweeper.Stop()
}
