// Package persistence provides the storage abstraction for runs, snapshots
// and rollbacks.
package persistence

import (
	"context"
	"time"

	"github.com/datapilot/datapilot/pkg/models"
)

type Persistence interface {
	RunRepository() RunRepository
	SnapshotRepository() SnapshotRepository
	RollbackRepository() RollbackRepository
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}

// ListOptions carries pagination and filtering for list queries.
type ListOptions struct {
	Limit  int
	Offset int
	RunID  string
	Status string
}

// RunRepository stores runs with their owned plan and log. The log is
// append-only; Save persists the run's current materialized state.
type RunRepository interface {
	Save(ctx context.Context, run *models.Run) error
	GetByID(ctx context.Context, id string) (*models.Run, error)
	List(ctx context.Context, opts ListOptions) ([]*models.Run, int64, error)
}

// SnapshotRepository stores immutable snapshot records.
type SnapshotRepository interface {
	Save(ctx context.Context, snapshot *models.Snapshot) error
	GetByID(ctx context.Context, id string) (*models.Snapshot, error)
	// FindByStepTarget returns the snapshot captured for a (run, step,
	// target) triple, if any. The executor uses it to keep capture
	// idempotent across repeated approvals.
	FindByStepTarget(ctx context.Context, runID, stepID, targetPath string) (*models.Snapshot, error)
	List(ctx context.Context, opts ListOptions) ([]*models.Snapshot, int64, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// RollbackRepository stores rollback lifecycle records.
type RollbackRepository interface {
	Save(ctx context.Context, rollback *models.Rollback) error
	GetByID(ctx context.Context, id string) (*models.Rollback, error)
	List(ctx context.Context, opts ListOptions) ([]*models.Rollback, int64, error)
}
