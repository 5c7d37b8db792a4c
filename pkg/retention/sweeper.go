// Package retention prunes old snapshot records on a schedule so the
// snapshot store does not grow without bound.
package retention

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/datapilot/datapilot/pkg/persistence"
)

// Sweeper deletes snapshots older than MaxAge on each tick of Schedule.
type Sweeper struct {
	logger    *slog.Logger
	snapshots persistence.SnapshotRepository
	schedule  string
	maxAge    time.Duration
	cron      *cron.Cron
}

func NewSweeper(logger *slog.Logger, snapshots persistence.SnapshotRepository, schedule string, maxAge time.Duration) *Sweeper {
	return &Sweeper{
		logger:    logger.With("module", "retention_sweeper"),
		snapshots: snapshots,
		schedule:  schedule,
		maxAge:    maxAge,
	}
}

// Start registers the sweep job and begins the schedule. It fails only when
// the cron expression is invalid.
func (s *Sweeper) Start(ctx context.Context) error {
	s.cron = cron.New()

	_, err := s.cron.AddFunc(s.schedule, func() {
		s.Sweep(ctx)
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.InfoContext(ctx, "Retention sweeper started",
		"schedule", s.schedule, "max_age", s.maxAge)

	return nil
}

// Sweep runs one pruning pass immediately.
func (s *Sweeper) Sweep(ctx context.Context) {
	cutoff := time.Now().Add(-s.maxAge)

	deleted, err := s.snapshots.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.ErrorContext(ctx, "Snapshot retention sweep failed", "error", err)

		return
	}

	if deleted > 0 {
		s.logger.InfoContext(ctx, "Pruned expired snapshots",
			"deleted", deleted, "cutoff", cutoff)
	}
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}
