// Package rollback tracks requests to restore snapshots. A rollback is its
// own lifecycle object so it can be reviewed and applied asynchronously from
// the run that produced the snapshot.
package rollback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/datapilot/datapilot/pkg/eventbus"
	"github.com/datapilot/datapilot/pkg/events"
	"github.com/datapilot/datapilot/pkg/models"
	"github.com/datapilot/datapilot/pkg/persistence"
	"github.com/datapilot/datapilot/pkg/snapshot"
)

// ErrInvalidTransition indicates an apply or cancel on a rollback that has
// already reached a terminal status.
var ErrInvalidTransition = errors.New("rollback already in a terminal status")

// IsInvalidTransition checks if an error indicates a rejected state change.
func IsInvalidTransition(err error) bool {
	return errors.Is(err, ErrInvalidTransition)
}

// Manager drives the requested -> applied | cancelled state machine and
// delegates the actual restore to the snapshot store.
type Manager struct {
	logger    *slog.Logger
	repo      persistence.RollbackRepository
	store     *snapshot.Store
	publisher eventbus.EventPublisher
}

func NewManager(logger *slog.Logger, repo persistence.RollbackRepository, store *snapshot.Store, publisher eventbus.EventPublisher) *Manager {
	return &Manager{
		logger:    logger.With("module", "rollback_manager"),
		repo:      repo,
		store:     store,
		publisher: publisher,
	}
}

// Request creates a rollback in the requested status. The snapshot must
// exist; nothing is restored yet.
func (m *Manager) Request(ctx context.Context, snapshotID, runID, note string) (*models.Rollback, error) {
	rollback := &models.Rollback{
		ID:         uuid.New().String(),
		SnapshotID: snapshotID,
		RunID:      runID,
		Status:     models.RollbackStatusRequested,
		Note:       note,
		CreatedAt:  time.Now().UTC(),
	}

	if err := m.repo.Save(ctx, rollback); err != nil {
		return nil, err
	}

	m.publish(ctx, rollback, events.RollbackRequested{
		BaseEvent:  m.baseEvent(events.RollbackRequestedEvent, rollback.RunID),
		RollbackID: rollback.ID,
		SnapshotID: snapshotID,
	})

	m.logger.InfoContext(ctx, "Rollback requested",
		"rollback_id", rollback.ID, "snapshot_id", snapshotID)

	return rollback, nil
}

// Apply restores the referenced snapshot and marks the rollback applied. On
// restore failure the rollback stays requested and the failure is returned to
// the caller.
func (m *Manager) Apply(ctx context.Context, rollbackID string, force bool) (*models.RestoreResult, error) {
	rollback, err := m.repo.GetByID(ctx, rollbackID)
	if err != nil {
		return nil, err
	}

	if rollback.Terminal() {
		return nil, fmt.Errorf("cannot apply rollback %s in status %s: %w",
			rollback.ID, rollback.Status, ErrInvalidTransition)
	}

	result, err := m.store.Restore(ctx, rollback.SnapshotID, force)
	if err != nil {
		m.logger.WarnContext(ctx, "Rollback restore failed, staying requested",
			"rollback_id", rollback.ID, "error", err)

		return nil, err
	}

	rollback.Status = models.RollbackStatusApplied
	if err := m.repo.Save(ctx, rollback); err != nil {
		return nil, err
	}

	m.publish(ctx, rollback, events.RollbackApplied{
		BaseEvent:     m.baseEvent(events.RollbackAppliedEvent, rollback.RunID),
		RollbackID:    rollback.ID,
		SnapshotID:    rollback.SnapshotID,
		TargetPath:    result.TargetPath,
		BytesRestored: result.BytesRestored,
		Forced:        force,
	})

	m.logger.InfoContext(ctx, "Rollback applied",
		"rollback_id", rollback.ID, "snapshot_id", rollback.SnapshotID, "forced", force)

	return result, nil
}

// Cancel marks a requested rollback cancelled. Terminal rollbacks reject the
// transition with no side effect.
func (m *Manager) Cancel(ctx context.Context, rollbackID string) (*models.Rollback, error) {
	rollback, err := m.repo.GetByID(ctx, rollbackID)
	if err != nil {
		return nil, err
	}

	if rollback.Terminal() {
		return nil, fmt.Errorf("cannot cancel rollback %s in status %s: %w",
			rollback.ID, rollback.Status, ErrInvalidTransition)
	}

	rollback.Status = models.RollbackStatusCancelled
	if err := m.repo.Save(ctx, rollback); err != nil {
		return nil, err
	}

	m.publish(ctx, rollback, events.RollbackCancelled{
		BaseEvent:  m.baseEvent(events.RollbackCancelledEvent, rollback.RunID),
		RollbackID: rollback.ID,
	})

	m.logger.InfoContext(ctx, "Rollback cancelled", "rollback_id", rollback.ID)

	return rollback, nil
}

func (m *Manager) publish(ctx context.Context, rollback *models.Rollback, event eventbus.Event) {
	if m.publisher == nil {
		return
	}

	key := rollback.RunID
	if key == "" {
		key = rollback.ID
	}

	if err := m.publisher.Publish(ctx, key, event); err != nil {
		m.logger.Warn("Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}

func (m *Manager) baseEvent(eventType events.EventType, runID string) events.BaseEvent {
	return events.BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		RunID:     runID,
	}
}
