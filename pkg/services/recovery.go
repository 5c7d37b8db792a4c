package services

import (
	"context"
	"fmt"

	"github.com/datapilot/datapilot/pkg/models"
	"github.com/datapilot/datapilot/pkg/persistence"
	"github.com/datapilot/datapilot/pkg/rollback"
	"github.com/datapilot/datapilot/pkg/snapshot"
)

// Recovery is the service behind the snapshot and rollback API operations.
type Recovery struct {
	persistence persistence.Persistence
	snapshots   *snapshot.Store
	rollbacks   *rollback.Manager
}

func NewRecovery(p persistence.Persistence, snapshots *snapshot.Store, rollbacks *rollback.Manager) *Recovery {
	return &Recovery{
		persistence: p,
		snapshots:   snapshots,
		rollbacks:   rollbacks,
	}
}

// CaptureSnapshotRequest describes a user-requested capture, detached from
// any run step.
type CaptureSnapshotRequest struct {
	RunID      string
	Kind       models.SnapshotKind
	TargetPath string
}

func (s *Recovery) CaptureSnapshot(ctx context.Context, req CaptureSnapshotRequest) (*models.Snapshot, error) {
	if req.TargetPath == "" {
		return nil, NewValidationError("CaptureSnapshot", "TARGET_REQUIRED",
			"target path is required", ErrEmptyTarget)
	}

	if req.Kind == "" {
		req.Kind = models.SnapshotKindFile
	}

	return s.snapshots.Capture(ctx, snapshot.CaptureRequest{
		RunID:      req.RunID,
		Kind:       req.Kind,
		TargetPath: req.TargetPath,
	})
}

func (s *Recovery) GetSnapshot(ctx context.Context, snapshotID string) (*models.Snapshot, error) {
	return s.persistence.SnapshotRepository().GetByID(ctx, snapshotID)
}

// ListSnapshotsRequest contains options for listing snapshots.
type ListSnapshotsRequest struct {
	Limit  int
	Offset int
	RunID  string
}

// ListSnapshotsResponse contains the result of listing snapshots.
type ListSnapshotsResponse struct {
	Snapshots   []*models.Snapshot `json:"snapshots"`
	TotalCount  int64              `json:"total_count"`
	HasNextPage bool               `json:"has_next_page"`
}

func (s *Recovery) ListSnapshots(ctx context.Context, req ListSnapshotsRequest) (*ListSnapshotsResponse, error) {
	normalizePagination(&req.Limit, &req.Offset)

	snapshots, total, err := s.persistence.SnapshotRepository().List(ctx, persistence.ListOptions{
		Limit:  req.Limit,
		Offset: req.Offset,
		RunID:  req.RunID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	return &ListSnapshotsResponse{
		Snapshots:   snapshots,
		TotalCount:  total,
		HasNextPage: int64(req.Offset+len(snapshots)) < total,
	}, nil
}

// RequestRollback creates a rollback in requested status.
func (s *Recovery) RequestRollback(ctx context.Context, snapshotID, runID, note string) (*models.Rollback, error) {
	if snapshotID == "" {
		return nil, NewValidationError("RequestRollback", "SNAPSHOT_REQUIRED",
			"snapshot ID is required", ErrEmptySnapshot)
	}

	// The snapshot must exist before a rollback can reference it.
	if _, err := s.persistence.SnapshotRepository().GetByID(ctx, snapshotID); err != nil {
		return nil, err
	}

	return s.rollbacks.Request(ctx, snapshotID, runID, note)
}

// ApplyRollback restores the referenced snapshot and returns the applied
// rollback. On restore failure the rollback stays requested.
func (s *Recovery) ApplyRollback(ctx context.Context, rollbackID string, force bool) (*models.Rollback, *models.RestoreResult, error) {
	result, err := s.rollbacks.Apply(ctx, rollbackID, force)
	if err != nil {
		return nil, nil, err
	}

	applied, err := s.persistence.RollbackRepository().GetByID(ctx, rollbackID)
	if err != nil {
		return nil, nil, err
	}

	return applied, result, nil
}

func (s *Recovery) CancelRollback(ctx context.Context, rollbackID string) (*models.Rollback, error) {
	return s.rollbacks.Cancel(ctx, rollbackID)
}

func (s *Recovery) GetRollback(ctx context.Context, rollbackID string) (*models.Rollback, error) {
	return s.persistence.RollbackRepository().GetByID(ctx, rollbackID)
}

// ListRollbacksRequest contains options for listing rollbacks.
type ListRollbacksRequest struct {
	Limit  int
	Offset int
	RunID  string
	Status string
}

// ListRollbacksResponse contains the result of listing rollbacks.
type ListRollbacksResponse struct {
	Rollbacks   []*models.Rollback `json:"rollbacks"`
	TotalCount  int64              `json:"total_count"`
	HasNextPage bool               `json:"has_next_page"`
}

func (s *Recovery) ListRollbacks(ctx context.Context, req ListRollbacksRequest) (*ListRollbacksResponse, error) {
	normalizePagination(&req.Limit, &req.Offset)

	rollbacks, total, err := s.persistence.RollbackRepository().List(ctx, persistence.ListOptions{
		Limit:  req.Limit,
		Offset: req.Offset,
		RunID:  req.RunID,
		Status: req.Status,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list rollbacks: %w", err)
	}

	return &ListRollbacksResponse{
		Rollbacks:   rollbacks,
		TotalCount:  total,
		HasNextPage: int64(req.Offset+len(rollbacks)) < total,
	}, nil
}
