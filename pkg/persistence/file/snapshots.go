package file

import (
	"context"
	"sort"
	"time"

	"github.com/datapilot/datapilot/pkg/models"
	"github.com/datapilot/datapilot/pkg/persistence"
)

type SnapshotRepository struct {
	documentStore
	dir string
}

func (r *SnapshotRepository) Save(_ context.Context, snapshot *models.Snapshot) error {
	if err := r.write(r.dir, snapshot.ID, snapshot); err != nil {
		return persistence.NewStoreError("Save", "snapshot", snapshot.ID, err)
	}

	return nil
}

func (r *SnapshotRepository) GetByID(_ context.Context, id string) (*models.Snapshot, error) {
	var snapshot models.Snapshot

	found, err := r.read(r.dir, id, &snapshot)
	if err != nil {
		return nil, persistence.NewStoreError("GetByID", "snapshot", id, err)
	}

	if !found {
		return nil, persistence.NewStoreError("GetByID", "snapshot", id, persistence.ErrSnapshotNotFound)
	}

	return &snapshot, nil
}

func (r *SnapshotRepository) FindByStepTarget(ctx context.Context, runID, stepID, targetPath string) (*models.Snapshot, error) {
	snapshots, _, err := r.List(ctx, persistence.ListOptions{RunID: runID})
	if err != nil {
		return nil, err
	}

	for _, snapshot := range snapshots {
		if snapshot.StepID == stepID && snapshot.TargetPath == targetPath {
			return snapshot, nil
		}
	}

	return nil, persistence.NewStoreError("FindByStepTarget", "snapshot", stepID, persistence.ErrSnapshotNotFound)
}

func (r *SnapshotRepository) List(ctx context.Context, opts persistence.ListOptions) ([]*models.Snapshot, int64, error) {
	ids, err := r.ids(r.dir)
	if err != nil {
		return nil, 0, persistence.NewStoreError("List", "snapshot", "", err)
	}

	snapshots := make([]*models.Snapshot, 0, len(ids))

	for _, id := range ids {
		snapshot, err := r.GetByID(ctx, id)
		if err != nil {
			if persistence.IsSnapshotNotFound(err) {
				continue
			}

			return nil, 0, err
		}

		if opts.RunID != "" && snapshot.RunID != opts.RunID {
			continue
		}

		snapshots = append(snapshots, snapshot)
	}

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].CreatedAt.After(snapshots[j].CreatedAt)
	})

	total := int64(len(snapshots))

	return paginate(snapshots, opts.Limit, opts.Offset), total, nil
}

func (r *SnapshotRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	snapshots, _, err := r.List(ctx, persistence.ListOptions{})
	if err != nil {
		return 0, err
	}

	deleted := 0

	for _, snapshot := range snapshots {
		if !snapshot.CreatedAt.Before(cutoff) {
			continue
		}

		if err := r.remove(r.dir, snapshot.ID); err != nil {
			return deleted, persistence.NewStoreError("DeleteOlderThan", "snapshot", snapshot.ID, err)
		}

		deleted++
	}

	return deleted, nil
}
