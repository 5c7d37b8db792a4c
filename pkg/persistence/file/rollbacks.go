package file

import (
	"context"
	"sort"

	"github.com/datapilot/datapilot/pkg/models"
	"github.com/datapilot/datapilot/pkg/persistence"
)

type RollbackRepository struct {
	documentStore
	dir string
}

func (r *RollbackRepository) Save(_ context.Context, rollback *models.Rollback) error {
	if err := r.write(r.dir, rollback.ID, rollback); err != nil {
		return persistence.NewStoreError("Save", "rollback", rollback.ID, err)
	}

	return nil
}

func (r *RollbackRepository) GetByID(_ context.Context, id string) (*models.Rollback, error) {
	var rollback models.Rollback

	found, err := r.read(r.dir, id, &rollback)
	if err != nil {
		return nil, persistence.NewStoreError("GetByID", "rollback", id, err)
	}

	if !found {
		return nil, persistence.NewStoreError("GetByID", "rollback", id, persistence.ErrRollbackNotFound)
	}

	return &rollback, nil
}

func (r *RollbackRepository) List(ctx context.Context, opts persistence.ListOptions) ([]*models.Rollback, int64, error) {
	ids, err := r.ids(r.dir)
	if err != nil {
		return nil, 0, persistence.NewStoreError("List", "rollback", "", err)
	}

	rollbacks := make([]*models.Rollback, 0, len(ids))

	for _, id := range ids {
		rollback, err := r.GetByID(ctx, id)
		if err != nil {
			if persistence.IsRollbackNotFound(err) {
				continue
			}

			return nil, 0, err
		}

		if opts.RunID != "" && rollback.RunID != opts.RunID {
			continue
		}

		if opts.Status != "" && string(rollback.Status) != opts.Status {
			continue
		}

		rollbacks = append(rollbacks, rollback)
	}

	sort.Slice(rollbacks, func(i, j int) bool {
		return rollbacks[i].CreatedAt.After(rollbacks[j].CreatedAt)
	})

	total := int64(len(rollbacks))

	return paginate(rollbacks, opts.Limit, opts.Offset), total, nil
}
