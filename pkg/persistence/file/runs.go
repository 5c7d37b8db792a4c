package file

import (
	"context"
	"sort"

	"github.com/datapilot/datapilot/pkg/models"
	"github.com/datapilot/datapilot/pkg/persistence"
)

type RunRepository struct {
	documentStore
	dir string
}

func (r *RunRepository) Save(_ context.Context, run *models.Run) error {
	if err := r.write(r.dir, run.ID, run); err != nil {
		return persistence.NewStoreError("Save", "run", run.ID, err)
	}

	return nil
}

func (r *RunRepository) GetByID(_ context.Context, id string) (*models.Run, error) {
	var run models.Run

	found, err := r.read(r.dir, id, &run)
	if err != nil {
		return nil, persistence.NewStoreError("GetByID", "run", id, err)
	}

	if !found {
		return nil, persistence.NewStoreError("GetByID", "run", id, persistence.ErrRunNotFound)
	}

	return &run, nil
}

func (r *RunRepository) List(ctx context.Context, opts persistence.ListOptions) ([]*models.Run, int64, error) {
	ids, err := r.ids(r.dir)
	if err != nil {
		return nil, 0, persistence.NewStoreError("List", "run", "", err)
	}

	runs := make([]*models.Run, 0, len(ids))

	for _, id := range ids {
		run, err := r.GetByID(ctx, id)
		if err != nil {
			if persistence.IsRunNotFound(err) {
				continue
			}

			return nil, 0, err
		}

		if opts.Status != "" && string(run.Status) != opts.Status {
			continue
		}

		runs = append(runs, run)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})

	total := int64(len(runs))

	return paginate(runs, opts.Limit, opts.Offset), total, nil
}
