package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/datapilot/datapilot/pkg/models"
	"github.com/datapilot/datapilot/pkg/persistence"
)

type RunRepository struct {
	db *sql.DB
}

func (r *RunRepository) Save(ctx context.Context, run *models.Run) error {
	planJSON, err := json.Marshal(run.Plan)
	if err != nil {
		return persistence.NewStoreError("Save", "run", run.ID, fmt.Errorf("failed to marshal plan: %w", err))
	}

	logJSON, err := json.Marshal(run.Log)
	if err != nil {
		return persistence.NewStoreError("Save", "run", run.ID, fmt.Errorf("failed to marshal log: %w", err))
	}

	query := `
		INSERT INTO runs (id, status, safe_mode, plan, log, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			log = EXCLUDED.log
	`

	_, err = r.db.ExecContext(ctx, query, run.ID, run.Status, run.SafeMode, planJSON, logJSON, run.CreatedAt)
	if err != nil {
		return persistence.NewStoreError("Save", "run", run.ID, err)
	}

	return nil
}

func (r *RunRepository) GetByID(ctx context.Context, id string) (*models.Run, error) {
	query := `SELECT id, status, safe_mode, plan, log, created_at FROM runs WHERE id = $1`

	run, err := scanRun(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("GetByID", "run", id, persistence.ErrRunNotFound)
		}

		return nil, persistence.NewStoreError("GetByID", "run", id, err)
	}

	return run, nil
}

func (r *RunRepository) List(ctx context.Context, opts persistence.ListOptions) ([]*models.Run, int64, error) {
	where := ""
	args := []any{}

	if opts.Status != "" {
		where = " WHERE status = $1"
		args = append(args, opts.Status)
	}

	var total int64

	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs"+where, args...).Scan(&total)
	if err != nil {
		return nil, 0, persistence.NewStoreError("List", "run", "", err)
	}

	query := fmt.Sprintf(
		"SELECT id, status, safe_mode, plan, log, created_at FROM runs%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		where, len(args)+1, len(args)+2,
	)
	args = append(args, normalizeLimit(opts.Limit), opts.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, persistence.NewStoreError("List", "run", "", err)
	}
	defer rows.Close()

	runs := []*models.Run{}

	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, persistence.NewStoreError("List", "run", "", err)
		}

		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, persistence.NewStoreError("List", "run", "", err)
	}

	return runs, total, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*models.Run, error) {
	var (
		run      models.Run
		planJSON []byte
		logJSON  []byte
	)

	err := row.Scan(&run.ID, &run.Status, &run.SafeMode, &planJSON, &logJSON, &run.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(planJSON, &run.Plan); err != nil {
		return nil, fmt.Errorf("failed to unmarshal plan: %w", err)
	}

	if err := json.Unmarshal(logJSON, &run.Log); err != nil {
		return nil, fmt.Errorf("failed to unmarshal log: %w", err)
	}

	return &run, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 50
	}

	return limit
}
