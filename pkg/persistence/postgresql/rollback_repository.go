package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/datapilot/datapilot/pkg/models"
	"github.com/datapilot/datapilot/pkg/persistence"
)

type RollbackRepository struct {
	db *sql.DB
}

func (r *RollbackRepository) Save(ctx context.Context, rollback *models.Rollback) error {
	query := `
		INSERT INTO rollbacks (id, snapshot_id, run_id, status, note, created_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			note = EXCLUDED.note
	`

	_, err := r.db.ExecContext(ctx, query,
		rollback.ID, rollback.SnapshotID, rollback.RunID, rollback.Status, rollback.Note, rollback.CreatedAt)
	if err != nil {
		return persistence.NewStoreError("Save", "rollback", rollback.ID, err)
	}

	return nil
}

func (r *RollbackRepository) GetByID(ctx context.Context, id string) (*models.Rollback, error) {
	query := selectRollback + ` WHERE id = $1`

	rollback, err := scanRollback(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("GetByID", "rollback", id, persistence.ErrRollbackNotFound)
		}

		return nil, persistence.NewStoreError("GetByID", "rollback", id, err)
	}

	return rollback, nil
}

func (r *RollbackRepository) List(ctx context.Context, opts persistence.ListOptions) ([]*models.Rollback, int64, error) {
	where := ""
	args := []any{}

	if opts.RunID != "" {
		args = append(args, opts.RunID)
		where = fmt.Sprintf(" WHERE run_id = $%d", len(args))
	}

	if opts.Status != "" {
		args = append(args, opts.Status)

		if where == "" {
			where = fmt.Sprintf(" WHERE status = $%d", len(args))
		} else {
			where += fmt.Sprintf(" AND status = $%d", len(args))
		}
	}

	var total int64

	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM rollbacks"+where, args...).Scan(&total)
	if err != nil {
		return nil, 0, persistence.NewStoreError("List", "rollback", "", err)
	}

	query := fmt.Sprintf("%s%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		selectRollback, where, len(args)+1, len(args)+2)
	args = append(args, normalizeLimit(opts.Limit), opts.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, persistence.NewStoreError("List", "rollback", "", err)
	}
	defer rows.Close()

	rollbacks := []*models.Rollback{}

	for rows.Next() {
		rollback, err := scanRollback(rows)
		if err != nil {
			return nil, 0, persistence.NewStoreError("List", "rollback", "", err)
		}

		rollbacks = append(rollbacks, rollback)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, persistence.NewStoreError("List", "rollback", "", err)
	}

	return rollbacks, total, nil
}

const selectRollback = `SELECT id, snapshot_id, COALESCE(run_id::text, ''), status, COALESCE(note, ''), created_at FROM rollbacks`

func scanRollback(row rowScanner) (*models.Rollback, error) {
	var rollback models.Rollback

	err := row.Scan(&rollback.ID, &rollback.SnapshotID, &rollback.RunID, &rollback.Status, &rollback.Note, &rollback.CreatedAt)
	if err != nil {
		return nil, err
	}

	return &rollback, nil
}
