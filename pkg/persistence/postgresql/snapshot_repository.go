package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/datapilot/datapilot/pkg/models"
	"github.com/datapilot/datapilot/pkg/persistence"
)

type SnapshotRepository struct {
	db *sql.DB
}

func (r *SnapshotRepository) Save(ctx context.Context, snapshot *models.Snapshot) error {
	detailsJSON, err := json.Marshal(snapshot.Details)
	if err != nil {
		return persistence.NewStoreError("Save", "snapshot", snapshot.ID, fmt.Errorf("failed to marshal details: %w", err))
	}

	query := `
		INSERT INTO snapshots (id, run_id, step_id, kind, target_path, checksum, size_bytes, stored_path, details, created_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = r.db.ExecContext(ctx, query,
		snapshot.ID, snapshot.RunID, snapshot.StepID, snapshot.Kind, snapshot.TargetPath,
		snapshot.Checksum, snapshot.SizeBytes, snapshot.StoredPath, detailsJSON, snapshot.CreatedAt)
	if err != nil {
		return persistence.NewStoreError("Save", "snapshot", snapshot.ID, err)
	}

	return nil
}

func (r *SnapshotRepository) GetByID(ctx context.Context, id string) (*models.Snapshot, error) {
	query := selectSnapshot + ` WHERE id = $1`

	snapshot, err := scanSnapshot(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("GetByID", "snapshot", id, persistence.ErrSnapshotNotFound)
		}

		return nil, persistence.NewStoreError("GetByID", "snapshot", id, err)
	}

	return snapshot, nil
}

func (r *SnapshotRepository) FindByStepTarget(ctx context.Context, runID, stepID, targetPath string) (*models.Snapshot, error) {
	query := selectSnapshot + ` WHERE run_id = $1 AND step_id = $2 AND target_path = $3 ORDER BY created_at DESC LIMIT 1`

	snapshot, err := scanSnapshot(r.db.QueryRowContext(ctx, query, runID, stepID, targetPath))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("FindByStepTarget", "snapshot", stepID, persistence.ErrSnapshotNotFound)
		}

		return nil, persistence.NewStoreError("FindByStepTarget", "snapshot", stepID, err)
	}

	return snapshot, nil
}

func (r *SnapshotRepository) List(ctx context.Context, opts persistence.ListOptions) ([]*models.Snapshot, int64, error) {
	where := ""
	args := []any{}

	if opts.RunID != "" {
		where = " WHERE run_id = $1"
		args = append(args, opts.RunID)
	}

	var total int64

	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM snapshots"+where, args...).Scan(&total)
	if err != nil {
		return nil, 0, persistence.NewStoreError("List", "snapshot", "", err)
	}

	query := fmt.Sprintf("%s%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		selectSnapshot, where, len(args)+1, len(args)+2)
	args = append(args, normalizeLimit(opts.Limit), opts.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, persistence.NewStoreError("List", "snapshot", "", err)
	}
	defer rows.Close()

	snapshots := []*models.Snapshot{}

	for rows.Next() {
		snapshot, err := scanSnapshot(rows)
		if err != nil {
			return nil, 0, persistence.NewStoreError("List", "snapshot", "", err)
		}

		snapshots = append(snapshots, snapshot)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, persistence.NewStoreError("List", "snapshot", "", err)
	}

	return snapshots, total, nil
}

func (r *SnapshotRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM snapshots WHERE created_at < $1", cutoff)
	if err != nil {
		return 0, persistence.NewStoreError("DeleteOlderThan", "snapshot", "", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, persistence.NewStoreError("DeleteOlderThan", "snapshot", "", err)
	}

	return int(deleted), nil
}

const selectSnapshot = `SELECT id, COALESCE(run_id::text, ''), step_id, kind, target_path, checksum, size_bytes, stored_path, details, created_at FROM snapshots`

func scanSnapshot(row rowScanner) (*models.Snapshot, error) {
	var (
		snapshot    models.Snapshot
		detailsJSON []byte
	)

	err := row.Scan(&snapshot.ID, &snapshot.RunID, &snapshot.StepID, &snapshot.Kind, &snapshot.TargetPath,
		&snapshot.Checksum, &snapshot.SizeBytes, &snapshot.StoredPath, &detailsJSON, &snapshot.CreatedAt)
	if err != nil {
		return nil, err
	}

	if len(detailsJSON) > 0 {
		if err := json.Unmarshal(detailsJSON, &snapshot.Details); err != nil {
			return nil, fmt.Errorf("failed to unmarshal details: %w", err)
		}
	}

	return &snapshot, nil
}
