package models

import "time"

// RollbackStatus represents the lifecycle state of a rollback request.
type RollbackStatus string

const (
	RollbackStatusRequested RollbackStatus = "requested"
	RollbackStatusApplied   RollbackStatus = "applied"
	RollbackStatusCancelled RollbackStatus = "cancelled"
)

// Rollback is a tracked request to restore a snapshot. It transitions
// independently of the run and snapshot that spawned it so it can be reviewed
// and approved asynchronously. Valid transitions are requested->applied and
// requested->cancelled; both end states are terminal.
type Rollback struct {
	ID         string         `json:"id"`
	SnapshotID string         `json:"snapshot_id" validate:"required"`
	RunID      string         `json:"run_id,omitempty"`
	Status     RollbackStatus `json:"status"`
	Note       string         `json:"note,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Terminal reports whether the rollback can no longer transition.
func (r *Rollback) Terminal() bool {
	return r.Status == RollbackStatusApplied || r.Status == RollbackStatusCancelled
}
