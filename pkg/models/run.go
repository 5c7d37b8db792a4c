package models

import "time"

// RunStatus represents the lifecycle state of a run.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Run is one execution attempt of a plan. A run owns exactly one plan and
// exclusively owns its log entries; the log only ever grows.
type Run struct {
	ID        string      `json:"id"`
	Plan      *Plan       `json:"plan" validate:"required"`
	Status    RunStatus   `json:"status"`
	SafeMode  bool        `json:"safe_mode"`
	Log       []*LogEntry `json:"log"`
	CreatedAt time.Time   `json:"created_at"`
}

// LatestEntryForStep returns the most recent log entry for a step, or nil.
// The latest entry is the step's current status holder; earlier entries are
// history and are never rewritten.
func (r *Run) LatestEntryForStep(stepID string) *LogEntry {
	for i := len(r.Log) - 1; i >= 0; i-- {
		if r.Log[i].StepID == stepID {
			return r.Log[i]
		}
	}

	return nil
}

// CompletionPercent reports applied steps over total steps. It is derived
// from the log on every call, never stored.
func (r *Run) CompletionPercent() float64 {
	if r.Plan == nil || len(r.Plan.Steps) == 0 {
		return 0
	}

	applied := 0

	for _, step := range r.Plan.Steps {
		entry := r.LatestEntryForStep(step.ID)
		if entry != nil && entry.Status == StepStatusApplied {
			applied++
		}
	}

	return float64(applied) / float64(len(r.Plan.Steps)) * 100
}

// Terminal reports whether the run has reached a terminal status.
func (r *Run) Terminal() bool {
	switch r.Status {
	case RunStatusCompleted, RunStatusFailed, RunStatusCancelled:
		return true
	case RunStatusPending, RunStatusRunning:
		return false
	}

	return false
}
