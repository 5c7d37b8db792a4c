// Package web provides HTTP request and response types for the run API.
package web

import "github.com/datapilot/datapilot/pkg/models"

// StartRunRequest represents the request body for starting a run. Either a
// full plan or an objective for the planner must be given.
type StartRunRequest struct {
	Plan      *models.Plan `json:"plan,omitempty"`
	Objective string       `json:"objective,omitempty" validate:"omitempty,min=3"`
	SafeMode  *bool        `json:"safe_mode,omitempty"`
}

// ApproveStepRequest represents the request body for approving a gated step.
type ApproveStepRequest struct {
	ApprovedBy string `json:"approved_by" validate:"required"`
	Note       string `json:"note,omitempty"`
}

// CreateSnapshotRequest represents the request body for a user-requested
// capture.
type CreateSnapshotRequest struct {
	TargetPath string              `json:"target_path" validate:"required"`
	Kind       models.SnapshotKind `json:"kind,omitempty"`
	RunID      string              `json:"run_id,omitempty"`
}

// CreateRollbackRequest represents the request body for requesting a
// rollback.
type CreateRollbackRequest struct {
	SnapshotID string `json:"snapshot_id" validate:"required"`
	RunID      string `json:"run_id,omitempty"`
	Note       string `json:"note,omitempty"`
}

// ApplyRollbackRequest represents the request body for applying a rollback.
type ApplyRollbackRequest struct {
	Force bool `json:"force,omitempty"`
}

// RunResponse decorates a run with its derived completion percentage.
type RunResponse struct {
	*models.Run

	CompletionPercent float64 `json:"completion_percent"`
}

// TransformRunResponse builds the API shape for a run.
func TransformRunResponse(run *models.Run) RunResponse {
	return RunResponse{
		Run:               run,
		CompletionPercent: run.CompletionPercent(),
	}
}
