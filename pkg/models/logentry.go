package models

import "time"

// StepStatus represents the recorded state of a single step attempt.
type StepStatus string

const (
	StepStatusPending  StepStatus = "pending"
	StepStatusApproved StepStatus = "approved"
	StepStatusApplied  StepStatus = "applied"
	StepStatusFailed   StepStatus = "failed"
	StepStatusSkipped  StepStatus = "skipped"
)

// Approval records a single human sign-off on a gated step. Approvals
// accumulate; they are never replaced or removed.
type Approval struct {
	ApprovedBy string    `json:"approved_by" validate:"required"`
	ApprovedAt time.Time `json:"approved_at"`
	Note       string    `json:"note,omitempty"`
}

// LogEntry is one recorded attempt of a step. Entries are immutable once
// appended to a run's journal; re-execution appends a new entry rather than
// mutating a previous one, so the journal is a full audit timeline.
type LogEntry struct {
	ID        string         `json:"id"`
	Seq       uint64         `json:"seq"`
	StepID    string         `json:"step_id"`
	Tool      string         `json:"tool,omitempty"`
	Status    StepStatus     `json:"status"`
	Args      map[string]any `json:"args,omitempty"`
	Output    map[string]any `json:"output,omitempty"`
	Artifacts []string       `json:"artifacts,omitempty"`
	Diff      string         `json:"diff,omitempty"`
	Approvals []Approval     `json:"approvals,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// ToolResult is the uniform output of a tool invocation.
type ToolResult struct {
	Output    map[string]any `json:"output,omitempty"`
	Artifacts []string       `json:"artifacts,omitempty"`
	Diff      string         `json:"diff,omitempty"`
}

// ExecutionContext carries the identity of the run and step a tool is being
// invoked for, plus whether the invocation is a dry run.
type ExecutionContext struct {
	RunID  string `json:"run_id"`
	StepID string `json:"step_id"`
	DryRun bool   `json:"dry_run"`
}
