package models

import "time"

// SnapshotKind discriminates the type of captured state.
type SnapshotKind string

const (
	SnapshotKindFile      SnapshotKind = "file"
	SnapshotKindDataset   SnapshotKind = "dataset"
	SnapshotKindWorkspace SnapshotKind = "workspace"
)

// Snapshot is the immutable captured pre-state of a mutable target. It is
// written exactly once, just before a destructive step applies, or on
// explicit request; a restore reads it but never rewrites it.
type Snapshot struct {
	ID         string         `json:"id"`
	RunID      string         `json:"run_id,omitempty"`
	StepID     string         `json:"step_id,omitempty"`
	Kind       SnapshotKind   `json:"kind"`
	TargetPath string         `json:"target_path"`
	Checksum   string         `json:"checksum"`
	SizeBytes  int64          `json:"size_bytes"`
	StoredPath string         `json:"stored_path"`
	CreatedAt  time.Time      `json:"created_at"`
	Details    map[string]any `json:"details,omitempty"`
}

// RestoreResult reports the outcome of writing a snapshot back to its target.
type RestoreResult struct {
	SnapshotID    string `json:"snapshot_id"`
	TargetPath    string `json:"target_path"`
	BytesRestored int64  `json:"bytes_restored"`
	Forced        bool   `json:"forced"`
}
