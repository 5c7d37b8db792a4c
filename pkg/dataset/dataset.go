// Package dataset provides the collaborator contracts for tabular previews
// and run artifacts, plus filesystem-backed implementations.
package dataset

import (
	"context"
)

// Preview is a tabular sample of a dataset, never the full content.
type Preview struct {
	DatasetID string     `json:"dataset_id"`
	Columns   []string   `json:"columns"`
	Rows      [][]string `json:"rows"`
	Truncated bool       `json:"truncated"`
}

// ArtifactMeta describes one stored artifact.
type ArtifactMeta struct {
	ID        string `json:"id"`
	RunID     string `json:"run_id"`
	MimeType  string `json:"mime_type"`
	SizeBytes int64  `json:"size_bytes"`
}

// PreviewProvider samples datasets for inspection steps.
type PreviewProvider interface {
	GetDatasetPreview(ctx context.Context, datasetID string, maxRows int) (*Preview, error)
}

// ArtifactStore persists binary artifacts produced by run steps.
type ArtifactStore interface {
	SaveArtifact(ctx context.Context, runID string, data []byte, mimeType string) (string, error)
	GetArtifact(ctx context.Context, artifactID string) ([]byte, *ArtifactMeta, error)
}
