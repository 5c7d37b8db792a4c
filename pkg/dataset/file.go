package dataset

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/datapilot/datapilot/pkg/workspace"
)

// ErrArtifactNotFound indicates an artifact id with no stored data.
var ErrArtifactNotFound = errors.New("artifact not found")

// FileStore reads CSV datasets out of the workspace and keeps artifacts in a
// flat directory next to it. Dataset ids are workspace-relative paths.
type FileStore struct {
	workspace   *workspace.Workspace
	artifactDir string
}

func NewFileStore(ws *workspace.Workspace, artifactDir string) (*FileStore, error) {
	if err := os.MkdirAll(artifactDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}

	return &FileStore{workspace: ws, artifactDir: artifactDir}, nil
}

func (s *FileStore) GetDatasetPreview(_ context.Context, datasetID string, maxRows int) (*Preview, error) {
	path, err := s.workspace.Validate(datasetID)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset %s: %w", datasetID, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return &Preview{DatasetID: datasetID, Columns: []string{}, Rows: [][]string{}}, nil
		}

		return nil, fmt.Errorf("failed to read dataset header: %w", err)
	}

	preview := &Preview{
		DatasetID: datasetID,
		Columns:   header,
		Rows:      [][]string{},
	}

	for len(preview.Rows) < maxRows {
		row, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return preview, nil
			}

			return nil, fmt.Errorf("failed to read dataset row: %w", err)
		}

		preview.Rows = append(preview.Rows, row)
	}

	// One more read tells us whether the sample is complete.
	if _, err := reader.Read(); err == nil {
		preview.Truncated = true
	}

	return preview, nil
}

func (s *FileStore) SaveArtifact(_ context.Context, runID string, data []byte, mimeType string) (string, error) {
	meta := &ArtifactMeta{
		ID:        uuid.New().String(),
		RunID:     runID,
		MimeType:  mimeType,
		SizeBytes: int64(len(data)),
	}

	if err := os.WriteFile(s.blobPath(meta.ID), data, 0600); err != nil {
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("failed to marshal artifact metadata: %w", err)
	}

	if err := os.WriteFile(s.metaPath(meta.ID), metaJSON, 0600); err != nil {
		return "", fmt.Errorf("failed to write artifact metadata: %w", err)
	}

	return meta.ID, nil
}

func (s *FileStore) GetArtifact(_ context.Context, artifactID string) ([]byte, *ArtifactMeta, error) {
	metaJSON, err := os.ReadFile(s.metaPath(artifactID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, artifactID)
		}

		return nil, nil, fmt.Errorf("failed to read artifact metadata: %w", err)
	}

	var meta ArtifactMeta
	if err := json.Unmarshal(metaJSON, &meta); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal artifact metadata: %w", err)
	}

	data, err := os.ReadFile(s.blobPath(artifactID))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read artifact: %w", err)
	}

	return data, &meta, nil
}

func (s *FileStore) blobPath(id string) string {
	return filepath.Join(s.artifactDir, id+".bin")
}

func (s *FileStore) metaPath(id string) string {
	return filepath.Join(s.artifactDir, id+".json")
}
