// Package file implements persistence on top of a directory of JSON
// documents. It is the default backend for local development and tests.
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/datapilot/datapilot/pkg/persistence"
)

type FilePersistence struct {
	root string

	runs      *RunRepository
	snapshots *SnapshotRepository
	rollbacks *RollbackRepository
}

// NewFilePersistence creates the backing directories under root and returns
// the persistence facade.
func NewFilePersistence(root string) (*FilePersistence, error) {
	for _, dir := range []string{"runs", "snapshots", "rollbacks"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0750); err != nil {
			return nil, fmt.Errorf("failed to create storage directory %s: %w", dir, err)
		}
	}

	return &FilePersistence{
		root:      root,
		runs:      &RunRepository{dir: filepath.Join(root, "runs")},
		snapshots: &SnapshotRepository{dir: filepath.Join(root, "snapshots")},
		rollbacks: &RollbackRepository{dir: filepath.Join(root, "rollbacks")},
	}, nil
}

func (p *FilePersistence) RunRepository() persistence.RunRepository {
	return p.runs
}

func (p *FilePersistence) SnapshotRepository() persistence.SnapshotRepository {
	return p.snapshots
}

func (p *FilePersistence) RollbackRepository() persistence.RollbackRepository {
	return p.rollbacks
}

func (p *FilePersistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); err != nil {
		return fmt.Errorf("storage root unavailable: %w", err)
	}

	return nil
}

func (p *FilePersistence) Close(_ context.Context) error {
	return nil
}
