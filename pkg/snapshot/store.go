// Package snapshot implements capture and restore of mutable targets.
//
// A capture records the full pre-state of a target just before a destructive
// step applies, or on explicit request. Restores are conservative: the live
// target must still be on the known checksum lineage for the restore to
// proceed, otherwise the caller has to force it.
package snapshot

import (
	"archive/tar"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/datapilot/datapilot/pkg/locker"
	"github.com/datapilot/datapilot/pkg/models"
	"github.com/datapilot/datapilot/pkg/persistence"
)

// ErrTargetConflict indicates the live target has diverged from the captured
// lineage and a restore would clobber an unrelated modification.
var ErrTargetConflict = errors.New("target modified outside of captured lineage")

// checksumAbsent is the lineage marker for a target that does not exist.
const checksumAbsent = "absent"

// CaptureRequest describes one capture. RunID and StepID are empty for
// user-requested snapshots.
type CaptureRequest struct {
	RunID      string
	StepID     string
	Kind       models.SnapshotKind
	TargetPath string
}

// Store owns the snapshot blobs on disk and their records in the repository.
// All capture/restore operations on the same target are serialized through
// the target locker.
type Store struct {
	logger  *slog.Logger
	repo    persistence.SnapshotRepository
	locker  locker.TargetLocker
	dir     string
	lineage *lineageLedger
}

func NewStore(logger *slog.Logger, repo persistence.SnapshotRepository, targetLocker locker.TargetLocker, dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	ledger, err := openLineageLedger(filepath.Join(dir, "lineage.json"))
	if err != nil {
		return nil, err
	}

	return &Store{
		logger:  logger.With("module", "snapshot_store"),
		repo:    repo,
		locker:  targetLocker,
		dir:     dir,
		lineage: ledger,
	}, nil
}

// LockTarget serializes capture, restore and destructive applies on a target.
// Callers holding the returned release use the *Locked variants so a whole
// capture-mutate-record sequence stays atomic with respect to restores.
func (s *Store) LockTarget(ctx context.Context, targetPath string) (func(), error) {
	release, err := s.locker.Lock(ctx, targetPath)
	if err != nil {
		return nil, fmt.Errorf("failed to lock target %s: %w", targetPath, err)
	}

	return release, nil
}

// Capture reads the current state of the target and stores a full copy. It is
// idempotent per (run, step, target): a repeated capture for the same triple
// returns the existing snapshot instead of writing a second one.
func (s *Store) Capture(ctx context.Context, req CaptureRequest) (*models.Snapshot, error) {
	release, err := s.LockTarget(ctx, req.TargetPath)
	if err != nil {
		return nil, err
	}
	defer release()

	return s.CaptureLocked(ctx, req)
}

// CaptureLocked is Capture for a caller that already holds the target lock.
func (s *Store) CaptureLocked(ctx context.Context, req CaptureRequest) (*models.Snapshot, error) {
	if req.StepID != "" {
		existing, err := s.repo.FindByStepTarget(ctx, req.RunID, req.StepID, req.TargetPath)
		if err == nil {
			return existing, nil
		}

		if !persistence.IsSnapshotNotFound(err) {
			return nil, err
		}
	}

	snapshot := &models.Snapshot{
		ID:         uuid.New().String(),
		RunID:      req.RunID,
		StepID:     req.StepID,
		Kind:       req.Kind,
		TargetPath: req.TargetPath,
		CreatedAt:  time.Now().UTC(),
		Details:    map[string]any{},
	}

	info, statErr := os.Stat(req.TargetPath)

	switch {
	case statErr == nil:
		var (
			data []byte
			err  error
		)

		if info.IsDir() {
			// Workspace subtrees are archived whole; the archive is
			// deterministic so the checksum identifies the subtree content.
			data, err = archiveDir(req.TargetPath)
			snapshot.Details["directory"] = true
		} else {
			data, err = os.ReadFile(req.TargetPath)
		}

		if err != nil {
			return nil, fmt.Errorf("failed to read target %s: %w", req.TargetPath, err)
		}

		sum := sha256.Sum256(data)
		snapshot.Checksum = hex.EncodeToString(sum[:])
		snapshot.SizeBytes = int64(len(data))
		snapshot.StoredPath = filepath.Join(s.dir, snapshot.ID+".blob")
		snapshot.Details["existed"] = true

		if err := os.WriteFile(snapshot.StoredPath, data, 0600); err != nil {
			return nil, fmt.Errorf("failed to store snapshot blob: %w", err)
		}
	case errors.Is(statErr, fs.ErrNotExist):
		// Capturing an absent target records its absence so a restore can
		// delete whatever the step created.
		snapshot.Checksum = checksumAbsent
		snapshot.Details["existed"] = false
	default:
		return nil, fmt.Errorf("failed to read target %s: %w", req.TargetPath, statErr)
	}

	if err := s.repo.Save(ctx, snapshot); err != nil {
		return nil, err
	}

	if err := s.lineage.record(req.TargetPath, snapshot.Checksum); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Captured snapshot",
		"snapshot_id", snapshot.ID, "target", req.TargetPath, "size_bytes", snapshot.SizeBytes)

	return snapshot, nil
}

// RecordMutation adds the target's current checksum to the lineage. The
// executor calls it after a destructive apply so the post-mutation state is a
// known restore point ancestor.
func (s *Store) RecordMutation(ctx context.Context, targetPath string) error {
	release, err := s.LockTarget(ctx, targetPath)
	if err != nil {
		return err
	}
	defer release()

	return s.RecordMutationLocked(ctx, targetPath)
}

// RecordMutationLocked is RecordMutation for a caller that already holds the
// target lock.
func (s *Store) RecordMutationLocked(_ context.Context, targetPath string) error {
	checksum, err := checksumOf(targetPath)
	if err != nil {
		return err
	}

	return s.lineage.record(targetPath, checksum)
}

// Restore writes the captured state back to the target. Without force it
// fails with ErrTargetConflict when the live target is not on the captured
// lineage, meaning something outside the orchestrator modified it since.
func (s *Store) Restore(ctx context.Context, snapshotID string, force bool) (*models.RestoreResult, error) {
	snapshot, err := s.repo.GetByID(ctx, snapshotID)
	if err != nil {
		return nil, err
	}

	release, err := s.LockTarget(ctx, snapshot.TargetPath)
	if err != nil {
		return nil, err
	}
	defer release()

	if !force {
		current, err := checksumOf(snapshot.TargetPath)
		if err != nil {
			return nil, err
		}

		if !s.lineage.contains(snapshot.TargetPath, current) {
			return nil, fmt.Errorf("cannot restore snapshot %s to %s: %w",
				snapshot.ID, snapshot.TargetPath, ErrTargetConflict)
		}
	}

	result := &models.RestoreResult{
		SnapshotID: snapshot.ID,
		TargetPath: snapshot.TargetPath,
		Forced:     force,
	}

	isDir, _ := snapshot.Details["directory"].(bool)

	switch {
	case snapshot.Checksum == checksumAbsent:
		if err := os.RemoveAll(snapshot.TargetPath); err != nil {
			return nil, fmt.Errorf("failed to remove target %s: %w", snapshot.TargetPath, err)
		}
	case isDir:
		data, err := os.ReadFile(snapshot.StoredPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read snapshot blob %s: %w", snapshot.StoredPath, err)
		}

		// Files created after the capture must not survive the restore, so
		// the live subtree is replaced, not merged.
		if err := os.RemoveAll(snapshot.TargetPath); err != nil {
			return nil, fmt.Errorf("failed to remove target %s: %w", snapshot.TargetPath, err)
		}

		if err := extractDir(snapshot.TargetPath, data); err != nil {
			return nil, fmt.Errorf("failed to extract snapshot into %s: %w", snapshot.TargetPath, err)
		}

		result.BytesRestored = int64(len(data))
	default:
		data, err := os.ReadFile(snapshot.StoredPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read snapshot blob %s: %w", snapshot.StoredPath, err)
		}

		if err := os.MkdirAll(filepath.Dir(snapshot.TargetPath), 0750); err != nil {
			return nil, fmt.Errorf("failed to create target directory: %w", err)
		}

		if err := os.WriteFile(snapshot.TargetPath, data, 0600); err != nil {
			return nil, fmt.Errorf("failed to write target %s: %w", snapshot.TargetPath, err)
		}

		result.BytesRestored = int64(len(data))
	}

	if err := s.lineage.record(snapshot.TargetPath, snapshot.Checksum); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Restored snapshot",
		"snapshot_id", snapshot.ID, "target", snapshot.TargetPath, "forced", force)

	return result, nil
}

func checksumOf(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return checksumAbsent, nil
		}

		return "", fmt.Errorf("failed to read target %s: %w", path, err)
	}

	var data []byte

	if info.IsDir() {
		data, err = archiveDir(path)
	} else {
		data, err = os.ReadFile(path)
	}

	if err != nil {
		return "", fmt.Errorf("failed to read target %s: %w", path, err)
	}

	sum := sha256.Sum256(data)

	return hex.EncodeToString(sum[:]), nil
}

// archiveDir serializes a directory subtree into a tar with fixed header
// fields and lexical walk order, so identical content always produces
// identical bytes and therefore an identical checksum.
func archiveDir(root string) ([]byte, error) {
	var buf bytes.Buffer

	tw := tar.NewWriter(&buf)

	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		if rel == "." {
			return nil
		}

		name := filepath.ToSlash(rel)

		if entry.IsDir() {
			return tw.WriteHeader(&tar.Header{Name: name + "/", Typeflag: tar.TypeDir, Mode: 0750})
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		header := &tar.Header{Name: name, Typeflag: tar.TypeReg, Mode: 0600, Size: int64(len(data))}
		if err := tw.WriteHeader(header); err != nil {
			return err
		}

		_, err = tw.Write(data)

		return err
	})
	if err != nil {
		return nil, err
	}

	if err := tw.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func extractDir(root string, data []byte) error {
	if err := os.MkdirAll(root, 0750); err != nil {
		return err
	}

	reader := tar.NewReader(bytes.NewReader(data))

	for {
		header, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return err
		}

		name := strings.TrimSuffix(header.Name, "/")
		if !filepath.IsLocal(filepath.FromSlash(name)) {
			return fmt.Errorf("archive entry escapes target: %s", header.Name)
		}

		path := filepath.Join(root, filepath.FromSlash(name))

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(path, 0750); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
				return err
			}

			content, err := io.ReadAll(reader)
			if err != nil {
				return err
			}

			if err := os.WriteFile(path, content, 0600); err != nil {
				return err
			}
		}
	}

	return nil
}
