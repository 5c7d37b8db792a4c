// Package workspace is the filesystem abstraction the snapshot store and the
// built-in tools go through. Every path is resolved and checked against the
// configured root allowlist before any read or write.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrPathNotAllowed indicates a path resolved outside the allowed roots.
var ErrPathNotAllowed = errors.New("path not allowed")

type Workspace struct {
	roots []string
}

// New creates a workspace restricted to the given roots. Roots are cleaned to
// absolute paths; a workspace with no roots rejects every path.
func New(roots ...string) (*Workspace, error) {
	cleaned := make([]string, 0, len(roots))

	for _, root := range roots {
		abs, err := filepath.Abs(strings.TrimPrefix(root, "file://"))
		if err != nil {
			return nil, fmt.Errorf("failed to resolve workspace root %s: %w", root, err)
		}

		cleaned = append(cleaned, filepath.Clean(abs))
	}

	return &Workspace{roots: cleaned}, nil
}

// Root returns the primary workspace root.
func (w *Workspace) Root() string {
	if len(w.roots) == 0 {
		return ""
	}

	return w.roots[0]
}

// Validate resolves path and returns its absolute form if it falls under an
// allowed root. Relative paths are resolved against the primary root.
func (w *Workspace) Validate(path string) (string, error) {
	path = strings.TrimPrefix(path, "file://")

	if !filepath.IsAbs(path) {
		path = filepath.Join(w.Root(), path)
	}

	abs := filepath.Clean(path)

	for _, root := range w.roots {
		if abs == root || strings.HasPrefix(abs, root+string(filepath.Separator)) {
			return abs, nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrPathNotAllowed, abs)
}

// ReadTarget reads the file at path after allowlist validation.
func (w *Workspace) ReadTarget(path string) ([]byte, error) {
	abs, err := w.Validate(path)
	if err != nil {
		return nil, err
	}

	return os.ReadFile(abs)
}

// WriteTarget writes data to path after allowlist validation, creating parent
// directories as needed.
func (w *Workspace) WriteTarget(path string, data []byte) error {
	abs, err := w.Validate(path)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(abs), 0750); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", abs, err)
	}

	return os.WriteFile(abs, data, 0600)
}

// Stat returns file info for path after allowlist validation.
func (w *Workspace) Stat(path string) (os.FileInfo, error) {
	abs, err := w.Validate(path)
	if err != nil {
		return nil, err
	}

	return os.Stat(abs)
}
