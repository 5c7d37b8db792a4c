// Package writefile provides the destructive file writing tool. It supports
// dry-run, so a gated write proposes its diff before any byte changes.
package writefile

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"

	"github.com/datapilot/datapilot/pkg/models"
	"github.com/datapilot/datapilot/pkg/tools/diffutil"
	"github.com/datapilot/datapilot/pkg/workspace"
)

type Tool struct {
	workspace *workspace.Workspace
}

func NewTool(ws *workspace.Workspace) *Tool {
	return &Tool{workspace: ws}
}

func (t *Tool) Descriptor() models.ToolDescriptor {
	return models.ToolDescriptor{
		Name:         "write_file",
		Description:  "Writes content to a workspace file, replacing what was there",
		Destructive:  true,
		TargetParam:  "path",
		SnapshotKind: models.SnapshotKindFile,
		Parameters: &models.JSONSchema{
			Type: "object",
			Properties: map[string]*models.Property{
				"path": {
					Type:        "string",
					Description: "File to write, relative to the workspace root",
				},
				"content": {
					Type:        "string",
					Description: "Full new content of the file",
				},
			},
			Required: []string{"path", "content"},
		},
	}
}

func (t *Tool) Execute(_ context.Context, _ models.ExecutionContext, args map[string]any, _ *slog.Logger) (*models.ToolResult, error) {
	path, content := stringArgs(args)

	before, err := t.readExisting(path)
	if err != nil {
		return nil, err
	}

	if err := t.workspace.WriteTarget(path, []byte(content)); err != nil {
		return nil, err
	}

	return &models.ToolResult{
		Output: map[string]any{
			"path":          path,
			"bytes_written": len(content),
		},
		Diff: diffutil.Unified(path, before, content),
	}, nil
}

// DryRun reports the diff the write would produce without touching the file.
func (t *Tool) DryRun(_ context.Context, _ models.ExecutionContext, args map[string]any, _ *slog.Logger) (*models.ToolResult, error) {
	path, content := stringArgs(args)

	before, err := t.readExisting(path)
	if err != nil {
		return nil, err
	}

	return &models.ToolResult{
		Output: map[string]any{
			"path":        path,
			"would_write": len(content),
		},
		Diff: diffutil.Unified(path, before, content),
	}, nil
}

func (t *Tool) readExisting(path string) (string, error) {
	data, err := t.workspace.ReadTarget(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}

		return "", err
	}

	return string(data), nil
}

func stringArgs(args map[string]any) (path, content string) {
	path, _ = args["path"].(string)
	content, _ = args["content"].(string)

	return path, content
}
