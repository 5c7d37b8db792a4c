// Package appendfile provides the destructive file append tool.
package appendfile

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
		Name:         "append_file",
		Description:  "Appends content to a workspace file, creating it if absent",
		Destructive:  true,
		TargetParam:  "path",
		SnapshotKind: models.SnapshotKindFile,
		Parameters: &models.JSONSchema{
			Type: "object",
			Properties: map[string]*models.Property{
				"path": {
					Type:        "string",
					Description: "File to append to, relative to the workspace root",
				},
				"content": {
					Type:        "string",
					Description: "Content to append",
				},
			},
			Required: []string{"path", "content"},
		},
	}
}

func (t *Tool) Execute(_ context.Context, _ models.ExecutionContext, args map[string]any, _ *slog.Logger) (*models.ToolResult, error) {
	path, _ := args["path"].(string)
	content, _ := args["content"].(string)

	before := ""

	data, err := t.workspace.ReadTarget(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	if err == nil {
		before = string(data)
	}

	after := before + content

	if err := t.workspace.WriteTarget(path, []byte(after)); err != nil {
		return nil, err
	}

	return &models.ToolResult{
		Output: map[string]any{
			"path":           path,
			"bytes_appended": len(content),
			"size_bytes":     len(after),
		},
		Diff: diffutil.Unified(path, before, after),
	}, nil
}
