// Package readfile provides the file reading tool.
package readfile

import (
	"context"
	"log/slog"

	"github.com/datapilot/datapilot/pkg/models"
	"github.com/datapilot/datapilot/pkg/workspace"
)

const defaultMaxBytes = 65536

type Tool struct {
	workspace *workspace.Workspace
}

func NewTool(ws *workspace.Workspace) *Tool {
	return &Tool{workspace: ws}
}

func (t *Tool) Descriptor() models.ToolDescriptor {
	return models.ToolDescriptor{
		Name:        "read_file",
		Description: "Reads a file from the workspace",
		Parameters: &models.JSONSchema{
			Type: "object",
			Properties: map[string]*models.Property{
				"path": {
					Type:        "string",
					Description: "File to read, relative to the workspace root",
				},
				"max_bytes": {
					Type:        "integer",
					Description: "Maximum number of bytes to return",
					Default:     defaultMaxBytes,
				},
			},
			Required: []string{"path"},
		},
	}
}

func (t *Tool) Execute(_ context.Context, _ models.ExecutionContext, args map[string]any, _ *slog.Logger) (*models.ToolResult, error) {
	path, _ := args["path"].(string)

	maxBytes := defaultMaxBytes
	if raw, ok := args["max_bytes"].(float64); ok && raw > 0 {
		maxBytes = int(raw)
	}

	data, err := t.workspace.ReadTarget(path)
	if err != nil {
		return nil, err
	}

	truncated := false
	if len(data) > maxBytes {
		data = data[:maxBytes]
		truncated = true
	}

	return &models.ToolResult{
		Output: map[string]any{
			"path":       path,
			"content":    string(data),
			"size_bytes": len(data),
			"truncated":  truncated,
		},
	}, nil
}
