// Package listdir provides the directory listing tool.
package listdir

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/datapilot/datapilot/pkg/models"
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
		Name:        "list_dir",
		Description: "Lists the entries of a workspace directory",
		Parameters: &models.JSONSchema{
			Type: "object",
			Properties: map[string]*models.Property{
				"path": {
					Type:        "string",
					Description: "Directory to list, relative to the workspace root",
					Default:     ".",
				},
			},
		},
	}
}

func (t *Tool) Execute(_ context.Context, _ models.ExecutionContext, args map[string]any, _ *slog.Logger) (*models.ToolResult, error) {
	path, _ := args["path"].(string)
	if path == "" {
		path = "."
	}

	abs, err := t.workspace.Validate(path)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", path, err)
	}

	listing := make([]map[string]any, 0, len(entries))

	for _, entry := range entries {
		item := map[string]any{
			"name":   entry.Name(),
			"is_dir": entry.IsDir(),
		}

		if info, err := entry.Info(); err == nil {
			item["size_bytes"] = info.Size()
		}

		listing = append(listing, item)
	}

	sort.Slice(listing, func(i, j int) bool {
		return listing[i]["name"].(string) < listing[j]["name"].(string)
	})

	return &models.ToolResult{
		Output: map[string]any{
			"path":    path,
			"entries": listing,
			"count":   len(listing),
		},
	}, nil
}
