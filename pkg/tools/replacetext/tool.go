// Package replacetext provides the destructive in-file text replacement tool.
package replacetext

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

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
		Name:         "replace_text",
		Description:  "Replaces occurrences of a text fragment in a workspace file",
		Destructive:  true,
		TargetParam:  "path",
		SnapshotKind: models.SnapshotKindFile,
		Parameters: &models.JSONSchema{
			Type: "object",
			Properties: map[string]*models.Property{
				"path": {
					Type:        "string",
					Description: "File to edit, relative to the workspace root",
				},
				"search": {
					Type:        "string",
					Description: "Exact text to replace",
				},
				"replace": {
					Type:        "string",
					Description: "Replacement text",
				},
				"count": {
					Type:        "integer",
					Description: "Maximum replacements; -1 replaces all",
					Default:     -1,
				},
			},
			Required: []string{"path", "search"},
		},
	}
}

func (t *Tool) Execute(_ context.Context, _ models.ExecutionContext, args map[string]any, _ *slog.Logger) (*models.ToolResult, error) {
	path, _ := args["path"].(string)
	search, _ := args["search"].(string)
	replace, _ := args["replace"].(string)

	count := -1
	if raw, ok := args["count"].(float64); ok {
		count = int(raw)
	}

	data, err := t.workspace.ReadTarget(path)
	if err != nil {
		return nil, err
	}

	before := string(data)

	occurrences := strings.Count(before, search)
	if occurrences == 0 {
		return nil, fmt.Errorf("text %q not found in %s", search, path)
	}

	after := strings.Replace(before, search, replace, count)

	replaced := occurrences
	if count >= 0 && count < occurrences {
		replaced = count
	}

	if err := t.workspace.WriteTarget(path, []byte(after)); err != nil {
		return nil, err
	}

	return &models.ToolResult{
		Output: map[string]any{
			"path":         path,
			"replacements": replaced,
		},
		Diff: diffutil.Unified(path, before, after),
	}, nil
}
