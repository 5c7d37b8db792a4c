// Package snapshotter provides the explicit snapshot capture tool.
package snapshotter

import (
	"context"
	"log/slog"

	"github.com/datapilot/datapilot/pkg/models"
	"github.com/datapilot/datapilot/pkg/snapshot"
	"github.com/datapilot/datapilot/pkg/workspace"
)

type Tool struct {
	store     *snapshot.Store
	workspace *workspace.Workspace
}

func NewTool(store *snapshot.Store, ws *workspace.Workspace) *Tool {
	return &Tool{store: store, workspace: ws}
}

func (t *Tool) Descriptor() models.ToolDescriptor {
	return models.ToolDescriptor{
		Name:        "create_snapshot",
		Description: "Captures the current state of a workspace target",
		Parameters: &models.JSONSchema{
			Type: "object",
			Properties: map[string]*models.Property{
				"target_path": {
					Type:        "string",
					Description: "Target to capture, relative to the workspace root",
				},
				"kind": {
					Type:        "string",
					Description: "Kind of captured state",
					Enum:        []any{"file", "dataset", "workspace"},
					Default:     "file",
				},
			},
			Required: []string{"target_path"},
		},
	}
}

func (t *Tool) Execute(ctx context.Context, execCtx models.ExecutionContext, args map[string]any, _ *slog.Logger) (*models.ToolResult, error) {
	targetPath, _ := args["target_path"].(string)

	kind := models.SnapshotKindFile
	if raw, ok := args["kind"].(string); ok && raw != "" {
		kind = models.SnapshotKind(raw)
	}

	abs, err := t.workspace.Validate(targetPath)
	if err != nil {
		return nil, err
	}

	captured, err := t.store.Capture(ctx, snapshot.CaptureRequest{
		RunID:      execCtx.RunID,
		StepID:     execCtx.StepID,
		Kind:       kind,
		TargetPath: abs,
	})
	if err != nil {
		return nil, err
	}

	return &models.ToolResult{
		Output: map[string]any{
			"snapshot_id": captured.ID,
			"target_path": captured.TargetPath,
			"checksum":    captured.Checksum,
			"size_bytes":  captured.SizeBytes,
		},
	}, nil
}
