// Package rollbackreq provides the rollback request tool. It only requests;
// applying a rollback stays a human decision through the API.
package rollbackreq

import (
	"context"
	"log/slog"

	"github.com/datapilot/datapilot/pkg/models"
	"github.com/datapilot/datapilot/pkg/rollback"
)

type Tool struct {
	manager *rollback.Manager
}

func NewTool(manager *rollback.Manager) *Tool {
	return &Tool{manager: manager}
}

func (t *Tool) Descriptor() models.ToolDescriptor {
	return models.ToolDescriptor{
		Name:        "request_rollback",
		Description: "Requests a rollback to a previously captured snapshot",
		Parameters: &models.JSONSchema{
			Type: "object",
			Properties: map[string]*models.Property{
				"snapshot_id": {
					Type:        "string",
					Description: "Snapshot to restore",
				},
				"note": {
					Type:        "string",
					Description: "Reason for the rollback request",
				},
			},
			Required: []string{"snapshot_id"},
		},
	}
}

func (t *Tool) Execute(ctx context.Context, execCtx models.ExecutionContext, args map[string]any, _ *slog.Logger) (*models.ToolResult, error) {
	snapshotID, _ := args["snapshot_id"].(string)
	note, _ := args["note"].(string)

	requested, err := t.manager.Request(ctx, snapshotID, execCtx.RunID, note)
	if err != nil {
		return nil, err
	}

	return &models.ToolResult{
		Output: map[string]any{
			"rollback_id": requested.ID,
			"snapshot_id": requested.SnapshotID,
			"status":      string(requested.Status),
		},
	}, nil
}
