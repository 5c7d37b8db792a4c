// Package previewdataset provides the dataset sampling tool.
package previewdataset

import (
	"context"
	"log/slog"

	"github.com/datapilot/datapilot/pkg/dataset"
	"github.com/datapilot/datapilot/pkg/models"
)

const defaultMaxRows = 20

type Tool struct {
	previews dataset.PreviewProvider
}

func NewTool(previews dataset.PreviewProvider) *Tool {
	return &Tool{previews: previews}
}

func (t *Tool) Descriptor() models.ToolDescriptor {
	return models.ToolDescriptor{
		Name:        "preview_dataset",
		Description: "Returns a tabular sample of a dataset",
		Parameters: &models.JSONSchema{
			Type: "object",
			Properties: map[string]*models.Property{
				"dataset_id": {
					Type:        "string",
					Description: "Dataset identifier, a workspace-relative path for file datasets",
				},
				"max_rows": {
					Type:        "integer",
					Description: "Maximum number of sample rows",
					Default:     defaultMaxRows,
				},
			},
			Required: []string{"dataset_id"},
		},
	}
}

func (t *Tool) Execute(ctx context.Context, _ models.ExecutionContext, args map[string]any, _ *slog.Logger) (*models.ToolResult, error) {
	datasetID, _ := args["dataset_id"].(string)

	maxRows := defaultMaxRows
	if raw, ok := args["max_rows"].(float64); ok && raw > 0 {
		maxRows = int(raw)
	}

	preview, err := t.previews.GetDatasetPreview(ctx, datasetID, maxRows)
	if err != nil {
		return nil, err
	}

	return &models.ToolResult{
		Output: map[string]any{
			"dataset_id": preview.DatasetID,
			"columns":    preview.Columns,
			"rows":       preview.Rows,
			"row_count":  len(preview.Rows),
			"truncated":  preview.Truncated,
		},
	}, nil
}
