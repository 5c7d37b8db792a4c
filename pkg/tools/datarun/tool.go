// Package datarun provides the tool that delegates work to a nested run, so
// a plan can fan out a scripted sub-plan as one step.
package datarun

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/datapilot/datapilot/pkg/models"
)

// Starter starts runs. The orchestrator satisfies it; the indirection keeps
// this package free of orchestrator internals.
type Starter interface {
	StartRun(ctx context.Context, plan *models.Plan, safeMode bool) (*models.Run, error)
}

type Tool struct {
	starter Starter
}

func NewTool(starter Starter) *Tool {
	return &Tool{starter: starter}
}

func (t *Tool) Descriptor() models.ToolDescriptor {
	return models.ToolDescriptor{
		Name:        "create_run",
		Description: "Starts a nested run from an inline plan",
		Parameters: &models.JSONSchema{
			Type: "object",
			Properties: map[string]*models.Property{
				"plan": {
					Type:        "object",
					Description: "Plan document for the nested run",
				},
				"safe_mode": {
					Type:        "boolean",
					Description: "Whether destructive steps in the nested run are gated",
					Default:     true,
				},
			},
			Required: []string{"plan"},
		},
	}
}

func (t *Tool) Execute(ctx context.Context, _ models.ExecutionContext, args map[string]any, _ *slog.Logger) (*models.ToolResult, error) {
	rawPlan, ok := args["plan"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("plan must be an object")
	}

	planJSON, err := json.Marshal(rawPlan)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal nested plan: %w", err)
	}

	var plan models.Plan
	if err := json.Unmarshal(planJSON, &plan); err != nil {
		return nil, fmt.Errorf("failed to unmarshal nested plan: %w", err)
	}

	safeMode := true
	if raw, ok := args["safe_mode"].(bool); ok {
		safeMode = raw
	}

	run, err := t.starter.StartRun(ctx, &plan, safeMode)
	if err != nil {
		return nil, err
	}

	return &models.ToolResult{
		Output: map[string]any{
			"run_id":             run.ID,
			"status":             string(run.Status),
			"completion_percent": run.CompletionPercent(),
		},
	}, nil
}
