// Package planner defines the boundary to the external plan generator. The
// orchestrator treats plans as opaque: it validates their structural
// invariants but never inspects how they were produced.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/datapilot/datapilot/pkg/models"
)

// Planner produces a plan for an objective.
type Planner interface {
	GeneratePlan(ctx context.Context, objective string, planContext map[string]any) (*models.Plan, error)
}

// FilePlanner loads a pre-authored plan from a JSON file and stamps the
// requested objective onto it. It serves scripted and test scenarios where no
// external planning service is wired.
type FilePlanner struct {
	path string
}

func NewFilePlanner(path string) *FilePlanner {
	return &FilePlanner{path: path}
}

func (p *FilePlanner) GeneratePlan(_ context.Context, objective string, _ map[string]any) (*models.Plan, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file %s: %w", p.path, err)
	}

	var plan models.Plan
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("failed to unmarshal plan file %s: %w", p.path, err)
	}

	if objective != "" {
		plan.Objective = objective
	}

	return &plan, nil
}
