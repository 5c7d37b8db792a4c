// Package models defines the core domain models for agent run orchestration.
package models

import "time"

// Plan is an ordered set of steps produced for one run's objective. A plan is
// immutable after creation; edits are modeled as a new plan driving a new run.
type Plan struct {
	ID        string      `json:"id"`
	Objective string      `json:"objective" validate:"required,min=3"`
	Steps     []*PlanStep `json:"steps"     validate:"required,min=1,dive"`
	CreatedAt time.Time   `json:"created_at"`
}

// PlanStep is a single planned action, optionally bound to a tool. A step
// without a tool is informational and is skipped by the executor.
type PlanStep struct {
	ID               string         `json:"id"    validate:"required"`
	Title            string         `json:"title" validate:"required"`
	Tool             string         `json:"tool,omitempty"`
	Args             map[string]any `json:"args,omitempty"`
	RequiresApproval bool           `json:"requires_approval"`
	Optional         bool           `json:"optional"`
	DependsOn        []string       `json:"depends_on,omitempty"`
}

// StepByID returns the step with the given id, or nil.
func (p *Plan) StepByID(stepID string) *PlanStep {
	for _, step := range p.Steps {
		if step.ID == stepID {
			return step
		}
	}

	return nil
}

// Clone returns a deep copy of the plan. Replay uses this so a new run never
// shares step state with the run it was replayed from.
func (p *Plan) Clone() *Plan {
	clone := &Plan{
		ID:        p.ID,
		Objective: p.Objective,
		CreatedAt: p.CreatedAt,
		Steps:     make([]*PlanStep, 0, len(p.Steps)),
	}

	for _, step := range p.Steps {
		stepCopy := *step

		if step.Args != nil {
			stepCopy.Args = make(map[string]any, len(step.Args))
			for k, v := range step.Args {
				stepCopy.Args[k] = v
			}
		}

		if step.DependsOn != nil {
			stepCopy.DependsOn = append([]string(nil), step.DependsOn...)
		}

		clone.Steps = append(clone.Steps, &stepCopy)
	}

	return clone
}
