// Package policy decides whether a step may auto-apply, must stay in dry-run,
// or requires explicit human approval before applying.
package policy

import "github.com/datapilot/datapilot/pkg/models"

// ExecutionMode is the phase a step invocation runs in.
type ExecutionMode string

const (
	ModeDryRun ExecutionMode = "dry_run"
	ModeApply  ExecutionMode = "apply"
)

// Decision is the policy outcome for one step invocation.
type Decision struct {
	Mode          ExecutionMode
	NeedsApproval bool
}

// Engine evaluates gating rules. SafeMode forces destructive tools behind an
// approval gate.
type Engine struct {
	SafeMode bool
}

func NewEngine(safeMode bool) *Engine {
	return &Engine{SafeMode: safeMode}
}

// Decide applies the gating rules in priority order:
//  1. a step that declares requires_approval is always gated
//  2. a destructive tool under safe mode is gated
//  3. everything else auto-applies
//
// The mode is dry-run while a gated step has no recorded approval, and apply
// once it does. This models propose-then-apply as two passes through the
// executor for gated steps and a single pass for ungated ones.
func (e *Engine) Decide(tool models.ToolDescriptor, stepRequiresApproval, approved bool) Decision {
	needsApproval := stepRequiresApproval || (tool.Destructive && e.SafeMode)

	mode := ModeApply
	if needsApproval && !approved {
		mode = ModeDryRun
	}

	return Decision{Mode: mode, NeedsApproval: needsApproval}
}
