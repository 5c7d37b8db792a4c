// Package executor runs individual plan steps: it validates arguments
// against the tool's parameter contract, consults policy, captures snapshots
// before destructive applies, and records every attempt in the journal.
//
// Failures of argument validation or of the tool itself become journal data
// (a failed entry) rather than error returns; only structural problems such
// as an unknown tool propagate to the caller.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/datapilot/datapilot/pkg/journal"
	"github.com/datapilot/datapilot/pkg/models"
	"github.com/datapilot/datapilot/pkg/otelhelper"
	"github.com/datapilot/datapilot/pkg/policy"
	"github.com/datapilot/datapilot/pkg/protocol"
	"github.com/datapilot/datapilot/pkg/registry"
	"github.com/datapilot/datapilot/pkg/snapshot"
	"github.com/datapilot/datapilot/pkg/workspace"
)

// StepResult reports the outcome of one pass through the executor for a step.
type StepResult struct {
	Entry    *models.LogEntry
	Decision policy.Decision

	// AwaitingApproval is set when the step was gated and recorded as a
	// dry-run proposal; the run suspends until an approval arrives.
	AwaitingApproval bool

	// Failed is set when the attempt was recorded as failed. The orchestrator
	// decides whether that fails the run (required step) or not (optional).
	Failed bool

	// Snapshot is the pre-state capture taken before a destructive apply.
	Snapshot *models.Snapshot
}

type Executor struct {
	logger    *slog.Logger
	registry  *registry.Registry
	journal   *journal.Journal
	snapshots *snapshot.Store
	workspace *workspace.Workspace
	tracer    trace.Tracer
}

func NewExecutor(
	logger *slog.Logger,
	reg *registry.Registry,
	jrnl *journal.Journal,
	snapshots *snapshot.Store,
	ws *workspace.Workspace,
) *Executor {
	return &Executor{
		logger:    logger.With("module", "executor"),
		registry:  reg,
		journal:   jrnl,
		snapshots: snapshots,
		workspace: ws,
		tracer:    otel.Tracer("datapilot/executor"),
	}
}

// ExecuteStep runs one pass for a step. Gated steps without approval are
// recorded as pending proposals (dry-run when the tool supports it); approved
// or ungated steps apply. Each pass appends a new journal entry, so a
// proposal and its later apply are two linked entries sharing the step id.
func (e *Executor) ExecuteStep(ctx context.Context, run *models.Run, step *models.PlanStep, approvals []models.Approval) (*StepResult, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "executor.execute_step",
		attribute.String(otelhelper.RunIDKey, run.ID),
		attribute.String(otelhelper.StepIDKey, step.ID),
		attribute.String(otelhelper.ToolNameKey, step.Tool),
	)
	defer span.End()

	logger := e.logger.With("run_id", run.ID, "step_id", step.ID, "tool", step.Tool)

	tool, err := e.registry.Resolve(step.Tool)
	if err != nil {
		// Unknown tool is a run-fatal configuration error, not step data.
		otelhelper.SetError(span, err)

		return nil, err
	}

	descriptor := tool.Descriptor()

	if validationErr := e.validateArgs(descriptor, step.Args); validationErr != nil {
		logger.WarnContext(ctx, "Step arguments failed contract validation", "error", validationErr)

		entry := e.appendEntry(run, &models.LogEntry{
			StepID: step.ID,
			Tool:   step.Tool,
			Status: models.StepStatusFailed,
			Args:   step.Args,
			Output: map[string]any{"error": validationErr.Error()},
		})

		return &StepResult{Entry: entry, Failed: true}, nil
	}

	engine := policy.NewEngine(run.SafeMode)
	decision := engine.Decide(descriptor, step.RequiresApproval, len(approvals) > 0)

	span.SetAttributes(attribute.String(otelhelper.ModeKey, string(decision.Mode)))

	if decision.Mode == policy.ModeDryRun {
		return e.propose(ctx, run, step, tool, decision, logger)
	}

	return e.apply(ctx, run, step, tool, descriptor, decision, approvals, logger)
}

// propose records the gated step as a pending proposal without mutating
// anything. Tools that support dry-run contribute a preview to the entry.
func (e *Executor) propose(ctx context.Context, run *models.Run, step *models.PlanStep, tool protocol.Tool, decision policy.Decision, logger *slog.Logger) (*StepResult, error) {
	entry := &models.LogEntry{
		StepID: step.ID,
		Tool:   step.Tool,
		Status: models.StepStatusPending,
		Args:   step.Args,
	}

	if dryRunner, ok := tool.(protocol.DryRunner); ok {
		execCtx := models.ExecutionContext{RunID: run.ID, StepID: step.ID, DryRun: true}

		result, err := dryRunner.DryRun(ctx, execCtx, step.Args, logger)
		if err != nil {
			logger.WarnContext(ctx, "Dry run failed, proposal recorded without preview", "error", err)
			entry.Output = map[string]any{"dry_run_error": err.Error()}
		} else if result != nil {
			entry.Output = result.Output
			entry.Artifacts = result.Artifacts
			entry.Diff = result.Diff
		}
	}

	stored := e.appendEntry(run, entry)

	logger.InfoContext(ctx, "Step proposed, awaiting approval")

	return &StepResult{Entry: stored, Decision: decision, AwaitingApproval: true}, nil
}

// apply executes the tool for real. Destructive tools get their target
// captured first; the capture is idempotent per (run, step, target), so a
// re-approved step never snapshots twice. The target lock is held across the
// whole capture-invoke-record sequence so a concurrent restore of the same
// target cannot interleave with the apply.
func (e *Executor) apply(ctx context.Context, run *models.Run, step *models.PlanStep, tool protocol.Tool, descriptor models.ToolDescriptor, decision policy.Decision, approvals []models.Approval, logger *slog.Logger) (*StepResult, error) {
	var captured *models.Snapshot

	targetPath := ""

	if descriptor.Destructive && descriptor.TargetParam != "" {
		raw, _ := step.Args[descriptor.TargetParam].(string)

		resolved, err := e.workspace.Validate(raw)
		if err != nil {
			entry := e.appendEntry(run, &models.LogEntry{
				StepID: step.ID,
				Tool:   step.Tool,
				Status: models.StepStatusFailed,
				Args:   step.Args,
				Output: map[string]any{"error": err.Error()},
			})

			return &StepResult{Entry: entry, Decision: decision, Failed: true}, nil
		}

		targetPath = resolved

		release, err := e.snapshots.LockTarget(ctx, targetPath)
		if err != nil {
			return nil, err
		}
		defer release()

		captured, err = e.snapshots.CaptureLocked(ctx, snapshot.CaptureRequest{
			RunID:      run.ID,
			StepID:     step.ID,
			Kind:       descriptor.SnapshotKind,
			TargetPath: targetPath,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to capture pre-state of %s: %w", targetPath, err)
		}
	}

	execCtx := models.ExecutionContext{RunID: run.ID, StepID: step.ID}

	result, execErr := tool.Execute(ctx, execCtx, step.Args, logger)
	if execErr != nil {
		logger.WarnContext(ctx, "Tool execution failed", "error", execErr)

		entry := e.appendEntry(run, &models.LogEntry{
			StepID:    step.ID,
			Tool:      step.Tool,
			Status:    models.StepStatusFailed,
			Args:      step.Args,
			Output:    map[string]any{"error": execErr.Error()},
			Approvals: approvals,
		})

		return &StepResult{Entry: entry, Decision: decision, Failed: true, Snapshot: captured}, nil
	}

	if targetPath != "" {
		if err := e.snapshots.RecordMutationLocked(ctx, targetPath); err != nil {
			return nil, err
		}
	}

	entry := &models.LogEntry{
		StepID:    step.ID,
		Tool:      step.Tool,
		Status:    models.StepStatusApplied,
		Args:      step.Args,
		Approvals: approvals,
	}

	if result != nil {
		entry.Output = result.Output
		entry.Artifacts = result.Artifacts
		entry.Diff = result.Diff
	}

	stored := e.appendEntry(run, entry)

	logger.InfoContext(ctx, "Step applied")

	return &StepResult{Entry: stored, Decision: decision, Snapshot: captured}, nil
}

// AttachApproval records an approval on the step's latest entry, both in the
// journal arena and on the run's own copy, without regressing the status. The
// arena does not survive restarts, so a missing arena entry is tolerated and
// the persisted run stays the holder of record.
func (e *Executor) AttachApproval(run *models.Run, stepID string, approval models.Approval) (*models.LogEntry, error) {
	entry := run.LatestEntryForStep(stepID)
	if entry == nil {
		return nil, journal.ErrNoEntry
	}

	stored, err := e.journal.AttachApproval(run.ID, stepID, approval)
	if err != nil {
		entry.Approvals = append(entry.Approvals, approval)

		return entry, nil
	}

	entry.Approvals = stored.Approvals

	return entry, nil
}

// KnownTool reports whether the name resolves in the registry. The
// orchestrator uses it to reject plans referencing unknown tools before a run
// is created.
func (e *Executor) KnownTool(name string) bool {
	_, err := e.registry.Resolve(name)

	return err == nil
}

// AppendSkipped records a skipped entry for a step the orchestrator decided
// not to execute, with the reason as entry output.
func (e *Executor) AppendSkipped(run *models.Run, step *models.PlanStep, reason string) *models.LogEntry {
	return e.appendEntry(run, &models.LogEntry{
		StepID: step.ID,
		Tool:   step.Tool,
		Status: models.StepStatusSkipped,
		Output: map[string]any{"reason": reason},
	})
}

// appendEntry records the entry in the journal and mirrors it onto the run's
// own log so persisted runs carry their full timeline.
func (e *Executor) appendEntry(run *models.Run, entry *models.LogEntry) *models.LogEntry {
	stored := e.journal.Append(run.ID, entry)
	run.Log = append(run.Log, stored)

	return stored
}

func (e *Executor) validateArgs(descriptor models.ToolDescriptor, args map[string]any) error {
	if descriptor.Parameters == nil {
		return nil
	}

	if args == nil {
		args = map[string]any{}
	}

	schemaLoader := gojsonschema.NewGoLoader(descriptor.Parameters)
	documentLoader := gojsonschema.NewGoLoader(args)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("invalid parameter contract for tool %s: %w", descriptor.Name, err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, resultErr := range result.Errors() {
			details = append(details, resultErr.String())
		}

		return fmt.Errorf("invalid arguments for tool %s: %s", descriptor.Name, strings.Join(details, "; "))
	}

	return nil
}
