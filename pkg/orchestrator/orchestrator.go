// Package orchestrator drives runs through their lifecycle: it validates
// plans, executes steps strictly in order through the executor, suspends on
// approval gates, and enforces fail-fast and cooperative cancellation.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/datapilot/datapilot/pkg/dataset"
	"github.com/datapilot/datapilot/pkg/eventbus"
	"github.com/datapilot/datapilot/pkg/events"
	"github.com/datapilot/datapilot/pkg/executor"
	"github.com/datapilot/datapilot/pkg/models"
	"github.com/datapilot/datapilot/pkg/otelhelper"
	"github.com/datapilot/datapilot/pkg/persistence"
)

var (
	// ErrRunNotActive indicates an operation that is only valid while the run
	// is running, such as cancel or step approval.
	ErrRunNotActive = errors.New("run is not running")

	// ErrInvalidPlan indicates the plan failed structural validation.
	ErrInvalidPlan = errors.New("invalid plan")

	// ErrDependencyUnmet indicates a required step whose dependency can never
	// reach applied, so the run cannot make progress.
	ErrDependencyUnmet = errors.New("step dependency cannot be satisfied")
)

// runControl carries the cooperative cancel flag checked between steps.
type runControl struct {
	cancelled atomic.Bool
}

type Orchestrator struct {
	logger    *slog.Logger
	executor  *executor.Executor
	runs      persistence.RunRepository
	publisher eventbus.EventPublisher
	validator *validator.Validate
	tracer    trace.Tracer
	artifacts dataset.ArtifactStore

	mu       sync.Mutex
	controls map[string]*runControl
}

func NewOrchestrator(
	logger *slog.Logger,
	exec *executor.Executor,
	runs persistence.RunRepository,
	publisher eventbus.EventPublisher,
) *Orchestrator {
	return &Orchestrator{
		logger:    logger.With("module", "orchestrator"),
		executor:  exec,
		runs:      runs,
		publisher: publisher,
		validator: validator.New(),
		tracer:    otel.Tracer("datapilot/orchestrator"),
		controls:  make(map[string]*runControl),
	}
}

// SetArtifactStore enables saving the plan and journal as artifacts when a
// run completes.
func (o *Orchestrator) SetArtifactStore(store dataset.ArtifactStore) {
	o.artifacts = store
}

// StartRun creates a run for the plan and drives it until it completes,
// fails, is cancelled, or suspends on an approval gate. A suspended run stays
// in running status with the gated step's latest entry at pending.
func (o *Orchestrator) StartRun(ctx context.Context, plan *models.Plan, safeMode bool) (*models.Run, error) {
	if err := o.validatePlan(plan); err != nil {
		return nil, err
	}

	if plan.ID == "" {
		plan.ID = uuid.New().String()
	}

	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = time.Now().UTC()
	}

	run := &models.Run{
		ID:        uuid.New().String(),
		Plan:      plan,
		Status:    models.RunStatusPending,
		SafeMode:  safeMode,
		Log:       []*models.LogEntry{},
		CreatedAt: time.Now().UTC(),
	}

	if err := o.runs.Save(ctx, run); err != nil {
		return nil, err
	}

	run.Status = models.RunStatusRunning
	if err := o.runs.Save(ctx, run); err != nil {
		return nil, err
	}

	o.publish(ctx, run.ID, events.RunStarted{
		BaseEvent: o.baseEvent(events.RunStartedEvent, run.ID),
		Objective: plan.Objective,
		SafeMode:  safeMode,
		Steps:     len(plan.Steps),
	})

	if err := o.drive(ctx, run); err != nil {
		return run, err
	}

	return run, nil
}

// ApproveStep records an approval for a gated step. For a step still pending
// it triggers the apply pass and resumes the rest of the run in the
// background; for an already-applied step the approval is attached to its
// latest entry without re-execution, so repeated approvals are idempotent.
func (o *Orchestrator) ApproveStep(ctx context.Context, runID, stepID, approver, note string) (*models.LogEntry, error) {
	run, err := o.runs.GetByID(ctx, runID)
	if err != nil {
		return nil, err
	}

	step := run.Plan.StepByID(stepID)
	if step == nil {
		return nil, fmt.Errorf("step %s not found in run %s", stepID, runID)
	}

	entry := run.LatestEntryForStep(stepID)
	if entry == nil {
		return nil, fmt.Errorf("step %s has not been proposed yet in run %s", stepID, runID)
	}

	approval := models.Approval{
		ApprovedBy: approver,
		ApprovedAt: time.Now().UTC(),
		Note:       note,
	}

	if entry.Status != models.StepStatusPending {
		// Already applied, failed or skipped: accumulate the approval, never
		// regress the status and never re-execute. The journal arena holds
		// the same entry and has to stay in step with the persisted run.
		updated, err := o.executor.AttachApproval(run, stepID, approval)
		if err != nil {
			return nil, err
		}

		if err := o.runs.Save(ctx, run); err != nil {
			return nil, err
		}

		return updated, nil
	}

	if run.Status != models.RunStatusRunning {
		return nil, fmt.Errorf("cannot approve step in run %s with status %s: %w",
			runID, run.Status, ErrRunNotActive)
	}

	o.publish(ctx, run.ID, events.StepApproved{
		BaseEvent:  o.baseEvent(events.StepApprovedEvent, run.ID),
		StepID:     stepID,
		ApprovedBy: approver,
	})

	approvals := append(append([]models.Approval{}, entry.Approvals...), approval)

	result, err := o.executeStep(ctx, run, step, approvals)
	if err != nil {
		run.Status = models.RunStatusFailed
		_ = o.runs.Save(ctx, run)

		return nil, err
	}

	if err := o.runs.Save(ctx, run); err != nil {
		return nil, err
	}

	if result.Failed && !step.Optional {
		o.failRun(ctx, run, step.ID, stepErrorDetail(result.Entry))

		return result.Entry, nil
	}

	// Resume the remaining steps without holding the approval call open.
	background := context.WithoutCancel(ctx)

	go func() {
		if err := o.drive(background, run); err != nil {
			o.logger.Error("Run resume after approval failed", "run_id", run.ID, "error", err)
		}
	}()

	return result.Entry, nil
}

// CancelRun stops forward progress. Applied steps stay applied, a pending
// proposal stays pending; nothing is rolled back. Valid only while running.
func (o *Orchestrator) CancelRun(ctx context.Context, runID string) (*models.Run, error) {
	run, err := o.runs.GetByID(ctx, runID)
	if err != nil {
		return nil, err
	}

	if run.Status != models.RunStatusRunning {
		return nil, fmt.Errorf("cannot cancel run %s with status %s: %w", runID, run.Status, ErrRunNotActive)
	}

	o.control(runID).cancelled.Store(true)

	run.Status = models.RunStatusCancelled
	if err := o.runs.Save(ctx, run); err != nil {
		return nil, err
	}

	o.publish(ctx, run.ID, events.RunCancelled{
		BaseEvent: o.baseEvent(events.RunCancelledEvent, run.ID),
		Duration:  time.Since(run.CreatedAt),
	})

	o.logger.InfoContext(ctx, "Run cancelled", "run_id", runID)

	return run, nil
}

// ReplayRun starts a fresh run from the same plan. It is not a resume: the
// new run gets its own id and empty log, and approval gates trigger again.
func (o *Orchestrator) ReplayRun(ctx context.Context, runID string) (*models.Run, error) {
	original, err := o.runs.GetByID(ctx, runID)
	if err != nil {
		return nil, err
	}

	return o.StartRun(ctx, original.Plan.Clone(), original.SafeMode)
}

// drive executes pending steps strictly in plan order. It returns with the
// run still in running status when a step suspends on an approval gate.
func (o *Orchestrator) drive(ctx context.Context, run *models.Run) error {
	ctx, span := otelhelper.StartSpan(ctx, o.tracer, "orchestrator.drive",
		attribute.String(otelhelper.RunIDKey, run.ID),
		attribute.String(otelhelper.PlanIDKey, run.Plan.ID),
	)
	defer span.End()

	control := o.control(run.ID)

	for _, step := range run.Plan.Steps {
		if control.cancelled.Load() {
			return nil
		}

		entry := run.LatestEntryForStep(step.ID)
		if entry != nil && entry.Status != models.StepStatusPending {
			continue
		}

		if step.Tool == "" {
			o.skipStep(ctx, run, step, "informational step without a tool")

			continue
		}

		if blocked, terminal := o.dependencyState(run, step); blocked {
			if !terminal {
				// Dependency is still pending approval; the loop cannot pass
				// it because steps run strictly in order, so this is
				// unreachable, but kept as a guard.
				return nil
			}

			if step.Optional {
				o.skipStep(ctx, run, step, "dependency not applied")

				continue
			}

			o.failRun(ctx, run, step.ID, "dependency not applied")

			return fmt.Errorf("step %s in run %s: %w", step.ID, run.ID, ErrDependencyUnmet)
		}

		var approvals []models.Approval
		if entry != nil {
			approvals = entry.Approvals
		}

		result, err := o.executeStep(ctx, run, step, approvals)
		if err != nil {
			run.Status = models.RunStatusFailed
			_ = o.runs.Save(ctx, run)

			otelhelper.SetError(span, err)

			return err
		}

		if err := o.runs.Save(ctx, run); err != nil {
			return err
		}

		if result.AwaitingApproval {
			o.publish(ctx, run.ID, events.StepProposed{
				BaseEvent: o.baseEvent(events.StepProposedEvent, run.ID),
				StepID:    step.ID,
				Tool:      step.Tool,
			})

			o.logger.InfoContext(ctx, "Run suspended awaiting approval",
				"run_id", run.ID, "step_id", step.ID)

			return nil
		}

		if result.Failed {
			if step.Optional {
				o.logger.WarnContext(ctx, "Optional step failed, continuing",
					"run_id", run.ID, "step_id", step.ID)

				continue
			}

			o.failRun(ctx, run, step.ID, stepErrorDetail(result.Entry))

			return nil
		}
	}

	if control.cancelled.Load() {
		return nil
	}

	run.Status = models.RunStatusCompleted
	if err := o.runs.Save(ctx, run); err != nil {
		return err
	}

	o.publish(ctx, run.ID, events.RunCompleted{
		BaseEvent: o.baseEvent(events.RunCompletedEvent, run.ID),
		Duration:  time.Since(run.CreatedAt),
	})

	o.writeRunArtifacts(ctx, run)

	o.logger.InfoContext(ctx, "Run completed",
		"run_id", run.ID, "completion_percent", run.CompletionPercent())

	return nil
}

// writeRunArtifacts saves the plan and the journal of a completed run as
// JSON artifacts. Failures are logged, never fatal: the run already carries
// its full state in persistence.
func (o *Orchestrator) writeRunArtifacts(ctx context.Context, run *models.Run) {
	if o.artifacts == nil {
		return
	}

	planJSON, err := json.Marshal(run.Plan)
	if err == nil {
		if _, err := o.artifacts.SaveArtifact(ctx, run.ID, planJSON, "application/json"); err != nil {
			o.logger.Warn("Failed to save plan artifact", "run_id", run.ID, "error", err)
		}
	}

	logJSON, err := json.Marshal(run.Log)
	if err == nil {
		if _, err := o.artifacts.SaveArtifact(ctx, run.ID, logJSON, "application/json"); err != nil {
			o.logger.Warn("Failed to save journal artifact", "run_id", run.ID, "error", err)
		}
	}
}

func (o *Orchestrator) executeStep(ctx context.Context, run *models.Run, step *models.PlanStep, approvals []models.Approval) (*executor.StepResult, error) {
	result, err := o.executor.ExecuteStep(ctx, run, step, approvals)
	if err != nil {
		return nil, err
	}

	if result.Snapshot != nil {
		o.publish(ctx, run.ID, events.SnapshotCaptured{
			BaseEvent:  o.baseEvent(events.SnapshotCapturedEvent, run.ID),
			SnapshotID: result.Snapshot.ID,
			StepID:     step.ID,
			TargetPath: result.Snapshot.TargetPath,
			Checksum:   result.Snapshot.Checksum,
		})
	}

	switch {
	case result.Failed:
		o.publish(ctx, run.ID, events.StepFailed{
			BaseEvent: o.baseEvent(events.StepFailedEvent, run.ID),
			StepID:    step.ID,
			Tool:      step.Tool,
			Error:     stepErrorDetail(result.Entry),
		})
	case !result.AwaitingApproval:
		o.publish(ctx, run.ID, events.StepApplied{
			BaseEvent: o.baseEvent(events.StepAppliedEvent, run.ID),
			StepID:    step.ID,
			Tool:      step.Tool,
		})
	}

	return result, nil
}

func (o *Orchestrator) skipStep(ctx context.Context, run *models.Run, step *models.PlanStep, reason string) {
	entry := o.executor.AppendSkipped(run, step, reason)

	if err := o.runs.Save(ctx, run); err != nil {
		o.logger.Error("Failed to persist skipped step", "run_id", run.ID, "error", err)
	}

	o.publish(ctx, run.ID, events.StepSkipped{
		BaseEvent: o.baseEvent(events.StepSkippedEvent, run.ID),
		StepID:    entry.StepID,
		Reason:    reason,
	})
}

func (o *Orchestrator) failRun(ctx context.Context, run *models.Run, stepID, detail string) {
	run.Status = models.RunStatusFailed

	if err := o.runs.Save(ctx, run); err != nil {
		o.logger.Error("Failed to persist failed run", "run_id", run.ID, "error", err)
	}

	o.publish(ctx, run.ID, events.RunFailed{
		BaseEvent: o.baseEvent(events.RunFailedEvent, run.ID),
		StepID:    stepID,
		Error:     detail,
		Duration:  time.Since(run.CreatedAt),
	})

	o.logger.WarnContext(ctx, "Run failed", "run_id", run.ID, "step_id", stepID, "error", detail)
}

// dependencyState reports whether the step is blocked by a dependency whose
// latest entry is not applied, and whether that dependency is already in a
// state it can never leave.
func (o *Orchestrator) dependencyState(run *models.Run, step *models.PlanStep) (blocked, terminal bool) {
	for _, depID := range step.DependsOn {
		entry := run.LatestEntryForStep(depID)
		if entry != nil && entry.Status == models.StepStatusApplied {
			continue
		}

		if entry == nil || entry.Status == models.StepStatusPending {
			return true, false
		}

		return true, true
	}

	return false, false
}

func (o *Orchestrator) validatePlan(plan *models.Plan) error {
	if plan == nil {
		return fmt.Errorf("%w: plan is required", ErrInvalidPlan)
	}

	if err := o.validator.Struct(plan); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPlan, err)
	}

	seen := make(map[string]bool, len(plan.Steps))

	for _, step := range plan.Steps {
		if seen[step.ID] {
			return fmt.Errorf("%w: duplicate step id %s", ErrInvalidPlan, step.ID)
		}

		seen[step.ID] = true

		if step.Tool != "" && !o.executor.KnownTool(step.Tool) {
			return fmt.Errorf("%w: step %s references unknown tool %s", ErrInvalidPlan, step.ID, step.Tool)
		}
	}

	for _, step := range plan.Steps {
		for _, depID := range step.DependsOn {
			if !seen[depID] {
				return fmt.Errorf("%w: step %s depends on unknown step %s", ErrInvalidPlan, step.ID, depID)
			}
		}
	}

	return nil
}

func (o *Orchestrator) control(runID string) *runControl {
	o.mu.Lock()
	defer o.mu.Unlock()

	control, ok := o.controls[runID]
	if !ok {
		control = &runControl{}
		o.controls[runID] = control
	}

	return control
}

func (o *Orchestrator) publish(ctx context.Context, key string, event eventbus.Event) {
	if o.publisher == nil {
		return
	}

	if err := o.publisher.Publish(ctx, key, event); err != nil {
		o.logger.Warn("Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}

func (o *Orchestrator) baseEvent(eventType events.EventType, runID string) events.BaseEvent {
	return events.BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		RunID:     runID,
	}
}

func stepErrorDetail(entry *models.LogEntry) string {
	if entry == nil || entry.Output == nil {
		return ""
	}

	if detail, ok := entry.Output["error"].(string); ok {
		return detail
	}

	return ""
}
