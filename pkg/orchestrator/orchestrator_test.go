package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datapilot/datapilot/pkg/executor"
	"github.com/datapilot/datapilot/pkg/journal"
	"github.com/datapilot/datapilot/pkg/locker"
	"github.com/datapilot/datapilot/pkg/models"
	"github.com/datapilot/datapilot/pkg/persistence/file"
	"github.com/datapilot/datapilot/pkg/registry"
	"github.com/datapilot/datapilot/pkg/snapshot"
	"github.com/datapilot/datapilot/pkg/workspace"
)

type stubWriter struct {
	workspace  *workspace.Workspace
	executions int
	failWith   error
}

func (s *stubWriter) Descriptor() models.ToolDescriptor {
	return models.ToolDescriptor{
		Name:         "stub_write",
		Destructive:  true,
		TargetParam:  "path",
		SnapshotKind: models.SnapshotKindFile,
	}
}

func (s *stubWriter) Execute(_ context.Context, _ models.ExecutionContext, args map[string]any, _ *slog.Logger) (*models.ToolResult, error) {
	s.executions++

	if s.failWith != nil {
		return nil, s.failWith
	}

	path, _ := args["path"].(string)
	content, _ := args["content"].(string)

	if err := s.workspace.WriteTarget(path, []byte(content)); err != nil {
		return nil, err
	}

	return &models.ToolResult{Output: map[string]any{"path": path}}, nil
}

type stubReader struct {
	executions int
}

func (s *stubReader) Descriptor() models.ToolDescriptor {
	return models.ToolDescriptor{Name: "stub_read"}
}

func (s *stubReader) Execute(_ context.Context, _ models.ExecutionContext, _ map[string]any, _ *slog.Logger) (*models.ToolResult, error) {
	s.executions++

	return &models.ToolResult{Output: map[string]any{"data": "ok"}}, nil
}

type testEnv struct {
	orchestrator *Orchestrator
	persist      *file.FilePersistence
	journal      *journal.Journal
	writer       *stubWriter
	reader       *stubReader
	ws           string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	wsRoot := t.TempDir()

	ws, err := workspace.New(wsRoot)
	require.NoError(t, err)

	p, err := file.NewFilePersistence(t.TempDir())
	require.NoError(t, err)

	snapshots, err := snapshot.NewStore(logger, p.SnapshotRepository(), locker.NewMemoryLocker(), t.TempDir())
	require.NoError(t, err)

	writer := &stubWriter{workspace: ws}
	reader := &stubReader{}

	reg := registry.NewRegistry(logger)
	reg.Register(writer)
	reg.Register(reader)

	jrnl := journal.NewJournal()
	exec := executor.NewExecutor(logger, reg, jrnl, snapshots, ws)

	return &testEnv{
		orchestrator: NewOrchestrator(logger, exec, p.RunRepository(), nil),
		persist:      p,
		journal:      jrnl,
		writer:       writer,
		reader:       reader,
		ws:           wsRoot,
	}
}

func (e *testEnv) loadRun(t *testing.T, runID string) *models.Run {
	t.Helper()

	run, err := e.persist.RunRepository().GetByID(context.Background(), runID)
	require.NoError(t, err)

	return run
}

func (e *testEnv) waitForStatus(t *testing.T, runID string, status models.RunStatus) *models.Run {
	t.Helper()

	require.Eventually(t, func() bool {
		run, err := e.persist.RunRepository().GetByID(context.Background(), runID)

		return err == nil && run.Status == status
	}, 5*time.Second, 10*time.Millisecond)

	return e.loadRun(t, runID)
}

func testPlan(steps ...*models.PlanStep) *models.Plan {
	return &models.Plan{Objective: "reshape the workspace", Steps: steps}
}

func TestStartRunHappyPath(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	plan := testPlan(
		&models.PlanStep{ID: "note", Title: "Context note"},
		&models.PlanStep{ID: "read", Title: "Read", Tool: "stub_read"},
		&models.PlanStep{ID: "write", Title: "Write", Tool: "stub_write",
			Args: map[string]any{"path": "out.txt", "content": "done"}},
	)

	run, err := env.orchestrator.StartRun(ctx, plan, false)
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.NotEmpty(t, run.ID)
	assert.NotEmpty(t, run.Plan.ID)

	note := run.LatestEntryForStep("note")
	require.NotNil(t, note)
	assert.Equal(t, models.StepStatusSkipped, note.Status)

	assert.Equal(t, models.StepStatusApplied, run.LatestEntryForStep("read").Status)
	assert.Equal(t, models.StepStatusApplied, run.LatestEntryForStep("write").Status)

	data, err := os.ReadFile(filepath.Join(env.ws, "out.txt"))
	require.NoError(t, err)
	assert.Equal(t, "done", string(data))

	// Toolless steps do not count toward completion denominator adjustments;
	// two of three steps applied.
	assert.InDelta(t, 66.66, run.CompletionPercent(), 0.1)

	persisted := env.loadRun(t, run.ID)
	assert.Equal(t, models.RunStatusCompleted, persisted.Status)
}

func TestStartRunInvalidPlans(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name string
		plan *models.Plan
	}{
		{name: "nil plan", plan: nil},
		{name: "empty objective", plan: &models.Plan{Steps: []*models.PlanStep{{ID: "a", Title: "A"}}}},
		{name: "no steps", plan: &models.Plan{Objective: "objective"}},
		{
			name: "duplicate step ids",
			plan: testPlan(
				&models.PlanStep{ID: "a", Title: "A"},
				&models.PlanStep{ID: "a", Title: "A again"},
			),
		},
		{
			name: "unknown dependency",
			plan: testPlan(&models.PlanStep{ID: "a", Title: "A", DependsOn: []string{"ghost"}}),
		},
		{
			name: "unknown tool",
			plan: testPlan(&models.PlanStep{ID: "a", Title: "A", Tool: "ghost_tool"}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.orchestrator.StartRun(ctx, tt.plan, true)
			assert.ErrorIs(t, err, ErrInvalidPlan)
		})
	}
}

func TestGatedStepSuspendsThenApprovalResumes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	plan := testPlan(
		&models.PlanStep{ID: "write", Title: "Write", Tool: "stub_write",
			Args: map[string]any{"path": "out.txt", "content": "approved content"}},
		&models.PlanStep{ID: "read", Title: "Read after", Tool: "stub_read"},
	)

	run, err := env.orchestrator.StartRun(ctx, plan, true)
	require.NoError(t, err)

	// Safe mode holds the destructive step at a pending proposal.
	assert.Equal(t, models.RunStatusRunning, run.Status)
	assert.Equal(t, models.StepStatusPending, run.LatestEntryForStep("write").Status)
	assert.Nil(t, run.LatestEntryForStep("read"))
	assert.Equal(t, 0, env.writer.executions)

	entry, err := env.orchestrator.ApproveStep(ctx, run.ID, "write", "alice", "looks safe")
	require.NoError(t, err)

	assert.Equal(t, models.StepStatusApplied, entry.Status)
	require.Len(t, entry.Approvals, 1)
	assert.Equal(t, "alice", entry.Approvals[0].ApprovedBy)
	assert.Equal(t, 1, env.writer.executions)

	data, err := os.ReadFile(filepath.Join(env.ws, "out.txt"))
	require.NoError(t, err)
	assert.Equal(t, "approved content", string(data))

	// The rest of the run resumes in the background.
	final := env.waitForStatus(t, run.ID, models.RunStatusCompleted)
	assert.Equal(t, models.StepStatusApplied, final.LatestEntryForStep("read").Status)
	assert.InDelta(t, 100.0, final.CompletionPercent(), 0.001)
}

func TestApproveStepIdempotentAfterApply(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	plan := testPlan(&models.PlanStep{ID: "write", Title: "Write", Tool: "stub_write",
		Args: map[string]any{"path": "out.txt", "content": "once"}})

	run, err := env.orchestrator.StartRun(ctx, plan, true)
	require.NoError(t, err)

	_, err = env.orchestrator.ApproveStep(ctx, run.ID, "write", "alice", "")
	require.NoError(t, err)

	env.waitForStatus(t, run.ID, models.RunStatusCompleted)

	// A second approval accumulates without re-executing or regressing.
	entry, err := env.orchestrator.ApproveStep(ctx, run.ID, "write", "bob", "me too")
	require.NoError(t, err)

	assert.Equal(t, models.StepStatusApplied, entry.Status)
	require.Len(t, entry.Approvals, 2)
	assert.Equal(t, "bob", entry.Approvals[1].ApprovedBy)
	assert.Equal(t, 1, env.writer.executions)

	// The journal arena carries the same approvals as the persisted run.
	arenaEntry, err := env.journal.FindByStep(run.ID, "write")
	require.NoError(t, err)
	require.Len(t, arenaEntry.Approvals, 2)
	assert.Equal(t, "bob", arenaEntry.Approvals[1].ApprovedBy)
}

func TestApproveUnknownStep(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	plan := testPlan(&models.PlanStep{ID: "write", Title: "Write", Tool: "stub_write",
		Args: map[string]any{"path": "out.txt", "content": "x"}})

	run, err := env.orchestrator.StartRun(ctx, plan, true)
	require.NoError(t, err)

	_, err = env.orchestrator.ApproveStep(ctx, run.ID, "ghost", "alice", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestRequiredStepFailureFailsRun(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.writer.failWith = errors.New("disk full")

	plan := testPlan(
		&models.PlanStep{ID: "write", Title: "Write", Tool: "stub_write",
			Args: map[string]any{"path": "out.txt", "content": "x"}},
		&models.PlanStep{ID: "read", Title: "Never runs", Tool: "stub_read"},
	)

	run, err := env.orchestrator.StartRun(ctx, plan, false)
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusFailed, run.Status)
	assert.Equal(t, models.StepStatusFailed, run.LatestEntryForStep("write").Status)

	// Fail-fast: the later step never executed.
	assert.Nil(t, run.LatestEntryForStep("read"))
	assert.Equal(t, 0, env.reader.executions)
}

func TestOptionalStepFailureContinues(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.writer.failWith = errors.New("disk full")

	plan := testPlan(
		&models.PlanStep{ID: "write", Title: "Best effort", Tool: "stub_write", Optional: true,
			Args: map[string]any{"path": "out.txt", "content": "x"}},
		&models.PlanStep{ID: "read", Title: "Still runs", Tool: "stub_read"},
	)

	run, err := env.orchestrator.StartRun(ctx, plan, false)
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Equal(t, models.StepStatusFailed, run.LatestEntryForStep("write").Status)
	assert.Equal(t, models.StepStatusApplied, run.LatestEntryForStep("read").Status)
}

func TestDependencyOnFailedStep(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.writer.failWith = errors.New("disk full")

	plan := testPlan(
		&models.PlanStep{ID: "write", Title: "Fails", Tool: "stub_write", Optional: true,
			Args: map[string]any{"path": "out.txt", "content": "x"}},
		&models.PlanStep{ID: "dependent", Title: "Blocked", Tool: "stub_read",
			Optional: true, DependsOn: []string{"write"}},
		&models.PlanStep{ID: "independent", Title: "Free", Tool: "stub_read"},
	)

	run, err := env.orchestrator.StartRun(ctx, plan, false)
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Equal(t, models.StepStatusSkipped, run.LatestEntryForStep("dependent").Status)
	assert.Equal(t, models.StepStatusApplied, run.LatestEntryForStep("independent").Status)
}

func TestRequiredDependencyUnmetFailsRun(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.writer.failWith = errors.New("disk full")

	plan := testPlan(
		&models.PlanStep{ID: "write", Title: "Fails", Tool: "stub_write", Optional: true,
			Args: map[string]any{"path": "out.txt", "content": "x"}},
		&models.PlanStep{ID: "dependent", Title: "Required", Tool: "stub_read",
			DependsOn: []string{"write"}},
	)

	run, err := env.orchestrator.StartRun(ctx, plan, false)
	assert.ErrorIs(t, err, ErrDependencyUnmet)
	assert.Equal(t, models.RunStatusFailed, run.Status)
}

func TestCancelSuspendedRun(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	plan := testPlan(&models.PlanStep{ID: "write", Title: "Gated", Tool: "stub_write",
		Args: map[string]any{"path": "out.txt", "content": "x"}})

	run, err := env.orchestrator.StartRun(ctx, plan, true)
	require.NoError(t, err)
	require.Equal(t, models.RunStatusRunning, run.Status)

	cancelled, err := env.orchestrator.CancelRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCancelled, cancelled.Status)

	// The proposal stays pending; nothing is rolled back or applied.
	assert.Equal(t, models.StepStatusPending, cancelled.LatestEntryForStep("write").Status)
	assert.Equal(t, 0, env.writer.executions)

	// Cancel is only valid while running.
	_, err = env.orchestrator.CancelRun(ctx, run.ID)
	assert.ErrorIs(t, err, ErrRunNotActive)

	// Approving after cancellation is rejected too.
	_, err = env.orchestrator.ApproveStep(ctx, run.ID, "write", "alice", "")
	assert.ErrorIs(t, err, ErrRunNotActive)
}

func TestReplayRunStartsFresh(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	plan := testPlan(&models.PlanStep{ID: "write", Title: "Gated", Tool: "stub_write",
		Args: map[string]any{"path": "out.txt", "content": "first"}})

	original, err := env.orchestrator.StartRun(ctx, plan, true)
	require.NoError(t, err)

	_, err = env.orchestrator.ApproveStep(ctx, original.ID, "write", "alice", "")
	require.NoError(t, err)

	env.waitForStatus(t, original.ID, models.RunStatusCompleted)

	replayed, err := env.orchestrator.ReplayRun(ctx, original.ID)
	require.NoError(t, err)

	assert.NotEqual(t, original.ID, replayed.ID)
	assert.Equal(t, models.RunStatusRunning, replayed.Status)

	// The gate triggers again on replay; nothing executed a second time yet.
	assert.Equal(t, models.StepStatusPending, replayed.LatestEntryForStep("write").Status)
	assert.Empty(t, replayed.LatestEntryForStep("write").Approvals)
	assert.Equal(t, 1, env.writer.executions)
}
