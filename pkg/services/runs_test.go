package services

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datapilot/datapilot/pkg/executor"
	"github.com/datapilot/datapilot/pkg/journal"
	"github.com/datapilot/datapilot/pkg/locker"
	"github.com/datapilot/datapilot/pkg/models"
	"github.com/datapilot/datapilot/pkg/orchestrator"
	"github.com/datapilot/datapilot/pkg/persistence"
	"github.com/datapilot/datapilot/pkg/persistence/file"
	"github.com/datapilot/datapilot/pkg/planner"
	"github.com/datapilot/datapilot/pkg/registry"
	"github.com/datapilot/datapilot/pkg/rollback"
	"github.com/datapilot/datapilot/pkg/snapshot"
	"github.com/datapilot/datapilot/pkg/workspace"
)

type echoTool struct{}

func (e *echoTool) Descriptor() models.ToolDescriptor {
	return models.ToolDescriptor{Name: "echo"}
}

func (e *echoTool) Execute(_ context.Context, _ models.ExecutionContext, args map[string]any, _ *slog.Logger) (*models.ToolResult, error) {
	return &models.ToolResult{Output: args}, nil
}

// stubPlanner returns a canned plan for any objective.
type stubPlanner struct {
	calls int
}

func (p *stubPlanner) GeneratePlan(_ context.Context, objective string, _ map[string]any) (*models.Plan, error) {
	p.calls++

	return &models.Plan{
		Objective: objective,
		Steps:     []*models.PlanStep{{ID: "echo", Title: "Echo", Tool: "echo"}},
	}, nil
}

type serviceEnv struct {
	runs     *Runs
	recovery *Recovery
	tools    *Tools
	persist  persistence.Persistence
	snaps    *snapshot.Store
	planner  *stubPlanner
	ws       string
}

func newServiceEnv(t *testing.T) *serviceEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	wsRoot := t.TempDir()

	ws, err := workspace.New(wsRoot)
	require.NoError(t, err)

	p, err := file.NewFilePersistence(t.TempDir())
	require.NoError(t, err)

	snapshots, err := snapshot.NewStore(logger, p.SnapshotRepository(), locker.NewMemoryLocker(), t.TempDir())
	require.NoError(t, err)

	rollbacks := rollback.NewManager(logger, p.RollbackRepository(), snapshots, nil)

	reg := registry.NewRegistry(logger)
	reg.Register(&echoTool{})

	exec := executor.NewExecutor(logger, reg, journal.NewJournal(), snapshots, ws)
	orch := orchestrator.NewOrchestrator(logger, exec, p.RunRepository(), nil)

	pl := &stubPlanner{}

	return &serviceEnv{
		runs:     NewRuns(p, orch, pl),
		recovery: NewRecovery(p, snapshots, rollbacks),
		tools:    NewTools(reg),
		persist:  p,
		snaps:    snapshots,
		planner:  pl,
		ws:       wsRoot,
	}
}

func simplePlan() *models.Plan {
	return &models.Plan{
		Objective: "echo things",
		Steps:     []*models.PlanStep{{ID: "echo", Title: "Echo", Tool: "echo"}},
	}
}

func TestStartRunWithPlan(t *testing.T) {
	env := newServiceEnv(t)

	run, err := env.runs.StartRun(context.Background(), StartRunRequest{
		Plan:     simplePlan(),
		SafeMode: true,
	})
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Equal(t, 0, env.planner.calls)
}

func TestStartRunWithObjectiveUsesPlanner(t *testing.T) {
	env := newServiceEnv(t)

	run, err := env.runs.StartRun(context.Background(), StartRunRequest{
		Objective: "do something useful",
		SafeMode:  true,
	})
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Equal(t, 1, env.planner.calls)
	assert.Equal(t, "do something useful", run.Plan.Objective)
}

func TestStartRunWithoutPlanOrObjective(t *testing.T) {
	env := newServiceEnv(t)

	_, err := env.runs.StartRun(context.Background(), StartRunRequest{})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestStartRunObjectiveWithoutPlanner(t *testing.T) {
	env := newServiceEnv(t)
	env.runs.planner = nil

	_, err := env.runs.StartRun(context.Background(), StartRunRequest{Objective: "anything"})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestGetRunNotFound(t *testing.T) {
	env := newServiceEnv(t)

	_, err := env.runs.GetRun(context.Background(), "missing")
	assert.True(t, persistence.IsRunNotFound(err))
}

func TestListRunsPagination(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := env.runs.StartRun(ctx, StartRunRequest{Plan: simplePlan(), SafeMode: true})
		require.NoError(t, err)
	}

	result, err := env.runs.ListRuns(ctx, ListRunsRequest{Limit: 2})
	require.NoError(t, err)

	assert.EqualValues(t, 3, result.TotalCount)
	assert.Len(t, result.Runs, 2)
	assert.True(t, result.HasNextPage)

	result, err = env.runs.ListRuns(ctx, ListRunsRequest{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, result.Runs, 1)
	assert.False(t, result.HasNextPage)

	// Defaults kick in for a zero limit.
	result, err = env.runs.ListRuns(ctx, ListRunsRequest{})
	require.NoError(t, err)
	assert.Len(t, result.Runs, 3)
}

func TestListRunsStatusFilter(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	_, err := env.runs.StartRun(ctx, StartRunRequest{Plan: simplePlan(), SafeMode: true})
	require.NoError(t, err)

	result, err := env.runs.ListRuns(ctx, ListRunsRequest{Status: "completed"})
	require.NoError(t, err)
	assert.Len(t, result.Runs, 1)

	result, err = env.runs.ListRuns(ctx, ListRunsRequest{Status: "failed"})
	require.NoError(t, err)
	assert.Empty(t, result.Runs)
}

func TestApproveStepRequiresApprover(t *testing.T) {
	env := newServiceEnv(t)

	_, err := env.runs.ApproveStep(context.Background(), "run-1", "step-1", "", "")
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestCancelCompletedRunConflicts(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	run, err := env.runs.StartRun(ctx, StartRunRequest{Plan: simplePlan(), SafeMode: true})
	require.NoError(t, err)

	_, err = env.runs.CancelRun(ctx, run.ID)
	assert.True(t, IsConflictError(err))
}

func TestReplayRun(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	run, err := env.runs.StartRun(ctx, StartRunRequest{Plan: simplePlan(), SafeMode: true})
	require.NoError(t, err)

	replayed, err := env.runs.ReplayRun(ctx, run.ID)
	require.NoError(t, err)
	assert.NotEqual(t, run.ID, replayed.ID)
	assert.Equal(t, models.RunStatusCompleted, replayed.Status)
}

func TestRunsHealthCheck(t *testing.T) {
	env := newServiceEnv(t)

	message, ok := env.runs.HealthCheck(context.Background())
	assert.True(t, ok)
	assert.Contains(t, message, "healthy")
}

func TestNormalizePagination(t *testing.T) {
	tests := []struct {
		name                  string
		limit, offset         int
		wantLimit, wantOffset int
	}{
		{"defaults", 0, 0, 20, 0},
		{"negative offset", 10, -5, 10, 0},
		{"cap at hundred", 500, 3, 100, 3},
		{"valid passthrough", 50, 10, 50, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limit, offset := tt.limit, tt.offset
			normalizePagination(&limit, &offset)

			assert.Equal(t, tt.wantLimit, limit)
			assert.Equal(t, tt.wantOffset, offset)
		})
	}
}

var _ planner.Planner = (*stubPlanner)(nil)
