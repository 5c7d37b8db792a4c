package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	cli "github.com/urfave/cli/v3"

	"github.com/datapilot/datapilot/pkg/cmd"
	"github.com/datapilot/datapilot/pkg/models"
	"github.com/datapilot/datapilot/pkg/planner"
)

func runPlan(ctx context.Context, logger *slog.Logger, command *cli.Command) error {
	core, err := cmd.NewCore(ctx, logger, cmd.CoreConfig{
		ServiceName:      "datapilot-runner",
		WorkspaceRoot:    command.String("workspace-root"),
		DataDir:          command.String("data-dir"),
		DatabaseURL:      command.String("database-url"),
		RedisURL:         command.String("redis-url"),
		EventBusProvider: command.String("event-bus"),
		PluginsPath:      command.String("plugins-path"),
	})
	if err != nil {
		return err
	}
	defer core.Close(ctx)

	plan, err := planner.NewFilePlanner(command.String("plan-file")).
		GeneratePlan(ctx, command.String("objective"), nil)
	if err != nil {
		return err
	}

	safeMode := !command.Bool("unsafe")

	run, err := core.Orchestrator.StartRun(ctx, plan, safeMode)
	if err != nil {
		return err
	}

	approver := command.String("auto-approve-as")

	// A gated step suspends the run; without an approver identity the runner
	// reports the pending step and leaves the run resumable through the API.
	for run.Status == models.RunStatusRunning {
		pending := pendingStep(run)
		if pending == nil {
			// Approval resumes the rest of the run in the background; poll
			// until it settles or suspends on the next gate.
			time.Sleep(50 * time.Millisecond)
		} else {
			if approver == "" {
				logger.InfoContext(ctx, "Run suspended awaiting approval",
					"run_id", run.ID, "step_id", pending.StepID)

				return nil
			}

			if _, err := core.Orchestrator.ApproveStep(ctx, run.ID, pending.StepID, approver, "auto-approved by runner"); err != nil {
				return err
			}
		}

		run, err = core.Persistence.RunRepository().GetByID(ctx, run.ID)
		if err != nil {
			return err
		}
	}

	logger.InfoContext(ctx, "Run finished",
		"run_id", run.ID,
		"status", run.Status,
		"completion_percent", run.CompletionPercent())

	if run.Status == models.RunStatusFailed {
		return fmt.Errorf("run %s failed", run.ID)
	}

	return nil
}

func pendingStep(run *models.Run) *models.LogEntry {
	for _, step := range run.Plan.Steps {
		entry := run.LatestEntryForStep(step.ID)
		if entry != nil && entry.Status == models.StepStatusPending {
			return entry
		}
	}

	return nil
}
