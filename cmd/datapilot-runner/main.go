// Package main provides the headless runner: it loads a plan document,
// drives a run to completion and reports the outcome.
package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/datapilot/datapilot/pkg/log"
)

func main() {
	logger := log.WithModule("runner")

	command := &cli.Command{
		Name:                  "datapilot-runner",
		Usage:                 "Execute a plan document as a single run",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "plan-file",
				Usage:    "Path to the plan document to execute",
				Required: true,
				Sources:  cli.EnvVars("PLAN_FILE"),
			},
			&cli.StringFlag{
				Name:    "objective",
				Usage:   "Objective stamped onto the plan",
				Sources: cli.EnvVars("OBJECTIVE"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence (file path or postgres URL)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "workspace-root",
				Usage:    "Root directory the run is allowed to touch",
				Required: true,
				Sources:  cli.EnvVars("WORKSPACE_ROOT"),
			},
			&cli.StringFlag{
				Name:    "data-dir",
				Usage:   "Directory for snapshots and artifacts",
				Value:   "./data",
				Sources: cli.EnvVars("DATA_DIR"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (memory, kafka)",
				Value:   "memory",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for cross-process target locking",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "plugins-path",
				Usage:   "Path to the directory containing tool plugins",
				Sources: cli.EnvVars("PLUGINS_PATH"),
			},
			&cli.BoolFlag{
				Name:  "unsafe",
				Usage: "Disable safe mode, letting destructive steps auto-apply",
			},
			&cli.StringFlag{
				Name:  "auto-approve-as",
				Usage: "Approve gated steps automatically as this identity",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			return runPlan(ctx, logger, command)
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		logger.Error("Runner failed", "error", err)
		os.Exit(1)
	}
}
