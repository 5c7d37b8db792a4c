package main

import (
	"context"
	"os"
	"time"

	cli "github.com/urfave/cli/v3"

	"github.com/datapilot/datapilot/pkg/cmd"
	"github.com/datapilot/datapilot/pkg/log"
	"github.com/datapilot/datapilot/pkg/retention"
)

const defaultPort = 9091

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "datapilot-api",
		Usage:                 "Serve the run orchestration API",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence (file path or postgres URL)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "workspace-root",
				Usage:    "Root directory runs are allowed to touch",
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
			&cli.StringFlag{
				Name:    "plan-path",
				Usage:   "Plan document used for objective-only run requests",
				Sources: cli.EnvVars("PLAN_PATH"),
			},
			&cli.StringFlag{
				Name:    "retention-schedule",
				Usage:   "Cron schedule for the snapshot retention sweep",
				Value:   "0 3 * * *",
				Sources: cli.EnvVars("RETENTION_SCHEDULE"),
			},
			&cli.DurationFlag{
				Name:    "retention-max-age",
				Usage:   "Age beyond which snapshots are pruned",
				Value:   30 * 24 * time.Hour,
				Sources: cli.EnvVars("RETENTION_MAX_AGE"),
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

			logger.InfoContext(ctx, "Initializing DataPilot API")

			core, err := cmd.NewCore(ctx, logger, cmd.CoreConfig{
				ServiceName:      "datapilot-api",
				WorkspaceRoot:    command.String("workspace-root"),
				DataDir:          command.String("data-dir"),
				DatabaseURL:      command.String("database-url"),
				RedisURL:         command.String("redis-url"),
				EventBusProvider: command.String("event-bus"),
				PluginsPath:      command.String("plugins-path"),
				PlanPath:         command.String("plan-path"),
			})
			if err != nil {
				return err
			}
			defer core.Close(ctx)

			sweeper := retention.NewSweeper(logger, core.Persistence.SnapshotRepository(),
				command.String("retention-schedule"), command.Duration("retention-max-age"))
			if err := sweeper.Start(ctx); err != nil {
				return err
			}
			defer sweeper.Stop()

			api := NewAPI(logger, core)

			return api.Start(int(command.Int("port")))
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
