package cmd

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/datapilot/datapilot/pkg/dataset"
	"github.com/datapilot/datapilot/pkg/eventbus"
	"github.com/datapilot/datapilot/pkg/executor"
	"github.com/datapilot/datapilot/pkg/journal"
	"github.com/datapilot/datapilot/pkg/orchestrator"
	"github.com/datapilot/datapilot/pkg/persistence"
	"github.com/datapilot/datapilot/pkg/planner"
	"github.com/datapilot/datapilot/pkg/registry"
	"github.com/datapilot/datapilot/pkg/rollback"
	"github.com/datapilot/datapilot/pkg/services"
	"github.com/datapilot/datapilot/pkg/snapshot"
	"github.com/datapilot/datapilot/pkg/workspace"
)

// CoreConfig carries the settings shared by every binary.
type CoreConfig struct {
	ServiceName      string
	WorkspaceRoot    string
	DataDir          string
	DatabaseURL      string
	RedisURL         string
	EventBusProvider string
	PluginsPath      string

	// PlanPath optionally points at a plan document for objective-only run
	// requests; when empty those requests are rejected.
	PlanPath string
}

// Core is the wired object graph behind both binaries.
type Core struct {
	Logger       *slog.Logger
	Workspace    *workspace.Workspace
	Persistence  persistence.Persistence
	EventBus     eventbus.EventBus
	Snapshots    *snapshot.Store
	Rollbacks    *rollback.Manager
	Journal      *journal.Journal
	Registry     *registry.Registry
	Executor     *executor.Executor
	Orchestrator *orchestrator.Orchestrator
	Datasets     *dataset.FileStore

	RunService      *services.Runs
	RecoveryService *services.Recovery
	ToolService     *services.Tools
}

// NewCore builds the full object graph bottom-up.
func NewCore(ctx context.Context, logger *slog.Logger, cfg CoreConfig) (*Core, error) {
	ws, err := workspace.New(cfg.WorkspaceRoot)
	if err != nil {
		return nil, err
	}

	store, err := NewPersistence(ctx, logger, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	targetLocker, err := NewTargetLocker(cfg.RedisURL)
	if err != nil {
		return nil, err
	}

	snapshots, err := snapshot.NewStore(logger, store.SnapshotRepository(), targetLocker,
		filepath.Join(cfg.DataDir, "snapshots"))
	if err != nil {
		return nil, err
	}

	bus, err := NewEventBus(cfg.EventBusProvider, cfg.ServiceName, logger)
	if err != nil {
		return nil, err
	}

	rollbacks := rollback.NewManager(logger, store.RollbackRepository(), snapshots, bus)

	datasets, err := dataset.NewFileStore(ws, filepath.Join(cfg.DataDir, "artifacts"))
	if err != nil {
		return nil, err
	}

	reg, err := NewRegistry(logger, ws, datasets, snapshots, rollbacks, cfg.PluginsPath)
	if err != nil {
		return nil, err
	}

	jrnl := journal.NewJournal()
	exec := executor.NewExecutor(logger, reg, jrnl, snapshots, ws)

	orch := orchestrator.NewOrchestrator(logger, exec, store.RunRepository(), bus)
	orch.SetArtifactStore(datasets)

	RegisterRunTools(reg, orch)

	var pl planner.Planner
	if cfg.PlanPath != "" {
		pl = planner.NewFilePlanner(cfg.PlanPath)
	}

	return &Core{
		Logger:          logger,
		Workspace:       ws,
		Persistence:     store,
		EventBus:        bus,
		Snapshots:       snapshots,
		Rollbacks:       rollbacks,
		Journal:         jrnl,
		Registry:        reg,
		Executor:        exec,
		Orchestrator:    orch,
		Datasets:        datasets,
		RunService:      services.NewRuns(store, orch, pl),
		RecoveryService: services.NewRecovery(store, snapshots, rollbacks),
		ToolService:     services.NewTools(reg),
	}, nil
}

// Close releases the core's external resources.
func (c *Core) Close(ctx context.Context) {
	if err := c.EventBus.Close(); err != nil {
		c.Logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
	}

	if err := c.Persistence.Close(ctx); err != nil {
		c.Logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
	}
}
