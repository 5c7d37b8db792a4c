// Package cmd provides common initialization functions for command-line
// applications.
package cmd

import (
	"log/slog"

	"github.com/datapilot/datapilot/pkg/dataset"
	"github.com/datapilot/datapilot/pkg/registry"
	"github.com/datapilot/datapilot/pkg/rollback"
	"github.com/datapilot/datapilot/pkg/snapshot"
	"github.com/datapilot/datapilot/pkg/tools/appendfile"
	"github.com/datapilot/datapilot/pkg/tools/datarun"
	"github.com/datapilot/datapilot/pkg/tools/listdir"
	"github.com/datapilot/datapilot/pkg/tools/previewdataset"
	"github.com/datapilot/datapilot/pkg/tools/readfile"
	"github.com/datapilot/datapilot/pkg/tools/replacetext"
	"github.com/datapilot/datapilot/pkg/tools/rollbackreq"
	"github.com/datapilot/datapilot/pkg/tools/snapshotter"
	"github.com/datapilot/datapilot/pkg/tools/writefile"
	"github.com/datapilot/datapilot/pkg/workspace"
)

// NewRegistry builds the tool catalog: native tools first, then any plugins
// found under pluginsPath.
func NewRegistry(
	logger *slog.Logger,
	ws *workspace.Workspace,
	previews dataset.PreviewProvider,
	snapshots *snapshot.Store,
	rollbacks *rollback.Manager,
	pluginsPath string,
) (*registry.Registry, error) {
	reg := registry.NewRegistry(logger)

	reg.Register(listdir.NewTool(ws))
	reg.Register(readfile.NewTool(ws))
	reg.Register(writefile.NewTool(ws))
	reg.Register(appendfile.NewTool(ws))
	reg.Register(replacetext.NewTool(ws))
	reg.Register(previewdataset.NewTool(previews))
	reg.Register(snapshotter.NewTool(snapshots, ws))
	reg.Register(rollbackreq.NewTool(rollbacks))

	if pluginsPath != "" {
		if err := reg.LoadToolPlugins(pluginsPath); err != nil {
			return nil, err
		}
	}

	return reg, nil
}

// RegisterRunTools adds the tools that need the orchestrator itself, which
// exists only after the registry does.
func RegisterRunTools(reg *registry.Registry, starter datarun.Starter) {
	reg.Register(datarun.NewTool(starter))
}
