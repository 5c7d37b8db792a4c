// Package registry holds the static catalog of tools available to the
// executor. The catalog is read-only after process start.
package registry

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"plugin"
	"sort"

	"github.com/datapilot/datapilot/pkg/models"
	"github.com/datapilot/datapilot/pkg/protocol"
)

// ErrUnknownTool indicates a plan referenced a tool that is not registered.
var ErrUnknownTool = errors.New("unknown tool")

type Registry struct {
	logger *slog.Logger
	tools  map[string]protocol.Tool
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger: logger,
		tools:  make(map[string]protocol.Tool),
	}
}

// Register adds a tool to the catalog. Later registrations with the same
// name replace earlier ones; registration happens only during startup.
func (r *Registry) Register(tool protocol.Tool) {
	r.tools[tool.Descriptor().Name] = tool
}

// Resolve returns the tool registered under name.
func (r *Registry) Resolve(name string) (protocol.Tool, error) {
	tool, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	return tool, nil
}

// ListDescriptors returns the catalog sorted by tool name.
func (r *Registry) ListDescriptors() []models.ToolDescriptor {
	descriptors := make([]models.ToolDescriptor, 0, len(r.tools))
	for _, tool := range r.tools {
		descriptors = append(descriptors, tool.Descriptor())
	}

	sort.Slice(descriptors, func(i, j int) bool {
		return descriptors[i].Name < descriptors[j].Name
	})

	return descriptors
}

func (r *Registry) HealthCheck() (string, bool) {
	if len(r.tools) == 0 {
		return "Tool registry is empty", false
	}

	return fmt.Sprintf("Tool registry is healthy (%d tools)", len(r.tools)), true
}

// LoadToolPlugins opens every .so under pluginsPath/tools and registers the
// tool each plugin's ToolFactory symbol builds.
func (r *Registry) LoadToolPlugins(pluginsPath string) error {
	rootPath := pluginsPath + "/tools"
	root := os.DirFS(rootPath)

	pluginPathList, err := fs.Glob(root, "**/*.so")
	if err != nil {
		return err
	}

	l := r.logger.With(slog.String("path", rootPath))
	l.Info("Loading tool plugins")

	for _, p := range pluginPathList {
		plg, err := plugin.Open(rootPath + "/" + p)
		if err != nil {
			return fmt.Errorf("failed to open plugin %s: %w", p, err)
		}

		symbol, err := plg.Lookup("ToolFactory")
		if err != nil {
			return fmt.Errorf("plugin %s has no ToolFactory symbol: %w", p, err)
		}

		factory, ok := symbol.(protocol.ToolFactory)
		if !ok {
			return fmt.Errorf("plugin %s ToolFactory symbol has wrong type", p)
		}

		tool, err := factory.Create(map[string]any{})
		if err != nil {
			return fmt.Errorf("plugin %s factory failed: %w", p, err)
		}

		r.Register(tool)
		l.Info("Loaded tool plugin", slog.String("plugin", p), slog.String("tool", factory.ID()))
	}

	return nil
}
