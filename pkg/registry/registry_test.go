package registry

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datapilot/datapilot/pkg/models"
)

type stubTool struct {
	name string
}

func (s *stubTool) Descriptor() models.ToolDescriptor {
	return models.ToolDescriptor{Name: s.name}
}

func (s *stubTool) Execute(_ context.Context, _ models.ExecutionContext, _ map[string]any, _ *slog.Logger) (*models.ToolResult, error) {
	return &models.ToolResult{}, nil
}

func newTestRegistry() *Registry {
	return NewRegistry(slog.New(slog.NewTextHandler(os.Stdout, nil)))
}

func TestRegisterAndResolve(t *testing.T) {
	reg := newTestRegistry()
	reg.Register(&stubTool{name: "read_file"})

	tool, err := reg.Resolve("read_file")
	require.NoError(t, err)
	assert.Equal(t, "read_file", tool.Descriptor().Name)
}

func TestResolveUnknownTool(t *testing.T) {
	reg := newTestRegistry()

	_, err := reg.Resolve("nope")
	assert.ErrorIs(t, err, ErrUnknownTool)
	assert.Contains(t, err.Error(), "nope")
}

func TestRegisterReplacesSameName(t *testing.T) {
	reg := newTestRegistry()

	first := &stubTool{name: "write_file"}
	second := &stubTool{name: "write_file"}

	reg.Register(first)
	reg.Register(second)

	tool, err := reg.Resolve("write_file")
	require.NoError(t, err)
	assert.Same(t, second, tool)
}

func TestListDescriptorsSorted(t *testing.T) {
	reg := newTestRegistry()
	reg.Register(&stubTool{name: "write_file"})
	reg.Register(&stubTool{name: "append_file"})
	reg.Register(&stubTool{name: "list_dir"})

	descriptors := reg.ListDescriptors()

	require.Len(t, descriptors, 3)
	assert.Equal(t, "append_file", descriptors[0].Name)
	assert.Equal(t, "list_dir", descriptors[1].Name)
	assert.Equal(t, "write_file", descriptors[2].Name)
}

func TestHealthCheck(t *testing.T) {
	reg := newTestRegistry()

	message, ok := reg.HealthCheck()
	assert.False(t, ok)
	assert.Contains(t, message, "empty")

	reg.Register(&stubTool{name: "read_file"})

	message, ok = reg.HealthCheck()
	assert.True(t, ok)
	assert.Contains(t, message, "1 tools")
}
