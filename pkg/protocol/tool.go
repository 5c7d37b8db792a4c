// Package protocol defines the interfaces tools implement to be driven by
// the step executor.
package protocol

import (
	"context"
	"log/slog"

	"github.com/datapilot/datapilot/pkg/models"
)

// Tool is a named, schema-validated capability invocable by the executor.
// Execute is only called with arguments that already passed the descriptor's
// parameter contract.
type Tool interface {
	Descriptor() models.ToolDescriptor
	Execute(ctx context.Context, execCtx models.ExecutionContext, args map[string]any, logger *slog.Logger) (*models.ToolResult, error)
}

// DryRunner is implemented by tools that support inspection without mutation.
// The executor calls DryRun for gated steps that have not been approved yet;
// tools that do not implement it are simply not invoked in that phase.
type DryRunner interface {
	DryRun(ctx context.Context, execCtx models.ExecutionContext, args map[string]any, logger *slog.Logger) (*models.ToolResult, error)
}

// ToolFactory builds a tool instance from static configuration. Plugins
// export a symbol of this type.
type ToolFactory interface {
	ID() string
	Create(config map[string]any) (Tool, error)
}
