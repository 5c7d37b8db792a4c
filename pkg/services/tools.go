package services

import (
	"github.com/datapilot/datapilot/pkg/models"
	"github.com/datapilot/datapilot/pkg/registry"
)

// Tools exposes the tool catalog to the API layer.
type Tools struct {
	registry *registry.Registry
}

func NewTools(reg *registry.Registry) *Tools {
	return &Tools{registry: reg}
}

// ListTools returns every registered tool descriptor, sorted by name.
func (s *Tools) ListTools() []models.ToolDescriptor {
	return s.registry.ListDescriptors()
}

// HealthCheck checks the registry has tools loaded.
func (s *Tools) HealthCheck() (string, bool) {
	return s.registry.HealthCheck()
}
