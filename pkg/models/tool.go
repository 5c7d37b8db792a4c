package models

// ToolDescriptor describes a tool in the registry catalog: its name, whether
// it mutates state, and the JSON Schema contract its arguments must satisfy.
type ToolDescriptor struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Destructive bool        `json:"destructive"`
	Parameters  *JSONSchema `json:"parameters,omitempty"`

	// TargetParam names the argument that carries the path a destructive
	// tool mutates; the executor snapshots that path before applying.
	TargetParam  string       `json:"target_param,omitempty"`
	SnapshotKind SnapshotKind `json:"snapshot_kind,omitempty"`
}

// JSONSchema represents a JSON Schema for argument validation.
type JSONSchema struct {
	Type        string               `json:"type"`
	Properties  map[string]*Property `json:"properties,omitempty"`
	Required    []string             `json:"required,omitempty"`
	Title       string               `json:"title,omitempty"`
	Description string               `json:"description,omitempty"`
}

// Property represents a JSON Schema property.
type Property struct {
	Type        string               `json:"type"`
	Description string               `json:"description,omitempty"`
	Enum        []any                `json:"enum,omitempty"`
	Default     any                  `json:"default,omitempty"`
	Minimum     *float64             `json:"minimum,omitempty"`
	Items       *Property            `json:"items,omitempty"`
	Properties  map[string]*Property `json:"properties,omitempty"`
	Required    []string             `json:"required,omitempty"`
}
