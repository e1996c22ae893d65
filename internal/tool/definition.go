package tool

import (
	"context"

	"github.com/akindolabs/akindo/internal/state"
)

// ParamType enumerates the declarative schema types.
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeNumber  ParamType = "number"
	TypeInteger ParamType = "integer"
	TypeBoolean ParamType = "boolean"
	TypeArray   ParamType = "array"
	TypeObject  ParamType = "object"
)

// ParamSpec describes one parameter declaratively; the schema compiler turns
// a ParamSpec table into a runtime validator.
type ParamSpec struct {
	Type        ParamType `yaml:"type"`
	Required    bool      `yaml:"required"`
	Default     any       `yaml:"default,omitempty"`
	Min         *float64  `yaml:"min,omitempty"`
	Max         *float64  `yaml:"max,omitempty"`
	Enum        []string  `yaml:"enum,omitempty"`
	Description string    `yaml:"description,omitempty"`
}

type RateLimit struct {
	PerMinute int `yaml:"per_minute"`
}

type SecurityConstraints struct {
	RequireAuth    bool     `yaml:"require_auth"`
	AllowedRoles   []string `yaml:"allowed_roles,omitempty"`
	ValidateInput  bool     `yaml:"validate_input"`
	ValidateOutput bool     `yaml:"validate_output"`
}

// Definition is the registered description of one action the model may
// request.
type Definition struct {
	ID          string               `yaml:"id"`
	Name        string               `yaml:"name"`
	Description string               `yaml:"description"`
	Category    string               `yaml:"category"`
	Modes       []state.Mode         `yaml:"modes"`
	Params      map[string]ParamSpec `yaml:"params"`
	Returns     map[string]ParamType `yaml:"returns,omitempty"`
	RateLimit   *RateLimit           `yaml:"rate_limit,omitempty"`
	Security    *SecurityConstraints `yaml:"security,omitempty"`
}

// SupportsMode reports whether the definition is usable in the given mode.
// An empty mode list means the tool works in every mode. An unclassified
// session counts as consumer, mirroring the quantity ceilings.
func (d Definition) SupportsMode(mode state.Mode) bool {
	if len(d.Modes) == 0 {
		return true
	}
	if mode == state.ModeUnknown {
		mode = state.ModeB2C
	}
	for _, m := range d.Modes {
		if m == mode {
			return true
		}
	}
	return false
}

// Implementation executes an action against the commerce backend and
// describes the outcome purely as state-update commands.
type Implementation func(ctx context.Context, params map[string]any, s *state.Session) ([]state.Command, error)

// JSONSchema renders the parameter table in the wire shape model providers
// expect for tool binding.
func (d Definition) JSONSchema() map[string]any {
	properties := make(map[string]any, len(d.Params))
	var required []string
	for name, spec := range d.Params {
		prop := map[string]any{"type": string(spec.Type)}
		if spec.Description != "" {
			prop["description"] = spec.Description
		}
		if len(spec.Enum) > 0 {
			prop["enum"] = spec.Enum
		}
		if spec.Min != nil {
			prop["minimum"] = *spec.Min
		}
		if spec.Max != nil {
			prop["maximum"] = *spec.Max
		}
		properties[name] = prop
		if spec.Required {
			required = append(required, name)
		}
	}

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
