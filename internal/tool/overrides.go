package tool

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/akindolabs/akindo/internal/errors"
)

type overrideFile struct {
	Tools []overrideEntry `yaml:"tools"`
}

type overrideEntry struct {
	ID          string               `yaml:"id"`
	Name        *string              `yaml:"name,omitempty"`
	Description *string              `yaml:"description,omitempty"`
	Category    *string              `yaml:"category,omitempty"`
	Params      map[string]ParamSpec `yaml:"params,omitempty"`
	RateLimit   *RateLimit           `yaml:"rate_limit,omitempty"`
}

// ApplyOverrides patches already-registered definitions from YAML. This is
// how deployments tune tool copy and rate limits per market without a
// rebuild. Unknown ids are an error; an override must never silently miss.
func (r *Registry) ApplyOverrides(data []byte) error {
	var of overrideFile
	if err := yaml.Unmarshal(data, &of); err != nil {
		return errors.Validation("INVALID_TOOL_CONFIG", "parse tool overrides").WithCause(err)
	}

	for _, o := range of.Tools {
		if o.ID == "" {
			return errors.Validation("INVALID_TOOL_CONFIG", "tool override missing id")
		}
		if err := r.Update(o.ID, Patch{
			Name:        o.Name,
			Description: o.Description,
			Category:    o.Category,
			Params:      o.Params,
			RateLimit:   o.RateLimit,
		}); err != nil {
			return err
		}
	}
	return nil
}

// ApplyOverrideFiles reads and applies each override file in order; later
// files win.
func (r *Registry) ApplyOverrideFiles(paths []string) error {
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return errors.Validation("TOOL_CONFIG_UNREADABLE", "read tool overrides: "+path).WithCause(err)
		}
		if err := r.ApplyOverrides(data); err != nil {
			return err
		}
	}
	return nil
}
