package tool

import (
	"fmt"
	"sort"

	"github.com/akindolabs/akindo/internal/errors"
)

// Schema is a compiled parameter validator. Parse enforces required fields,
// types, numeric bounds and enums, and fills defaults for absent optional
// parameters.
type Schema struct {
	params map[string]ParamSpec
}

// BuildSchema compiles a declarative ParamSpec table into a validator.
func BuildSchema(params map[string]ParamSpec) *Schema {
	return &Schema{params: params}
}

func (sc *Schema) Parse(input map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(sc.params))

	// Deterministic iteration keeps error messages stable.
	names := make([]string, 0, len(sc.params))
	for name := range sc.params {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		spec := sc.params[name]
		value, present := input[name]

		if !present {
			if spec.Required {
				return nil, errors.Validation("MISSING_PARAMETER", fmt.Sprintf("missing required parameter %q", name))
			}
			if spec.Default != nil {
				out[name] = normalizeDefault(spec)
			}
			continue
		}

		coerced, err := coerce(name, spec, value)
		if err != nil {
			return nil, err
		}
		out[name] = coerced
	}

	// Unknown fields are dropped rather than rejected: model-produced
	// arguments routinely carry extras.
	return out, nil
}

func normalizeDefault(spec ParamSpec) any {
	if spec.Type == TypeInteger {
		if f, ok := spec.Default.(float64); ok {
			return int(f)
		}
	}
	return spec.Default
}

func coerce(name string, spec ParamSpec, value any) (any, error) {
	switch spec.Type {
	case TypeString:
		s, ok := value.(string)
		if !ok {
			return nil, typeError(name, spec.Type, value)
		}
		if len(spec.Enum) > 0 && !containsString(spec.Enum, s) {
			return nil, errors.Validation("INVALID_ENUM_VALUE",
				fmt.Sprintf("parameter %q must be one of %v", name, spec.Enum))
		}
		return s, nil

	case TypeNumber:
		f, ok := toFloat(value)
		if !ok {
			return nil, typeError(name, spec.Type, value)
		}
		if err := checkBounds(name, spec, f); err != nil {
			return nil, err
		}
		return f, nil

	case TypeInteger:
		f, ok := toFloat(value)
		if !ok || f != float64(int64(f)) {
			return nil, typeError(name, spec.Type, value)
		}
		if err := checkBounds(name, spec, f); err != nil {
			return nil, err
		}
		return int(f), nil

	case TypeBoolean:
		b, ok := value.(bool)
		if !ok {
			return nil, typeError(name, spec.Type, value)
		}
		return b, nil

	case TypeArray:
		arr, ok := value.([]any)
		if !ok {
			return nil, typeError(name, spec.Type, value)
		}
		return arr, nil

	case TypeObject:
		obj, ok := value.(map[string]any)
		if !ok {
			return nil, typeError(name, spec.Type, value)
		}
		return obj, nil

	default:
		return value, nil
	}
}

func checkBounds(name string, spec ParamSpec, f float64) error {
	if spec.Min != nil && f < *spec.Min {
		return errors.Validation("VALUE_BELOW_MINIMUM",
			fmt.Sprintf("parameter %q must be >= %v", name, *spec.Min))
	}
	if spec.Max != nil && f > *spec.Max {
		return errors.Validation("VALUE_ABOVE_MAXIMUM",
			fmt.Sprintf("parameter %q must be <= %v", name, *spec.Max))
	}
	return nil
}

func typeError(name string, want ParamType, got any) error {
	return errors.Validation("INVALID_PARAMETER_TYPE",
		fmt.Sprintf("parameter %q expected %s, got %T", name, want, got))
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

// Float and Int read coerced parameters in implementations.

func Float(params map[string]any, name string, fallback float64) float64 {
	if f, ok := toFloat(params[name]); ok {
		return f
	}
	return fallback
}

func Int(params map[string]any, name string, fallback int) int {
	if f, ok := toFloat(params[name]); ok {
		return int(f)
	}
	return fallback
}

func String(params map[string]any, name string, fallback string) string {
	if s, ok := params[name].(string); ok {
		return s
	}
	return fallback
}
