package catalog

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/ejmockler/indra-cogex-mcp/internal/types"
)

// ParamType is the declared type of a query parameter.
type ParamType string

const (
	ParamString ParamType = "string"
	ParamInt    ParamType = "int"
	ParamFloat  ParamType = "float"
	ParamBool   ParamType = "bool"
	ParamList   ParamType = "list"
	ParamAny    ParamType = "any"
)

// IsValid reports whether t is a known parameter type. The empty type means string.
func (t ParamType) IsValid() bool {
	switch t {
	case "", ParamString, ParamInt, ParamFloat, ParamBool, ParamList, ParamAny:
		return true
	default:
		return false
	}
}

// Param declares one query parameter.
type Param struct {
	Name        string    `yaml:"name" json:"name"`
	Type        ParamType `yaml:"type,omitempty" json:"type,omitempty"`
	Required    bool      `yaml:"required,omitempty" json:"required,omitempty"`
	Default     any       `yaml:"default,omitempty" json:"default,omitempty"`
	Description string    `yaml:"description,omitempty" json:"description,omitempty"`
}

// Bind validates params against the query's schema and returns a new map
// with values coerced to their declared types and defaults filled in.
// Strings are accepted for every scalar type so CLI and query-string input
// binds the same way as JSON.
//
// Failures are domain errors with code INVALID_QUERY.
func (q Query) Bind(params map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(q.Params))
	declared := make(map[string]bool, len(q.Params))

	for _, p := range q.Params {
		declared[p.Name] = true

		v, ok := params[p.Name]
		if !ok || v == nil {
			switch {
			case p.Default != nil:
				v = p.Default
			case p.Required:
				return nil, invalid(q.Name, "missing required parameter %q", p.Name)
			default:
				continue
			}
		}

		cv, err := p.Type.coerce(v)
		if err != nil {
			return nil, invalid(q.Name, "parameter %q: %v", p.Name, err)
		}
		out[p.Name] = cv
	}

	var unexpected []string
	for name := range params {
		if !declared[name] {
			unexpected = append(unexpected, name)
		}
	}
	if len(unexpected) > 0 {
		sort.Strings(unexpected)
		return nil, invalid(q.Name, "unexpected parameters: %s", strings.Join(unexpected, ", "))
	}
	return out, nil
}

func invalid(query, format string, args ...any) error {
	return types.NewDomainError(types.INVALID_QUERY, types.BackendUnspecified,
		fmt.Sprintf("query %q: ", query)+fmt.Sprintf(format, args...), nil)
}

func (t ParamType) coerce(v any) (any, error) {
	switch t {
	case "", ParamString:
		switch x := v.(type) {
		case string:
			return x, nil
		case fmt.Stringer:
			return x.String(), nil
		}
		return nil, fmt.Errorf("expected string, got %T", v)

	case ParamInt:
		return toInt(v)

	case ParamFloat:
		return toFloat(v)

	case ParamBool:
		switch x := v.(type) {
		case bool:
			return x, nil
		case string:
			b, err := strconv.ParseBool(x)
			if err != nil {
				return nil, fmt.Errorf("expected bool, got %q", x)
			}
			return b, nil
		}
		return nil, fmt.Errorf("expected bool, got %T", v)

	case ParamList:
		switch x := v.(type) {
		case []any:
			return x, nil
		case []string:
			out := make([]any, len(x))
			for i, s := range x {
				out[i] = s
			}
			return out, nil
		case string:
			parts := strings.Split(x, ",")
			out := make([]any, 0, len(parts))
			for _, s := range parts {
				if s = strings.TrimSpace(s); s != "" {
					out = append(out, s)
				}
			}
			return out, nil
		}
		return nil, fmt.Errorf("expected list, got %T", v)

	case ParamAny:
		return v, nil
	}
	return nil, fmt.Errorf("unknown type %q", t)
}

func toInt(v any) (int64, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case uint:
		if uint64(x) > math.MaxInt64 {
			return 0, fmt.Errorf("integer %d out of range", x)
		}
		return int64(x), nil
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) {
			return 0, fmt.Errorf("expected integer, got %v", x)
		}
		if x < math.MinInt64 || x >= math.MaxInt64 {
			return 0, fmt.Errorf("integer %v out of range", x)
		}
		return int64(x), nil
	case json.Number:
		return x.Int64()
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("expected integer, got %q", x)
		}
		return n, nil
	}
	return 0, fmt.Errorf("expected integer, got %T", v)
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case json.Number:
		return x.Float64()
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, fmt.Errorf("expected number, got %q", x)
		}
		return f, nil
	}
	return 0, fmt.Errorf("expected number, got %T", v)
}
