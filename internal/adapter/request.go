package adapter

import (
	"maps"
	"time"

	"github.com/ejmockler/indra-cogex-mcp/internal/backend"
	"github.com/ejmockler/indra-cogex-mcp/internal/types"
)

// Origin says where a result came from.
type Origin string

const (
	OriginPrimary  Origin = "primary"
	OriginFallback Origin = "fallback"
	OriginCache    Origin = "cache"
)

// String returns the string representation of Origin.
func (o Origin) String() string {
	return string(o)
}

func originOf(b types.Backend) Origin {
	if b == types.BackendFallback {
		return OriginFallback
	}
	return OriginPrimary
}

// Request is one logical query. Build it with NewRequest; the adapter never
// modifies it.
type Request struct {
	Name   string         `json:"name"`
	Params map[string]any `json:"params,omitempty"`
	// Timeout bounds the whole Execute call. Zero means the adapter default.
	Timeout time.Duration `json:"timeout,omitempty"`
}

// NewRequest builds a Request that owns a copy of params.
func NewRequest(name string, params map[string]any, timeout time.Duration) Request {
	return Request{Name: name, Params: cloneValue(params).(map[string]any), Timeout: timeout}
}

// Result is the answer to a Request. Callers own Records.
type Result struct {
	Records []backend.Record `json:"records"`
	Success bool             `json:"success"`
	// Origin is CACHE for cache hits, otherwise the backend that answered.
	Origin Origin `json:"origin"`
	// Backend is the backend that produced the records, including for cache hits.
	Backend   types.Backend `json:"backend"`
	FromCache bool          `json:"from_cache"`
	Elapsed   time.Duration `json:"elapsed"`
	// Attempts is the number of backend calls made for this result.
	Attempts int `json:"attempts"`
}

// clone returns a deep copy of r so every holder owns its records.
func (r Result) clone() Result {
	if r.Records != nil {
		records := make([]backend.Record, len(r.Records))
		for i, rec := range r.Records {
			records[i] = cloneValue(rec).(map[string]any)
		}
		r.Records = records
	}
	return r
}

// cloneValue deep-copies the maps and slices that appear in decoded records
// and request parameters. Other values are immutable or opaque and are shared.
func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		if t == nil {
			return map[string]any(nil)
		}
		out := maps.Clone(t)
		for k, val := range out {
			out[k] = cloneValue(val)
		}
		return out
	case []any:
		if t == nil {
			return []any(nil)
		}
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = cloneValue(val)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}
