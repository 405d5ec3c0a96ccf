// Package catalog holds the named queries the adapter can run.
//
// A Query carries the Cypher text for the primary backend, the HTTP route for
// the fallback and a small parameter schema. The adapter treats both query
// bodies as opaque; the catalog only checks parameter shape and fills in
// defaults so that equivalent requests derive the same cache key.
package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ejmockler/indra-cogex-mcp/internal/types"
)

// Catalog resolves query names to definitions.
type Catalog interface {
	// Resolve returns the query registered under name, or a domain error
	// with code UNKNOWN_QUERY.
	Resolve(name string) (Query, error)

	// List returns all queries sorted by name.
	List() []Query
}

// HTTPRoute describes how the fallback endpoint serves a query.
type HTTPRoute struct {
	// Method is GET or POST. GET sends parameters in the query string, POST as a JSON body.
	Method string `yaml:"method" json:"method"`
	// Path is appended to the fallback base URL. {name} segments are
	// replaced with the escaped parameter value.
	Path string `yaml:"path" json:"path"`
}

// Query is a named, parameterized query servable by either backend.
type Query struct {
	Name        string    `yaml:"name" json:"name"`
	Description string    `yaml:"description,omitempty" json:"description,omitempty"`
	Cypher      string    `yaml:"cypher" json:"cypher"`
	HTTP        HTTPRoute `yaml:"http" json:"http"`
	Params      []Param   `yaml:"params,omitempty" json:"params,omitempty"`

	// NotFoundOnEmpty turns an empty result into an ENTITY_NOT_FOUND domain
	// error. Use it for single-entity lookups.
	NotFoundOnEmpty bool `yaml:"not_found_on_empty,omitempty" json:"not_found_on_empty,omitempty"`
}

// Validate checks that a definition is usable.
func (q Query) Validate() error {
	if strings.TrimSpace(q.Name) == "" {
		return fmt.Errorf("query name is required")
	}
	if strings.TrimSpace(q.Cypher) == "" {
		return fmt.Errorf("query %q: cypher is required", q.Name)
	}
	if q.HTTP.Path == "" || !strings.HasPrefix(q.HTTP.Path, "/") {
		return fmt.Errorf("query %q: http.path must start with /", q.Name)
	}
	switch strings.ToUpper(q.HTTP.Method) {
	case "", "GET", "POST":
	default:
		return fmt.Errorf("query %q: unsupported http.method %q", q.Name, q.HTTP.Method)
	}

	seen := make(map[string]bool, len(q.Params))
	for _, p := range q.Params {
		if p.Name == "" {
			return fmt.Errorf("query %q: parameter name is required", q.Name)
		}
		if seen[p.Name] {
			return fmt.Errorf("query %q: duplicate parameter %q", q.Name, p.Name)
		}
		seen[p.Name] = true
		if !p.Type.IsValid() {
			return fmt.Errorf("query %q: parameter %q has unknown type %q", q.Name, p.Name, p.Type)
		}
		if p.Default != nil {
			if _, err := p.Type.coerce(p.Default); err != nil {
				return fmt.Errorf("query %q: parameter %q default: %w", q.Name, p.Name, err)
			}
		}
	}
	return nil
}

// MethodOrDefault returns the upper-cased HTTP method, defaulting to POST.
func (r HTTPRoute) MethodOrDefault() string {
	if r.Method == "" {
		return "POST"
	}
	return strings.ToUpper(r.Method)
}

// Static is an immutable in-memory Catalog.
type Static struct {
	queries map[string]Query
	names   []string
}

// New builds a catalog from definitions, rejecting invalid or duplicate ones.
func New(queries ...Query) (*Static, error) {
	c := &Static{queries: make(map[string]Query, len(queries))}
	for _, q := range queries {
		if err := q.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.queries[q.Name]; dup {
			return nil, fmt.Errorf("duplicate query %q", q.Name)
		}
		c.queries[q.Name] = q
		c.names = append(c.names, q.Name)
	}
	sort.Strings(c.names)
	return c, nil
}

// Resolve implements Catalog.
func (c *Static) Resolve(name string) (Query, error) {
	q, ok := c.queries[name]
	if !ok {
		return Query{}, types.NewDomainError(types.UNKNOWN_QUERY, types.BackendUnspecified,
			fmt.Sprintf("unknown query %q", name), nil)
	}
	return q, nil
}

// List implements Catalog.
func (c *Static) List() []Query {
	out := make([]Query, 0, len(c.names))
	for _, name := range c.names {
		out = append(out, c.queries[name])
	}
	return out
}

// Len returns the number of queries.
func (c *Static) Len() int {
	return len(c.queries)
}
