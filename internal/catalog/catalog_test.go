package catalog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ejmockler/indra-cogex-mcp/internal/types"
)

func TestDefault(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	names := make([]string, 0, c.Len())
	for _, q := range c.List() {
		names = append(names, q.Name)
	}
	assert.Contains(t, names, "get_gene")
	assert.Contains(t, names, "get_tissues_for_gene")
	assert.IsIncreasing(t, names)

	q, err := c.Resolve("get_gene")
	require.NoError(t, err)
	assert.True(t, q.NotFoundOnEmpty)
	assert.Equal(t, "GET", q.HTTP.MethodOrDefault())
	assert.Contains(t, q.Cypher, "$gene_id")
}

func TestResolve_Unknown(t *testing.T) {
	c, err := New(Query{Name: "a", Cypher: "RETURN 1", HTTP: HTTPRoute{Path: "/a"}})
	require.NoError(t, err)

	_, err = c.Resolve("b")
	require.Error(t, err)
	assert.True(t, types.IsDomain(err))
	assert.Equal(t, types.UNKNOWN_QUERY, types.CodeOf(err))
}

func TestNew_RejectsInvalid(t *testing.T) {
	valid := Query{Name: "q", Cypher: "RETURN 1", HTTP: HTTPRoute{Path: "/q"}}

	tests := []struct {
		name    string
		queries []Query
		wantErr string
	}{
		{"missing name", []Query{{Cypher: "RETURN 1", HTTP: HTTPRoute{Path: "/q"}}}, "name is required"},
		{"missing cypher", []Query{{Name: "q", HTTP: HTTPRoute{Path: "/q"}}}, "cypher is required"},
		{"relative path", []Query{{Name: "q", Cypher: "RETURN 1", HTTP: HTTPRoute{Path: "q"}}}, "must start with /"},
		{"bad method", []Query{{Name: "q", Cypher: "RETURN 1", HTTP: HTTPRoute{Method: "DELETE", Path: "/q"}}}, "unsupported http.method"},
		{"duplicate query", []Query{valid, valid}, "duplicate query"},
		{"duplicate param", []Query{{Name: "q", Cypher: "RETURN 1", HTTP: HTTPRoute{Path: "/q"},
			Params: []Param{{Name: "x"}, {Name: "x"}}}}, "duplicate parameter"},
		{"bad type", []Query{{Name: "q", Cypher: "RETURN 1", HTTP: HTTPRoute{Path: "/q"},
			Params: []Param{{Name: "x", Type: "date"}}}}, "unknown type"},
		{"bad default", []Query{{Name: "q", Cypher: "RETURN 1", HTTP: HTTPRoute{Path: "/q"},
			Params: []Param{{Name: "x", Type: ParamInt, Default: "ten"}}}}, "default"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.queries...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestQuery_Bind(t *testing.T) {
	q := Query{
		Name:   "q",
		Cypher: "RETURN 1",
		HTTP:   HTTPRoute{Path: "/q"},
		Params: []Param{
			{Name: "id", Type: ParamString, Required: true},
			{Name: "limit", Type: ParamInt, Default: 100},
			{Name: "score", Type: ParamFloat},
			{Name: "direct", Type: ParamBool, Default: false},
			{Name: "types", Type: ParamList},
		},
	}

	tests := []struct {
		name     string
		params   map[string]any
		want     map[string]any
		wantCode types.ErrorCode
	}{
		{
			name:   "defaults applied",
			params: map[string]any{"id": "hgnc:6407"},
			want:   map[string]any{"id": "hgnc:6407", "limit": int64(100), "direct": false},
		},
		{
			name:   "json numbers coerced",
			params: map[string]any{"id": "x", "limit": float64(5), "score": json.Number("0.5")},
			want:   map[string]any{"id": "x", "limit": int64(5), "score": 0.5, "direct": false},
		},
		{
			name:   "strings coerced",
			params: map[string]any{"id": "x", "limit": "7", "direct": "true", "types": "a, b,"},
			want:   map[string]any{"id": "x", "limit": int64(7), "direct": true, "types": []any{"a", "b"}},
		},
		{
			name:     "missing required",
			params:   map[string]any{"limit": 1},
			wantCode: types.INVALID_QUERY,
		},
		{
			name:     "fractional int",
			params:   map[string]any{"id": "x", "limit": 1.5},
			wantCode: types.INVALID_QUERY,
		},
		{
			name:     "int beyond int64",
			params:   map[string]any{"id": "x", "limit": 1e300},
			wantCode: types.INVALID_QUERY,
		},
		{
			name:     "int at 2^63",
			params:   map[string]any{"id": "x", "limit": float64(1 << 63)},
			wantCode: types.INVALID_QUERY,
		},
		{
			name:     "negative int beyond int64",
			params:   map[string]any{"id": "x", "limit": -1e19},
			wantCode: types.INVALID_QUERY,
		},
		{
			name:   "large exact int",
			params: map[string]any{"id": "x", "limit": float64(1 << 53)},
			want:   map[string]any{"id": "x", "limit": int64(1 << 53), "direct": false},
		},
		{
			name:     "wrong type",
			params:   map[string]any{"id": 42},
			wantCode: types.INVALID_QUERY,
		},
		{
			name:     "unexpected param",
			params:   map[string]any{"id": "x", "colour": "red"},
			wantCode: types.INVALID_QUERY,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := q.Bind(tt.params)
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.True(t, types.IsDomain(err))
				assert.Equal(t, tt.wantCode, types.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestQuery_BindDoesNotMutateInput(t *testing.T) {
	q := Query{Name: "q", Cypher: "RETURN 1", HTTP: HTTPRoute{Path: "/q"},
		Params: []Param{{Name: "limit", Type: ParamInt, Default: 10}}}
	in := map[string]any{}

	_, err := q.Bind(in)
	require.NoError(t, err)
	assert.Empty(t, in)
}

func TestParse(t *testing.T) {
	data := []byte(`
queries:
  - name: ping
    cypher: RETURN 1 AS ok
    http:
      path: /ping
`)
	c, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())

	q, err := c.Resolve("ping")
	require.NoError(t, err)
	assert.Equal(t, "POST", q.HTTP.MethodOrDefault())
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", "queries: []"},
		{"unknown field", "queries:\n  - name: a\n    cyphr: RETURN 1\n"},
		{"not yaml", "queries: [::"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("queries:\n  - name: a\n    cypher: RETURN 1\n    http: {path: /a}\n"), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())

	_, err = LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	d, err := Load("")
	require.NoError(t, err)
	assert.Greater(t, d.Len(), 1)
}
