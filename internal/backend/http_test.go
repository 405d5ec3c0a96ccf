package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ejmockler/indra-cogex-mcp/internal/catalog"
	"github.com/ejmockler/indra-cogex-mcp/internal/types"
)

func newTestHTTPClient(t *testing.T, handler http.HandlerFunc, mutate ...func(*HTTPConfig)) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := HTTPConfig{BaseURL: srv.URL, Timeout: 2 * time.Second, HealthPath: "/health", APIKey: "secret"}
	for _, m := range mutate {
		m(&cfg)
	}
	c, err := NewHTTPClient(cfg)
	require.NoError(t, err)
	return c
}

func TestHTTPClient_PostJSON(t *testing.T) {
	var gotBody map[string]any
	c := newTestHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/get_tissues_for_gene", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = io.WriteString(w, `{"records":[{"id":"uberon:0002107","name":"liver"}]}`)
	})

	q := catalog.Query{Name: "get_tissues_for_gene", HTTP: catalog.HTTPRoute{Method: "POST", Path: "/api/get_tissues_for_gene"}}
	records, err := c.Execute(context.Background(), q, map[string]any{"gene_id": "hgnc:6407", "limit": int64(5)})
	require.NoError(t, err)

	assert.Equal(t, []Record{{"id": "uberon:0002107", "name": "liver"}}, records)
	assert.Equal(t, map[string]any{"gene_id": "hgnc:6407", "limit": float64(5)}, gotBody)
}

func TestHTTPClient_GetWithPathTemplate(t *testing.T) {
	c := newTestHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/entity/hgnc:6407", r.URL.Path)
		assert.Equal(t, []string{"a", "b"}, r.URL.Query()["tags"])
		assert.Empty(t, r.URL.Query().Get("gene_id"), "templated params are not repeated")
		_, _ = io.WriteString(w, `{"id":"hgnc:6407","name":"LRRK2"}`)
	})

	q := catalog.Query{Name: "get_gene", HTTP: catalog.HTTPRoute{Method: "GET", Path: "/api/entity/{gene_id}"}}
	records, err := c.Execute(context.Background(), q, map[string]any{"gene_id": "hgnc:6407", "tags": []any{"a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, []Record{{"id": "hgnc:6407", "name": "LRRK2"}}, records)
}

func TestHTTPClient_StatusClassification(t *testing.T) {
	tests := []struct {
		status int
		kind   types.ErrorKind
		code   types.ErrorCode
	}{
		{http.StatusNotFound, types.KindDomain, types.ENTITY_NOT_FOUND},
		{http.StatusBadRequest, types.KindDomain, types.QUERY_REJECTED},
		{http.StatusUnprocessableEntity, types.KindDomain, types.QUERY_REJECTED},
		{http.StatusRequestTimeout, types.KindTransient, types.BACKEND_TIMEOUT},
		{http.StatusTooManyRequests, types.KindTransient, types.BACKEND_RATE_LIMITED},
		{http.StatusInternalServerError, types.KindTransient, types.BACKEND_UNAVAILABLE},
		{http.StatusBadGateway, types.KindTransient, types.BACKEND_UNAVAILABLE},
		{http.StatusServiceUnavailable, types.KindTransient, types.BACKEND_UNAVAILABLE},
		{http.StatusUnauthorized, types.KindTransient, types.BACKEND_UNAVAILABLE},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			c := newTestHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, "nope")
			})

			_, err := c.Execute(context.Background(), catalog.Query{Name: "q", HTTP: catalog.HTTPRoute{Path: "/q"}}, nil)
			require.Error(t, err)
			assert.Equal(t, tt.kind, types.KindOf(err))
			assert.Equal(t, tt.code, types.CodeOf(err))
			assert.Contains(t, err.Error(), "nope")
			assert.Contains(t, err.Error(), "fallback")
		})
	}
}

func TestHTTPClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	c := newTestHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, func(cfg *HTTPConfig) { cfg.Timeout = 30 * time.Millisecond })
	defer close(release)

	_, err := c.Execute(context.Background(), catalog.Query{Name: "q", HTTP: catalog.HTTPRoute{Path: "/q"}}, nil)
	require.Error(t, err)
	assert.Equal(t, types.BACKEND_TIMEOUT, types.CodeOf(err))
	assert.True(t, types.IsTransient(err))
}

func TestHTTPClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewHTTPClient(HTTPConfig{BaseURL: url, Timeout: time.Second})
	require.NoError(t, err)

	_, err = c.Execute(context.Background(), catalog.Query{Name: "q", HTTP: catalog.HTTPRoute{Path: "/q"}}, nil)
	require.Error(t, err)
	assert.Equal(t, types.BACKEND_UNREACHABLE, types.CodeOf(err))
	assert.True(t, types.IsTransient(err))
}

func TestHTTPClient_MalformedBodyIsTransient(t *testing.T) {
	c := newTestHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `<html>maintenance</html>`)
	})

	_, err := c.Execute(context.Background(), catalog.Query{Name: "q", HTTP: catalog.HTTPRoute{Path: "/q"}}, nil)
	require.Error(t, err)
	assert.Equal(t, types.BACKEND_TRANSPORT, types.CodeOf(err))
}

func TestHTTPClient_Probe(t *testing.T) {
	var unhealthy atomic.Bool
	c := newTestHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		if unhealthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	})

	assert.NoError(t, c.Probe(context.Background()))

	unhealthy.Store(true)
	err := c.Probe(context.Background())
	require.Error(t, err)
	assert.True(t, types.IsTransient(err))
	assert.NoError(t, c.Close(context.Background()))
}

func TestNewHTTPClient_InvalidURL(t *testing.T) {
	_, err := NewHTTPClient(HTTPConfig{BaseURL: "not a url"})
	require.Error(t, err)
	assert.Equal(t, types.KindConfig, types.KindOf(err))
}

func TestDecodeRecords(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    []Record
		wantErr bool
	}{
		{"wrapped", `{"records":[{"a":1}]}`, []Record{{"a": float64(1)}}, false},
		{"bare array", `[{"a":1},{"a":2}]`, []Record{{"a": float64(1)}, {"a": float64(2)}}, false},
		{"scalars wrapped", `["x", 2]`, []Record{{"value": "x"}, {"value": float64(2)}}, false},
		{"single object", `{"a":1}`, []Record{{"a": float64(1)}}, false},
		{"empty body", ``, []Record{}, false},
		{"empty array", `[]`, []Record{}, false},
		{"records not array", `{"records":5}`, nil, true},
		{"garbage", `hello`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeRecords([]byte(tt.body))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
