package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ejmockler/indra-cogex-mcp/cmd/cogex-adapter/internal"
	"github.com/ejmockler/indra-cogex-mcp/internal/types"
)

func run(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err = Execute(context.Background(), root)
	return out.String(), errOut.String(), err
}

func exitCode(err error) int {
	var cliErr *internal.CLIError
	if errors.As(err, &cliErr) {
		return cliErr.Code
	}
	var typed *types.Error
	if errors.As(err, &typed) {
		return internal.ExitCodeFor(typed)
	}
	return internal.ExitError
}

func TestParseParams(t *testing.T) {
	tests := []struct {
		name    string
		pairs   []string
		json    string
		want    map[string]any
		wantErr bool
	}{
		{"none", nil, "", nil, false},
		{"pairs", []string{"gene_id=hgnc:11998", "limit=5"}, "", map[string]any{"gene_id": "hgnc:11998", "limit": "5"}, false},
		{"value with equals", []string{"expr=a=b"}, "", map[string]any{"expr": "a=b"}, false},
		{"json", nil, `{"limit": 5, "ids": ["a"]}`, map[string]any{"limit": json.Number("5"), "ids": []any{"a"}}, false},
		{"pairs override json", []string{"limit=7"}, `{"limit": 5}`, map[string]any{"limit": "7"}, false},
		{"json null", []string{"a=1"}, `null`, map[string]any{"a": "1"}, false},
		{"missing equals", []string{"gene_id"}, "", nil, true},
		{"empty key", []string{"=x"}, "", nil, true},
		{"bad json", nil, `{`, nil, true},
		{"json array", nil, `[1]`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseParams(tt.pairs, tt.json)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVersionCommand(t *testing.T) {
	out, _, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "cogex-adapter")

	out, _, err = run(t, "version", "-o", "json")
	require.NoError(t, err)
	var info map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, "cogex-adapter", info["name"])
}

func TestGlobalFlagValidation(t *testing.T) {
	_, _, err := run(t, "version", "--verbose", "--quiet")
	assert.Error(t, err)

	_, _, err = run(t, "version", "-o", "yaml")
	assert.Error(t, err)
}

func TestCatalogCommands(t *testing.T) {
	out, _, err := run(t, "catalog", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "get_gene")
	assert.Contains(t, out, "gene_id*:string")

	out, _, err = run(t, "catalog", "list", "-o", "json")
	require.NoError(t, err)
	var queries []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &queries))
	assert.NotEmpty(t, queries)

	out, _, err = run(t, "catalog", "show", "get_gene")
	require.NoError(t, err)
	assert.Contains(t, out, "name: get_gene")
	assert.Contains(t, out, "cypher:")

	_, _, err = run(t, "catalog", "show", "no_such_query")
	assert.Equal(t, internal.ExitNotFound, exitCode(err))
}

func TestConfigShowRedactsSecrets(t *testing.T) {
	t.Setenv("COGEX_NEO4J_PASSWORD", "hunter2")

	out, _, err := run(t, "config", "show")
	require.NoError(t, err)
	assert.NotContains(t, out, "hunter2")
	assert.Contains(t, out, "********")
}

func TestConfigValidate(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "good.yaml")
	require.NoError(t, os.WriteFile(good, []byte("cache:\n  ttl: 2m\n"), 0o600))
	out, _, err := run(t, "config", "validate", "--config", good)
	require.NoError(t, err)
	assert.Contains(t, out, "configuration is valid")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("neo4j:\n  enabled: false\nfallback:\n  enabled: false\n"), 0o600))
	_, _, err = run(t, "config", "validate", "--config", bad)
	assert.Equal(t, internal.ExitConfigError, exitCode(err))

	_, _, err = run(t, "config", "validate", "--config", filepath.Join(dir, "missing.yaml"))
	assert.Equal(t, internal.ExitConfigError, exitCode(err))
}

func TestQueryCommand_InvalidParams(t *testing.T) {
	_, _, err := run(t, "query", "get_gene", "--param", "oops")
	assert.Equal(t, internal.ExitInvalidQuery, exitCode(err))
}

func fallbackOnly(t *testing.T, handler http.HandlerFunc) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	t.Setenv("COGEX_NEO4J_ENABLED", "false")
	t.Setenv("COGEX_FALLBACK_BASE_URL", srv.URL)
	t.Setenv("COGEX_RETRY_MAX_ATTEMPTS", "1")
}

func TestQueryCommand_FallbackOnly(t *testing.T) {
	var gotPath string
	fallbackOnly(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"symbol":"TP53","name":"tumor protein p53"}]`))
	})

	out, errOut, err := run(t, "query", "get_gene", "-p", "gene_id=hgnc:11998")
	require.NoError(t, err)
	assert.NotEmpty(t, gotPath)
	assert.Contains(t, out, "SYMBOL")
	assert.Contains(t, out, "TP53")
	assert.Contains(t, errOut, "1 record(s) from fallback")

	out, _, err = run(t, "query", "get_gene", "-p", "gene_id=hgnc:11998", "-o", "json")
	require.NoError(t, err)
	var res queryOutput
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "fallback", res.Origin)
	assert.Equal(t, "get_gene", res.Query)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "TP53", res.Records[0]["symbol"])
}

func TestQueryCommand_BackendFailure(t *testing.T) {
	fallbackOnly(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, _, err := run(t, "query", "get_gene", "-p", "gene_id=hgnc:11998")
	require.Error(t, err)
	assert.Equal(t, internal.ExitBackendError, exitCode(err))
}

func TestStatusCommand(t *testing.T) {
	fallbackOnly(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	out, _, err := run(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "BACKEND")
	assert.Contains(t, out, "fallback")
	assert.Contains(t, out, "healthy")
	assert.Contains(t, out, "cache:")

	out, _, err = run(t, "status", "-o", "json")
	require.NoError(t, err)
	var st map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Len(t, st["backends"], 1)
}
