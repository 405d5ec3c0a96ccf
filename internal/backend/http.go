package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ejmockler/indra-cogex-mcp/internal/catalog"
	"github.com/ejmockler/indra-cogex-mcp/internal/types"
)

// maxResponseBytes caps how much of a fallback response is read.
const maxResponseBytes = 32 << 20

// HTTPConfig configures the fallback HTTP client.
type HTTPConfig struct {
	// Enabled turns the fallback backend on.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// BaseURL is the REST endpoint root, e.g. https://discovery.indra.bio.
	BaseURL string `mapstructure:"base_url" yaml:"base_url" validate:"omitempty,url"`
	// APIKey is sent as a bearer token when set.
	APIKey string `mapstructure:"api_key" yaml:"api_key"`
	// Timeout bounds a single request.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"min=0"`
	// HealthPath is probed with GET by the health monitor.
	HealthPath string `mapstructure:"health_path" yaml:"health_path" validate:"omitempty,startswith=/"`
}

// DefaultHTTPConfig returns fallback defaults.
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		Enabled:    true,
		BaseURL:    "https://discovery.indra.bio",
		Timeout:    30 * time.Second,
		HealthPath: "/health",
	}
}

// HTTPClient is the fallback backend. It is stateless: every query is a
// single request against the REST endpoint.
type HTTPClient struct {
	cfg     HTTPConfig
	baseURL string
	client  *http.Client
}

// HTTPOption configures an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) HTTPOption {
	return func(c *HTTPClient) {
		c.client = hc
	}
}

// NewHTTPClient creates a fallback client.
func NewHTTPClient(cfg HTTPConfig, opts ...HTTPOption) (*HTTPClient, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, types.NewConfigError(types.CONFIG_VALIDATION_FAILED,
			fmt.Sprintf("invalid fallback base_url %q", cfg.BaseURL), err)
	}

	c := &HTTPClient{
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Identity implements Client.
func (c *HTTPClient) Identity() types.Backend {
	return types.BackendFallback
}

// Execute implements Client. GET routes send parameters in the query string;
// POST routes send them as a JSON object. Parameters consumed by {name}
// segments in the path are not sent again.
func (c *HTTPClient) Execute(ctx context.Context, q catalog.Query, params map[string]any) ([]Record, error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	req, err := c.newRequest(ctx, q.HTTP, params)
	if err != nil {
		return nil, types.NewDomainError(types.INVALID_QUERY, types.BackendFallback, "failed to build request", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, classifyTransport(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, classifyStatus(resp.StatusCode, excerpt(body))
	}

	records, err := decodeRecords(body)
	if err != nil {
		return nil, types.NewTransientError(types.BACKEND_TRANSPORT, types.BackendFallback, "malformed response", err)
	}
	return records, nil
}

func (c *HTTPClient) newRequest(ctx context.Context, route catalog.HTTPRoute, params map[string]any) (*http.Request, error) {
	path, rest := expandPath(route.Path, params)
	target := c.baseURL + path
	method := route.MethodOrDefault()

	var body io.Reader
	if method == http.MethodGet {
		if len(rest) > 0 {
			target += "?" + encodeQuery(rest).Encode()
		}
	} else {
		payload, err := json.Marshal(rest)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.setAuthHeaders(req)
	return req, nil
}

func (c *HTTPClient) setAuthHeaders(req *http.Request) {
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
}

// Probe implements Client with a GET on the health path.
func (c *HTTPClient) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+c.cfg.HealthPath, nil)
	if err != nil {
		return types.NewTransientError(types.BACKEND_TRANSPORT, types.BackendFallback, "failed to build probe", err)
	}
	c.setAuthHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return classifyTransport(err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return types.NewTransientError(types.BACKEND_UNAVAILABLE, types.BackendFallback,
			fmt.Sprintf("health check returned status %d", resp.StatusCode), nil)
	}
	return nil
}

// Close implements Client.
func (c *HTTPClient) Close(ctx context.Context) error {
	c.client.CloseIdleConnections()
	return nil
}

// expandPath substitutes {name} segments and returns the params not used.
func expandPath(path string, params map[string]any) (string, map[string]any) {
	rest := make(map[string]any, len(params))
	for k, v := range params {
		token := "{" + k + "}"
		if strings.Contains(path, token) {
			path = strings.ReplaceAll(path, token, url.PathEscape(fmt.Sprint(v)))
			continue
		}
		rest[k] = v
	}
	return path, rest
}

func encodeQuery(params map[string]any) url.Values {
	values := make(url.Values, len(params))
	for k, v := range params {
		if list, ok := v.([]any); ok {
			for _, e := range list {
				values.Add(k, fmt.Sprint(e))
			}
			continue
		}
		values.Set(k, fmt.Sprint(v))
	}
	return values
}

// decodeRecords accepts {"records": [...]}, a bare array, or a single object.
// Array elements that are not objects are wrapped as {"value": x}.
func decodeRecords(body []byte) ([]Record, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return []Record{}, nil
	}

	var raw []any
	switch body[0] {
	case '[':
		if err := json.Unmarshal(body, &raw); err != nil {
			return nil, err
		}
	case '{':
		var obj map[string]any
		if err := json.Unmarshal(body, &obj); err != nil {
			return nil, err
		}
		recs, ok := obj["records"]
		if !ok {
			return []Record{obj}, nil
		}
		list, ok := recs.([]any)
		if !ok {
			return nil, fmt.Errorf("records is %T, want array", recs)
		}
		raw = list
	default:
		return nil, fmt.Errorf("unexpected response body starting with %q", body[0])
	}

	out := make([]Record, 0, len(raw))
	for _, e := range raw {
		if m, ok := e.(map[string]any); ok {
			out = append(out, m)
		} else {
			out = append(out, Record{"value": e})
		}
	}
	return out, nil
}

func excerpt(body []byte) string {
	const limit = 256
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		s = s[:limit] + "..."
	}
	return s
}
