package backend

import (
	"context"
	"sync"
	"time"

	"github.com/ejmockler/indra-cogex-mcp/internal/catalog"
	"github.com/ejmockler/indra-cogex-mcp/internal/types"
)

// MockCall represents a recorded Execute call on the mock client.
type MockCall struct {
	Query     string
	Params    map[string]any
	Timestamp time.Time
}

// MockResponse is one scripted Execute outcome.
type MockResponse struct {
	Records []Record
	Err     error
	// Delay is waited before answering, aborted by ctx.
	Delay time.Duration
}

// MockClient is a scriptable Client for tests. Scripted responses are
// consumed in order; once exhausted the default response repeats.
type MockClient struct {
	identity types.Backend

	mu       sync.Mutex
	script   []MockResponse
	fallback MockResponse
	probeErr error
	calls    []MockCall
	probes   int
	closed   bool
}

// NewMockClient creates a mock that answers every query with no records.
func NewMockClient(identity types.Backend) *MockClient {
	return &MockClient{
		identity: identity,
		fallback: MockResponse{Records: []Record{}},
	}
}

// Script appends responses to be returned by successive Execute calls.
func (m *MockClient) Script(responses ...MockResponse) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, responses...)
	return m
}

// SetDefault sets the response used once the script is exhausted.
func (m *MockClient) SetDefault(resp MockResponse) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = resp
	return m
}

// SetProbeError makes Probe return err.
func (m *MockClient) SetProbeError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probeErr = err
}

// Identity implements Client.
func (m *MockClient) Identity() types.Backend {
	return m.identity
}

// Execute implements Client.
func (m *MockClient) Execute(ctx context.Context, q catalog.Query, params map[string]any) ([]Record, error) {
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{Query: q.Name, Params: params, Timestamp: time.Now()})
	resp := m.fallback
	if len(m.script) > 0 {
		resp = m.script[0]
		m.script = m.script[1:]
	}
	m.mu.Unlock()

	if resp.Delay > 0 {
		timer := time.NewTimer(resp.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, types.NewTransientError(types.BACKEND_TIMEOUT, m.identity, "mock call aborted", ctx.Err())
		case <-timer.C:
		}
	}
	if resp.Err != nil {
		return nil, resp.Err
	}
	return resp.Records, nil
}

// Probe implements Client.
func (m *MockClient) Probe(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probes++
	return m.probeErr
}

// Close implements Client.
func (m *MockClient) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Calls returns a copy of the recorded Execute calls.
func (m *MockClient) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall(nil), m.calls...)
}

// CallCount returns the number of Execute calls.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// ProbeCount returns the number of Probe calls.
func (m *MockClient) ProbeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.probes
}

// Closed reports whether Close was called.
func (m *MockClient) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
