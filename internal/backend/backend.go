// Package backend contains the two interchangeable query backends: the pooled
// Neo4j graph database (primary) and the stateless HTTP endpoint (fallback).
//
// Both implement Client and return errors already classified as transient or
// domain (see types.ErrorKind), so the router can decide about retries,
// fallback and circuit-breaker bookkeeping without knowing the backend.
package backend

import (
	"context"

	"github.com/ejmockler/indra-cogex-mcp/internal/catalog"
	"github.com/ejmockler/indra-cogex-mcp/internal/types"
)

// Record is one result row, keyed by column name.
type Record = map[string]any

// Client is a backend that can serve catalog queries.
type Client interface {
	// Identity reports which backend this client talks to.
	Identity() types.Backend

	// Execute runs q with already-bound params. Zero records is a success.
	// Errors are *types.Error with Kind transient or domain.
	Execute(ctx context.Context, q catalog.Query, params map[string]any) ([]Record, error)

	// Probe performs a cheap liveness check that does not compete with query
	// traffic for pooled resources.
	Probe(ctx context.Context) error

	// Close releases all resources held by the client.
	Close(ctx context.Context) error
}

// withBackend stamps backend on a classified error that has none.
func withBackend(err error, backend types.Backend) error {
	if e, ok := err.(*types.Error); ok && e.Backend == types.BackendUnspecified {
		cp := *e
		cp.Backend = backend
		return &cp
	}
	return err
}

var (
	_ Client = (*Neo4jClient)(nil)
	_ Client = (*HTTPClient)(nil)
	_ Client = (*MockClient)(nil)
)
