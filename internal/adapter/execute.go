package adapter

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ejmockler/indra-cogex-mcp/internal/backend"
	"github.com/ejmockler/indra-cogex-mcp/internal/breaker"
	"github.com/ejmockler/indra-cogex-mcp/internal/cache"
	"github.com/ejmockler/indra-cogex-mcp/internal/catalog"
	"github.com/ejmockler/indra-cogex-mcp/internal/observability"
	"github.com/ejmockler/indra-cogex-mcp/internal/retry"
	"github.com/ejmockler/indra-cogex-mcp/internal/types"
)

// shared is what one singleflight leader hands to every waiter.
type shared struct {
	result Result
	err    error
	// leaderCtxErr is set when the leader's own context ended the call.
	leaderCtxErr error
}

// Execute answers req.
//
// The query is resolved and its parameters bound before anything else, so a
// malformed request never reaches the cache, a breaker or a backend. Cache
// hits return immediately with Origin CACHE. Identical concurrent misses share
// one backend round trip. Domain errors are returned unmodified; when every
// backend failed the error is QUERY_FAILED (wrapping the last backend error)
// or NO_BACKEND_AVAILABLE if no backend could even be attempted.
func (a *Adapter) Execute(ctx context.Context, req Request) (Result, error) {
	start := a.now()

	if a.closed.Load() {
		return Result{}, types.AdapterClosed()
	}
	if observability.RequestIDFromContext(ctx) == "" {
		ctx = observability.WithRequestID(ctx, observability.NewRequestID())
	}

	q, err := a.catalog.Resolve(req.Name)
	if err != nil {
		a.metrics.ObserveRequest("none", "domain_error", a.now().Sub(start))
		return Result{}, err
	}
	params, err := q.Bind(req.Params)
	if err != nil {
		a.metrics.ObserveRequest("none", "domain_error", a.now().Sub(start))
		return Result{}, err
	}
	key, err := cache.Key(q.Name, params)
	if err != nil {
		return Result{}, types.NewDomainError(types.INVALID_QUERY, types.BackendUnspecified,
			"parameters cannot be encoded", err)
	}

	if hit, ok := a.cache.Get(key); ok {
		res := hit.clone()
		res.Origin = OriginCache
		res.FromCache = true
		res.Attempts = 0
		res.Elapsed = a.now().Sub(start)
		a.logger.Debug(ctx, "Cache hit", "query", q.Name, "backend", res.Backend.String())
		a.metrics.ObserveRequest(string(OriginCache), "success", res.Elapsed)
		return res, nil
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = a.cfg.DefaultTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ch := a.group.DoChan(key, func() (any, error) {
		res, err := a.route(ctx, q, params, key)
		return shared{result: res, err: err, leaderCtxErr: ctx.Err()}, nil
	})

	var out shared
	select {
	case <-ctx.Done():
		out = shared{err: types.QueryTimeout(q.Name, ctx.Err())}
	case r := <-ch:
		out = r.Val.(shared)
		if out.leaderCtxErr != nil && ctx.Err() == nil {
			// The leader gave up, this caller has time left: go alone.
			res, err := a.route(ctx, q, params, key)
			out = shared{result: res, err: err}
		}
	}

	elapsed := a.now().Sub(start)
	if out.err != nil {
		a.metrics.ObserveRequest("none", requestLabel(out.err), elapsed)
		return Result{}, out.err
	}

	res := out.result.clone()
	res.Elapsed = elapsed
	a.metrics.ObserveRequest(string(res.Origin), "success", elapsed)
	return res, nil
}

// route tries each lane in order and populates the cache on success.
func (a *Adapter) route(ctx context.Context, q catalog.Query, params map[string]any, key string) (Result, error) {
	var (
		lastErr   error
		attempted bool
	)

	for i, l := range a.lanes {
		if ctx.Err() != nil {
			return Result{}, types.QueryTimeout(q.Name, lastErr)
		}
		if i > 0 {
			a.logger.Info(ctx, "Falling back to next backend",
				"query", q.Name,
				"backend", l.client.Identity().String(),
				"previous_error", lastErr)
		}

		records, outcome, tried, callErr := a.runLane(ctx, l, q, params)
		if tried {
			attempted = true
		}
		if callErr != nil {
			lastErr = callErr
		}

		switch outcome.Decision {
		case retry.Done:
			if len(records) == 0 && q.NotFoundOnEmpty {
				return Result{}, types.NewDomainError(types.ENTITY_NOT_FOUND, l.client.Identity(),
					"no matching entity for "+q.Name, nil)
			}
			res := Result{
				Records:  records,
				Success:  true,
				Origin:   originOf(l.client.Identity()),
				Backend:  l.client.Identity(),
				Attempts: outcome.Attempts,
			}
			if len(records) > 0 || a.cfg.Cache.CacheEmptyResults {
				a.cache.Put(key, res.clone(), 0)
			}
			return res, nil

		case retry.FailFast:
			if ctx.Err() != nil {
				return Result{}, types.QueryTimeout(q.Name, lastErr)
			}
			return Result{}, outcome.Err

		case retry.Fallback:
			continue
		}
	}

	if !attempted {
		return Result{}, types.NoBackendAvailable(q.Name)
	}
	return Result{}, types.QueryFailed(q.Name, lastErr)
}

// runLane runs the retry loop for one backend. Every attempt asks the breaker
// first and reports its classified outcome back. tried reports whether the
// client was called at least once; callErr is the last error the client
// itself returned.
func (a *Adapter) runLane(ctx context.Context, l *lane, q catalog.Query, params map[string]any) (records []backend.Record, outcome retry.Outcome, tried bool, callErr error) {
	id := l.client.Identity()

	outcome = l.policy.Run(ctx, func(ctx context.Context, attempt int) error {
		ticket, err := l.breaker.Allow()
		if err != nil {
			a.metrics.ObserveAttempt(id.String(), "circuit_open")
			return err
		}
		tried = true

		ctx, span := a.tracer.Start(ctx, "cogex.backend.execute",
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				attribute.String("cogex.backend", id.String()),
				attribute.String("cogex.query.name", q.Name),
				attribute.Int("cogex.attempt", attempt),
			))
		defer span.End()

		recs, err := l.client.Execute(ctx, q, params)
		a.record(ctx, l, ticket, err)
		a.metrics.ObserveAttempt(id.String(), attemptLabel(err))

		if err != nil {
			callErr = err
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		span.SetAttributes(attribute.Int("cogex.record_count", len(recs)))
		records = recs
		return nil
	})
	return records, outcome, tried, callErr
}

// record reports one call outcome to the lane's breaker. Domain answers say
// nothing about availability. Any other error counts as a failure, including
// calls aborted by the caller's deadline. Outcomes of calls admitted under an
// earlier breaker generation are dropped by the breaker.
func (a *Adapter) record(ctx context.Context, l *lane, ticket breaker.Ticket, err error) {
	var counted bool
	switch {
	case err == nil:
		counted = l.breaker.RecordSuccess(ticket)
	case types.IsDomain(err):
		counted = l.breaker.RecordNeutral(ticket)
	default:
		counted = l.breaker.RecordFailure(ticket, err)
	}
	if !counted {
		a.logger.Debug(ctx, "Stale breaker outcome ignored",
			"backend", l.client.Identity().String())
	}
}

func requestLabel(err error) string {
	switch types.CodeOf(err) {
	case types.QUERY_TIMEOUT:
		return "timeout"
	case types.NO_BACKEND_AVAILABLE:
		return "no_backend"
	case types.QUERY_FAILED:
		return "failed"
	}
	if types.IsDomain(err) {
		return "domain_error"
	}
	return "error"
}
