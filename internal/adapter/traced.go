package adapter

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ejmockler/indra-cogex-mcp/internal/types"
)

// Traced wraps a Querier with an OpenTelemetry span per Execute.
//
// Span name: "cogex.adapter.execute". Attributes: query name, origin, cache
// hit, record count and, on failure, the error code.
type Traced struct {
	inner  Querier
	tracer trace.Tracer
}

// NewTraced wraps inner. A nil tracer uses the global tracer provider.
func NewTraced(inner Querier, tracer trace.Tracer) *Traced {
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	return &Traced{inner: inner, tracer: tracer}
}

// Execute implements Querier.
func (t *Traced) Execute(ctx context.Context, req Request) (Result, error) {
	ctx, span := t.tracer.Start(ctx, "cogex.adapter.execute",
		trace.WithAttributes(attribute.String("cogex.query.name", req.Name)))
	defer span.End()

	res, err := t.inner.Execute(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String("cogex.error.code", string(types.CodeOf(err))))
		return res, err
	}

	span.SetAttributes(
		attribute.String("cogex.origin", res.Origin.String()),
		attribute.String("cogex.backend", res.Backend.String()),
		attribute.Bool("cogex.cache_hit", res.FromCache),
		attribute.Int("cogex.record_count", len(res.Records)),
		attribute.Int("cogex.attempts", res.Attempts),
	)
	span.SetStatus(codes.Ok, "")
	return res, nil
}

// Status implements Querier.
func (t *Traced) Status() Status {
	return t.inner.Status()
}

var (
	_ Querier = (*Adapter)(nil)
	_ Querier = (*Traced)(nil)
)
