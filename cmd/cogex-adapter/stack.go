package main

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/ejmockler/indra-cogex-mcp/cmd/cogex-adapter/internal"
	"github.com/ejmockler/indra-cogex-mcp/internal/adapter"
	"github.com/ejmockler/indra-cogex-mcp/internal/observability"
	"github.com/ejmockler/indra-cogex-mcp/pkg/version"
)

// stack is a fully wired adapter with its telemetry.
type stack struct {
	adapter  *adapter.Adapter
	querier  adapter.Querier
	registry *prometheus.Registry
	tracer   *sdktrace.TracerProvider
}

// buildStack wires tracing, metrics and the adapter from the loaded config.
// The adapter is not started.
func (a *app) buildStack(ctx context.Context) (*stack, error) {
	tp, err := observability.InitTracing(ctx, a.cfg.Tracing)
	if err != nil {
		return nil, internal.WrapError(internal.ExitConfigError, "failed to initialise tracing", err)
	}
	tracer := tp.Tracer(version.Name)

	opts := []adapter.Option{
		adapter.WithLogger(a.logger),
		adapter.WithTracer(tracer),
	}

	var reg *prometheus.Registry
	if a.cfg.Metrics.Enabled {
		reg = observability.NewRegistry()
		metrics, err := observability.NewMetrics(reg, a.cfg.Metrics.Namespace)
		if err != nil {
			_ = observability.ShutdownTracing(ctx, tp)
			return nil, internal.WrapError(internal.ExitError, "failed to register metrics", err)
		}
		opts = append(opts, adapter.WithMetrics(metrics))
	}

	ad, err := adapter.Build(ctx, a.cfg, opts...)
	if err != nil {
		_ = observability.ShutdownTracing(ctx, tp)
		return nil, err
	}

	return &stack{
		adapter:  ad,
		querier:  adapter.NewTraced(ad, tracer),
		registry: reg,
		tracer:   tp,
	}, nil
}

// Close closes the adapter and flushes spans.
func (s *stack) Close(ctx context.Context) error {
	return errors.Join(
		s.adapter.Close(ctx),
		observability.ShutdownTracing(ctx, s.tracer),
	)
}
