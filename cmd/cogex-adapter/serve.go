package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/ejmockler/indra-cogex-mcp/cmd/cogex-adapter/internal"
	"github.com/ejmockler/indra-cogex-mcp/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the query API over HTTP",
		Long: `Start the adapter with its health monitor and cache sweeper and serve:

  POST /v1/query    {"name": "...", "params": {...}, "timeout_ms": 5000}
  GET  /v1/queries  catalog
  GET  /v1/status   breaker, health, pool and cache state
  GET  /healthz     liveness for load balancers
  GET  /metrics     Prometheus metrics (when metrics.enabled)

Runs until SIGINT or SIGTERM, then drains in-flight requests.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			return runServe(cmd.Context(), a)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	return cmd
}

func runServe(ctx context.Context, a *app) error {
	st, err := a.buildStack(ctx)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := st.Close(closeCtx); err != nil {
			a.logger.Warn(closeCtx, "Shutdown incomplete", "error", err)
		}
	}()

	if err := st.adapter.Start(ctx); err != nil {
		return internal.WrapError(internal.ExitError, "failed to start adapter", err)
	}

	opts := []server.Option{
		server.WithLogger(a.logger),
		server.WithCatalog(st.adapter.Catalog()),
	}
	if st.registry != nil {
		opts = append(opts, server.WithGatherer(st.registry))
	}
	srv := server.New(a.cfg.Server, st.querier, opts...)

	a.logger.Info(ctx, "Starting cogex adapter",
		"addr", a.cfg.Server.Addr,
		"neo4j", a.cfg.Neo4j.Enabled,
		"fallback", a.cfg.Fallback.Enabled)

	if err := srv.ListenAndServe(ctx); err != nil {
		return internal.WrapError(internal.ExitError, "server failed", err)
	}
	return nil
}
