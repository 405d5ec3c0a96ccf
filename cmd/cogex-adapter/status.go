package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/ejmockler/indra-cogex-mcp/cmd/cogex-adapter/internal"
	"github.com/ejmockler/indra-cogex-mcp/internal/adapter"
)

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Probe every backend once and print breaker, health and pool state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := a.buildStack(ctx)
			if err != nil {
				return err
			}
			defer st.Close(context.WithoutCancel(ctx))

			st.adapter.CheckHealth(ctx)
			return printStatus(cmd, a.flags.Format(), st.querier.Status())
		},
	}
}

func printStatus(cmd *cobra.Command, format internal.OutputFormat, st adapter.Status) error {
	out := internal.NewFormatter(format, cmd.OutOrStdout())
	if format == internal.FormatJSON {
		return out.PrintJSON(st)
	}

	rows := make([][]string, 0, len(st.Backends))
	for _, b := range st.Backends {
		pool := "-"
		if b.Pool != nil {
			pool = fmt.Sprintf("%d/%d in use, %d waiting", b.Pool.InUse, b.Pool.MaxSize, b.Pool.Waiters)
		}
		health := b.Health.Status.String()
		if b.Health.Message != "" {
			health += " (" + b.Health.Message + ")"
		}
		rows = append(rows, []string{
			b.Backend.String(),
			b.Breaker.State.String(),
			strconv.Itoa(b.Breaker.ConsecutiveFailures),
			health,
			b.Health.Latency.Round(time.Millisecond).String(),
			pool,
		})
	}
	if err := out.PrintTable([]string{"backend", "breaker", "failures", "health", "latency", "pool"}, rows); err != nil {
		return err
	}

	c := st.Cache
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "\ncache: %d/%d entries, %d hits, %d misses, hit rate %.1f%%\n",
		c.Size, c.Capacity, c.Hits, c.Misses, c.HitRate*100)
	return err
}
