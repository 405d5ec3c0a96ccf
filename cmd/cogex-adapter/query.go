package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ejmockler/indra-cogex-mcp/cmd/cogex-adapter/internal"
	"github.com/ejmockler/indra-cogex-mcp/internal/adapter"
)

// queryOutput is the JSON shape of `query -o json`.
type queryOutput struct {
	Query     string           `json:"query"`
	Records   []map[string]any `json:"records"`
	Origin    string           `json:"origin"`
	Backend   string           `json:"backend"`
	FromCache bool             `json:"from_cache"`
	Attempts  int              `json:"attempts"`
	ElapsedMS float64          `json:"elapsed_ms"`
}

func newQueryCmd(a *app) *cobra.Command {
	var (
		pairs      []string
		jsonParams string
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "query NAME",
		Short: "Run one named query and print the records",
		Example: `  cogex-adapter query get_gene --param gene_id=hgnc:11998
  cogex-adapter query get_tissues_for_gene --json-params '{"gene_id":"hgnc:11998","limit":5}' -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseParams(pairs, jsonParams)
			if err != nil {
				return internal.WrapError(internal.ExitInvalidQuery, "invalid parameters", err)
			}
			return runQuery(cmd, a, adapter.NewRequest(args[0], params, timeout))
		},
	}
	cmd.Flags().StringArrayVarP(&pairs, "param", "p", nil, "Query parameter as key=value (repeatable)")
	cmd.Flags().StringVar(&jsonParams, "json-params", "", "Query parameters as a JSON object")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Request timeout (default: adapter.default_timeout)")
	return cmd
}

func runQuery(cmd *cobra.Command, a *app, req adapter.Request) error {
	ctx := cmd.Context()
	st, err := a.buildStack(ctx)
	if err != nil {
		return err
	}
	defer st.Close(context.WithoutCancel(ctx))

	res, err := st.querier.Execute(ctx, req)
	if err != nil {
		return err
	}

	out := internal.NewFormatter(a.flags.Format(), cmd.OutOrStdout())
	if a.flags.Format() == internal.FormatJSON {
		records := res.Records
		if records == nil {
			records = []map[string]any{}
		}
		return out.PrintJSON(queryOutput{
			Query:     req.Name,
			Records:   records,
			Origin:    res.Origin.String(),
			Backend:   res.Backend.String(),
			FromCache: res.FromCache,
			Attempts:  res.Attempts,
			ElapsedMS: float64(res.Elapsed) / float64(time.Millisecond),
		})
	}

	if err := out.PrintRecords(res.Records); err != nil {
		return err
	}
	if !a.flags.Quiet {
		cmd.PrintErrf("%d record(s) from %s in %s (attempts: %d)\n",
			len(res.Records), res.Origin, res.Elapsed.Round(time.Millisecond), res.Attempts)
	}
	return nil
}

// parseParams merges a JSON object with key=value pairs; pairs win. Pair
// values stay strings and are coerced by the catalog's parameter types.
func parseParams(pairs []string, jsonParams string) (map[string]any, error) {
	params := make(map[string]any)

	if strings.TrimSpace(jsonParams) != "" {
		dec := json.NewDecoder(strings.NewReader(jsonParams))
		dec.UseNumber()
		if err := dec.Decode(&params); err != nil {
			return nil, fmt.Errorf("--json-params: %w", err)
		}
		if params == nil {
			params = make(map[string]any)
		}
	}

	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("--param %q: want key=value", p)
		}
		params[key] = value
	}

	if len(params) == 0 {
		return nil, nil
	}
	return params, nil
}
