package main

import (
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ejmockler/indra-cogex-mcp/cmd/cogex-adapter/internal"
	"github.com/ejmockler/indra-cogex-mcp/internal/catalog"
)

func newCatalogCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the named-query catalog",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List catalog queries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := a.catalog()
			if err != nil {
				return err
			}
			queries := cat.List()

			out := internal.NewFormatter(a.flags.Format(), cmd.OutOrStdout())
			if a.flags.Format() == internal.FormatJSON {
				return out.PrintJSON(queries)
			}
			rows := make([][]string, len(queries))
			for i, q := range queries {
				rows[i] = []string{q.Name, paramSummary(q.Params), q.HTTP.Path, q.Description}
			}
			return out.PrintTable([]string{"name", "params", "http", "description"}, rows)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show NAME",
		Short: "Print one query definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := a.catalog()
			if err != nil {
				return err
			}
			q, err := cat.Resolve(args[0])
			if err != nil {
				return err
			}

			if a.flags.Format() == internal.FormatJSON {
				return internal.NewJSONFormatter(cmd.OutOrStdout()).PrintJSON(q)
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(q)
		},
	})
	return cmd
}

func (a *app) catalog() (*catalog.Static, error) {
	cat, err := catalog.Load(a.cfg.Catalog.Path)
	if err != nil {
		return nil, internal.WrapError(internal.ExitConfigError, "failed to load catalog", err)
	}
	return cat, nil
}

// paramSummary renders params as "name*:type" with * marking required.
func paramSummary(params []catalog.Param) string {
	parts := make([]string, len(params))
	for i, p := range params {
		name := p.Name
		if p.Required {
			name += "*"
		}
		typ := string(p.Type)
		if typ == "" {
			typ = string(catalog.ParamString)
		}
		parts[i] = name + ":" + typ
	}
	return strings.Join(parts, " ")
}
