package main

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ejmockler/indra-cogex-mcp/cmd/cogex-adapter/internal"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			redacted := a.cfg.Redacted()
			if a.flags.Format() == internal.FormatJSON {
				return internal.NewJSONFormatter(cmd.OutOrStdout()).PrintJSON(redacted)
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(redacted)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Load and validate the configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Loading already validated it.
			return internal.NewFormatter(a.flags.Format(), cmd.OutOrStdout()).PrintSuccess("configuration is valid")
		},
	})
	return cmd
}
