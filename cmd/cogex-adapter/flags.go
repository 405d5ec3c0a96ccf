package main

import (
	"github.com/spf13/cobra"

	"github.com/ejmockler/indra-cogex-mcp/cmd/cogex-adapter/internal"
	"github.com/ejmockler/indra-cogex-mcp/internal/config"
)

// GlobalFlags holds global flags available to all commands
type GlobalFlags struct {
	Verbose      bool
	Quiet        bool
	OutputFormat string
	ConfigFile   string
}

// RegisterGlobalFlags registers persistent flags on the root command
func RegisterGlobalFlags(cmd *cobra.Command, flags *GlobalFlags) {
	cmd.PersistentFlags().BoolVarP(&flags.Verbose, "verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flags.Quiet, "quiet", "q", false, "Only log errors")
	cmd.PersistentFlags().StringVarP(&flags.OutputFormat, "output", "o", "text", "Output format (text|json)")
	cmd.PersistentFlags().StringVarP(&flags.ConfigFile, "config", "c", "",
		"Path to config file (default: ./"+config.DefaultConfigFile+" if present)")
}

// Validate checks flag combinations.
func (f *GlobalFlags) Validate() error {
	if f.Verbose && f.Quiet {
		return internal.NewCLIError(internal.ExitError, "--verbose and --quiet cannot be used together")
	}
	if _, err := internal.ParseOutputFormat(f.OutputFormat); err != nil {
		return internal.WrapError(internal.ExitError, "invalid --output", err)
	}
	return nil
}

// Format returns the parsed output format. Call Validate first.
func (f *GlobalFlags) Format() internal.OutputFormat {
	format, _ := internal.ParseOutputFormat(f.OutputFormat)
	return format
}

// LogLevel returns the level override implied by --verbose or --quiet, or "".
func (f *GlobalFlags) LogLevel() string {
	switch {
	case f.Verbose:
		return "debug"
	case f.Quiet:
		return "error"
	}
	return ""
}
