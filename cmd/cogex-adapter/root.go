package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ejmockler/indra-cogex-mcp/cmd/cogex-adapter/internal"
	"github.com/ejmockler/indra-cogex-mcp/internal/config"
	"github.com/ejmockler/indra-cogex-mcp/internal/observability"
)

// app is the state shared by every subcommand of one invocation.
type app struct {
	flags  GlobalFlags
	loader config.ConfigLoader
	cfg    *config.Config
	logger *observability.TracedLogger
}

// skipConfig lists commands that run without loading configuration.
var skipConfig = map[string]bool{
	"version":    true,
	"help":       true,
	"completion": true,
}

func newRootCmd() *cobra.Command {
	a := &app{loader: config.NewConfigLoader(config.NewValidator())}

	root := &cobra.Command{
		Use:   "cogex-adapter",
		Short: "Resilient query adapter for the CoGEx knowledge graph",
		Long: `cogex-adapter answers named CoGEx queries from a Neo4j primary,
failing over to the public HTTP API when the primary is unavailable.

Configuration is read from --config, ./cogex-adapter.yaml, or defaults,
with COGEX_* environment variables taking precedence.`,
		PersistentPreRunE: a.loadConfig,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}
	RegisterGlobalFlags(root, &a.flags)

	root.AddCommand(
		newServeCmd(a),
		newQueryCmd(a),
		newStatusCmd(a),
		newCatalogCmd(a),
		newConfigCmd(a),
		newVersionCmd(a),
		newCompletionCmd(),
	)
	return root
}

// Execute runs root with SIGINT/SIGTERM cancelling the command context.
func Execute(ctx context.Context, root *cobra.Command) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return root.ExecuteContext(ctx)
}

// loadConfig runs before every command. An explicit --config must exist;
// otherwise ./cogex-adapter.yaml is used when present, then defaults.
func (a *app) loadConfig(cmd *cobra.Command, args []string) error {
	if err := a.flags.Validate(); err != nil {
		return err
	}
	if skipConfig[cmd.Name()] {
		return nil
	}

	var (
		cfg *config.Config
		err error
	)
	switch {
	case a.flags.ConfigFile != "":
		cfg, err = a.loader.Load(a.flags.ConfigFile)
	case fileExists(config.DefaultConfigFile):
		cfg, err = a.loader.Load(config.DefaultConfigFile)
	default:
		cfg, err = a.loader.LoadWithDefaults("")
	}
	if err != nil {
		return internal.WrapError(internal.ExitConfigError, "failed to load configuration", err)
	}

	if level := a.flags.LogLevel(); level != "" {
		cfg.Logging.Level = level
	}
	logger, err := observability.NewLogger(cfg.Logging, cmd.ErrOrStderr())
	if err != nil {
		return internal.WrapError(internal.ExitConfigError, "invalid logging configuration", err)
	}

	a.cfg = cfg
	a.logger = logger
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, os.ErrNotExist)
}

func newCompletionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for cogex-adapter.

Bash:

  $ source <(cogex-adapter completion bash)

Zsh:

  $ cogex-adapter completion zsh > "${fpath[1]}/_cogex-adapter"

Fish:

  $ cogex-adapter completion fish | source
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			default:
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
		},
	}
}
