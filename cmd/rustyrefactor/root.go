package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"rustyrefactor/internal/core/config"

	"github.com/spf13/cobra"
)

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	workspace  string
	verbose    bool
	jsonOutput bool
}

// Command group IDs for organizing help output
const (
	GroupCache    = "cache"
	GroupResolver = "resolver"
	GroupRuntime  = "runtime"
)

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	cmd := &cobra.Command{
		Use:   "rustyrefactor",
		Short: "Tiered analysis cache and import resolver for Rust workspaces",
		Long: `rustyrefactor keeps a two-tier (memory + disk) cache of per-file analysis
results and resolves unqualified Rust names to import paths using the
standard library catalog plus the items your workspace defines.`,
		SilenceUsage:               true,
		SilenceErrors:              true,
		SuggestionsMinimumDistance: 2,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			installLogger(cmd.ErrOrStderr(), g.verbose)
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", config.DefaultConfigFile, "Path to config file")
	cmd.PersistentFlags().StringVarP(&g.workspace, "workspace", "w", "", "Workspace root (default: detected from the working directory)")
	cmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().BoolVar(&g.jsonOutput, "json", false, "Output as JSON")

	cmd.Version = versionString()
	cmd.SetVersionTemplate("{{.Version}}\n")

	cmd.AddGroup(
		&cobra.Group{ID: GroupCache, Title: "Cache Commands:"},
		&cobra.Group{ID: GroupResolver, Title: "Resolver Commands:"},
		&cobra.Group{ID: GroupRuntime, Title: "Runtime Commands:"},
	)

	cmd.AddCommand(newCacheCmd(g))
	cmd.AddCommand(newResolveCmd(g))
	cmd.AddCommand(newSuggestCmd(g))
	cmd.AddCommand(newSearchCmd(g))
	cmd.AddCommand(newWatchCmd(g))

	return cmd
}

// Execute runs the root command with signal-aware context.
func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newRootCmd().ExecuteContext(ctx)
	cancel()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, "Run 'rustyrefactor -h' for help")
		os.Exit(1)
	}
}

// installLogger sends diagnostics to stderr so stdout stays parseable.
func installLogger(w io.Writer, verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}
