package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newCacheCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "cache",
		Short:   "Inspect and manage the analysis cache",
		GroupID: GroupCache,
		Long: `Inspect and manage the two-tier analysis cache.

Entries are keyed by canonical file path and are only returned while the
file content, its declared dependencies and the entry age are still valid.`,
	}

	cmd.AddCommand(newCacheGetCmd(g))
	cmd.AddCommand(newCachePutCmd(g))
	cmd.AddCommand(newCacheInvalidateCmd(g))
	cmd.AddCommand(newCacheClearCmd(g))
	cmd.AddCommand(newCacheListCmd(g))
	cmd.AddCommand(newCacheStatsCmd(g))

	return cmd
}

func newCacheGetCmd(g *globalFlags) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "get <path>",
		Short: "Look up the cached entry for a file",
		Args:  cobra.ExactArgs(1),
		Example: `  rustyrefactor cache get src/lib.rs
  rustyrefactor cache get src/lib.rs --raw > analysis.bin`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), g)
			if err != nil {
				return err
			}
			defer a.Close()

			return runCacheGet(cmd.OutOrStdout(), a, args[0], raw, g.jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "Write the primary payload bytes to stdout")

	return cmd
}

func newCachePutCmd(g *globalFlags) *cobra.Command {
	var opts putOptions

	cmd := &cobra.Command{
		Use:   "put <path>",
		Short: "Store analysis payloads for a file",
		Args:  cobra.ExactArgs(1),
		Long: `Store analysis payloads for a file.

The primary payload is read from --data (or stdin when --data is "-").
The entry stays valid until the file or any --dep path changes.`,
		Example: `  rustyrefactor cache put src/lib.rs --data lib.ast
  analyzer src/lib.rs | rustyrefactor cache put src/lib.rs --dep Cargo.toml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), g)
			if err != nil {
				return err
			}
			defer a.Close()

			return runCachePut(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), a, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.dataPath, "data", "-", "File holding the primary payload (- for stdin)")
	cmd.Flags().StringVar(&opts.extraPath, "extra", "", "File holding the secondary payload")
	cmd.Flags().StringVar(&opts.toolchain, "toolchain", "", "Toolchain version to record (default: detected)")
	cmd.Flags().StringSliceVar(&opts.deps, "dep", nil, "Dependency path whose changes invalidate the entry (repeatable)")

	return cmd
}

func newCacheInvalidateCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "invalidate <path>...",
		Short:   "Drop cached entries for files",
		Aliases: []string{"rm"},
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), g)
			if err != nil {
				return err
			}
			defer a.Close()

			for _, path := range args {
				if err := a.cache.Invalidate(path); err != nil {
					return fmt.Errorf("invalidate %s: %w", path, err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "invalidated %d path(s)\n", len(args))
			return nil
		},
	}

	return cmd
}

func newCacheClearCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached entry and reset statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), g)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.cache.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "cache cleared:", a.paths.CacheDir)
			return nil
		},
	}

	return cmd
}

func newCacheListCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List cached entries",
		Aliases: []string{"ls"},
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), g)
			if err != nil {
				return err
			}
			defer a.Close()

			return runCacheList(cmd.OutOrStdout(), a, g.jsonOutput)
		},
	}

	return cmd
}

func newCacheStatsCmd(g *globalFlags) *cobra.Command {
	var (
		withHistory bool
		since       time.Duration
		window      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show hit rate and size statistics",
		Args:  cobra.NoArgs,
		Example: `  rustyrefactor cache stats
  rustyrefactor cache stats --history --since 72h --window 6h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), g)
			if err != nil {
				return err
			}
			defer a.Close()

			if withHistory {
				return runCacheHistory(cmd.OutOrStdout(), a, since, window, g.jsonOutput)
			}
			return runCacheStats(cmd.OutOrStdout(), a, g.jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&withHistory, "history", false, "Show recorded statistics over time")
	cmd.Flags().DurationVar(&since, "since", 7*24*time.Hour, "How far back to read history")
	cmd.Flags().DurationVar(&window, "window", 24*time.Hour, "Trailing window for the average hit rate")

	return cmd
}
