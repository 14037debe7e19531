package main

import (
	"github.com/spf13/cobra"
)

func newResolveCmd(g *globalFlags) *cobra.Command {
	var (
		refresh   bool
		listItems bool
	)

	cmd := &cobra.Command{
		Use:     "resolve",
		Short:   "Build the importable item catalog for the workspace",
		GroupID: GroupResolver,
		Args:    cobra.NoArgs,
		Long: `Build the importable item catalog for the workspace.

The catalog combines the standard library table, well-known external crates,
compiler builtins and every public item the workspace crates define. It is
cached until a Rust source, a Cargo manifest or the toolchain changes.`,
		Example: `  rustyrefactor resolve
  rustyrefactor resolve --refresh --items
  rustyrefactor resolve --json > catalog.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), g)
			if err != nil {
				return err
			}
			defer a.Close()

			return runResolve(cmd.Context(), cmd.OutOrStdout(), a, refresh, listItems, g.jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "Drop the cached catalog before resolving")
	cmd.Flags().BoolVar(&listItems, "items", false, "List every item instead of a summary")

	return cmd
}

func newSuggestCmd(g *globalFlags) *cobra.Command {
	var best bool

	cmd := &cobra.Command{
		Use:     "suggest <name>...",
		Short:   "Suggest imports for unresolved names",
		GroupID: GroupResolver,
		Args:    cobra.MinimumNArgs(1),
		Long: `Suggest imports for unresolved names.

Every catalog item is scored against every name: exact names score 1.0,
prefix and suffix matches 0.8 and 0.7, names within two edits up to 0.6 and
path substring matches 0.4. Candidates at or below 0.3 are dropped. Matches
are listed strongest first; use --best for one import per name.`,
		Example: `  rustyrefactor suggest HashMap Arc
  rustyrefactor suggest Hashmap --best`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), g)
			if err != nil {
				return err
			}
			defer a.Close()

			if best {
				return runBestMatch(cmd.Context(), cmd.OutOrStdout(), a, args, g.jsonOutput)
			}
			return runSuggest(cmd.Context(), cmd.OutOrStdout(), a, args, g.jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&best, "best", false, "Show only the best match per name")

	return cmd
}

func newSearchCmd(g *globalFlags) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:     "search <query>",
		Short:   "Fuzzy search the catalog by import path",
		GroupID: GroupResolver,
		Args:    cobra.ExactArgs(1),
		Example: `  rustyrefactor search hmap
  rustyrefactor search "sync::mx" --limit 5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), g)
			if err != nil {
				return err
			}
			defer a.Close()

			return runSearch(cmd.Context(), cmd.OutOrStdout(), a, args[0], limit, g.jsonOutput)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of results (0 for all)")

	return cmd
}
