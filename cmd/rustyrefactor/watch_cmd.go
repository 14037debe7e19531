package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"rustyrefactor/internal/core/watcher"
	"rustyrefactor/internal/shared/observability"

	"github.com/spf13/cobra"
)

func newWatchCmd(g *globalFlags) *cobra.Command {
	var (
		metricsAddr string
		warm        bool
	)

	cmd := &cobra.Command{
		Use:     "watch",
		Short:   "Invalidate cache entries as workspace files change",
		GroupID: GroupRuntime,
		Args:    cobra.NoArgs,
		Long: `Watch the workspace and keep the cache consistent with it.

Every changed Rust source or Cargo manifest loses its cached entry, and the
workspace catalog is dropped so the next resolve rebuilds it. Runs until
interrupted.`,
		Example: `  rustyrefactor watch
  rustyrefactor watch --warm --metrics-addr 127.0.0.1:9464`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), g)
			if err != nil {
				return err
			}
			defer a.Close()

			if cmd.Flags().Changed("metrics-addr") {
				a.cfg.Observability.MetricsAddr = metricsAddr
			}
			return runWatch(cmd.Context(), a, warm)
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve /metrics and /health on this address (overrides config)")
	cmd.Flags().BoolVar(&warm, "warm", false, "Resolve the workspace catalog before watching")

	return cmd
}

// runWatch blocks until ctx is cancelled.
func runWatch(ctx context.Context, a *app, warm bool) error {
	root := a.paths.ProjectRoot

	if warm {
		result, err := a.resolver.ResolveProject(ctx, root)
		if err != nil {
			return fmt.Errorf("warm catalog: %w", err)
		}
		slog.Info("catalog warmed", "workspace", root, "items", len(result.Items))
	}

	invalidator := watcher.NewInvalidator(a.cache, a.resolver, root)
	w, err := watcher.NewWatcher(a.cfg.Watch.Debounce, a.cfg.Local.ExcludeDirs, a.cfg.Local.ExcludeFiles, invalidator.HandleBatch)
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()
	w.Ignore(a.paths.CacheDir)

	if addr := a.cfg.Observability.MetricsAddr; addr != "" {
		server := observability.NewServer(addr, func(context.Context) map[string]any {
			stats := a.cache.Stats()
			return map[string]any{
				"workspace":   root,
				"entries":     stats.EntryCount,
				"hit_rate":    stats.HitRate(),
				"cache_bytes": stats.SizeBytes,
			}
		})
		if err := server.Start(); err != nil {
			return fmt.Errorf("start observability server: %w", err)
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Stop(stopCtx); err != nil {
				slog.Warn("observability server shutdown failed", "error", err)
			}
		}()
	}

	if err := w.Watch([]string{root}); err != nil {
		return fmt.Errorf("watch %s: %w", root, err)
	}
	slog.Info("watching workspace", "workspace", root, "debounce", a.cfg.Watch.Debounce)

	<-ctx.Done()
	slog.Info("watcher stopping", "workspace", root)
	return nil
}
