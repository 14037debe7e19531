package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"rustyrefactor/internal/core/config"
	"rustyrefactor/internal/data/history"
	"rustyrefactor/internal/engine/cache"
	"rustyrefactor/internal/engine/parser"
	"rustyrefactor/internal/engine/resolver"
	"rustyrefactor/internal/shared/observability"
)

// app is everything one command invocation works against.
type app struct {
	cfg      *config.Config
	paths    config.ResolvedPaths
	cache    *cache.TieredCache
	resolver *resolver.NameResolver
	history  *history.Store
	recorder *history.Recorder
	shutdown func(context.Context) error

	// historyErr is set when history is enabled but its database is unusable.
	historyErr error
}

// openApp loads configuration and wires the cache, resolver, extractor and
// optional history store for the selected workspace.
func openApp(ctx context.Context, g *globalFlags) (*app, error) {
	cfg, err := config.LoadOrDefault(g.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", g.configPath, err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}
	paths, err := config.ResolvePaths(cfg, cwd, g.workspace)
	if err != nil {
		return nil, fmt.Errorf("resolve paths: %w", err)
	}

	shutdown, err := observability.InitTracing(ctx, cfg.Observability.OTLPEndpoint, cfg.Observability.ServiceName)
	if err != nil {
		slog.Warn("tracing disabled", "endpoint", cfg.Observability.OTLPEndpoint, "error", err)
	}

	a := &app{cfg: cfg, paths: paths, shutdown: shutdown}

	var cacheOpts []cache.Option
	if cfg.History.Enabled {
		store, err := history.Open(paths.HistoryPath)
		switch {
		case err == nil:
			a.history = store
			a.recorder = history.NewRecorder(store, paths.ProjectRoot)
			cacheOpts = append(cacheOpts, cache.WithStatsRecorder(a.recorder))
		case history.IsCorruptError(err):
			slog.Warn("history disabled, database is unreadable", "path", paths.HistoryPath, "error", err)
			a.historyErr = err
		default:
			a.Close()
			return nil, fmt.Errorf("open history: %w", err)
		}
	}

	opts, err := cacheOptions(cfg.Cache)
	if err != nil {
		a.Close()
		return nil, err
	}
	c, err := cache.New(paths.CacheDir, opts, cacheOpts...)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.cache = c

	resolverOpts := []resolver.Option{resolver.WithCache(c)}
	if cfg.Local.IsEnabled() {
		extractor, err := parser.NewRustExtractor(extractorOptions(cfg.Local))
		if err != nil {
			a.Close()
			return nil, err
		}
		resolverOpts = append(resolverOpts, resolver.WithExtractor(extractor))
	}
	a.resolver = resolver.New(resolverOptions(cfg.Resolver), resolverOpts...)

	slog.Debug("workspace opened",
		"workspace", paths.ProjectRoot,
		"cache_dir", paths.CacheDir,
		"history", cfg.History.Enabled,
	)
	return a, nil
}

// Close flushes the cache index (which also records history) before closing
// the store it records into.
func (a *app) Close() error {
	var errs []error
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close cache: %w", err))
		}
	}
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close history: %w", err))
		}
	}
	if a.shutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.shutdown(ctx); err != nil {
			slog.Warn("tracing shutdown failed", "error", err)
		}
	}
	return errors.Join(errs...)
}

func cacheOptions(c config.Cache) (cache.Options, error) {
	codec, err := cache.ParseCodec(c.Compression)
	if err != nil {
		return cache.Options{}, err
	}
	return cache.Options{
		MaxSizeBytes:     c.MaxSizeBytes,
		MaxAgeSecs:       c.MaxAgeSecs,
		CompressData:     c.CompressionEnabled(),
		Codec:            codec,
		CompressionLevel: c.CompressionLevel,
		UseHotTier:       c.HotTierEnabled(),
		MaxMemoryEntries: c.MaxMemoryEntries,
	}, nil
}

func resolverOptions(r config.Resolver) resolver.Options {
	return resolver.Options{
		IncludeExternals: r.ExternalsEnabled(),
		IncludeBuiltins:  r.BuiltinsEnabled(),
		MaxSuggestions:   r.MaxSuggestions,
		ToolchainVersion: r.ToolchainVersion,
	}
}

func extractorOptions(l config.Local) parser.Options {
	return parser.Options{
		ExcludeDirs:       l.ExcludeDirs,
		ExcludeFiles:      l.ExcludeFiles,
		Workers:           l.Workers,
		MaxFilesPerSecond: l.MaxFilesPerSecond,
	}
}
