package resolver

import (
	"context"
	"encoding/json"
	"log/slog"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	domainErrors "rustyrefactor/internal/core/errors"
	"rustyrefactor/internal/engine/cache"
	"rustyrefactor/internal/shared/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

const unknownToolchain = "rustc unknown"

// Cache is the subset of the tiered cache the resolver memoizes through.
type Cache interface {
	GetIn(ns cache.Namespace, path string) (*cache.Entry, error)
	PutIn(ns cache.Namespace, path string, payloadA, payloadB []byte, meta cache.Metadata) error
	InvalidateIn(ns cache.Namespace, path string) error
}

type Options struct {
	IncludeExternals bool
	IncludeBuiltins  bool
	MaxSuggestions   int
	// ToolchainVersion pins the version recorded with cached resolutions.
	// Empty means ask `rustc --version` once.
	ToolchainVersion string
}

func DefaultOptions() Options {
	return Options{
		IncludeExternals: true,
		IncludeBuiltins:  true,
		MaxSuggestions:   50,
	}
}

type Option func(*NameResolver)

func WithCache(c Cache) Option {
	return func(r *NameResolver) { r.cache = c }
}

func WithExtractor(e LocalItemExtractor) Option {
	return func(r *NameResolver) {
		if e != nil {
			r.extractor = e
		}
	}
}

// NameResolver maps unqualified names to import paths using the static
// catalog plus whatever the workspace defines locally.
type NameResolver struct {
	opts      Options
	cache     Cache
	extractor LocalItemExtractor
	group     singleflight.Group

	toolchainOnce sync.Once
	toolchain     string
}

func New(opts Options, options ...Option) *NameResolver {
	if opts.MaxSuggestions <= 0 {
		opts.MaxSuggestions = DefaultOptions().MaxSuggestions
	}
	r := &NameResolver{
		opts:      opts,
		extractor: NoopExtractor{},
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// GetStdItems returns the curated std/core catalog, plus well-known external
// crates when externals are enabled.
func (r *NameResolver) GetStdItems() []ImportableItem {
	return StdItems(r.opts.IncludeExternals)
}

// ResolveProject returns every importable item visible in workspaceRoot.
// With a cache the snapshot is memoized in the resolution namespace and
// reused until a source it was built from changes or the toolchain differs.
// Concurrent calls for the same root share one computation. The shared work
// is not bound to any single caller's cancellation; each caller stops waiting
// when its own ctx is done.
func (r *NameResolver) ResolveProject(ctx context.Context, workspaceRoot string) (*NameResolutionResult, error) {
	ctx, span := observability.Tracer.Start(ctx, "NameResolver.ResolveProject",
		trace.WithAttributes(attribute.String("workspace", workspaceRoot)))
	defer span.End()

	root, err := filepath.Abs(workspaceRoot)
	if err != nil {
		return nil, domainErrors.WrapIO(err, "resolve workspace", workspaceRoot)
	}

	shared := context.WithoutCancel(ctx)
	ch := r.group.DoChan(root, func() (interface{}, error) {
		return r.resolve(shared, root)
	})
	select {
	case <-ctx.Done():
		span.RecordError(ctx.Err())
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			span.RecordError(res.Err)
			return nil, res.Err
		}
		span.SetAttributes(attribute.Bool("shared", res.Shared))
		return res.Val.(*NameResolutionResult), nil
	}
}

func (r *NameResolver) resolve(ctx context.Context, root string) (*NameResolutionResult, error) {
	start := time.Now()
	toolchain := r.toolchainVersion(ctx)

	if r.cache != nil {
		cached, err := r.loadCached(root, toolchain)
		if err != nil {
			return nil, err
		}
		if cached != nil {
			observability.ResolutionDuration.WithLabelValues("cache").Observe(time.Since(start).Seconds())
			return cached, nil
		}
	}

	items := r.GetStdItems()
	if r.opts.IncludeBuiltins {
		items = append(items, BuiltinItems()...)
	}
	extraction, err := r.extractor.ExtractItems(ctx, root)
	if err != nil {
		return nil, domainErrors.AddContext(
			domainErrors.Wrap(err, domainErrors.CodeInternal, "extract local items"),
			domainErrors.CtxPath, root)
	}
	items = append(items, extraction.Items...)

	result := &NameResolutionResult{
		Items:            items,
		InScopeAtPos:     []ImportableItem{},
		Matches:          []ImportMatch{},
		Suggestions:      []ImportableItem{},
		ToolchainVersion: toolchain,
	}
	elapsed := time.Since(start)
	observability.ResolutionDuration.WithLabelValues("computed").Observe(elapsed.Seconds())
	publishItemCounts(items)

	if r.cache != nil {
		data, err := json.Marshal(result)
		if err != nil {
			return nil, domainErrors.Wrap(err, domainErrors.CodeSerialization, "encode resolution")
		}
		meta := cache.Metadata{
			ToolchainVersion:      toolchain,
			Dependencies:          extraction.Sources,
			SourceMtime:           time.Now(),
			ComputationDurationMs: uint64(elapsed.Milliseconds()),
			SourceSizeBytes:       uint64(len(data)),
		}
		if err := r.cache.PutIn(cache.NamespaceResolution, root, data, nil, meta); err != nil {
			return nil, err
		}
	}

	slog.Debug("workspace resolved",
		"workspace", root,
		"items", len(items),
		"local_items", len(extraction.Items),
		"duration", elapsed,
	)
	return result, nil
}

// loadCached returns nil without error for every kind of unusable snapshot.
func (r *NameResolver) loadCached(root, toolchain string) (*NameResolutionResult, error) {
	entry, err := r.cache.GetIn(cache.NamespaceResolution, root)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, nil
	}

	var result NameResolutionResult
	if err := json.Unmarshal(entry.PayloadA, &result); err != nil {
		slog.Warn("cached resolution unreadable, recomputing", "workspace", root, "error", err)
		return nil, nil
	}
	if result.ToolchainVersion != toolchain {
		slog.Debug("cached resolution built by another toolchain, recomputing",
			"workspace", root, "cached", result.ToolchainVersion, "current", toolchain)
		return nil, nil
	}
	return &result, nil
}

// FindMatchesForTypes scores every unresolved name against the workspace
// catalog and keeps matches above RelevanceThreshold. The result is sorted by
// ascending confidence and cut to MaxSuggestions, so the strongest match is
// last. Use BestMatch for the single most likely item.
func (r *NameResolver) FindMatchesForTypes(ctx context.Context, unresolved []string, workspaceRoot string) ([]ImportMatch, error) {
	ctx, span := observability.Tracer.Start(ctx, "NameResolver.FindMatchesForTypes",
		trace.WithAttributes(attribute.Int("names", len(unresolved))))
	defer span.End()

	resolution, err := r.ResolveProject(ctx, workspaceRoot)
	if err != nil {
		return nil, err
	}

	var matches []ImportMatch
	for _, name := range unresolved {
		for _, item := range resolution.Items {
			confidence, matchType := CalculateMatchScore(name, item)
			if confidence > RelevanceThreshold {
				matches = append(matches, ImportMatch{Item: item, Confidence: confidence, MatchType: matchType})
			}
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Confidence < matches[j].Confidence
	})
	if len(matches) > r.opts.MaxSuggestions {
		matches = matches[:r.opts.MaxSuggestions]
	}
	return matches, nil
}

// BestMatch returns the highest scoring item for name. Ties keep catalog
// order. ok is false when nothing clears RelevanceThreshold.
func (r *NameResolver) BestMatch(ctx context.Context, name, workspaceRoot string) (ImportMatch, bool, error) {
	resolution, err := r.ResolveProject(ctx, workspaceRoot)
	if err != nil {
		return ImportMatch{}, false, err
	}

	var best ImportMatch
	found := false
	for _, item := range resolution.Items {
		confidence, matchType := CalculateMatchScore(name, item)
		if confidence <= RelevanceThreshold {
			continue
		}
		if !found || confidence > best.Confidence {
			best = ImportMatch{Item: item, Confidence: confidence, MatchType: matchType}
			found = true
		}
	}
	return best, found, nil
}

// InvalidateProject drops the memoized resolution for workspaceRoot.
func (r *NameResolver) InvalidateProject(workspaceRoot string) error {
	root, err := filepath.Abs(workspaceRoot)
	if err != nil {
		return domainErrors.WrapIO(err, "resolve workspace", workspaceRoot)
	}
	r.group.Forget(root)
	if r.cache == nil {
		return nil
	}
	return r.cache.InvalidateIn(cache.NamespaceResolution, root)
}

// ToolchainVersion reports the version stamped on cached resolutions.
func (r *NameResolver) ToolchainVersion(ctx context.Context) string {
	return r.toolchainVersion(ctx)
}

func (r *NameResolver) toolchainVersion(ctx context.Context) string {
	r.toolchainOnce.Do(func() {
		if v := strings.TrimSpace(r.opts.ToolchainVersion); v != "" {
			r.toolchain = v
			return
		}
		r.toolchain = detectToolchain(ctx)
	})
	return r.toolchain
}

var detectToolchain = func(ctx context.Context) string {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, "rustc", "--version").Output()
	if err != nil {
		slog.Debug("rustc not available", "error", err)
		return unknownToolchain
	}
	if v := strings.TrimSpace(string(out)); v != "" {
		return v
	}
	return unknownToolchain
}

func publishItemCounts(items []ImportableItem) {
	counts := map[SourceKind]int{}
	for _, item := range items {
		counts[item.Source.Kind]++
	}
	for _, kind := range []SourceKind{SourceStd, SourceCore, SourceExternal, SourceLocal, SourceCompiler} {
		observability.ImportableItems.WithLabelValues(string(kind)).Set(float64(counts[kind]))
	}
}
