package watcher

import (
	"log/slog"

	"rustyrefactor/internal/shared/observability"
)

// FileCache is the part of the tiered cache the invalidator drives.
type FileCache interface {
	Invalidate(path string) error
	SaveIndex() error
}

// ProjectInvalidator drops a workspace's memoized resolution.
type ProjectInvalidator interface {
	InvalidateProject(root string) error
}

// Invalidator turns watcher batches into cache invalidations: every changed
// file loses its own entry, and any Rust source or manifest change also drops
// the workspace resolution. The index is flushed after each batch.
type Invalidator struct {
	cache    FileCache
	projects ProjectInvalidator
	root     string
}

func NewInvalidator(cache FileCache, projects ProjectInvalidator, root string) *Invalidator {
	return &Invalidator{cache: cache, projects: projects, root: root}
}

// HandleBatch has the watcher callback signature.
func (i *Invalidator) HandleBatch(paths []string) {
	projectChanged := false
	for _, path := range paths {
		if err := i.cache.Invalidate(path); err != nil {
			slog.Warn("cache invalidation failed", "path", path, "error", err)
		} else {
			observability.WatcherInvalidationsTotal.WithLabelValues("file").Inc()
		}
		if IsRustSource(path) || IsManifest(path) {
			projectChanged = true
		}
	}

	if projectChanged && i.projects != nil {
		if err := i.projects.InvalidateProject(i.root); err != nil {
			slog.Warn("resolution invalidation failed", "workspace", i.root, "error", err)
		} else {
			observability.WatcherInvalidationsTotal.WithLabelValues("project").Inc()
		}
	}

	if err := i.cache.SaveIndex(); err != nil {
		slog.Warn("failed to persist cache index", "error", err)
	}
	slog.Info("invalidated changed files", "count", len(paths), "project", projectChanged)
}
