package parser

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	domainErrors "rustyrefactor/internal/core/errors"
	"rustyrefactor/internal/engine/resolver"
	"rustyrefactor/internal/shared/observability"
	"rustyrefactor/internal/shared/util"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

var _ resolver.LocalItemExtractor = (*RustExtractor)(nil)

type Options struct {
	ExcludeDirs  []string
	ExcludeFiles []string
	Workers      int
	// MaxFilesPerSecond throttles file reads. Zero means unlimited.
	MaxFilesPerSecond float64
}

func DefaultOptions() Options {
	return Options{
		ExcludeDirs: []string{"target", ".git"},
		Workers:     4,
	}
}

// RustExtractor finds the public items a Cargo workspace defines by parsing
// its sources with tree-sitter.
type RustExtractor struct {
	opts    Options
	filter  *util.PathFilter
	limiter *util.Limiter
	pool    *ParserPool
	walker  *itemWalker
}

func NewRustExtractor(opts Options) (*RustExtractor, error) {
	if opts.Workers <= 0 {
		opts.Workers = DefaultOptions().Workers
	}
	filter, err := util.NewPathFilter(opts.ExcludeDirs, opts.ExcludeFiles)
	if err != nil {
		return nil, domainErrors.Wrap(err, domainErrors.CodeValidationError, "compile exclude patterns")
	}
	return &RustExtractor{
		opts:    opts,
		filter:  filter,
		limiter: util.NewLimiter(opts.MaxFilesPerSecond, opts.Workers),
		pool:    NewParserPool(rustLanguage()),
		walker:  newItemWalker(),
	}, nil
}

// sourceFile is one .rs file and the module it defines.
type sourceFile struct {
	path   string
	crate  string
	module []string
}

// ExtractItems parses every crate source under workspaceRoot. Files that
// cannot be read are skipped with a warning; a cancelled ctx aborts the run.
func (e *RustExtractor) ExtractItems(ctx context.Context, workspaceRoot string) (resolver.Extraction, error) {
	ctx, span := observability.Tracer.Start(ctx, "RustExtractor.ExtractItems",
		trace.WithAttributes(attribute.String("workspace", workspaceRoot)))
	defer span.End()

	crates, manifests, err := discoverCrates(workspaceRoot, e.filter)
	if err != nil {
		span.RecordError(err)
		return resolver.Extraction{}, err
	}

	sources := append([]string(nil), manifests...)
	var files []sourceFile
	for _, c := range crates {
		found, dirs, err := e.collectFiles(c)
		if err != nil {
			span.RecordError(err)
			return resolver.Extraction{}, err
		}
		files = append(files, found...)
		sources = append(sources, dirs...)
	}

	results := make([][]resolver.ImportableItem, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for i, f := range files {
		if gctx.Err() != nil {
			break
		}
		sources = append(sources, f.path)
		g.Go(func() error {
			if err := e.limiter.Wait(gctx, 1); err != nil {
				return err
			}
			items, err := e.parseFile(f)
			if err != nil {
				observability.ExtractedFilesTotal.WithLabelValues("failed").Inc()
				slog.Warn("skipping unreadable source", "path", f.path, "error", err)
				return nil
			}
			observability.ExtractedFilesTotal.WithLabelValues("parsed").Inc()
			results[i] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return resolver.Extraction{}, err
	}
	if err := ctx.Err(); err != nil {
		return resolver.Extraction{}, err
	}

	var items []resolver.ImportableItem
	for _, r := range results {
		items = append(items, r...)
	}
	sort.Strings(sources)

	span.SetAttributes(attribute.Int("files", len(files)), attribute.Int("items", len(items)))
	slog.Debug("local items extracted",
		"workspace", workspaceRoot,
		"crates", len(crates),
		"files", len(files),
		"items", len(items),
	)
	return resolver.Extraction{Items: items, Sources: sources}, nil
}

// collectFiles walks a crate's src/ tree. src/bin holds separate binary
// crates and is not part of the library's module tree.
func (e *RustExtractor) collectFiles(c crateTarget) ([]sourceFile, []string, error) {
	srcDir := filepath.Join(c.Dir, "src")
	if !dirExists(srcDir) {
		return nil, nil, nil
	}
	binDir := filepath.Join(srcDir, "bin")

	var files []sourceFile
	var dirs []string
	err := filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != srcDir && (path == binDir || e.filter.SkipDir(path)) {
				return filepath.SkipDir
			}
			dirs = append(dirs, path)
			return nil
		}
		if filepath.Ext(path) != ".rs" || e.filter.SkipFile(path) {
			return nil
		}
		module, ok := moduleSegments(srcDir, path)
		if !ok {
			return nil
		}
		files = append(files, sourceFile{path: path, crate: c.Prefix, module: module})
		return nil
	})
	if err != nil {
		return nil, nil, domainErrors.WrapIO(err, "walk sources", srcDir)
	}
	return files, dirs, nil
}

// moduleSegments maps a source file to its module path below the crate root:
// lib.rs and main.rs are the root, a/b.rs and a/b/mod.rs are a::b.
func moduleSegments(srcDir, path string) ([]string, bool) {
	rel, err := filepath.Rel(srcDir, path)
	if err != nil {
		return nil, false
	}
	rel = strings.TrimSuffix(util.NormalizePatternPath(rel), ".rs")
	if rel == "lib" || rel == "main" {
		return []string{}, true
	}
	segments := strings.Split(rel, "/")
	if segments[len(segments)-1] == "mod" {
		segments = segments[:len(segments)-1]
	}
	for _, s := range segments {
		if s == "" || strings.ContainsAny(s, ".- ") {
			return nil, false
		}
	}
	return segments, true
}

func (e *RustExtractor) parseFile(f sourceFile) ([]resolver.ImportableItem, error) {
	start := time.Now()
	defer func() {
		observability.ParsingDuration.Observe(time.Since(start).Seconds())
	}()

	source, err := os.ReadFile(f.path)
	if err != nil {
		return nil, domainErrors.WrapIO(err, "read source", f.path)
	}
	return e.extractSource(source, f.crate, f.module)
}

func (e *RustExtractor) extractSource(source []byte, crate string, module []string) ([]resolver.ImportableItem, error) {
	sp := e.pool.Get()
	defer e.pool.Put(sp)

	tree := sp.Parse(source, nil)
	if tree == nil {
		return nil, domainErrors.New(domainErrors.CodeInternal, "parse failed")
	}
	defer tree.Close()

	var items []resolver.ImportableItem
	scope := &moduleScope{
		source: source,
		crate:  crate,
		module: module,
		items:  &items,
	}
	e.walker.walkBody(scope, tree.RootNode())
	return items, nil
}
