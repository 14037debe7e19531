package cache

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	domainErrors "rustyrefactor/internal/core/errors"
	"rustyrefactor/internal/shared/observability"

	"github.com/google/uuid"
)

const (
	indexFileName = "index.bin"
	entryExt      = ".cache"
	tempExt       = ".tmp"
)

// Options mirrors the [cache] config section.
type Options struct {
	// MaxSizeBytes of 0 disables size-based eviction.
	MaxSizeBytes uint64
	// MaxAgeSecs of 0 disables age expiry.
	MaxAgeSecs       uint64
	CompressData     bool
	Codec            Codec
	CompressionLevel int
	UseHotTier       bool
	MaxMemoryEntries int
}

func DefaultOptions() Options {
	return Options{
		MaxSizeBytes:     500 * 1024 * 1024,
		MaxAgeSecs:       24 * 60 * 60,
		CompressData:     true,
		Codec:            CodecZstd,
		CompressionLevel: 3,
		UseHotTier:       true,
		MaxMemoryEntries: 100,
	}
}

type Option func(*TieredCache)

// WithClock replaces time.Now for created_at stamps and age checks.
func WithClock(now func() time.Time) Option {
	return func(c *TieredCache) {
		if now != nil {
			c.now = now
		}
	}
}

func WithSourceFS(fsys SourceFS) Option {
	return func(c *TieredCache) {
		if fsys != nil {
			c.src = fsys
		}
	}
}

// WithStatsRecorder registers a sink that receives stats on every SaveIndex.
func WithStatsRecorder(r StatsRecorder) Option {
	return func(c *TieredCache) {
		c.recorder = r
	}
}

// TieredCache is a content-addressed cache with an in-memory hot tier in front
// of a durable disk tier.
//
// Lock discipline: mu guards index only. Entry encoding, compression and all
// disk reads and writes happen outside it; the hot tier has its own locks.
// Clear is the exception and holds mu while it removes files.
type TieredCache struct {
	dir        string
	opts       Options
	src        SourceFS
	now        func() time.Time
	compressor Compressor
	hot        *hotTier
	recorder   StatsRecorder

	mu    sync.RWMutex
	index *Index
}

// New opens (or creates) a cache rooted at dir and loads its index. A corrupt
// or outdated index is discarded and the cache starts empty.
func New(dir string, opts Options, options ...Option) (*TieredCache, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, domainErrors.New(domainErrors.CodeValidationError, "cache directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, domainErrors.WrapIO(err, "create cache dir", dir)
	}

	codec := opts.Codec
	if !opts.CompressData {
		codec = CodecNone
	}
	compressor, err := NewCompressor(codec, opts.CompressionLevel)
	if err != nil {
		return nil, domainErrors.Wrap(err, domainErrors.CodeValidationError, "configure compression")
	}

	c := &TieredCache{
		dir:        dir,
		opts:       opts,
		src:        OSFS{},
		now:        time.Now,
		compressor: compressor,
	}
	if opts.UseHotTier {
		c.hot = newHotTier(opts.MaxMemoryEntries)
	}
	for _, opt := range options {
		opt(c)
	}

	idx, err := c.loadIndex()
	if err != nil {
		return nil, err
	}
	c.index = idx
	c.publishGauges(idx.Stats)
	return c, nil
}

func (c *TieredCache) Dir() string { return c.dir }

func (c *TieredCache) Get(path string) (*Entry, error) {
	return c.GetIn(NamespaceFile, path)
}

func (c *TieredCache) Put(path string, payloadA, payloadB []byte, meta Metadata) error {
	return c.PutIn(NamespaceFile, path, payloadA, payloadB, meta)
}

func (c *TieredCache) Invalidate(path string) error {
	return c.InvalidateIn(NamespaceFile, path)
}

// GetIn returns the entry for path in ns, or nil when there is no valid entry.
// Stale and corrupt artifacts are removed and reported as a miss. A missing
// target path is a NOT_FOUND error; other filesystem failures are IO errors.
func (c *TieredCache) GetIn(ns Namespace, path string) (*Entry, error) {
	canonical, err := c.src.Canonicalize(path)
	if err != nil {
		return nil, domainErrors.WrapIO(err, "canonicalize", path)
	}
	key := DeriveKey(ns, canonical)

	if c.hot != nil {
		if entry, ok := c.hot.Get(key); ok {
			valid, err := c.validate(canonical, entry)
			if err != nil {
				return nil, c.failValidation(key, err)
			}
			if !valid {
				c.discard(key, "stale")
				observability.CacheLookupsTotal.WithLabelValues("hot", "stale").Inc()
				return nil, nil
			}
			c.recordHit()
			observability.CacheLookupsTotal.WithLabelValues("hot", "hit").Inc()
			return cloneEntry(entry), nil
		}
	}

	data, err := os.ReadFile(c.entryPath(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c.reconcileMissing(key)
			if _, statErr := c.src.Stat(canonical); statErr != nil {
				return nil, domainErrors.WrapIO(statErr, "stat target", canonical)
			}
			observability.CacheLookupsTotal.WithLabelValues("disk", "miss").Inc()
			return nil, nil
		}
		return nil, domainErrors.WrapIO(err, "read cache entry", c.entryPath(key))
	}

	entry, err := c.decode(data)
	if err != nil {
		slog.Warn("discarding unreadable cache entry", "key", key, "path", canonical, "error", err)
		c.discard(key, "corrupt")
		observability.CacheLookupsTotal.WithLabelValues("disk", "corrupt").Inc()
		return nil, nil
	}

	valid, err := c.validate(canonical, entry)
	if err != nil {
		return nil, c.failValidation(key, err)
	}
	if !valid {
		c.discard(key, "stale")
		observability.CacheLookupsTotal.WithLabelValues("disk", "stale").Inc()
		return nil, nil
	}

	if c.hot != nil {
		c.hot.TryAdd(key, entry)
		observability.HotTierEntries.Set(float64(c.hot.Len()))
	}
	c.recordHit()
	observability.CacheLookupsTotal.WithLabelValues("disk", "hit").Inc()
	return cloneEntry(entry), nil
}

// PutIn fingerprints the current content of path, writes the entry atomically
// and updates the index. A re-put of the same key replaces its accounting.
func (c *TieredCache) PutIn(ns Namespace, path string, payloadA, payloadB []byte, meta Metadata) error {
	canonical, err := c.src.Canonicalize(path)
	if err != nil {
		return domainErrors.WrapIO(err, "canonicalize", path)
	}
	key := DeriveKey(ns, canonical)

	fingerprint, err := c.fingerprint(canonical)
	if err != nil {
		return domainErrors.WrapIO(err, "fingerprint", canonical)
	}

	entry := &Entry{
		ContentFingerprint: fingerprint,
		CreatedAt:          c.now(),
		PayloadA:           bytes.Clone(payloadA),
		PayloadB:           bytes.Clone(payloadB),
		Metadata:           cloneMetadata(meta),
	}

	storedA, err := c.compressor.Compress(payloadA)
	if err != nil {
		return domainErrors.AddContext(domainErrors.Wrap(err, domainErrors.CodeSerialization, "compress payload"), domainErrors.CtxKey, string(key))
	}
	storedB, err := c.compressor.Compress(payloadB)
	if err != nil {
		return domainErrors.AddContext(domainErrors.Wrap(err, domainErrors.CodeSerialization, "compress payload"), domainErrors.CtxKey, string(key))
	}
	data, err := encodeEntry(storedEntry{
		Fingerprint: fingerprint,
		CreatedAt:   entry.CreatedAt,
		Codec:       c.compressor.Codec(),
		PayloadA:    storedA,
		PayloadB:    storedB,
		Metadata:    entry.Metadata,
	})
	if err != nil {
		return domainErrors.AddContext(domainErrors.Wrap(err, domainErrors.CodeSerialization, "encode cache entry"), domainErrors.CtxKey, string(key))
	}
	if raw := len(payloadA) + len(payloadB); raw > 0 {
		observability.CompressionRatio.WithLabelValues(c.compressor.Codec().String()).
			Observe(float64(len(storedA)+len(storedB)) / float64(raw))
	}

	if err := c.writeAtomic(c.entryPath(key), data); err != nil {
		return err
	}

	c.mu.Lock()
	if old, ok := c.index.Entries[key]; ok {
		c.dropAccountingLocked(old)
	}
	c.index.Entries[key] = IndexRecord{
		Path:        canonical,
		Namespace:   ns,
		Metadata:    entry.Metadata,
		CreatedAt:   entry.CreatedAt,
		StoredBytes: uint64(len(data)),
	}
	c.index.FileToKey[indexPathKey(ns, canonical)] = key
	c.index.Stats.Misses++
	c.index.Stats.SizeBytes += uint64(len(data))
	c.index.Stats.EntryCount++
	stats := c.index.Stats
	overLimit := c.opts.MaxSizeBytes > 0 && stats.SizeBytes > c.opts.MaxSizeBytes
	c.mu.Unlock()

	if c.hot != nil {
		c.hot.Add(key, entry)
		observability.HotTierEntries.Set(float64(c.hot.Len()))
	}
	observability.CacheWritesTotal.Inc()
	c.publishGauges(stats)

	if overLimit {
		c.evictOldest(key)
	}
	return nil
}

// InvalidateIn drops path from both tiers and the index. Invalidating an
// absent entry, or the entry of a deleted file, is not an error.
func (c *TieredCache) InvalidateIn(ns Namespace, path string) error {
	canonical, err := c.src.Canonicalize(path)
	if err != nil {
		return domainErrors.WrapIO(err, "canonicalize", path)
	}
	key := DeriveKey(ns, canonical)

	if c.hot != nil {
		c.hot.Remove(key)
		observability.HotTierEntries.Set(float64(c.hot.Len()))
	}
	if err := os.Remove(c.entryPath(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return domainErrors.WrapIO(err, "remove cache entry", c.entryPath(key))
	}

	c.mu.Lock()
	rec, ok := c.index.Entries[key]
	if ok {
		c.removeRecordLocked(key, rec)
	}
	delete(c.index.FileToKey, indexPathKey(ns, canonical))
	stats := c.index.Stats
	c.mu.Unlock()

	if ok {
		observability.CacheEvictionsTotal.WithLabelValues("invalidated").Inc()
	}
	c.publishGauges(stats)
	return nil
}

// Clear empties both tiers, deletes every entry file and the index file, and
// zeroes the stats. Foreign files in the directory are left alone.
func (c *TieredCache) Clear() error {
	if c.hot != nil {
		c.hot.Clear()
		observability.HotTierEntries.Set(0)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	files, err := os.ReadDir(c.dir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return domainErrors.WrapIO(err, "list cache dir", c.dir)
	}
	for _, f := range files {
		name := f.Name()
		if f.IsDir() {
			continue
		}
		if name != indexFileName && !strings.HasSuffix(name, entryExt) && !strings.HasSuffix(name, tempExt) {
			continue
		}
		p := filepath.Join(c.dir, name)
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return domainErrors.WrapIO(err, "remove cache file", p)
		}
	}

	c.index = newIndex()
	c.publishGauges(c.index.Stats)
	slog.Info("cache cleared", "dir", c.dir)
	return nil
}

func (c *TieredCache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.index.Stats
}

// Entries lists index records sorted by namespace, then path.
func (c *TieredCache) Entries() []EntryInfo {
	c.mu.RLock()
	out := make([]EntryInfo, 0, len(c.index.Entries))
	for key, rec := range c.index.Entries {
		rec.Metadata = cloneMetadata(rec.Metadata)
		out = append(out, EntryInfo{Key: key, IndexRecord: rec})
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Namespace != out[j].Namespace {
			return out[i].Namespace < out[j].Namespace
		}
		return out[i].Path < out[j].Path
	})
	return out
}

// SaveIndex persists the index. Entry files are durable as soon as Put
// returns; stats and records are only durable after SaveIndex.
func (c *TieredCache) SaveIndex() error {
	c.mu.RLock()
	data, err := encodeIndex(c.index)
	stats := c.index.Stats
	c.mu.RUnlock()
	if err != nil {
		return domainErrors.Wrap(err, domainErrors.CodeSerialization, "encode cache index")
	}

	if err := c.writeAtomic(filepath.Join(c.dir, indexFileName), data); err != nil {
		return err
	}

	if c.recorder != nil {
		if err := c.recorder.RecordStats(stats); err != nil {
			slog.Warn("failed to record cache stats", "error", err)
		}
	}
	return nil
}

// Close flushes the index.
func (c *TieredCache) Close() error {
	return c.SaveIndex()
}

func (c *TieredCache) entryPath(key Key) string {
	return filepath.Join(c.dir, string(key)+entryExt)
}

func (c *TieredCache) loadIndex() (*Index, error) {
	path := filepath.Join(c.dir, indexFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return newIndex(), nil
		}
		return nil, domainErrors.WrapIO(err, "read cache index", path)
	}

	idx, err := decodeIndex(data)
	if err != nil {
		if errors.Is(err, errVersionMismatch) {
			slog.Info("cache index schema changed, starting empty", "path", path, "error", err)
		} else {
			slog.Warn("cache index unreadable, starting empty", "path", path, "error", err)
		}
		return newIndex(), nil
	}
	return idx, nil
}

func (c *TieredCache) decode(data []byte) (*Entry, error) {
	stored, err := decodeEntry(data)
	if err != nil {
		return nil, err
	}
	dec, err := decompressorFor(stored.Codec, c.compressor)
	if err != nil {
		return nil, err
	}
	a, err := dec.Decompress(stored.PayloadA)
	if err != nil {
		return nil, fmt.Errorf("decompress payload a: %w", err)
	}
	b, err := dec.Decompress(stored.PayloadB)
	if err != nil {
		return nil, fmt.Errorf("decompress payload b: %w", err)
	}
	return &Entry{
		ContentFingerprint: stored.Fingerprint,
		CreatedAt:          stored.CreatedAt,
		PayloadA:           a,
		PayloadB:           b,
		Metadata:           stored.Metadata,
	}, nil
}

// validate applies the freshness rules: same content fingerprint, within the
// age limit, every dependency present and none modified after CreatedAt.
func (c *TieredCache) validate(canonical string, entry *Entry) (bool, error) {
	fingerprint, err := c.fingerprint(canonical)
	if err != nil {
		return false, domainErrors.WrapIO(err, "fingerprint", canonical)
	}
	if fingerprint != entry.ContentFingerprint {
		return false, nil
	}

	if c.opts.MaxAgeSecs > 0 {
		maxAge := time.Duration(c.opts.MaxAgeSecs) * time.Second
		if c.now().Sub(entry.CreatedAt) > maxAge {
			return false, nil
		}
	}

	for _, dep := range entry.Metadata.Dependencies {
		info, err := c.src.Stat(dep)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return false, nil
			}
			return false, domainErrors.WrapIO(err, "stat dependency", dep)
		}
		if info.ModTime().After(entry.CreatedAt) {
			return false, nil
		}
	}
	return true, nil
}

func (c *TieredCache) fingerprint(canonical string) (uint64, error) {
	info, err := c.src.Stat(canonical)
	if err != nil {
		return 0, err
	}
	if info.IsDir() {
		entries, err := c.src.ReadDir(canonical)
		if err != nil {
			return 0, err
		}
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		return DirFingerprint(names), nil
	}
	content, err := c.src.ReadFile(canonical)
	if err != nil {
		return 0, err
	}
	return Fingerprint(content), nil
}

// writeAtomic writes to a uniquely named temp file next to path and renames it
// into place, so readers see either the old or the new file.
func (c *TieredCache) writeAtomic(path string, data []byte) error {
	tmp := strings.TrimSuffix(path, filepath.Ext(path)) + "." + uuid.NewString() + tempExt
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		_ = os.Remove(tmp)
		return domainErrors.WrapIO(err, "write cache file", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return domainErrors.WrapIO(err, "rename cache file", path)
	}
	return nil
}

// discard removes a stale or corrupt entry from every tier. Errors are logged:
// the caller already treats the entry as a miss.
func (c *TieredCache) discard(key Key, reason string) {
	if c.hot != nil {
		c.hot.Remove(key)
		observability.HotTierEntries.Set(float64(c.hot.Len()))
	}
	if err := os.Remove(c.entryPath(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to remove cache entry", "key", key, "error", err)
	}

	c.mu.Lock()
	rec, ok := c.index.Entries[key]
	if ok {
		c.removeRecordLocked(key, rec)
	}
	stats := c.index.Stats
	c.mu.Unlock()

	observability.CacheEvictionsTotal.WithLabelValues(reason).Inc()
	c.publishGauges(stats)
	slog.Debug("cache entry discarded", "key", key, "reason", reason)
}

// failValidation discards the entry when its target file is gone, so the
// bytes it held are released before the NOT_FOUND reaches the caller.
func (c *TieredCache) failValidation(key Key, err error) error {
	if domainErrors.IsCode(err, domainErrors.CodeNotFound) {
		c.discard(key, "stale")
	}
	return err
}

// reconcileMissing drops an index record whose entry file has disappeared.
func (c *TieredCache) reconcileMissing(key Key) {
	c.mu.Lock()
	rec, ok := c.index.Entries[key]
	if ok {
		c.removeRecordLocked(key, rec)
	}
	stats := c.index.Stats
	c.mu.Unlock()
	if ok {
		slog.Debug("index record without entry file removed", "key", key, "path", rec.Path)
		c.publishGauges(stats)
	}
}

func (c *TieredCache) recordHit() {
	c.mu.Lock()
	c.index.Stats.Hits++
	c.mu.Unlock()
}

// Caller must hold c.mu.
func (c *TieredCache) removeRecordLocked(key Key, rec IndexRecord) {
	delete(c.index.Entries, key)
	if c.index.FileToKey[indexPathKey(rec.Namespace, rec.Path)] == key {
		delete(c.index.FileToKey, indexPathKey(rec.Namespace, rec.Path))
	}
	c.dropAccountingLocked(rec)
}

// Caller must hold c.mu.
func (c *TieredCache) dropAccountingLocked(rec IndexRecord) {
	if c.index.Stats.SizeBytes >= rec.StoredBytes {
		c.index.Stats.SizeBytes -= rec.StoredBytes
	} else {
		c.index.Stats.SizeBytes = 0
	}
	if c.index.Stats.EntryCount > 0 {
		c.index.Stats.EntryCount--
	}
}

func (c *TieredCache) publishGauges(stats Stats) {
	observability.CacheSizeBytes.Set(float64(stats.SizeBytes))
	observability.CacheEntries.Set(float64(stats.EntryCount))
}

func cloneEntry(e *Entry) *Entry {
	out := *e
	out.Metadata = cloneMetadata(e.Metadata)
	return &out
}

func cloneMetadata(m Metadata) Metadata {
	if len(m.Dependencies) == 0 {
		m.Dependencies = nil
	} else {
		m.Dependencies = append([]string(nil), m.Dependencies...)
	}
	return m
}
