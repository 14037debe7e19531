package cache

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"sort"

	"rustyrefactor/internal/shared/observability"
)

// evictOldest removes entries oldest-first by CreatedAt until the disk tier
// fits MaxSizeBytes. keep is never evicted, so a single entry larger than the
// ceiling survives on its own.
func (c *TieredCache) evictOldest(keep Key) {
	if c.opts.MaxSizeBytes == 0 {
		return
	}

	c.mu.Lock()
	if c.index.Stats.SizeBytes <= c.opts.MaxSizeBytes {
		c.mu.Unlock()
		return
	}

	candidates := make([]EntryInfo, 0, len(c.index.Entries))
	for key, rec := range c.index.Entries {
		if key == keep {
			continue
		}
		candidates = append(candidates, EntryInfo{Key: key, IndexRecord: rec})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].CreatedAt.Equal(candidates[j].CreatedAt) {
			return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
		}
		return candidates[i].Key < candidates[j].Key
	})

	var victims []EntryInfo
	for _, cand := range candidates {
		if c.index.Stats.SizeBytes <= c.opts.MaxSizeBytes {
			break
		}
		c.removeRecordLocked(cand.Key, cand.IndexRecord)
		victims = append(victims, cand)
	}
	stats := c.index.Stats
	c.mu.Unlock()

	for _, v := range victims {
		if !c.removeEvicted(v.Key) {
			continue
		}
		observability.CacheEvictionsTotal.WithLabelValues("size").Inc()
	}
	if c.hot != nil {
		observability.HotTierEntries.Set(float64(c.hot.Len()))
	}
	c.publishGauges(stats)

	if len(victims) > 0 {
		slog.Debug("cache size limit enforced",
			"evicted", len(victims),
			"size_bytes", stats.SizeBytes,
			"max_size_bytes", c.opts.MaxSizeBytes,
		)
	}
}

// removeEvicted deletes the artifacts of an evicted key unless a concurrent
// Put has indexed it again since. A Put that has written its file but not yet
// indexed it can still lose the file here; the next Get reconciles the record.
func (c *TieredCache) removeEvicted(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, reindexed := c.index.Entries[key]; reindexed {
		return false
	}
	if c.hot != nil {
		c.hot.Remove(key)
	}
	if err := os.Remove(c.entryPath(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to remove evicted cache entry", "key", key, "error", err)
	}
	return true
}
