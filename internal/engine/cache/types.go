package cache

import (
	"time"
)

// SchemaVersion is written into every entry and index frame. Bump it whenever
// Entry, Metadata or the index layout changes; a mismatched index is discarded
// on load and mismatched entries read as misses.
const SchemaVersion uint32 = 1

// Metadata describes how an entry was computed and drives validity checks.
// An empty Dependencies list is stored and returned as nil.
type Metadata struct {
	ToolchainVersion      string    `json:"toolchain_version"`
	Dependencies          []string  `json:"dependencies"`
	SourceMtime           time.Time `json:"source_mtime"`
	ComputationDurationMs uint64    `json:"computation_duration_ms"`
	SourceSizeBytes       uint64    `json:"source_size_bytes"`
}

// Entry is immutable once written. PayloadA and PayloadB are always returned
// decompressed; callers must not modify them.
type Entry struct {
	ContentFingerprint uint64    `json:"content_fingerprint"`
	CreatedAt          time.Time `json:"created_at"`
	PayloadA           []byte    `json:"-"`
	PayloadB           []byte    `json:"-"`
	Metadata           Metadata  `json:"metadata"`
}

type Stats struct {
	Hits       uint64 `json:"hits"`
	Misses     uint64 `json:"misses"`
	SizeBytes  uint64 `json:"size_bytes"`
	EntryCount uint64 `json:"entry_count"`
}

// HitRate is hits/(hits+misses), or 0 before any operation was recorded.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// IndexRecord is what the index keeps per key: the entry metadata plus what
// eviction and size accounting need without touching the entry file.
type IndexRecord struct {
	Path        string    `json:"path"`
	Namespace   Namespace `json:"namespace"`
	Metadata    Metadata  `json:"metadata"`
	CreatedAt   time.Time `json:"created_at"`
	StoredBytes uint64    `json:"stored_bytes"`
}

// Index is the durable catalog of the disk tier.
type Index struct {
	FileToKey     map[string]Key
	Entries       map[Key]IndexRecord
	Stats         Stats
	SchemaVersion uint32
}

func newIndex() *Index {
	return &Index{
		FileToKey:     make(map[string]Key),
		Entries:       make(map[Key]IndexRecord),
		SchemaVersion: SchemaVersion,
	}
}

// EntryInfo pairs a key with its index record for listings.
type EntryInfo struct {
	Key Key `json:"key"`
	IndexRecord
}

// StatsRecorder receives a stats snapshot every time the index is flushed.
type StatsRecorder interface {
	RecordStats(stats Stats) error
}
