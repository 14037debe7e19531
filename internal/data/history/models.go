package history

import "time"

const SchemaVersion = 1

// Snapshot is the cache statistics of one workspace at one index flush.
type Snapshot struct {
	Workspace  string    `json:"workspace"`
	SessionID  string    `json:"session_id"`
	Timestamp  time.Time `json:"timestamp"`
	Hits       uint64    `json:"hits"`
	Misses     uint64    `json:"misses"`
	SizeBytes  uint64    `json:"size_bytes"`
	EntryCount uint64    `json:"entry_count"`
	HitRate    float64   `json:"hit_rate"`
}

type TrendPoint struct {
	Timestamp      time.Time `json:"timestamp"`
	SessionID      string    `json:"session_id"`
	HitRate        float64   `json:"hit_rate"`
	SizeBytes      uint64    `json:"size_bytes"`
	EntryCount     uint64    `json:"entry_count"`
	DeltaSizeBytes int64     `json:"delta_size_bytes"`
	DeltaEntries   int64     `json:"delta_entries"`
	AvgHitRate     float64   `json:"avg_hit_rate"`
	WindowHours    float64   `json:"window_hours"`
}

type TrendReport struct {
	SchemaVersion int          `json:"schema_version"`
	Workspace     string       `json:"workspace"`
	Since         time.Time    `json:"since"`
	Until         time.Time    `json:"until"`
	Window        string       `json:"window"`
	SnapshotCount int          `json:"snapshot_count"`
	Points        []TrendPoint `json:"points"`
}
