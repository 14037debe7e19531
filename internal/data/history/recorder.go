package history

import (
	"time"

	"rustyrefactor/internal/engine/cache"

	"github.com/google/uuid"
)

var _ cache.StatsRecorder = (*Recorder)(nil)

// Recorder stores every index flush of one workspace's cache. Each Recorder
// is its own session, so snapshots from concurrent processes stay apart.
type Recorder struct {
	store     *Store
	workspace string
	sessionID string
	now       func() time.Time
}

func NewRecorder(store *Store, workspace string) *Recorder {
	return &Recorder{
		store:     store,
		workspace: workspace,
		sessionID: uuid.NewString(),
		now:       time.Now,
	}
}

func (r *Recorder) SessionID() string {
	return r.sessionID
}

func (r *Recorder) RecordStats(stats cache.Stats) error {
	return r.store.SaveSnapshot(Snapshot{
		Workspace:  r.workspace,
		SessionID:  r.sessionID,
		Timestamp:  r.now().UTC(),
		Hits:       stats.Hits,
		Misses:     stats.Misses,
		SizeBytes:  stats.SizeBytes,
		EntryCount: stats.EntryCount,
		HitRate:    stats.HitRate(),
	})
}
