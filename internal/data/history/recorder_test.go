package history

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"rustyrefactor/internal/engine/cache"
)

func TestRecorder_RecordsCacheFlushes(t *testing.T) {
	store := openStore(t)
	recorder := NewRecorder(store, "/ws/demo")
	if recorder.SessionID() == "" {
		t.Fatal("expected a session id")
	}

	dir := t.TempDir()
	target := filepath.Join(dir, "lib.rs")
	if err := os.WriteFile(target, []byte("pub struct A;\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := cache.New(filepath.Join(dir, "cache"), cache.DefaultOptions(), cache.WithStatsRecorder(recorder))
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	if err := c.Put(target, []byte("ast"), nil, cache.Metadata{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if entry, err := c.Get(target); err != nil || entry == nil {
		t.Fatalf("expected a hit, got %v, %v", entry, err)
	}
	if err := c.SaveIndex(); err != nil {
		t.Fatalf("save index: %v", err)
	}

	rows, err := store.LoadSnapshots("/ws/demo", time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected one snapshot, got %d", len(rows))
	}
	got := rows[0]
	if got.SessionID != recorder.SessionID() {
		t.Fatalf("expected session %q, got %q", recorder.SessionID(), got.SessionID)
	}
	if got.Hits != 1 || got.Misses != 1 || got.EntryCount != 1 || got.SizeBytes == 0 {
		t.Fatalf("unexpected stats: %+v", got)
	}
	if got.HitRate != 0.5 {
		t.Fatalf("expected hit rate 0.5, got %v", got.HitRate)
	}
}

func TestRecorder_SessionsAreDistinct(t *testing.T) {
	store := openStore(t)
	a := NewRecorder(store, "ws")
	b := NewRecorder(store, "ws")
	if a.SessionID() == b.SessionID() {
		t.Fatal("expected distinct session ids")
	}

	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return fixed }
	b.now = func() time.Time { return fixed }
	if err := a.RecordStats(cache.Stats{Hits: 1}); err != nil {
		t.Fatal(err)
	}
	if err := b.RecordStats(cache.Stats{Hits: 2}); err != nil {
		t.Fatal(err)
	}

	rows, err := store.LoadSnapshots("ws", time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("same timestamp in two sessions must not collide, got %d rows", len(rows))
	}
}
