package history

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_OpenInitializesSchemaAndSaveLoad(t *testing.T) {
	store := openStore(t)

	base := time.Date(2026, 2, 13, 10, 0, 0, 0, time.UTC)
	first := Snapshot{Workspace: "/ws/a", SessionID: "s1", Timestamp: base, Hits: 1, Misses: 4, SizeBytes: 100, EntryCount: 4, HitRate: 0.2}
	dup := Snapshot{Workspace: "/ws/a", SessionID: "s1", Timestamp: base, Hits: 3, Misses: 4, SizeBytes: 120, EntryCount: 5, HitRate: 3.0 / 7}
	second := Snapshot{Workspace: "/ws/a", SessionID: "s1", Timestamp: base.Add(2 * time.Hour), Hits: 9, Misses: 6, SizeBytes: 300, EntryCount: 6, HitRate: 0.6}

	for _, s := range []Snapshot{first, dup, second} {
		if err := store.SaveSnapshot(s); err != nil {
			t.Fatalf("save snapshot: %v", err)
		}
	}

	got, err := store.LoadSnapshots("/ws/a", base.Add(1*time.Hour))
	if err != nil {
		t.Fatalf("load snapshots: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 snapshot after since filter, got %d", len(got))
	}
	if got[0].Hits != 9 || got[0].SizeBytes != 300 || got[0].HitRate != 0.6 {
		t.Fatalf("unexpected snapshot: %+v", got[0])
	}
	if !got[0].Timestamp.Equal(base.Add(2 * time.Hour)) {
		t.Fatalf("timestamp did not roundtrip: %v", got[0].Timestamp)
	}

	// The duplicate key upserted the first row.
	all, err := store.LoadSnapshots("/ws/a", time.Time{})
	if err != nil {
		t.Fatalf("load all snapshots: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected deduplicated 2 snapshots, got %d", len(all))
	}
	if all[0].EntryCount != 5 {
		t.Fatalf("expected upserted entry_count=5, got %d", all[0].EntryCount)
	}
}

func TestStore_SubSecondOrdering(t *testing.T) {
	store := openStore(t)

	base := time.Date(2026, 2, 13, 10, 0, 0, 0, time.UTC)
	for _, offset := range []time.Duration{time.Second, 500 * time.Millisecond, 0} {
		s := Snapshot{Workspace: "ws", SessionID: "s", Timestamp: base.Add(offset), EntryCount: uint64(offset / time.Millisecond)}
		if err := store.SaveSnapshot(s); err != nil {
			t.Fatal(err)
		}
	}

	rows, err := store.LoadSnapshots("ws", time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	want := []uint64{0, 500, 1000}
	if len(rows) != len(want) {
		t.Fatalf("expected %d rows, got %d", len(want), len(rows))
	}
	for i, w := range want {
		if rows[i].EntryCount != w {
			t.Fatalf("row %d: expected entry_count=%d, got %d", i, w, rows[i].EntryCount)
		}
	}
}

func TestStore_SaveRequiresWorkspace(t *testing.T) {
	store := openStore(t)
	if err := store.SaveSnapshot(Snapshot{Workspace: "  "}); err == nil {
		t.Fatal("expected error for empty workspace")
	}
}

func TestStore_WorkspaceIsolation(t *testing.T) {
	store := openStore(t)

	base := time.Date(2026, 2, 13, 10, 0, 0, 0, time.UTC)
	if err := store.SaveSnapshot(Snapshot{Workspace: "a", Timestamp: base, Hits: 1}); err != nil {
		t.Fatal(err)
	}
	if err := store.SaveSnapshot(Snapshot{Workspace: "b", Timestamp: base, Hits: 2}); err != nil {
		t.Fatal(err)
	}

	aRows, err := store.LoadSnapshots("a", time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(aRows) != 1 || aRows[0].Hits != 1 {
		t.Fatalf("unexpected workspace a rows: %+v", aRows)
	}

	bRows, err := store.LoadSnapshots("b", time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(bRows) != 1 || bRows[0].Hits != 2 {
		t.Fatalf("unexpected workspace b rows: %+v", bRows)
	}
}

func TestStore_OpenRejectsDirectoryPath(t *testing.T) {
	_, err := Open(t.TempDir())
	if err == nil {
		t.Fatal("expected open error for directory path")
	}
	if !strings.Contains(err.Error(), "is a directory") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStore_OpenRejectsEmptyPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestStore_OpenCorruptDBPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	if err := os.WriteFile(path, []byte("this is not sqlite"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Open(path)
	if err == nil {
		t.Fatal("expected sqlite open error")
	}
	lower := strings.ToLower(err.Error())
	if !strings.Contains(lower, "not a database") && !strings.Contains(lower, "schema") {
		t.Fatalf("expected schema/open error, got: %v", err)
	}
}

func TestEnsureSchema_DetectsNewerVersionDrift(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if _, err := store.db.Exec(`INSERT OR REPLACE INTO schema_migrations(version) VALUES (?)`, SchemaVersion+1); err != nil {
		t.Fatal(err)
	}

	db, err := sql.Open(driverName, "file:"+path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	err = EnsureSchema(db)
	if err == nil {
		t.Fatal("expected drift error")
	}
	if !strings.Contains(err.Error(), "newer than supported") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBuildTrendReport(t *testing.T) {
	base := time.Date(2026, 2, 13, 10, 0, 0, 0, time.UTC)
	snapshots := []Snapshot{
		{Timestamp: base, SizeBytes: 100, EntryCount: 2, HitRate: 0.2},
		{Timestamp: base.Add(2 * time.Hour), SizeBytes: 250, EntryCount: 5, HitRate: 0.6},
		{Timestamp: base.Add(25 * time.Hour), SizeBytes: 200, EntryCount: 4, HitRate: 0.9},
	}

	report, err := BuildTrendReport("ws", snapshots, 24*time.Hour)
	if err != nil {
		t.Fatalf("build report: %v", err)
	}
	if report.SnapshotCount != 3 || report.Workspace != "ws" {
		t.Fatalf("unexpected report header: %+v", report)
	}
	if report.Points[1].DeltaSizeBytes != 150 || report.Points[1].DeltaEntries != 3 {
		t.Fatalf("unexpected deltas: %+v", report.Points[1])
	}
	if report.Points[2].DeltaSizeBytes != -50 || report.Points[2].DeltaEntries != -1 {
		t.Fatalf("expected shrinking deltas, got %+v", report.Points[2])
	}
	if report.Points[1].AvgHitRate != 0.4 {
		t.Fatalf("expected avg_hit_rate=0.4, got %v", report.Points[1].AvgHitRate)
	}
	// The first snapshot is outside the 24h window of the third.
	if report.Points[2].AvgHitRate != 0.75 {
		t.Fatalf("expected windowed avg_hit_rate=0.75, got %v", report.Points[2].AvgHitRate)
	}

	if _, err := BuildTrendReport("ws", nil, time.Hour); err == nil {
		t.Fatal("expected error for empty history")
	}
}

func TestIsCorruptError(t *testing.T) {
	if !IsCorruptError(errors.New("database disk image is malformed")) {
		t.Fatal("expected malformed sqlite message to be treated as corrupt")
	}
	if IsCorruptError(nil) || IsCorruptError(errors.New("timeout")) {
		t.Fatal("unexpected corrupt classification")
	}
}
