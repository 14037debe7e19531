package watcher

import (
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func newTestWatcher(t *testing.T, debounce time.Duration, excludeDirs, excludeFiles []string) (*Watcher, chan []string) {
	t.Helper()
	changed := make(chan []string, 16)
	w, err := NewWatcher(debounce, excludeDirs, excludeFiles, func(paths []string) {
		changed <- paths
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = w.Close() })
	return w, changed
}

func waitFor(t *testing.T, changed <-chan []string, want string, timeout time.Duration) {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case paths := <-changed:
			for _, p := range paths {
				if p == want {
					return
				}
			}
		case <-deadline:
			t.Fatalf("timed out waiting for change to %s", want)
		}
	}
}

func expectQuiet(t *testing.T, changed <-chan []string, d time.Duration) {
	t.Helper()
	select {
	case paths := <-changed:
		t.Fatalf("unexpected change batch: %v", paths)
	case <-time.After(d):
	}
}

func TestNewWatcher_RejectsNilCallback(t *testing.T) {
	w, err := NewWatcher(100*time.Millisecond, nil, nil, nil)
	if err == nil {
		t.Fatal("expected error for nil callback")
	}
	if !errors.Is(err, os.ErrInvalid) {
		t.Fatalf("expected os.ErrInvalid, got %v", err)
	}
	if w != nil {
		t.Fatal("expected nil watcher when callback is invalid")
	}
}

func TestNewWatcher_RejectsBadPattern(t *testing.T) {
	if _, err := NewWatcher(time.Millisecond, []string{"[bad"}, nil, func([]string) {}); err == nil {
		t.Fatal("expected invalid glob to fail")
	}
}

func TestWatcher(t *testing.T) {
	tmpDir := t.TempDir()
	w, changed := newTestWatcher(t, 100*time.Millisecond, []string{"target"}, []string{"*_generated.rs"})
	if err := w.Watch([]string{tmpDir}); err != nil {
		t.Fatal(err)
	}

	testFile := filepath.Join(tmpDir, "lib.rs")
	if err := os.WriteFile(testFile, []byte("pub struct A;"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, changed, testFile, 2*time.Second)

	// Excluded files and files that cannot affect the catalog stay quiet.
	for _, name := range []string{"schema_generated.rs", "README.md"} {
		if err := os.WriteFile(filepath.Join(tmpDir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	expectQuiet(t, changed, 400*time.Millisecond)

	// New directories are watched recursively once created.
	subdir := filepath.Join(tmpDir, "src", "net")
	if err := os.MkdirAll(subdir, 0o755); err != nil {
		t.Fatal(err)
	}
	subFile := filepath.Join(subdir, "mod.rs")
	if err := os.WriteFile(subFile, []byte("pub fn get() {}"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, changed, subFile, 2*time.Second)
}

func TestWatcher_ManifestTriggersChange(t *testing.T) {
	tmpDir := t.TempDir()
	w, changed := newTestWatcher(t, 50*time.Millisecond, nil, nil)
	if err := w.Watch([]string{tmpDir}); err != nil {
		t.Fatal(err)
	}

	manifest := filepath.Join(tmpDir, "Cargo.toml")
	if err := os.WriteFile(manifest, []byte("[package]\nname = \"demo\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, changed, manifest, 2*time.Second)
}

func TestWatcher_RenameTriggersChange(t *testing.T) {
	tmpDir := t.TempDir()
	w, changed := newTestWatcher(t, 100*time.Millisecond, nil, nil)
	if err := w.Watch([]string{tmpDir}); err != nil {
		t.Fatal(err)
	}

	oldPath := filepath.Join(tmpDir, "old.rs")
	newPath := filepath.Join(tmpDir, "new.rs")
	if err := os.WriteFile(oldPath, []byte("fn main() {}"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(oldPath, newPath); err != nil {
		t.Fatal(err)
	}

	timeout := time.After(2 * time.Second)
	for {
		select {
		case paths := <-changed:
			for _, p := range paths {
				if p == oldPath || p == newPath {
					return
				}
			}
		case <-timeout:
			t.Fatalf("timed out waiting for rename event, old=%s new=%s", oldPath, newPath)
		}
	}
}

func TestWatcher_IdenticalRewriteIsDropped(t *testing.T) {
	tmpDir := t.TempDir()
	w, changed := newTestWatcher(t, 50*time.Millisecond, nil, nil)
	if err := w.Watch([]string{tmpDir}); err != nil {
		t.Fatal(err)
	}

	target := filepath.Join(tmpDir, "hash_target.rs")
	content := []byte("fn main() {}\n")
	if err := os.WriteFile(target, content, 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, changed, target, time.Second)

	if err := os.WriteFile(target, content, 0o644); err != nil {
		t.Fatal(err)
	}
	expectQuiet(t, changed, 300*time.Millisecond)

	if err := os.WriteFile(target, []byte("fn main() { println!(\"1\"); }\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, changed, target, time.Second)
}

func TestWatcher_IgnoredDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	cacheDir := filepath.Join(tmpDir, "custom-cache")
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		t.Fatal(err)
	}

	w, _ := newTestWatcher(t, 50*time.Millisecond, nil, nil)
	w.Ignore(cacheDir)

	if !w.shouldExcludeDir(cacheDir) {
		t.Fatal("expected ignored dir to be excluded")
	}
	if !w.shouldExcludeFile(filepath.Join(cacheDir, "x.rs")) {
		t.Fatal("expected files under ignored dir to be excluded")
	}
	if w.shouldExcludeFile(filepath.Join(tmpDir, "lib.rs")) {
		t.Fatal("workspace sources must not be excluded")
	}
}

func TestWatcher_CloseWaitsForCallback(t *testing.T) {
	tmpDir := t.TempDir()
	entered := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	w, err := NewWatcher(50*time.Millisecond, nil, nil, func([]string) {
		if calls.Add(1) == 1 {
			close(entered)
			<-release
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Watch([]string{tmpDir}); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, "lib.rs"), []byte("pub struct A;"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("callback never ran")
	}

	closed := make(chan error, 1)
	go func() { closed <- w.Close() }()
	select {
	case <-closed:
		t.Fatal("Close returned while a callback was still running")
	case <-time.After(150 * time.Millisecond):
	}

	close(release)
	select {
	case err := <-closed:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return after the callback finished")
	}

	before := calls.Load()
	w.pendingMu.Lock()
	w.pending[filepath.Join(tmpDir, "late.rs")] = time.Now()
	w.pendingMu.Unlock()
	w.flushChanges()
	if got := calls.Load(); got != before {
		t.Fatalf("callback ran after Close: %d calls, want %d", got, before)
	}
}

func TestFileClassification(t *testing.T) {
	cases := []struct {
		path     string
		rust     bool
		manifest bool
	}{
		{"src/lib.rs", true, false},
		{"src/LIB.RS", true, false},
		{"Cargo.toml", false, true},
		{"crates/core/Cargo.toml", false, true},
		{"Cargo.lock", false, false},
		{"notes.md", false, false},
	}
	for _, tc := range cases {
		if got := IsRustSource(tc.path); got != tc.rust {
			t.Errorf("IsRustSource(%q) = %v", tc.path, got)
		}
		if got := IsManifest(tc.path); got != tc.manifest {
			t.Errorf("IsManifest(%q) = %v", tc.path, got)
		}
	}
}
