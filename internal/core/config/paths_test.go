package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolvePaths_DefaultLayout(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "Cargo.toml"), []byte("[package]\nname = \"demo\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(root, "src", "bin")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig()
	got, err := ResolvePaths(cfg, nested, "")
	if err != nil {
		t.Fatal(err)
	}
	if got.ProjectRoot != filepath.Clean(root) {
		t.Fatalf("expected project root %q, got %q", root, got.ProjectRoot)
	}
	if got.CacheDir != filepath.Join(root, DefaultCacheDir) {
		t.Fatalf("unexpected cache dir %q", got.CacheDir)
	}
	if got.HistoryPath != filepath.Join(root, DefaultCacheDir, "history.db") {
		t.Fatalf("unexpected history path %q", got.HistoryPath)
	}
}

func TestResolvePaths_WorkspaceWins(t *testing.T) {
	cwd := t.TempDir()
	cfg := DefaultConfig()
	cfg.Paths.ProjectRoot = "ignored"
	cfg.Paths.CacheDir = "/abs/cache"

	got, err := ResolvePaths(cfg, cwd, "ws")
	if err != nil {
		t.Fatal(err)
	}
	if got.ProjectRoot != filepath.Join(cwd, "ws") {
		t.Fatalf("expected workspace override, got %q", got.ProjectRoot)
	}
	if got.CacheDir != "/abs/cache" {
		t.Fatalf("expected absolute cache dir kept, got %q", got.CacheDir)
	}
}

func TestResolvePaths_EmptyCwd(t *testing.T) {
	if _, err := ResolvePaths(DefaultConfig(), "", ""); err == nil {
		t.Fatal("expected error for empty cwd")
	}
}
