package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type ResolvedPaths struct {
	ProjectRoot string
	CacheDir    string
	HistoryPath string
}

// ResolvePaths anchors every relative path in cfg. An explicit workspace wins
// over paths.project_root, which wins over marker detection from cwd.
func ResolvePaths(cfg *Config, cwd, workspace string) (ResolvedPaths, error) {
	if strings.TrimSpace(cwd) == "" {
		return ResolvedPaths{}, fmt.Errorf("cwd must not be empty")
	}

	var projectRoot string
	switch {
	case strings.TrimSpace(workspace) != "":
		projectRoot = ResolveRelative(cwd, workspace)
	case strings.TrimSpace(cfg.Paths.ProjectRoot) != "":
		projectRoot = ResolveRelative(cwd, cfg.Paths.ProjectRoot)
	default:
		root, err := DetectProjectRoot([]string{cwd})
		if err != nil {
			return ResolvedPaths{}, err
		}
		projectRoot = root
	}

	cacheDir := ResolveRelative(projectRoot, cfg.Paths.CacheDir)

	historyPath := strings.TrimSpace(cfg.History.Path)
	if filepath.IsAbs(historyPath) {
		historyPath = filepath.Clean(historyPath)
	} else {
		historyPath = filepath.Join(cacheDir, historyPath)
	}

	return ResolvedPaths{
		ProjectRoot: filepath.Clean(projectRoot),
		CacheDir:    filepath.Clean(cacheDir),
		HistoryPath: filepath.Clean(historyPath),
	}, nil
}

func ResolveRelative(base, value string) string {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return filepath.Clean(base)
	}
	if filepath.IsAbs(raw) {
		return filepath.Clean(raw)
	}
	return filepath.Clean(filepath.Join(base, raw))
}

// DetectProjectRoot walks up from each candidate until a Cargo workspace or
// repository marker is found, falling back to the working directory.
func DetectProjectRoot(candidates []string) (string, error) {
	markers := []string{
		"Cargo.toml",
		".git",
		DefaultConfigFile,
	}

	for _, candidate := range candidates {
		if strings.TrimSpace(candidate) == "" {
			continue
		}

		abs, err := filepath.Abs(candidate)
		if err != nil {
			continue
		}
		root := abs
		if info, err := os.Stat(abs); err == nil && !info.IsDir() {
			root = filepath.Dir(abs)
		}

		for {
			for _, marker := range markers {
				if _, err := os.Stat(filepath.Join(root, marker)); err == nil {
					return filepath.Clean(root), nil
				}
			}
			parent := filepath.Dir(root)
			if parent == root {
				break
			}
			root = parent
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Clean(cwd), nil
}
