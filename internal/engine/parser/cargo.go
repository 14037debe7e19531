package parser

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	domainErrors "rustyrefactor/internal/core/errors"
	"rustyrefactor/internal/shared/util"

	"github.com/BurntSushi/toml"
	"github.com/gobwas/glob"
)

const (
	manifestFile = "Cargo.toml"
	rootCrate    = "crate"
)

type cargoManifest struct {
	Package *struct {
		Name string `toml:"name"`
	} `toml:"package"`
	Workspace *struct {
		Members []string `toml:"members"`
		Exclude []string `toml:"exclude"`
	} `toml:"workspace"`
}

// crateTarget is one crate whose src/ tree is scanned. Prefix is the first
// segment of every item path: "crate" for the workspace's own package, the
// crate name as an identifier for workspace members.
type crateTarget struct {
	Prefix string
	Dir    string
}

func readManifest(path string) (*cargoManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domainErrors.WrapIO(err, "read manifest", path)
	}
	var m cargoManifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, domainErrors.AddContext(
			domainErrors.Wrap(err, domainErrors.CodeSerialization, "parse Cargo.toml"),
			domainErrors.CtxPath, path)
	}
	return &m, nil
}

// crateIdent turns a package name into the identifier used in paths.
func crateIdent(name string) string {
	return strings.ReplaceAll(strings.TrimSpace(name), "-", "_")
}

// discoverCrates lists the crates under root and the manifests they were read
// from. A root without Cargo.toml but with src/ is treated as a single crate.
// An unparsable root manifest degrades to the same fallback.
func discoverCrates(root string, filter *util.PathFilter) ([]crateTarget, []string, error) {
	rootManifest := filepath.Join(root, manifestFile)
	var m *cargoManifest
	if fileExists(rootManifest) {
		parsed, err := readManifest(rootManifest)
		if err != nil {
			slog.Warn("unreadable Cargo.toml, scanning src/ as a single crate", "path", rootManifest, "error", err)
		}
		m = parsed
	}
	if m == nil {
		if !dirExists(filepath.Join(root, "src")) {
			return nil, nil, nil
		}
		var manifests []string
		if fileExists(rootManifest) {
			manifests = append(manifests, rootManifest)
		}
		return []crateTarget{{Prefix: rootCrate, Dir: root}}, manifests, nil
	}

	manifests := []string{rootManifest}
	var crates []crateTarget
	if m.Package != nil {
		crates = append(crates, crateTarget{Prefix: rootCrate, Dir: root})
	}
	if m.Workspace == nil {
		return crates, manifests, nil
	}

	memberDirs, err := matchMembers(root, m.Workspace.Members, m.Workspace.Exclude, filter)
	if err != nil {
		return nil, nil, err
	}
	for _, dir := range memberDirs {
		if dir == root {
			continue
		}
		path := filepath.Join(dir, manifestFile)
		member, err := readManifest(path)
		if err != nil {
			slog.Warn("skipping workspace member", "path", path, "error", err)
			continue
		}
		name := filepath.Base(dir)
		if member.Package != nil && member.Package.Name != "" {
			name = member.Package.Name
		}
		crates = append(crates, crateTarget{Prefix: crateIdent(name), Dir: dir})
		manifests = append(manifests, path)
	}
	return crates, manifests, nil
}

// matchMembers resolves workspace member patterns to directories holding a
// Cargo.toml. Patterns are root-relative globs where * stays within one path
// segment, as cargo does.
func matchMembers(root string, members, exclude []string, filter *util.PathFilter) ([]string, error) {
	include, maxDepth, err := compileMemberGlobs(members)
	if err != nil {
		return nil, err
	}
	skip, _, err := compileMemberGlobs(exclude)
	if err != nil {
		return nil, err
	}
	if len(include) == 0 {
		return nil, nil
	}

	var dirs []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path == root {
			return nil
		}
		if filter.SkipDir(path) {
			return filepath.SkipDir
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = util.NormalizePatternPath(rel)
		depth := strings.Count(rel, "/") + 1
		if depth > maxDepth {
			return filepath.SkipDir
		}
		if matchGlobs(include, rel) && !matchGlobs(skip, rel) && fileExists(filepath.Join(path, manifestFile)) {
			dirs = append(dirs, path)
		}
		return nil
	})
	if err != nil {
		return nil, domainErrors.WrapIO(err, "walk workspace", root)
	}
	sort.Strings(dirs)
	return dirs, nil
}

func compileMemberGlobs(patterns []string) ([]glob.Glob, int, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	maxDepth := 0
	for _, p := range patterns {
		norm := util.NormalizePatternPath(p)
		if norm == "" {
			continue
		}
		g, err := glob.Compile(norm, '/')
		if err != nil {
			return nil, 0, domainErrors.AddContext(
				domainErrors.Wrap(err, domainErrors.CodeValidationError, "invalid workspace member pattern"),
				domainErrors.CtxPath, p)
		}
		globs = append(globs, g)
		if depth := strings.Count(norm, "/") + 1; depth > maxDepth {
			maxDepth = depth
		}
	}
	return globs, maxDepth, nil
}

func matchGlobs(globs []glob.Glob, rel string) bool {
	for _, g := range globs {
		if g.Match(rel) {
			return true
		}
	}
	return false
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
