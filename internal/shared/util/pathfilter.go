package util

import (
	"fmt"
	"path/filepath"

	"github.com/gobwas/glob"
)

// PathFilter decides which directories and files a workspace walk skips.
// Patterns match the base name only.
type PathFilter struct {
	dirs  []glob.Glob
	files []glob.Glob
}

func NewPathFilter(excludeDirs, excludeFiles []string) (*PathFilter, error) {
	f := &PathFilter{
		dirs:  make([]glob.Glob, 0, len(excludeDirs)),
		files: make([]glob.Glob, 0, len(excludeFiles)),
	}
	for _, p := range excludeDirs {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude dir pattern %q: %w", p, err)
		}
		f.dirs = append(f.dirs, g)
	}
	for _, p := range excludeFiles {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude file pattern %q: %w", p, err)
		}
		f.files = append(f.files, g)
	}
	return f, nil
}

func (f *PathFilter) SkipDir(path string) bool {
	return f != nil && matchAny(f.dirs, filepath.Base(path))
}

func (f *PathFilter) SkipFile(path string) bool {
	return f != nil && matchAny(f.files, filepath.Base(path))
}

func matchAny(globs []glob.Glob, name string) bool {
	for _, g := range globs {
		if g.Match(name) {
			return true
		}
	}
	return false
}
