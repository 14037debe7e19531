package cache

import (
	"io/fs"
	"os"
	"path/filepath"
)

// SourceFS is the read side the cache needs from the analysed workspace.
type SourceFS interface {
	ReadFile(path string) ([]byte, error)
	ReadDir(path string) ([]fs.DirEntry, error)
	Stat(path string) (fs.FileInfo, error)
	Canonicalize(path string) (string, error)
}

// OSFS is the local filesystem.
type OSFS struct{}

func (OSFS) ReadFile(path string) ([]byte, error) { return os.ReadFile(path) }

func (OSFS) ReadDir(path string) ([]fs.DirEntry, error) { return os.ReadDir(path) }

func (OSFS) Stat(path string) (fs.FileInfo, error) { return os.Stat(path) }

// Canonicalize makes path absolute and resolves symlinks. A path that no longer
// exists is resolved through its parent so deleted files keep their key.
func (OSFS) Canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err == nil {
		return resolved, nil
	}
	if !os.IsNotExist(err) {
		return "", err
	}
	parent, perr := filepath.EvalSymlinks(filepath.Dir(abs))
	if perr != nil {
		return filepath.Clean(abs), nil
	}
	return filepath.Join(parent, filepath.Base(abs)), nil
}
