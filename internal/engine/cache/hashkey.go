package cache

import (
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// Namespace partitions the key space. Entries in different namespaces never
// share a key even when they are derived from the same path.
type Namespace string

const (
	NamespaceFile       Namespace = "file"
	NamespaceResolution Namespace = "resolution"
)

// Key is a 16 character lowercase hex digest naming both the hot-tier slot and
// the disk artifact.
type Key string

// DeriveKey hashes a canonical path within ns.
func DeriveKey(ns Namespace, canonicalPath string) Key {
	d := xxhash.New()
	_, _ = d.WriteString(string(ns))
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(canonicalPath)
	return Key(fmt.Sprintf("%016x", d.Sum64()))
}

// Fingerprint is the content hash stored with every entry.
func Fingerprint(content []byte) uint64 {
	return xxhash.Sum64(content)
}

// DirFingerprint hashes the sorted entry names of a directory, so adding or
// removing a child changes it while edits inside children do not.
func DirFingerprint(names []string) uint64 {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	d := xxhash.New()
	for _, name := range sorted {
		_, _ = d.WriteString(name)
		_, _ = d.Write([]byte{0})
	}
	return d.Sum64()
}

func indexPathKey(ns Namespace, canonicalPath string) string {
	if ns == NamespaceFile || ns == "" {
		return canonicalPath
	}
	return string(ns) + ":" + canonicalPath
}
