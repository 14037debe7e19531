package resolver

import (
	_ "embed"
	"strings"
)

//go:embed catalog/std.tsv
var stdCatalogData string

//go:embed catalog/core.tsv
var coreCatalogData string

//go:embed catalog/external.tsv
var externalCatalogData string

//go:embed catalog/builtins.tsv
var builtinCatalogData string

// The tables are parsed once and never mutated; accessors hand out copies.
var (
	stdItems      []ImportableItem
	coreItems     []ImportableItem
	externalItems []ImportableItem
	builtinItems  []ImportableItem
)

func init() {
	stdItems = parseCatalog(stdCatalogData, func(string) ItemSource { return StdSource() })
	coreItems = parseCatalog(coreCatalogData, func(string) ItemSource { return CoreSource() })
	externalItems = parseCatalog(externalCatalogData, func(fullPath string) ItemSource {
		crate, _, _ := strings.Cut(fullPath, "::")
		return ExternalSource(crate)
	})
	builtinItems = parseCatalog(builtinCatalogData, func(string) ItemSource { return CompilerSource() })
}

// parseCatalog reads "full_path<TAB>kind<TAB>docs" lines. Blank lines and
// lines starting with # are skipped.
func parseCatalog(data string, source func(fullPath string) ItemSource) []ImportableItem {
	var items []ImportableItem
	for _, line := range strings.Split(data, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.SplitN(line, "\t", 3)
		fullPath := strings.TrimSpace(fields[0])
		if fullPath == "" {
			continue
		}
		kind := KindUnknown
		if len(fields) > 1 {
			kind = ParseItemKind(strings.TrimSpace(fields[1]))
		}
		var docs *string
		if len(fields) > 2 {
			if d := strings.TrimSpace(fields[2]); d != "" {
				docs = &d
			}
		}
		items = append(items, ImportableItem{
			FullPath: fullPath,
			Name:     lastSegment(fullPath),
			Kind:     kind,
			Source:   source(fullPath),
			IsPublic: true,
			Docs:     docs,
			IsMacro:  kind == KindMacro,
		})
	}
	return items
}

func lastSegment(path string) string {
	if i := strings.LastIndex(path, "::"); i >= 0 {
		return path[i+2:]
	}
	return path
}

// StdItems returns the standard and core library tables, followed by the
// well-known external crate table when includeExternals is set.
func StdItems(includeExternals bool) []ImportableItem {
	n := len(stdItems) + len(coreItems)
	if includeExternals {
		n += len(externalItems)
	}
	out := make([]ImportableItem, 0, n)
	out = append(out, stdItems...)
	out = append(out, coreItems...)
	if includeExternals {
		out = append(out, externalItems...)
	}
	return out
}

// BuiltinItems returns the compiler-provided macros.
func BuiltinItems() []ImportableItem {
	return append([]ImportableItem(nil), builtinItems...)
}
