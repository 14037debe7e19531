package main

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"

	"rustyrefactor/internal/engine/resolver"
)

type bestMatchView struct {
	Name  string                `json:"name"`
	Found bool                  `json:"found"`
	Match *resolver.ImportMatch `json:"match,omitempty"`
}

func runResolve(ctx context.Context, w io.Writer, a *app, refresh, listItems, asJSON bool) error {
	root := a.paths.ProjectRoot
	if refresh {
		if err := a.resolver.InvalidateProject(root); err != nil {
			return err
		}
	}

	result, err := a.resolver.ResolveProject(ctx, root)
	if err != nil {
		return err
	}
	if asJSON {
		return writeJSON(w, result)
	}

	if listItems {
		rows := make([][]string, 0, len(result.Items))
		for _, item := range result.Items {
			rows = append(rows, itemRow(item))
		}
		fmt.Fprint(w, renderTable([]string{"PATH", "KIND", "SOURCE"}, rows))
		return nil
	}

	counts := make(map[resolver.SourceKind]int)
	for _, item := range result.Items {
		counts[item.Source.Kind]++
	}
	fmt.Fprint(w, renderPairs("Workspace "+root, [][2]string{
		{"Toolchain", result.ToolchainVersion},
		{"Items", fmt.Sprintf("%d", len(result.Items))},
		{"Local", fmt.Sprintf("%d", counts[resolver.SourceLocal])},
		{"std/core", fmt.Sprintf("%d", counts[resolver.SourceStd]+counts[resolver.SourceCore])},
		{"External", fmt.Sprintf("%d", counts[resolver.SourceExternal])},
		{"Builtin", fmt.Sprintf("%d", counts[resolver.SourceCompiler])},
	}))
	return nil
}

func runSuggest(ctx context.Context, w io.Writer, a *app, names []string, asJSON bool) error {
	matches, err := a.resolver.FindMatchesForTypes(ctx, names, a.paths.ProjectRoot)
	if err != nil {
		return err
	}
	if asJSON {
		return writeJSON(w, matches)
	}
	if len(matches) == 0 {
		fmt.Fprintln(w, dimStyle.Render("no suggestions for "+strings.Join(names, ", ")))
		return nil
	}

	// Matches arrive weakest first.
	rows := make([][]string, 0, len(matches))
	for _, m := range slices.Backward(matches) {
		rows = append(rows, matchRow(m))
	}
	fmt.Fprint(w, renderTable([]string{"PATH", "KIND", "SOURCE", "CONFIDENCE", "MATCH"}, rows))
	return nil
}

func runBestMatch(ctx context.Context, w io.Writer, a *app, names []string, asJSON bool) error {
	views := make([]bestMatchView, 0, len(names))
	for _, name := range names {
		m, ok, err := a.resolver.BestMatch(ctx, name, a.paths.ProjectRoot)
		if err != nil {
			return err
		}
		view := bestMatchView{Name: name, Found: ok}
		if ok {
			view.Match = &m
		}
		views = append(views, view)
	}
	if asJSON {
		return writeJSON(w, views)
	}

	rows := make([][]string, 0, len(views))
	for _, v := range views {
		if v.Match == nil {
			rows = append(rows, []string{v.Name, dimStyle.Render("no match"), "", "", ""})
			continue
		}
		rows = append(rows, []string{
			v.Name,
			v.Match.Item.FullPath,
			v.Match.Item.Source.String(),
			fmt.Sprintf("%.2f", v.Match.Confidence),
			v.Match.MatchType.String(),
		})
	}
	fmt.Fprint(w, renderTable([]string{"NAME", "IMPORT", "SOURCE", "CONFIDENCE", "MATCH"}, rows))
	return nil
}

func runSearch(ctx context.Context, w io.Writer, a *app, query string, limit int, asJSON bool) error {
	hits, err := a.resolver.Search(ctx, a.paths.ProjectRoot, query, limit)
	if err != nil {
		return err
	}
	if asJSON {
		return writeJSON(w, hits)
	}
	if len(hits) == 0 {
		fmt.Fprintln(w, dimStyle.Render("no items match "+query))
		return nil
	}

	rows := make([][]string, 0, len(hits))
	for _, h := range hits {
		rows = append(rows, []string{
			highlight(h.Item.FullPath, h.MatchedIndexes),
			string(h.Item.Kind),
			h.Item.Source.String(),
			fmt.Sprintf("%d", h.Score),
		})
	}
	fmt.Fprint(w, renderTable([]string{"PATH", "KIND", "SOURCE", "SCORE"}, rows))
	return nil
}

func itemRow(item resolver.ImportableItem) []string {
	return []string{item.FullPath, string(item.Kind), item.Source.String()}
}

func matchRow(m resolver.ImportMatch) []string {
	return append(itemRow(m.Item), fmt.Sprintf("%.2f", m.Confidence), m.MatchType.String())
}

// highlight renders the fuzzy-matched byte offsets of s in bold.
func highlight(s string, matched []int) string {
	if len(matched) == 0 {
		return s
	}
	hit := make(map[int]bool, len(matched))
	for _, i := range matched {
		hit[i] = true
	}
	var b strings.Builder
	for i, r := range s {
		if hit[i] {
			b.WriteString(goodStyle.Render(string(r)))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
