package resolver

import (
	"context"

	"github.com/sahilm/fuzzy"
)

// SearchHit is one fuzzy search result. MatchedIndexes point into the item's
// full path.
type SearchHit struct {
	Item           ImportableItem `json:"item"`
	Score          int            `json:"score"`
	MatchedIndexes []int          `json:"matched_indexes"`
}

// itemSource implements fuzzy.Source over full paths.
type itemSource []ImportableItem

func (s itemSource) String(i int) string { return s[i].FullPath }

func (s itemSource) Len() int { return len(s) }

// Search ranks the workspace catalog against query with fuzzy subsequence
// matching, best first. limit <= 0 returns every hit.
func (r *NameResolver) Search(ctx context.Context, workspaceRoot, query string, limit int) ([]SearchHit, error) {
	resolution, err := r.ResolveProject(ctx, workspaceRoot)
	if err != nil {
		return nil, err
	}

	source := itemSource(resolution.Items)
	matches := fuzzy.FindFrom(query, source)
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}

	hits := make([]SearchHit, 0, len(matches))
	for _, m := range matches {
		hits = append(hits, SearchHit{
			Item:           source[m.Index],
			Score:          m.Score,
			MatchedIndexes: m.MatchedIndexes,
		})
	}
	return hits, nil
}
