package resolver

import "context"

// Extraction is what a LocalItemExtractor found in a workspace. Sources lists
// the files and directories the items were read from; the resolver records
// them as cache dependencies so edits force a recomputation.
type Extraction struct {
	Items   []ImportableItem
	Sources []string
}

// LocalItemExtractor returns the items a workspace defines itself.
type LocalItemExtractor interface {
	ExtractItems(ctx context.Context, workspaceRoot string) (Extraction, error)
}

// NoopExtractor reports no local items. It is the extractor used when local
// extraction is disabled.
type NoopExtractor struct{}

func (NoopExtractor) ExtractItems(context.Context, string) (Extraction, error) {
	return Extraction{}, nil
}
