package resolver

import "fmt"

type ItemKind string

const (
	KindStruct    ItemKind = "struct"
	KindEnum      ItemKind = "enum"
	KindTrait     ItemKind = "trait"
	KindFunction  ItemKind = "function"
	KindModule    ItemKind = "module"
	KindConstant  ItemKind = "constant"
	KindStatic    ItemKind = "static"
	KindTypeAlias ItemKind = "type_alias"
	KindUnion     ItemKind = "union"
	KindMacro     ItemKind = "macro"
	KindUnknown   ItemKind = "unknown"
)

// ParseItemKind maps a catalog kind name to an ItemKind, defaulting to
// KindUnknown.
func ParseItemKind(s string) ItemKind {
	switch k := ItemKind(s); k {
	case KindStruct, KindEnum, KindTrait, KindFunction, KindModule, KindConstant,
		KindStatic, KindTypeAlias, KindUnion, KindMacro:
		return k
	default:
		return KindUnknown
	}
}

type SourceKind string

const (
	SourceStd      SourceKind = "std"
	SourceCore     SourceKind = "core"
	SourceExternal SourceKind = "external"
	SourceLocal    SourceKind = "local"
	SourceCompiler SourceKind = "compiler"
)

// ItemSource says where an item is defined. CrateName is set for external
// items, ModulePath for local ones.
type ItemSource struct {
	Kind       SourceKind `json:"kind"`
	CrateName  string     `json:"crate_name,omitempty"`
	ModulePath string     `json:"module_path,omitempty"`
}

func StdSource() ItemSource      { return ItemSource{Kind: SourceStd} }
func CoreSource() ItemSource     { return ItemSource{Kind: SourceCore} }
func CompilerSource() ItemSource { return ItemSource{Kind: SourceCompiler} }

func ExternalSource(crate string) ItemSource {
	return ItemSource{Kind: SourceExternal, CrateName: crate}
}

func LocalSource(modulePath string) ItemSource {
	return ItemSource{Kind: SourceLocal, ModulePath: modulePath}
}

func (s ItemSource) String() string {
	switch s.Kind {
	case SourceExternal:
		return "external(" + s.CrateName + ")"
	case SourceLocal:
		return "local(" + s.ModulePath + ")"
	default:
		return string(s.Kind)
	}
}

// ImportableItem is a symbol that can be brought into scope with a use path.
type ImportableItem struct {
	FullPath string     `json:"full_path"`
	Name     string     `json:"name"`
	Kind     ItemKind   `json:"kind"`
	Source   ItemSource `json:"source"`
	IsPublic bool       `json:"is_public"`
	Docs     *string    `json:"docs,omitempty"`
	IsMacro  bool       `json:"is_macro"`
}

type MatchKind string

const (
	MatchExactName    MatchKind = "exact_name"
	MatchEditDistance MatchKind = "edit_distance"
	MatchTypeMatches  MatchKind = "type_matches"
	MatchUsageBased   MatchKind = "usage_based"
)

// MatchType explains a score. Distance is only meaningful for
// MatchEditDistance.
type MatchType struct {
	Kind     MatchKind `json:"kind"`
	Distance int       `json:"distance,omitempty"`
}

func ExactName() MatchType                { return MatchType{Kind: MatchExactName} }
func EditDistance(distance int) MatchType { return MatchType{Kind: MatchEditDistance, Distance: distance} }
func TypeMatches() MatchType              { return MatchType{Kind: MatchTypeMatches} }

func (m MatchType) String() string {
	if m.Kind == MatchEditDistance {
		return fmt.Sprintf("edit_distance(%d)", m.Distance)
	}
	return string(m.Kind)
}

type ImportMatch struct {
	Item       ImportableItem `json:"item"`
	Confidence float64        `json:"confidence"`
	MatchType  MatchType      `json:"match_type"`
}

// NameResolutionResult is a per-workspace snapshot. It is cached as one JSON
// blob in the resolution namespace.
type NameResolutionResult struct {
	Items        []ImportableItem `json:"items"`
	InScopeAtPos []ImportableItem `json:"in_scope_at_pos"`
	Matches      []ImportMatch    `json:"matches"`
	Suggestions  []ImportableItem `json:"suggestions"`
	// ToolchainVersion records which toolchain the snapshot was built for.
	ToolchainVersion string `json:"toolchain_version,omitempty"`
}
