package parser

import (
	"strings"

	"rustyrefactor/internal/engine/resolver"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// itemHandler processes one item node inside a module body.
type itemHandler func(w *itemWalker, s *moduleScope, node *sitter.Node)

// moduleScope is the state for one module body: where its items live and the
// outer attributes and doc comments waiting for the next item.
type moduleScope struct {
	source []byte
	crate  string
	module []string
	attrs  []string
	docs   []string
	items  *[]resolver.ImportableItem
}

func (s *moduleScope) text(node *sitter.Node) string {
	if node == nil {
		return ""
	}
	return string(s.source[node.StartByte():node.EndByte()])
}

func (s *moduleScope) child(name string) *moduleScope {
	module := make([]string, len(s.module), len(s.module)+1)
	copy(module, s.module)
	return &moduleScope{
		source: s.source,
		crate:  s.crate,
		module: append(module, name),
		items:  s.items,
	}
}

func (s *moduleScope) modulePath() string {
	return strings.Join(append([]string{s.crate}, s.module...), "::")
}

func (s *moduleScope) hasAttr(prefix string) bool {
	for _, a := range s.attrs {
		if strings.HasPrefix(a, prefix) {
			return true
		}
	}
	return false
}

func (s *moduleScope) emit(name string, kind resolver.ItemKind, modulePath string, public bool) {
	item := resolver.ImportableItem{
		FullPath: modulePath + "::" + name,
		Name:     name,
		Kind:     kind,
		Source:   resolver.LocalSource(modulePath),
		IsPublic: public,
		IsMacro:  kind == resolver.KindMacro,
	}
	if len(s.docs) > 0 {
		summary := s.docs[0]
		item.Docs = &summary
	}
	*s.items = append(*s.items, item)
}

// itemWalker dispatches module-level nodes to handlers by kind. Only module
// bodies are descended into; impl and trait bodies never contribute items.
type itemWalker struct {
	handlers map[string]itemHandler
}

func newItemWalker() *itemWalker {
	return &itemWalker{
		handlers: map[string]itemHandler{
			"struct_item":      declare(resolver.KindStruct),
			"enum_item":        declare(resolver.KindEnum),
			"union_item":       declare(resolver.KindUnion),
			"trait_item":       declare(resolver.KindTrait),
			"function_item":    declare(resolver.KindFunction),
			"const_item":       declare(resolver.KindConstant),
			"static_item":      declare(resolver.KindStatic),
			"type_item":        declare(resolver.KindTypeAlias),
			"mod_item":         handleMod,
			"macro_definition": handleMacro,
		},
	}
}

func (w *itemWalker) walkBody(s *moduleScope, body *sitter.Node) {
	if body == nil {
		return
	}
	for i := uint(0); i < body.NamedChildCount(); i++ {
		node := body.NamedChild(i)
		if node == nil {
			continue
		}
		switch node.Kind() {
		case "attribute_item":
			s.attrs = append(s.attrs, compact(s.text(node)))
			continue
		case "line_comment":
			if doc, ok := outerDoc(s.text(node)); ok {
				s.docs = append(s.docs, doc)
			}
			continue
		case "block_comment", "inner_attribute_item":
			continue
		}

		if handler, ok := w.handlers[node.Kind()]; ok {
			handler(w, s, node)
		}
		s.attrs = s.attrs[:0]
		s.docs = s.docs[:0]
	}
}

func declare(kind resolver.ItemKind) itemHandler {
	return func(_ *itemWalker, s *moduleScope, node *sitter.Node) {
		if !isPub(s, node) {
			return
		}
		if name := s.text(node.ChildByFieldName("name")); name != "" {
			s.emit(name, kind, s.modulePath(), true)
		}
	}
}

// handleMod emits public modules and descends into every inline body, since
// pub items of a private module are still importable within the crate.
// Test-only modules are skipped.
func handleMod(w *itemWalker, s *moduleScope, node *sitter.Node) {
	name := s.text(node.ChildByFieldName("name"))
	if name == "" || s.hasAttr("#[cfg(test)]") {
		return
	}
	if isPub(s, node) {
		s.emit(name, resolver.KindModule, s.modulePath(), true)
	}
	w.walkBody(s.child(name), node.ChildByFieldName("body"))
}

// handleMacro emits #[macro_export] macros, which always live at the crate
// root whatever module defines them.
func handleMacro(_ *itemWalker, s *moduleScope, node *sitter.Node) {
	if !s.hasAttr("#[macro_export") {
		return
	}
	if name := s.text(node.ChildByFieldName("name")); name != "" {
		s.emit(name, resolver.KindMacro, s.crate, true)
	}
}

// isPub reports unrestricted visibility. pub(crate) and friends are not
// importable from other crates and are left out.
func isPub(s *moduleScope, node *sitter.Node) bool {
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child != nil && child.Kind() == "visibility_modifier" {
			return compact(s.text(child)) == "pub"
		}
	}
	return false
}

func outerDoc(comment string) (string, bool) {
	if !strings.HasPrefix(comment, "///") || strings.HasPrefix(comment, "////") {
		return "", false
	}
	doc := strings.TrimSpace(strings.TrimPrefix(comment, "///"))
	return doc, doc != ""
}

func compact(s string) string {
	return strings.Join(strings.Fields(s), "")
}
