package parser

import (
	"testing"

	"rustyrefactor/internal/engine/resolver"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const librarySource = `//! Crate docs.
use std::collections::HashMap;

/// A widget.
///
/// Longer description.
pub struct Widget;
struct Hidden;
pub(crate) struct Internal;
pub enum Shape { Circle }
pub union Bits { a: u32 }
pub trait Draw { fn draw(&self); }
pub fn build() -> Widget { Widget }
pub const LIMIT: usize = 3;
pub static NAME: &str = "x";
pub type Alias = Widget;

impl Widget {
    pub fn method(&self) {}
}

pub mod shapes {
    pub struct Square;

    mod private {
        pub struct Deep;
    }
}

#[cfg(test)]
mod tests {
    pub struct TestOnly;
}

#[macro_export]
macro_rules! make_widget {
    () => {};
}

macro_rules! local_only {
    () => {};
}
`

func extract(t *testing.T, source, crate string, module []string) map[string]resolver.ImportableItem {
	t.Helper()
	e, err := NewRustExtractor(DefaultOptions())
	require.NoError(t, err)

	items, err := e.extractSource([]byte(source), crate, module)
	require.NoError(t, err)

	byPath := make(map[string]resolver.ImportableItem, len(items))
	for _, item := range items {
		_, dup := byPath[item.FullPath]
		require.False(t, dup, "duplicate %s", item.FullPath)
		byPath[item.FullPath] = item
	}
	return byPath
}

func TestExtractSourcePublicItems(t *testing.T) {
	items := extract(t, librarySource, "crate", nil)

	expected := map[string]resolver.ItemKind{
		"crate::Widget":                resolver.KindStruct,
		"crate::Shape":                 resolver.KindEnum,
		"crate::Bits":                  resolver.KindUnion,
		"crate::Draw":                  resolver.KindTrait,
		"crate::build":                 resolver.KindFunction,
		"crate::LIMIT":                 resolver.KindConstant,
		"crate::NAME":                  resolver.KindStatic,
		"crate::Alias":                 resolver.KindTypeAlias,
		"crate::shapes":                resolver.KindModule,
		"crate::shapes::Square":        resolver.KindStruct,
		"crate::shapes::private::Deep": resolver.KindStruct,
		"crate::make_widget":           resolver.KindMacro,
	}
	for path, kind := range expected {
		item, ok := items[path]
		if assert.True(t, ok, "missing %s", path) {
			assert.Equal(t, kind, item.Kind, path)
			assert.True(t, item.IsPublic, path)
			assert.Equal(t, resolver.SourceLocal, item.Source.Kind, path)
		}
	}
	assert.Len(t, items, len(expected))

	for _, absent := range []string{
		"crate::Hidden", "crate::Internal", "crate::method", "crate::Widget::method",
		"crate::tests", "crate::tests::TestOnly", "crate::local_only", "crate::draw",
		"crate::shapes::private",
	} {
		assert.NotContains(t, items, absent)
	}
}

func TestExtractSourceDetails(t *testing.T) {
	items := extract(t, librarySource, "crate", nil)

	widget := items["crate::Widget"]
	assert.Equal(t, "Widget", widget.Name)
	require.NotNil(t, widget.Docs)
	assert.Equal(t, "A widget.", *widget.Docs)
	assert.Nil(t, items["crate::Shape"].Docs)

	square := items["crate::shapes::Square"]
	assert.Equal(t, "crate::shapes", square.Source.ModulePath)

	macro := items["crate::make_widget"]
	assert.True(t, macro.IsMacro)
	assert.Equal(t, "crate", macro.Source.ModulePath)
}

func TestExtractSourceModulePrefix(t *testing.T) {
	source := `
pub struct Engine;

pub mod inner {
    pub fn start() {}
}

#[macro_export(local_inner_macros)]
macro_rules! engine { () => {}; }
`
	items := extract(t, source, "my_core", []string{"runtime", "v2"})

	assert.Contains(t, items, "my_core::runtime::v2::Engine")
	assert.Contains(t, items, "my_core::runtime::v2::inner")
	assert.Contains(t, items, "my_core::runtime::v2::inner::start")
	assert.Contains(t, items, "my_core::engine", "exported macros live at the crate root")
}

func TestExtractSourceToleratesSyntaxErrors(t *testing.T) {
	source := "pub struct Good;\n\nfn broken( {\n\npub enum AlsoGood { A }\n"
	items := extract(t, source, "crate", nil)
	assert.Contains(t, items, "crate::Good")
}

func TestOuterDoc(t *testing.T) {
	tests := []struct {
		comment string
		doc     string
		ok      bool
	}{
		{"/// Summary line.", "Summary line.", true},
		{"///", "", false},
		{"//// not a doc", "", false},
		{"// plain", "", false},
		{"//! inner doc", "", false},
	}
	for _, tt := range tests {
		doc, ok := outerDoc(tt.comment)
		assert.Equal(t, tt.ok, ok, tt.comment)
		assert.Equal(t, tt.doc, doc, tt.comment)
	}
}
