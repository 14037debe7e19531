package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCatalog(t *testing.T) {
	data := "# header\n\nfoo::bar::Baz\tstruct\tDoes things\r\nfoo::qux\tmacro\t\nfoo::Odd\tbogus\n"
	items := parseCatalog(data, func(string) ItemSource { return CoreSource() })
	require.Len(t, items, 3)

	assert.Equal(t, "Baz", items[0].Name)
	assert.Equal(t, KindStruct, items[0].Kind)
	require.NotNil(t, items[0].Docs)
	assert.Equal(t, "Does things", *items[0].Docs)

	assert.True(t, items[1].IsMacro)
	assert.Nil(t, items[1].Docs)

	assert.Equal(t, KindUnknown, items[2].Kind)
}

func TestEmbeddedCatalogsAreWellFormed(t *testing.T) {
	all := append(StdItems(true), BuiltinItems()...)
	seen := map[string]bool{}
	for _, item := range all {
		assert.NotEmpty(t, item.Name, item.FullPath)
		assert.NotEqual(t, KindUnknown, item.Kind, item.FullPath)
		assert.False(t, seen[item.FullPath], "duplicate %s", item.FullPath)
		seen[item.FullPath] = true
	}
	for _, item := range BuiltinItems() {
		assert.Equal(t, SourceCompiler, item.Source.Kind)
		assert.True(t, item.IsMacro)
	}
}

func TestStdItemsReturnsCopies(t *testing.T) {
	items := StdItems(false)
	items[0].Name = "mutated"
	assert.NotEqual(t, "mutated", StdItems(false)[0].Name)
}
