package cache

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHotTierTryAddRespectsCeiling(t *testing.T) {
	h := newHotTier(2)
	assert.True(t, h.TryAdd("a", &Entry{}))
	assert.True(t, h.TryAdd("b", &Entry{}))
	assert.False(t, h.TryAdd("c", &Entry{}))
	assert.True(t, h.TryAdd("a", &Entry{ContentFingerprint: 7}), "refreshing an existing key is always allowed")
	assert.Equal(t, 2, h.Len())

	got, ok := h.Get("a")
	assert.True(t, ok)
	assert.Equal(t, uint64(7), got.ContentFingerprint)
}

func TestHotTierAddEvictsWithinShard(t *testing.T) {
	h := newHotTier(1)
	assert.True(t, h.Add("a", &Entry{}))

	// Find a key that lands in the same shard as "a".
	var sibling Key
	for i := 0; ; i++ {
		k := Key(fmt.Sprintf("k%d", i))
		if h.shard(k) == h.shard("a") {
			sibling = k
			break
		}
	}
	assert.True(t, h.Add(sibling, &Entry{}))
	assert.Equal(t, 1, h.Len())
	_, ok := h.Get("a")
	assert.False(t, ok)
	_, ok = h.Get(sibling)
	assert.True(t, ok)
}

func TestHotTierRemoveAndClear(t *testing.T) {
	h := newHotTier(10)
	for i := 0; i < 5; i++ {
		h.Add(Key(fmt.Sprintf("k%d", i)), &Entry{})
	}
	h.Remove("k0")
	h.Remove("missing")
	assert.Equal(t, 4, h.Len())

	h.Clear()
	assert.Equal(t, 0, h.Len())
	_, ok := h.Get("k1")
	assert.False(t, ok)
}
