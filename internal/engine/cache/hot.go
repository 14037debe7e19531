package cache

import (
	"container/list"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
)

const hotShards = 16

// hotTier is a sharded LRU of decoded entries. Each shard has its own lock and
// a global atomic counter enforces the entry ceiling, so lookups never touch
// the index lock.
type hotTier struct {
	shards  [hotShards]*hotShard
	count   atomic.Int64
	ceiling int64
}

type hotShard struct {
	mu    sync.Mutex
	items map[Key]*list.Element
	order *list.List // front = most recently used
}

type hotItem struct {
	key   Key
	entry *Entry
}

func newHotTier(ceiling int) *hotTier {
	if ceiling <= 0 {
		ceiling = 1
	}
	h := &hotTier{ceiling: int64(ceiling)}
	for i := range h.shards {
		h.shards[i] = &hotShard{
			items: make(map[Key]*list.Element),
			order: list.New(),
		}
	}
	return h
}

func (h *hotTier) shard(key Key) *hotShard {
	return h.shards[xxhash.Sum64String(string(key))%hotShards]
}

func (h *hotTier) Get(key Key) (*Entry, bool) {
	s := h.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[key]
	if !ok {
		return nil, false
	}
	s.order.MoveToFront(el)
	return el.Value.(*hotItem).entry, true
}

// TryAdd inserts only while the tier is below its ceiling. Existing keys are
// always refreshed.
func (h *hotTier) TryAdd(key Key, entry *Entry) bool {
	s := h.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.items[key]; ok {
		el.Value.(*hotItem).entry = entry
		s.order.MoveToFront(el)
		return true
	}
	if h.count.Load() >= h.ceiling {
		return false
	}
	s.items[key] = s.order.PushFront(&hotItem{key: key, entry: entry})
	h.count.Add(1)
	return true
}

// Add inserts entry, making room by evicting the least recently used item of
// the same shard when the tier is full. If that shard is empty the insert is
// skipped.
func (h *hotTier) Add(key Key, entry *Entry) bool {
	s := h.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.items[key]; ok {
		el.Value.(*hotItem).entry = entry
		s.order.MoveToFront(el)
		return true
	}
	if h.count.Load() >= h.ceiling {
		back := s.order.Back()
		if back == nil {
			return false
		}
		s.order.Remove(back)
		delete(s.items, back.Value.(*hotItem).key)
		h.count.Add(-1)
	}
	s.items[key] = s.order.PushFront(&hotItem{key: key, entry: entry})
	h.count.Add(1)
	return true
}

func (h *hotTier) Remove(key Key) {
	s := h.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[key]
	if !ok {
		return
	}
	s.order.Remove(el)
	delete(s.items, key)
	h.count.Add(-1)
}

func (h *hotTier) Len() int {
	return int(h.count.Load())
}

func (h *hotTier) Clear() {
	for _, s := range h.shards {
		s.mu.Lock()
		n := s.order.Len()
		s.order.Init()
		s.items = make(map[Key]*list.Element)
		h.count.Add(int64(-n))
		s.mu.Unlock()
	}
}
