package classify

import (
	"container/list"
	"sync"

	"github.com/jmorgan/errsage/internal/model"
)

// memoEntry pairs a content hash with its classification result.
type memoEntry struct {
	key    string
	result model.MatchResult
}

// memo is a bounded LRU cache of classification results keyed by content
// hash. Classification of an identical (message, stack, context) triple is
// pure, so entries never expire; the bound only limits memory.
type memo struct {
	entries map[string]*list.Element
	order   *list.List
	cap     int
	mu      sync.Mutex
}

// newMemo creates a memo bounded to capacity entries.
func newMemo(capacity int) *memo {
	if capacity <= 0 {
		capacity = 1000
	}
	return &memo{
		entries: make(map[string]*list.Element),
		order:   list.New(),
		cap:     capacity,
	}
}

// get retrieves a memoized result, marking it most recently used.
func (m *memo) get(key string) (model.MatchResult, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	elem, ok := m.entries[key]
	if !ok {
		return model.MatchResult{}, false
	}
	m.order.MoveToFront(elem)
	return elem.Value.(*memoEntry).result, true
}

// set stores a result, evicting the least recently used entry when full.
func (m *memo) set(key string, result model.MatchResult) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if elem, ok := m.entries[key]; ok {
		elem.Value.(*memoEntry).result = result
		m.order.MoveToFront(elem)
		return
	}

	if m.order.Len() >= m.cap {
		oldest := m.order.Back()
		if oldest != nil {
			m.order.Remove(oldest)
			delete(m.entries, oldest.Value.(*memoEntry).key)
		}
	}

	m.entries[key] = m.order.PushFront(&memoEntry{key: key, result: result})
}

// size returns the number of memoized results.
func (m *memo) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len()
}
