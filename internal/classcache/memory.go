// Package classcache stores merchant classifications so repeated runs skip
// the categorization oracle for merchants it has already answered.
package classcache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/dvloznov/finance-wrapped/internal/pipeline"
)

// DefaultMemorySize bounds a MemoryStore created with size <= 0.
const DefaultMemorySize = 1024

// MemoryStore is a process-local LRU cache with optional TTL.
type MemoryStore struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	items   map[string]*list.Element
	lru     *list.List
	now     func() time.Time
}

type entry struct {
	key       string
	value     pipeline.Classification
	expiresAt time.Time
}

// NewMemoryStore creates a store holding at most maxSize merchants. A zero
// ttl keeps entries until they are evicted.
func NewMemoryStore(maxSize int, ttl time.Duration) *MemoryStore {
	if maxSize <= 0 {
		maxSize = DefaultMemorySize
	}
	return &MemoryStore{
		maxSize: maxSize,
		ttl:     ttl,
		items:   make(map[string]*list.Element),
		lru:     list.New(),
		now:     time.Now,
	}
}

func (m *MemoryStore) Get(_ context.Context, merchant string) (pipeline.Classification, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	elem, ok := m.items[merchant]
	if !ok {
		return pipeline.Classification{}, false, nil
	}
	e := elem.Value.(*entry)
	if m.ttl > 0 && m.now().After(e.expiresAt) {
		m.remove(elem)
		return pipeline.Classification{}, false, nil
	}
	m.lru.MoveToFront(elem)
	return e.value, true, nil
}

func (m *MemoryStore) Put(_ context.Context, merchant string, c pipeline.Classification) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := &entry{key: merchant, value: c}
	if m.ttl > 0 {
		e.expiresAt = m.now().Add(m.ttl)
	}

	if elem, ok := m.items[merchant]; ok {
		elem.Value = e
		m.lru.MoveToFront(elem)
		return nil
	}

	m.items[merchant] = m.lru.PushFront(e)
	if m.lru.Len() > m.maxSize {
		m.remove(m.lru.Back())
	}
	return nil
}

// Len returns the number of cached merchants, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

func (m *MemoryStore) remove(elem *list.Element) {
	delete(m.items, elem.Value.(*entry).key)
	m.lru.Remove(elem)
}

var (
	_ pipeline.ClassificationCache = (*MemoryStore)(nil)
	_ pipeline.ClassificationCache = (*SQLiteStore)(nil)
)
