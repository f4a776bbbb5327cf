package storage

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store with TTL expiry and a bounded entry
// count. When the bound is reached the oldest entry is evicted first,
// which can re-open the dedup window for very old updates; that keeps
// delivery at-most-once on a best-effort basis rather than a guarantee.
type MemoryStore struct {
	mu       sync.Mutex
	entries  map[string]*list.Element
	order    *list.List // front = oldest
	maxSize  int
	now      func() time.Time
}

type memoryEntry struct {
	id        string
	expiresAt time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithMaxEntries bounds the store to n entries. Zero or negative
// disables the bound.
func WithMaxEntries(n int) MemoryOption {
	return func(s *MemoryStore) {
		s.maxSize = n
	}
}

// WithClock sets a custom time source (for tests).
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		s.now = now
	}
}

// NewMemoryStore creates an in-memory Store bounded to 10000 entries by
// default.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]*list.Element),
		order:   list.New(),
		maxSize: 10000,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Has reports whether id is marked processed and unexpired. An expired
// entry is removed on sight.
func (s *MemoryStore) Has(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.entries[id]
	if !ok {
		return false, nil
	}

	entry := elem.Value.(*memoryEntry)
	if s.now().After(entry.expiresAt) {
		s.order.Remove(elem)
		delete(s.entries, id)
		return false, nil
	}
	return true, nil
}

// MarkProcessed records id with the given ttl, evicting the oldest entry
// when the bound is reached.
func (s *MemoryStore) MarkProcessed(_ context.Context, id string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, ok := s.entries[id]; ok {
		elem.Value.(*memoryEntry).expiresAt = s.now().Add(ttl)
		s.order.MoveToBack(elem)
		return nil
	}

	if s.maxSize > 0 && len(s.entries) >= s.maxSize {
		s.evictOldest()
	}

	elem := s.order.PushBack(&memoryEntry{
		id:        id,
		expiresAt: s.now().Add(ttl),
	})
	s.entries[id] = elem
	return nil
}

// evictOldest removes the front entry. Caller holds the lock.
func (s *MemoryStore) evictOldest() {
	front := s.order.Front()
	if front == nil {
		return
	}
	s.order.Remove(front)
	delete(s.entries, front.Value.(*memoryEntry).id)
}

// Len returns the current entry count.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
