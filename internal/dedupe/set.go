// ABOUTME: Bounded FIFO set used as the in-memory half of the URL cache.
// ABOUTME: Keeps insertion order for eviction and a map for O(1) membership.

package dedupe

import (
	"container/list"
)

// Set is a size-limited ordered set of keys. When an insertion pushes the
// number of keys past the capacity, the oldest key is evicted.
// Uses a doubly-linked list to maintain insertion order for O(1) eviction.
//
// A Set is owned by a single goroutine and is not safe for concurrent use.
type Set struct {
	seen     map[string]*list.Element
	order    *list.List // keys in insertion order (oldest at front)
	capacity int
}

// New creates an empty set that retains at most capacity keys.
// A capacity of zero (or less) yields a set that never retains anything.
func New(capacity int) *Set {
	if capacity < 0 {
		capacity = 0
	}
	return &Set{
		seen:     make(map[string]*list.Element, min(capacity, 1024)),
		order:    list.New(),
		capacity: capacity,
	}
}

// Add inserts key at the tail if it is not already present.
// Returns true if the key was new. Existing keys are left where they are.
func (s *Set) Add(key string) bool {
	if _, exists := s.seen[key]; exists {
		return false
	}

	s.seen[key] = s.order.PushBack(key)
	if s.order.Len() > s.capacity {
		s.evictOldest()
	}
	return true
}

// Contains reports whether key is currently retained.
func (s *Set) Contains(key string) bool {
	_, ok := s.seen[key]
	return ok
}

// Len returns the number of retained keys.
func (s *Set) Len() int {
	return s.order.Len()
}

// Cap returns the configured capacity.
func (s *Set) Cap() int {
	return s.capacity
}

// Keys returns the retained keys, oldest first.
func (s *Set) Keys() []string {
	keys := make([]string, 0, s.order.Len())
	for e := s.order.Front(); e != nil; e = e.Next() {
		keys = append(keys, e.Value.(string))
	}
	return keys
}

// Reset replaces the contents with keys, in the given order.
// Duplicates keep their first position. If more than capacity distinct keys
// remain, only the newest capacity of them are kept.
func (s *Set) Reset(keys []string) {
	s.seen = make(map[string]*list.Element, min(len(keys), s.capacity))
	s.order.Init()
	for _, key := range keys {
		s.Add(key)
	}
}

// evictOldest removes the oldest entry from the set.
func (s *Set) evictOldest() {
	front := s.order.Front()
	if front == nil {
		return
	}

	key, _ := front.Value.(string)
	s.order.Remove(front)
	delete(s.seen, key)
}
