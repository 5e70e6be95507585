package query

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"idlc/internal/project"
)

// dep is one recorded read: the key and the fingerprint seen at the time.
type dep struct {
	key   Key
	fp    project.Digest
	input bool
}

// entry is a cached derived result with its read-set.
type entry struct {
	value any
	err   error
	fp    project.Digest
	deps  []dep
	stale bool
}

// store keeps derived entries, optionally bounded by an LRU.
type store struct {
	m   map[Key]*entry
	lru *lru.Cache[Key, *entry]
}

func newStore(capacity int, onEvict func()) *store {
	if capacity <= 0 {
		return &store{m: make(map[Key]*entry)}
	}
	c, err := lru.NewWithEvict[Key, *entry](capacity, func(Key, *entry) { onEvict() })
	if err != nil {
		panic(err) // capacity > 0 checked above
	}
	return &store{lru: c}
}

func (s *store) get(k Key) *entry {
	if s.lru != nil {
		e, _ := s.lru.Get(k)
		return e
	}
	return s.m[k]
}

// peek reads without touching recency.
func (s *store) peek(k Key) *entry {
	if s.lru != nil {
		e, _ := s.lru.Peek(k)
		return e
	}
	return s.m[k]
}

func (s *store) put(k Key, e *entry) {
	if s.lru != nil {
		s.lru.Add(k, e)
		return
	}
	s.m[k] = e
}

func (s *store) remove(k Key) {
	if s.lru != nil {
		s.lru.Remove(k)
		return
	}
	delete(s.m, k)
}

func (s *store) len() int {
	if s.lru != nil {
		return s.lru.Len()
	}
	return len(s.m)
}

func (s *store) purge() {
	if s.lru != nil {
		s.lru.Purge()
		return
	}
	clear(s.m)
}
