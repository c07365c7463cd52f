package cmap

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/spaolacci/murmur3"
)

// DefaultShards is the shard count used by New.
const DefaultShards = 16

const seed = 0x9747b28c

// Map is a concurrent map split into independently locked shards.
type Map[K comparable, V any] struct {
	shards []shard[K, V]
	mask   uint64
}

type shard[K comparable, V any] struct {
	mu    sync.RWMutex
	items map[K]V
}

// New creates a map with DefaultShards shards.
func New[K comparable, V any]() *Map[K, V] {
	return NewSharded[K, V](DefaultShards)
}

// NewSharded creates a map with n shards. n is rounded up to a power of two;
// n < 1 means DefaultShards.
func NewSharded[K comparable, V any](n int) *Map[K, V] {
	if n < 1 {
		n = DefaultShards
	}
	size := 1
	for size < n {
		size <<= 1
	}

	m := &Map[K, V]{shards: make([]shard[K, V], size), mask: uint64(size - 1)}
	for i := range m.shards {
		m.shards[i].items = make(map[K]V)
	}
	return m
}

func hashKey[K comparable](key K) uint64 {
	var buf [8]byte
	switch k := any(key).(type) {
	case string:
		return murmur3.Sum64WithSeed([]byte(k), seed)
	case int:
		binary.LittleEndian.PutUint64(buf[:], uint64(k))
	case int64:
		binary.LittleEndian.PutUint64(buf[:], uint64(k))
	case uint64:
		binary.LittleEndian.PutUint64(buf[:], k)
	default:
		return murmur3.Sum64WithSeed([]byte(fmt.Sprint(key)), seed)
	}
	return murmur3.Sum64WithSeed(buf[:], seed)
}

func (m *Map[K, V]) shardFor(key K) *shard[K, V] {
	return &m.shards[hashKey(key)&m.mask]
}

// Shards returns the shard count.
func (m *Map[K, V]) Shards() int {
	return len(m.shards)
}

// Get returns the value stored under key.
func (m *Map[K, V]) Get(key K) (V, bool) {
	s := m.shardFor(key)
	s.mu.RLock()
	v, ok := s.items[key]
	s.mu.RUnlock()
	return v, ok
}

// Set stores value under key.
func (m *Map[K, V]) Set(key K, value V) {
	s := m.shardFor(key)
	s.mu.Lock()
	s.items[key] = value
	s.mu.Unlock()
}

// GetOrSet returns the value under key, storing value first when the key is
// absent. loaded reports whether the key was already present.
func (m *Map[K, V]) GetOrSet(key K, value V) (actual V, loaded bool) {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.items[key]; ok {
		return v, true
	}
	s.items[key] = value
	return value, false
}

// Delete removes key.
func (m *Map[K, V]) Delete(key K) {
	s := m.shardFor(key)
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
}

// DeleteFunc removes every entry for which fn returns true and returns how
// many were removed. fn runs under the shard's write lock.
func (m *Map[K, V]) DeleteFunc(fn func(key K, value V) bool) int {
	removed := 0
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.Lock()
		for k, v := range s.items {
			if fn(k, v) {
				delete(s.items, k)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// Count returns the number of entries.
func (m *Map[K, V]) Count() int {
	n := 0
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.RLock()
		n += len(s.items)
		s.mu.RUnlock()
	}
	return n
}

// Clear removes every entry.
func (m *Map[K, V]) Clear() {
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.Lock()
		clear(s.items)
		s.mu.Unlock()
	}
}

// Range calls fn for each entry until fn returns false. fn runs under the
// shard's read lock and must not call back into m.
func (m *Map[K, V]) Range(fn func(key K, value V) bool) {
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.RLock()
		for k, v := range s.items {
			if !fn(k, v) {
				s.mu.RUnlock()
				return
			}
		}
		s.mu.RUnlock()
	}
}

// Keys returns every key.
func (m *Map[K, V]) Keys() []K {
	keys := make([]K, 0, m.Count())
	m.Range(func(k K, _ V) bool {
		keys = append(keys, k)
		return true
	})
	return keys
}
