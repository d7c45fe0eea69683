// Package rwmap is a generic thread-safe map guarded by a
// reader/writer mutex.
package rwmap

import (
	"maps"
	"sync"
)

// RWMap is a reader/writer-mutex-guarded map[K]V.
type RWMap[K comparable, V any] struct {
	lock sync.RWMutex
	m    map[K]V
}

// New returns an empty thread-safe map.
func New[K comparable, V any]() *RWMap[K, V] {
	return &RWMap[K, V]{m: make(map[K]V)}
}

// Get returns the value mapped by key, or the zero value if absent.
func (rw *RWMap[K, V]) Get(key K) (value V, ok bool) {
	rw.lock.RLock()
	defer rw.lock.RUnlock()
	value, ok = rw.m[key]
	return
}

// GetOrCreate returns the existing mapping for key, or creates one using
// makeV (invoked inside the critical section; it must not access the
// map itself).
func (rw *RWMap[K, V]) GetOrCreate(key K, makeV func() V) (value V, created bool) {
	rw.lock.Lock()
	defer rw.lock.Unlock()
	if v, ok := rw.m[key]; ok {
		return v, false
	}
	value = makeV()
	rw.m[key] = value
	return value, true
}

// Put saves or replaces a mapping.
func (rw *RWMap[K, V]) Put(key K, value V) {
	rw.lock.Lock()
	defer rw.lock.Unlock()
	rw.m[key] = value
}

// Delete removes a mapping; a no-op if key is unmapped.
func (rw *RWMap[K, V]) Delete(key K) {
	rw.lock.Lock()
	defer rw.lock.Unlock()
	delete(rw.m, key)
}

// Length returns the number of mappings.
func (rw *RWMap[K, V]) Length() int {
	rw.lock.RLock()
	defer rw.lock.RUnlock()
	return len(rw.m)
}

// Clone returns a shallow copy of the map.
func (rw *RWMap[K, V]) Clone() *RWMap[K, V] {
	rw.lock.RLock()
	defer rw.lock.RUnlock()
	return &RWMap[K, V]{m: maps.Clone(rw.m)}
}

// List returns the mapped values in unspecified order.
func (rw *RWMap[K, V]) List() []V {
	rw.lock.RLock()
	defer rw.lock.RUnlock()
	list := make([]V, 0, len(rw.m))
	for _, v := range rw.m {
		list = append(list, v)
	}
	return list
}

// Range calls f for every mapping; iteration stops early if f returns false.
// f must not mutate the map.
func (rw *RWMap[K, V]) Range(f func(K, V) bool) {
	rw.lock.RLock()
	defer rw.lock.RUnlock()
	for k, v := range rw.m {
		if !f(k, v) {
			return
		}
	}
}
