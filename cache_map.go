/*
MIT License

Copyright (c) 2023 Frank Oh

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

package echo_record_cache

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"
)

type mapOp int

const (
	// opKeep leaves the slot as it is.
	opKeep mapOp = iota
	// opStore writes the returned record with a fresh version.
	opStore
	// opRemove deletes the slot.
	opRemove
)

type (
	// CacheMap is the concurrent key to Record table owned by an Engine.
	// Every mutation of one record is applied under the map lock as a
	// single step, so value, flags and version always change together.
	// No method calls out to a backing store while holding the lock.
	CacheMap[V any] struct {
		mutex   sync.RWMutex
		records map[Key]Record[V]

		// clock hands out record versions.
		clock uint64

		// epoch advances on every removal. A miss fill started before a
		// removal is discarded, so an invalidation that already returned
		// can not be undone by a slow load.
		epoch uint64

		loads singleflight.Group
	}

	loadResult[V any] struct {
		value V
		found bool
	}
)

func NewCacheMap[V any]() *CacheMap[V] {
	return &CacheMap[V]{records: make(map[Key]Record[V])}
}

// Get returns a copy of the record for key, tombstones included.
func (m *CacheMap[V]) Get(key Key) (Record[V], bool) {
	m.mutex.RLock()
	rec, ok := m.records[key]
	m.mutex.RUnlock()
	return rec, ok
}

// Put stores rec under key with a new version and returns what was stored.
func (m *CacheMap[V]) Put(key Key, rec Record[V]) Record[V] {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.storeLocked(key, rec)
}

// Remove deletes key and reports whether it was present.
func (m *CacheMap[V]) Remove(key Key) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.removeLocked(key)
}

// Clear empties the map.
func (m *CacheMap[V]) Clear() {
	m.mutex.Lock()
	m.records = make(map[Key]Record[V])
	m.epoch++
	m.mutex.Unlock()
}

// Compute applies fn to the current record for key atomically. fn
// receives a copy of the current record and whether it exists, and
// decides what happens to the slot. The resulting record is returned
// along with whether the slot is occupied afterwards.
func (m *CacheMap[V]) Compute(key Key, fn func(cur Record[V], ok bool) (Record[V], mapOp)) (Record[V], bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	cur, ok := m.records[key]
	next, op := fn(cur, ok)
	switch op {
	case opStore:
		return m.storeLocked(key, next), true
	case opRemove:
		m.removeLocked(key)
		var zero Record[V]
		return zero, false
	}
	return cur, ok
}

// FillIfAbsent inserts value as a clean record unless the key is already
// present or a removal happened after epoch was read. It returns the
// record now in the map, if any.
func (m *CacheMap[V]) FillIfAbsent(key Key, value V, epoch uint64) (Record[V], bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if cur, ok := m.records[key]; ok {
		return cur, true
	}
	if m.epoch != epoch {
		var zero Record[V]
		return zero, false
	}
	return m.storeLocked(key, Record[V]{Value: value}), true
}

// Epoch returns the current removal epoch for use with FillIfAbsent.
func (m *CacheMap[V]) Epoch() uint64 {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.epoch
}

// GetOrLoad returns the live value for key, loading it on a miss.
// Concurrent misses for the same key share one call to load; the other
// callers wait for its result. The shared load is detached from the
// cancellation of whichever caller started it, and each caller stops
// waiting when its own ctx ends. A tombstoned key reports not found
// without loading.
func (m *CacheMap[V]) GetOrLoad(ctx context.Context, key Key, load func(context.Context) (V, bool, error)) (V, bool, error) {
	var zero V
	if rec, ok := m.Get(key); ok {
		return rec.Value, rec.Live(), nil
	}

	loadCtx := context.WithoutCancel(ctx)
	flight := m.loads.DoChan(key.String(), func() (interface{}, error) {
		epoch := m.Epoch()
		// a writer may have filled the slot while we queued for the flight
		if rec, ok := m.Get(key); ok {
			return loadResult[V]{value: rec.Value, found: rec.Live()}, nil
		}
		value, found, err := load(loadCtx)
		if err != nil || !found {
			return loadResult[V]{}, err
		}
		if rec, ok := m.FillIfAbsent(key, value, epoch); ok {
			return loadResult[V]{value: rec.Value, found: rec.Live()}, nil
		}
		return loadResult[V]{value: value, found: true}, nil
	})

	select {
	case res := <-flight:
		if res.Err != nil {
			return zero, false, res.Err
		}
		r := res.Val.(loadResult[V])
		return r.value, r.found, nil
	case <-ctx.Done():
		return zero, false, ctx.Err()
	}
}

// CompareAndClean clears the dirty flag if the record is still at
// version. It reports whether the flag was cleared.
func (m *CacheMap[V]) CompareAndClean(key Key, version uint64) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	rec, ok := m.records[key]
	if !ok || rec.Version != version {
		return false
	}
	rec.Dirty = false
	m.records[key] = rec
	return true
}

// CompareAndRemove deletes the record if it is still at version.
func (m *CacheMap[V]) CompareAndRemove(key Key, version uint64) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	rec, ok := m.records[key]
	if !ok || rec.Version != version {
		return false
	}
	m.removeLocked(key)
	return true
}

// RemoveClean deletes key unless it holds unpersisted changes. It
// reports whether a record was removed.
func (m *CacheMap[V]) RemoveClean(key Key) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if rec, ok := m.records[key]; ok && rec.Dirty {
		return false
	}
	return m.removeLocked(key)
}

// ClearClean deletes every record without unpersisted changes and returns
// how many dirty records were kept.
func (m *CacheMap[V]) ClearClean() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	kept := make(map[Key]Record[V])
	for k, rec := range m.records {
		if rec.Dirty {
			kept[k] = rec
		}
	}
	m.records = kept
	m.epoch++
	return len(kept)
}

// Snapshot returns a copy of every live value.
func (m *CacheMap[V]) Snapshot() map[Key]V {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	out := make(map[Key]V, len(m.records))
	for k, rec := range m.records {
		if rec.Live() {
			out[k] = rec.Value
		}
	}
	return out
}

// Records returns a copy of every record, tombstones included.
func (m *CacheMap[V]) Records() map[Key]Record[V] {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	out := make(map[Key]Record[V], len(m.records))
	for k, rec := range m.records {
		out[k] = rec
	}
	return out
}

// Dirty returns copies of the dirty records in key order. The slice is
// detached from the map, so later writes do not change it.
func (m *CacheMap[V]) Dirty() []Record[V] {
	m.mutex.RLock()
	out := make([]Record[V], 0)
	for _, rec := range m.records {
		if rec.Dirty {
			out = append(out, rec)
		}
	}
	m.mutex.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// DirtyCount returns the number of dirty records.
func (m *CacheMap[V]) DirtyCount() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	n := 0
	for _, rec := range m.records {
		if rec.Dirty {
			n++
		}
	}
	return n
}

// Len returns the number of records, tombstones included.
func (m *CacheMap[V]) Len() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.records)
}

func (m *CacheMap[V]) storeLocked(key Key, rec Record[V]) Record[V] {
	m.clock++
	rec.Key = key
	rec.Version = m.clock
	m.records[key] = rec
	return rec
}

// removeLocked advances the epoch even when key is absent: a load for
// the key may be in flight and must not fill behind the removal.
func (m *CacheMap[V]) removeLocked(key Key) bool {
	m.epoch++
	if _, ok := m.records[key]; !ok {
		return false
	}
	delete(m.records, key)
	return true
}
