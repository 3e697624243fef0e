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
	"time"
)

type (
	// MemoryStore is the built-in in-process backing store. It stands in
	// for a database in tests and demos.
	MemoryStore[V any] struct {
		mutex   sync.RWMutex
		latency time.Duration
		store   map[Key]V
	}
)

// MemoryStoreConfig represents configuration for MemoryStore
type MemoryStoreConfig[V any] struct {
	// Seed is copied into the store on creation.
	Seed map[Key]V

	// Latency is added to every call to imitate a remote database. The
	// wait is abandoned when the context ends.
	Latency time.Duration
}

func NewMemoryStore[V any]() *MemoryStore[V] {
	return NewMemoryStoreWithConfig(MemoryStoreConfig[V]{})
}

func NewMemoryStoreWithConfig[V any](config MemoryStoreConfig[V]) *MemoryStore[V] {
	store := &MemoryStore[V]{
		latency: config.Latency,
		store:   make(map[Key]V, len(config.Seed)),
	}
	for k, v := range config.Seed {
		store.store[k] = v
	}
	return store
}

func (store *MemoryStore[V]) wait(ctx context.Context) error {
	if store.latency <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(store.latency)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Get implements the Store interface Get method.
func (store *MemoryStore[V]) Get(ctx context.Context, key Key) (V, bool, error) {
	var zero V
	if err := store.wait(ctx); err != nil {
		return zero, false, err
	}

	store.mutex.RLock()
	value, ok := store.store[key]
	store.mutex.RUnlock()

	if ok {
		return value, true, nil
	}
	return zero, false, nil
}

// Put implements the Store interface Put method.
func (store *MemoryStore[V]) Put(ctx context.Context, key Key, value V) error {
	if err := store.wait(ctx); err != nil {
		return err
	}

	store.mutex.Lock()
	store.store[key] = value
	store.mutex.Unlock()
	return nil
}

// Delete implements the Store interface Delete method.
func (store *MemoryStore[V]) Delete(ctx context.Context, key Key) error {
	if err := store.wait(ctx); err != nil {
		return err
	}

	store.mutex.Lock()
	delete(store.store, key)
	store.mutex.Unlock()
	return nil
}

// ListKeys implements the Store interface ListKeys method. Keys are
// returned in ascending order.
func (store *MemoryStore[V]) ListKeys(ctx context.Context) ([]Key, error) {
	if err := store.wait(ctx); err != nil {
		return nil, err
	}

	store.mutex.RLock()
	keys := make([]Key, 0, len(store.store))
	for k := range store.store {
		keys = append(keys, k)
	}
	store.mutex.RUnlock()

	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys, nil
}

// Size returns the number of stored records.
func (store *MemoryStore[V]) Size() int {
	store.mutex.RLock()
	defer store.mutex.RUnlock()
	return len(store.store)
}

// Clear removes every record.
func (store *MemoryStore[V]) Clear() error {
	store.mutex.Lock()
	store.store = make(map[Key]V)
	store.mutex.Unlock()
	return nil
}
