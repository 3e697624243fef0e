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
	"time"
)

type (
	// Store is the interface to be implemented by backing stores.
	// Implementations must be safe for concurrent use; single-key
	// operations are expected to be atomic and read-your-writes.
	Store[V any] interface {
		// Get returns the stored value for key. The bool is false when the
		// key does not exist, which is not an error.
		Get(ctx context.Context, key Key) (V, bool, error)

		// Put stores value under key.
		Put(ctx context.Context, key Key, value V) error

		// Delete removes key. Deleting an absent key succeeds.
		Delete(ctx context.Context, key Key) error

		// ListKeys returns every key currently stored.
		ListKeys(ctx context.Context) ([]Key, error)
	}
)

// guardedStore bounds every call with a timeout and marks failures as
// ErrStoreFault. The engine only talks to its store through one of these.
type guardedStore[V any] struct {
	store   Store[V]
	timeout time.Duration
	metrics *CacheMetrics
}

func newGuardedStore[V any](store Store[V], timeout time.Duration, metrics *CacheMetrics) *guardedStore[V] {
	return &guardedStore[V]{store: store, timeout: timeout, metrics: metrics}
}

func (g *guardedStore[V]) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.timeout)
}

func (g *guardedStore[V]) Get(ctx context.Context, key Key) (V, bool, error) {
	ctx, cancel := g.bound(ctx)
	defer cancel()

	g.metrics.IncrementLoad()
	value, ok, err := g.store.Get(ctx, key)
	if err != nil {
		var zero V
		return zero, false, storeFault(err, "get", key)
	}
	return value, ok, nil
}

func (g *guardedStore[V]) Put(ctx context.Context, key Key, value V) error {
	ctx, cancel := g.bound(ctx)
	defer cancel()

	if err := g.store.Put(ctx, key, value); err != nil {
		return storeFault(err, "put", key)
	}
	g.metrics.IncrementStoreWrite()
	return nil
}

func (g *guardedStore[V]) Delete(ctx context.Context, key Key) error {
	ctx, cancel := g.bound(ctx)
	defer cancel()

	if err := g.store.Delete(ctx, key); err != nil {
		return storeFault(err, "delete", key)
	}
	g.metrics.IncrementStoreDelete()
	return nil
}

func (g *guardedStore[V]) ListKeys(ctx context.Context) ([]Key, error) {
	ctx, cancel := g.bound(ctx)
	defer cancel()

	keys, err := g.store.ListKeys(ctx)
	if err != nil {
		return nil, storeFault(err, "list", 0)
	}
	return keys, nil
}
