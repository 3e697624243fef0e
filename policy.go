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

	"github.com/cockroachdb/errors"
)

// Capability is the set of operations a policy defines.
type Capability uint8

const (
	CapRead Capability = 1 << iota
	CapWrite
)

// Has reports whether c includes every bit of o.
func (c Capability) Has(o Capability) bool {
	return c&o == o
}

// Policy decides the order in which the cache and the backing store are
// consulted. Implementations never call the store while holding the cache
// lock; atomic single-record updates go through CacheMap.
type Policy[V any] interface {
	Name() PolicyName
	Capabilities() Capability

	// ResolveRead returns the value for key. The bool is false when the
	// key exists in neither the cache nor the store.
	ResolveRead(ctx context.Context, key Key, cache *CacheMap[V], store Store[V]) (V, bool, error)

	// ResolveWrite creates or replaces the value for key.
	ResolveWrite(ctx context.Context, key Key, value V, cache *CacheMap[V], store Store[V]) (Record[V], error)

	// ResolveDelete removes key. Deleting an absent key succeeds.
	ResolveDelete(ctx context.Context, key Key, cache *CacheMap[V], store Store[V]) error
}

// NewPolicy returns the policy implementation for name.
func NewPolicy[V any](name PolicyName, metrics *CacheMetrics, logger Logger) (Policy[V], error) {
	aside := readAside[V]{metrics: metrics, logger: logger}
	switch name {
	case CacheAside:
		return &cacheAsidePolicy[V]{aside}, nil
	case ReadThrough:
		return &readThroughPolicy[V]{aside}, nil
	case WriteAround:
		return &writeAroundPolicy[V]{aside}, nil
	case WriteThrough:
		return &writeThroughPolicy[V]{aside}, nil
	case WriteBack:
		return &writeBackPolicy[V]{aside}, nil
	}
	return nil, invalidInput("unknown cache policy %q", name)
}

// readAside is the read path every policy except read-through shares:
// serve from the cache, otherwise load from the store and fill the cache
// as a clean record.
type readAside[V any] struct {
	metrics *CacheMetrics
	logger  Logger
}

func (r readAside[V]) ResolveRead(ctx context.Context, key Key, cache *CacheMap[V], store Store[V]) (V, bool, error) {
	var zero V
	if rec, ok := cache.Get(key); ok {
		if !rec.Live() {
			r.logger.Debugf("get %s: pending delete", key)
			return zero, false, nil
		}
		r.metrics.IncrementHit()
		r.logger.Debugf("get %s: cache hit", key)
		return rec.Value, true, nil
	}

	r.metrics.IncrementMiss()
	epoch := cache.Epoch()
	value, found, err := store.Get(ctx, key)
	if err != nil {
		return zero, false, err
	}
	if !found {
		r.logger.Debugf("get %s: not in store", key)
		return zero, false, nil
	}
	if rec, ok := cache.FillIfAbsent(key, value, epoch); ok {
		r.logger.Debugf("get %s: cache miss, filled version %d", key, rec.Version)
		return rec.Value, rec.Live(), nil
	}
	// invalidated while loading; serve the loaded value without caching it
	return value, true, nil
}

func (r readAside[V]) Capabilities() Capability {
	return CapRead | CapWrite
}

type cacheAsidePolicy[V any] struct {
	readAside[V]
}

func (p *cacheAsidePolicy[V]) Name() PolicyName { return CacheAside }

// ResolveWrite stores value and drops the cached copy; the next read
// reloads it.
func (p *cacheAsidePolicy[V]) ResolveWrite(ctx context.Context, key Key, value V, cache *CacheMap[V], store Store[V]) (Record[V], error) {
	if err := store.Put(ctx, key, value); err != nil {
		cache.Remove(key)
		return Record[V]{}, err
	}
	cache.Remove(key)
	p.logger.Infof("put %s: stored, cache invalidated", key)
	return Record[V]{Key: key, Value: value}, nil
}

// ResolveDelete only invalidates; the caller owns the store.
func (p *cacheAsidePolicy[V]) ResolveDelete(_ context.Context, key Key, cache *CacheMap[V], _ Store[V]) error {
	cache.Remove(key)
	p.logger.Infof("delete %s: cache invalidated", key)
	return nil
}

type readThroughPolicy[V any] struct {
	readAside[V]
}

func (p *readThroughPolicy[V]) Name() PolicyName { return ReadThrough }

func (p *readThroughPolicy[V]) Capabilities() Capability { return CapRead }

// ResolveRead lets the cache map load the key; concurrent misses wait on
// a single store read.
func (p *readThroughPolicy[V]) ResolveRead(ctx context.Context, key Key, cache *CacheMap[V], store Store[V]) (V, bool, error) {
	if rec, ok := cache.Get(key); ok && rec.Live() {
		p.metrics.IncrementHit()
		p.logger.Debugf("get %s: cache hit", key)
		return rec.Value, true, nil
	}
	p.metrics.IncrementMiss()
	return cache.GetOrLoad(ctx, key, func(ctx context.Context) (V, bool, error) {
		p.logger.Debugf("get %s: loading from store", key)
		return store.Get(ctx, key)
	})
}

func (p *readThroughPolicy[V]) ResolveWrite(context.Context, Key, V, *CacheMap[V], Store[V]) (Record[V], error) {
	return Record[V]{}, errors.Wrapf(ErrUnsupported, "%s write", ReadThrough)
}

func (p *readThroughPolicy[V]) ResolveDelete(context.Context, Key, *CacheMap[V], Store[V]) error {
	return errors.Wrapf(ErrUnsupported, "%s delete", ReadThrough)
}

type writeAroundPolicy[V any] struct {
	readAside[V]
}

func (p *writeAroundPolicy[V]) Name() PolicyName { return WriteAround }

// ResolveWrite writes to the store only and invalidates the cached copy.
func (p *writeAroundPolicy[V]) ResolveWrite(ctx context.Context, key Key, value V, cache *CacheMap[V], store Store[V]) (Record[V], error) {
	if err := store.Put(ctx, key, value); err != nil {
		cache.Remove(key)
		return Record[V]{}, err
	}
	cache.Remove(key)
	p.logger.Infof("put %s: stored, cache skipped", key)
	return Record[V]{Key: key, Value: value}, nil
}

func (p *writeAroundPolicy[V]) ResolveDelete(ctx context.Context, key Key, cache *CacheMap[V], store Store[V]) error {
	err := store.Delete(ctx, key)
	cache.Remove(key)
	if err != nil {
		return err
	}
	p.logger.Infof("delete %s: removed from store, cache invalidated", key)
	return nil
}

type writeThroughPolicy[V any] struct {
	readAside[V]
}

func (p *writeThroughPolicy[V]) Name() PolicyName { return WriteThrough }

// ResolveWrite writes to the store first and caches the value only once
// the store accepted it. A failed store write drops the cached copy since
// the store state is unknown after a timeout.
func (p *writeThroughPolicy[V]) ResolveWrite(ctx context.Context, key Key, value V, cache *CacheMap[V], store Store[V]) (Record[V], error) {
	if err := store.Put(ctx, key, value); err != nil {
		cache.Remove(key)
		return Record[V]{}, err
	}
	rec := cache.Put(key, Record[V]{Value: value})
	p.logger.Infof("put %s: stored and cached at version %d", key, rec.Version)
	return rec, nil
}

func (p *writeThroughPolicy[V]) ResolveDelete(ctx context.Context, key Key, cache *CacheMap[V], store Store[V]) error {
	err := store.Delete(ctx, key)
	cache.Remove(key)
	if err != nil {
		return err
	}
	p.logger.Infof("delete %s: removed from store and cache", key)
	return nil
}

type writeBackPolicy[V any] struct {
	readAside[V]
}

func (p *writeBackPolicy[V]) Name() PolicyName { return WriteBack }

// ResolveWrite updates the cache only and marks the record dirty. A
// pending delete for the key is cancelled.
func (p *writeBackPolicy[V]) ResolveWrite(_ context.Context, key Key, value V, cache *CacheMap[V], _ Store[V]) (Record[V], error) {
	rec, _ := cache.Compute(key, func(Record[V], bool) (Record[V], mapOp) {
		return Record[V]{Value: value, Dirty: true}, opStore
	})
	p.logger.Infof("put %s: cached dirty at version %d, store write deferred", key, rec.Version)
	return rec, nil
}

// ResolveDelete leaves a tombstone for the flusher. The tombstone is
// written even when the key is not cached, since the store may hold it.
func (p *writeBackPolicy[V]) ResolveDelete(_ context.Context, key Key, cache *CacheMap[V], _ Store[V]) error {
	rec, _ := cache.Compute(key, func(cur Record[V], ok bool) (Record[V], mapOp) {
		if ok && cur.Deleted {
			return cur, opKeep
		}
		return Record[V]{Dirty: true, Deleted: true}, opStore
	})
	p.logger.Infof("delete %s: marked for deletion at version %d", key, rec.Version)
	return nil
}
