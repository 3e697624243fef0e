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
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
)

const keyLockStripes = 64

// keyLocks serializes writers of the same key so the store and the cache
// apply their writes in the same order. Only the stripe is held across
// the store call, never the cache map lock.
type keyLocks [keyLockStripes]sync.Mutex

func (l *keyLocks) lock(key Key) func() {
	m := &l[uint64(key)%keyLockStripes]
	m.Lock()
	return m.Unlock
}

// keyAllocator hands out keys for writes that did not supply one.
type keyAllocator struct {
	mutex  sync.Mutex
	last   Key
	seeded bool
}

// next returns a fresh key. With monotonic set the store is only listed
// once to seed a process-wide counter, since write-back records may not
// have reached the store yet. Otherwise the store is the source of truth
// and the key is one past its maximum (or past the last key handed out,
// if that is higher).
func (a *keyAllocator) next(ctx context.Context, list func(context.Context) ([]Key, error), monotonic bool) (Key, error) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if !monotonic || !a.seeded {
		keys, err := list(ctx)
		if err != nil {
			return 0, err
		}
		for _, k := range keys {
			if k > a.last {
				a.last = k
			}
		}
		a.seeded = true
	}
	a.last++
	return a.last, nil
}

// observe keeps the counter ahead of caller supplied keys.
func (a *keyAllocator) observe(key Key) {
	a.mutex.Lock()
	if key > a.last {
		a.last = key
	}
	a.mutex.Unlock()
}

// Engine is a keyed record cache in front of a backing store. The
// configured policy decides how reads and writes are routed; write-back
// engines also run a Flusher.
//
// Write-back acknowledges a write once the cache holds it. The write is
// at risk only between that acknowledgement and the next successful
// flush, and only if the process stops without Close.
type Engine[V any] struct {
	config  Config
	policy  Policy[V]
	cache   *CacheMap[V]
	store   *guardedStore[V]
	metrics *CacheMetrics
	logger  Logger
	flusher *Flusher[V]

	locks keyLocks
	keys  keyAllocator

	// gate is held shared by every write for its whole duration and
	// exclusively by Close while it flips closed, so a drain never starts
	// with a write still on its way into the cache.
	gate   sync.RWMutex
	closed atomic.Bool
}

// NewEngine creates an engine with default config
func NewEngine[V any](store Store[V]) (*Engine[V], error) {
	return NewEngineWithConfig(store, DefaultConfig)
}

// NewEngineWithConfig creates an engine. Zero config fields take their
// DefaultConfig value. A write-back engine starts flushing immediately.
func NewEngineWithConfig[V any](store Store[V], config Config) (*Engine[V], error) {
	if store == nil {
		return nil, invalidInput("backing store must be provided")
	}
	if config.Policy == "" {
		config.Policy = DefaultConfig.Policy
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = DefaultConfig.FlushInterval
	}
	if config.DrainTimeout <= 0 {
		config.DrainTimeout = DefaultConfig.DrainTimeout
	}
	if config.StoreTimeout == 0 {
		config.StoreTimeout = DefaultConfig.StoreTimeout
	}
	if config.Logger == nil {
		config.Logger = NewLogger("record-cache", ParseLogLevel("info"))
	}

	name, err := ParsePolicy(string(config.Policy))
	if err != nil {
		return nil, err
	}
	config.Policy = name

	metrics := &CacheMetrics{}
	policy, err := NewPolicy[V](name, metrics, config.Logger)
	if err != nil {
		return nil, err
	}

	e := &Engine[V]{
		config:  config,
		policy:  policy,
		cache:   NewCacheMap[V](),
		store:   newGuardedStore(store, config.StoreTimeout, metrics),
		metrics: metrics,
		logger:  config.Logger,
	}
	if name == WriteBack {
		e.flusher = newFlusher[V](e.cache, e.store, config.FlushInterval, metrics, config.Logger)
		e.flusher.Start()
	}
	e.logger.Infof("cache engine ready, policy %s", name)
	return e, nil
}

// Policy returns the configured policy name.
func (e *Engine[V]) Policy() PolicyName {
	return e.policy.Name()
}

// Flusher returns the write-back flusher, or nil for other policies.
func (e *Engine[V]) Flusher() *Flusher[V] {
	return e.flusher
}

func (e *Engine[V]) writeBack() bool {
	return e.flusher != nil
}

func checkKey(key Key) error {
	if key <= 0 {
		return invalidInput("key must be positive, got %d", key)
	}
	return nil
}

func (e *Engine[V]) checkWritable() error {
	if e.closed.Load() {
		return ErrClosed
	}
	if !e.policy.Capabilities().Has(CapWrite) {
		return errors.Wrapf(ErrUnsupported, "%s write", e.policy.Name())
	}
	return nil
}

// enter admits a write. The returned func must be called when the write
// is done.
func (e *Engine[V]) enter() (func(), error) {
	e.gate.RLock()
	if err := e.checkWritable(); err != nil {
		e.gate.RUnlock()
		return nil, err
	}
	return e.gate.RUnlock, nil
}

// lockKey serializes writers of one key. Synchronous policies need it to
// keep store and cache in step; write-back needs it so an update's
// existence check and its write are not split by a delete.
func (e *Engine[V]) lockKey(key Key) func() {
	return e.locks.lock(key)
}

// Get returns the value for key, or ErrNotFound.
func (e *Engine[V]) Get(ctx context.Context, key Key) (V, error) {
	var zero V
	if err := checkKey(key); err != nil {
		return zero, err
	}
	value, found, err := e.policy.ResolveRead(ctx, key, e.cache, e.store)
	if err != nil {
		e.logger.Errorf("get %s: %v", key, err)
		return zero, err
	}
	if !found {
		return zero, errors.Wrapf(ErrNotFound, "key %s", key)
	}
	return value, nil
}

// Put creates or replaces the value for key. A zero key asks the engine
// to allocate one. The stored record is returned.
func (e *Engine[V]) Put(ctx context.Context, key Key, value V) (Record[V], error) {
	leave, err := e.enter()
	if err != nil {
		return Record[V]{}, err
	}
	defer leave()

	if key < 0 {
		return Record[V]{}, invalidInput("key must not be negative, got %d", key)
	}
	if key == 0 {
		allocated, err := e.allocate(ctx)
		if err != nil {
			return Record[V]{}, err
		}
		key = allocated
	}
	return e.write(ctx, key, value, false)
}

// Update replaces the value for an existing key. It returns ErrNotFound
// when the key exists neither in the cache nor in the store.
func (e *Engine[V]) Update(ctx context.Context, key Key, value V) (Record[V], error) {
	leave, err := e.enter()
	if err != nil {
		return Record[V]{}, err
	}
	defer leave()

	if err := checkKey(key); err != nil {
		return Record[V]{}, err
	}
	return e.write(ctx, key, value, true)
}

func (e *Engine[V]) write(ctx context.Context, key Key, value V, mustExist bool) (Record[V], error) {
	value = stampKey(key, value)
	if err := validate(value); err != nil {
		return Record[V]{}, classify(errors.Wrapf(err, "key %s", key), ErrInvalidInput)
	}

	unlock := e.lockKey(key)
	defer unlock()

	if mustExist {
		exists, err := e.exists(ctx, key)
		if err != nil {
			return Record[V]{}, err
		}
		if !exists {
			e.logger.Warnf("update %s: not found", key)
			return Record[V]{}, errors.Wrapf(ErrNotFound, "key %s", key)
		}
	}

	rec, err := e.policy.ResolveWrite(ctx, key, value, e.cache, e.store)
	if err != nil {
		e.logger.Errorf("put %s: %v", key, err)
		return Record[V]{}, err
	}
	e.keys.observe(key)
	return rec, nil
}

// exists decides whether an update may proceed. A live cached record
// counts; a pending write-back delete does not.
func (e *Engine[V]) exists(ctx context.Context, key Key) (bool, error) {
	if rec, ok := e.cache.Get(key); ok {
		return rec.Live(), nil
	}
	_, found, err := e.store.Get(ctx, key)
	return found, err
}

func (e *Engine[V]) allocate(ctx context.Context) (Key, error) {
	key, err := e.keys.next(ctx, e.store.ListKeys, e.writeBack())
	if err != nil {
		return 0, err
	}
	e.logger.Debugf("allocated key %s", key)
	return key, nil
}

// Delete removes key. Deleting an absent key is not an error.
func (e *Engine[V]) Delete(ctx context.Context, key Key) error {
	leave, err := e.enter()
	if err != nil {
		return err
	}
	defer leave()

	if err := checkKey(key); err != nil {
		return err
	}

	unlock := e.lockKey(key)
	defer unlock()

	if err := e.policy.ResolveDelete(ctx, key, e.cache, e.store); err != nil {
		e.logger.Errorf("delete %s: %v", key, err)
		return err
	}
	return nil
}

// Invalidate drops the cached copy of key without touching the store. A
// write-back record that is not yet persisted is kept.
func (e *Engine[V]) Invalidate(key Key) {
	if !e.writeBack() {
		e.cache.Remove(key)
		e.logger.Infof("invalidate %s", key)
		return
	}
	if e.cache.RemoveClean(key) {
		e.logger.Infof("invalidate %s", key)
	} else if rec, ok := e.cache.Get(key); ok && rec.Dirty {
		e.logger.Warnf("invalidate %s: kept, write pending", key)
	}
}

// Clear empties the cache without touching the store. In write-back mode
// records with pending writes are kept.
func (e *Engine[V]) Clear() {
	before := e.cache.Len()
	if e.writeBack() {
		kept := e.cache.ClearClean()
		e.logger.Infof("cache cleared, %d records dropped, %d pending writes kept", before-kept, kept)
		return
	}
	e.cache.Clear()
	e.logger.Infof("cache cleared, %d records dropped", before)
}

// SnapshotCache returns a copy of every cached record.
func (e *Engine[V]) SnapshotCache() map[Key]Record[V] {
	return e.cache.Records()
}

// SnapshotStore returns a copy of the backing store contents. Keys that
// disappear while the copy is taken are skipped.
func (e *Engine[V]) SnapshotStore(ctx context.Context) (map[Key]V, error) {
	keys, err := e.store.ListKeys(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[Key]V, len(keys))
	for _, key := range keys {
		value, found, err := e.store.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if found {
			out[key] = value
		}
	}
	return out, nil
}

// FlushNow runs one write-back flush cycle. It is a no-op for other
// policies.
func (e *Engine[V]) FlushNow(ctx context.Context) (FlushResult, error) {
	if e.flusher == nil {
		return FlushResult{}, nil
	}
	return e.flusher.FlushNow(ctx)
}

// Close stops the engine. A write-back engine flushes every pending
// record first, bounded by DrainTimeout and ctx. Close waits for writes
// already admitted to finish; later writes fail with ErrClosed. Reads
// keep working.
func (e *Engine[V]) Close(ctx context.Context) error {
	e.gate.Lock()
	already := e.closed.Swap(true)
	e.gate.Unlock()
	if already {
		return nil
	}
	if e.flusher == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, e.config.DrainTimeout)
	defer cancel()
	if err := e.flusher.Drain(ctx); err != nil {
		e.logger.Errorf("close: %v", err)
		return err
	}
	return nil
}

// Stats returns current statistics
func (e *Engine[V]) Stats() CacheStats {
	stats := e.metrics.GetStats()
	stats.Policy = e.policy.Name()
	stats.CacheSize = e.cache.Len()
	stats.DirtyCount = e.cache.DirtyCount()
	return stats
}

// ResetStats resets cache statistics
func (e *Engine[V]) ResetStats() {
	e.metrics.Reset()
}
