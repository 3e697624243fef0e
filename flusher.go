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
	"time"

	"github.com/cockroachdb/errors"
)

// FlushState is the flusher's position in its cycle.
type FlushState int32

const (
	Idle FlushState = iota
	Scanning
	Flushing
)

func (s FlushState) String() string {
	switch s {
	case Scanning:
		return "scanning"
	case Flushing:
		return "flushing"
	}
	return "idle"
}

// FlushResult counts the outcome of one flush cycle.
type FlushResult struct {
	// Persisted records were written to the store and cleaned.
	Persisted int `json:"persisted"`

	// Deleted tombstones were deleted from the store and evicted.
	Deleted int `json:"deleted"`

	// Superseded records were written (or deleted) in the store but a
	// newer foreground write arrived meanwhile, so they stay dirty.
	Superseded int `json:"superseded"`

	// Failed records hit a store error and stay dirty for the next cycle.
	Failed int `json:"failed"`
}

// drainBackoff is how long Drain waits after a cycle that made no progress.
const drainBackoff = 50 * time.Millisecond

// Flusher persists dirty write-back records on a fixed interval. Only one
// cycle runs at a time; the ticker and FlushNow share the cycle lock.
type Flusher[V any] struct {
	cache    *CacheMap[V]
	store    Store[V]
	interval time.Duration
	metrics  *CacheMetrics
	logger   Logger

	cycle    sync.Mutex
	state    atomic.Int32
	flushing atomic.Int64
	started  atomic.Bool

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func newFlusher[V any](cache *CacheMap[V], store Store[V], interval time.Duration, metrics *CacheMetrics, logger Logger) *Flusher[V] {
	return &Flusher[V]{
		cache:    cache,
		store:    store,
		interval: interval,
		metrics:  metrics,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the background loop.
func (f *Flusher[V]) Start() {
	if !f.started.CompareAndSwap(false, true) {
		return
	}
	go f.loop()
	f.logger.Infof("write-back flusher started, interval %s", f.interval)
}

func (f *Flusher[V]) loop() {
	defer close(f.done)

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := f.FlushNow(context.Background()); err != nil {
				f.logger.Errorf("write-back flush: %v", err)
			}
		case <-f.stop:
			return
		}
	}
}

// Stop halts the background loop and waits for a running cycle to end.
// It does not flush; use Drain for that.
func (f *Flusher[V]) Stop() {
	f.stopOnce.Do(func() {
		close(f.stop)
		if f.started.Load() {
			<-f.done
		}
	})
}

// State returns the current cycle state.
func (f *Flusher[V]) State() FlushState {
	return FlushState(f.state.Load())
}

// FlushingKey returns the key being persisted while State is Flushing.
func (f *Flusher[V]) FlushingKey() (Key, bool) {
	if f.State() != Flushing {
		return 0, false
	}
	return Key(f.flushing.Load()), true
}

// FlushNow runs one cycle: take a stable list of dirty keys, persist
// each, and clear the dirty flag only if the record was not written
// again meanwhile. Store failures do not stop the cycle; the affected
// records stay dirty and the first failure is returned.
func (f *Flusher[V]) FlushNow(ctx context.Context) (FlushResult, error) {
	f.cycle.Lock()
	defer f.cycle.Unlock()
	defer f.state.Store(int32(Idle))

	var (
		result   FlushResult
		firstErr error
	)

	f.state.Store(int32(Scanning))
	dirty := f.cache.Dirty()

	for i, snap := range dirty {
		if err := ctx.Err(); err != nil {
			result.Failed += len(dirty) - i
			if firstErr == nil {
				firstErr = err
			}
			break
		}

		rec, ok := f.cache.Get(snap.Key)
		if !ok || !rec.Dirty {
			// cleaned or invalidated since the scan
			continue
		}

		f.flushing.Store(int64(rec.Key))
		f.state.Store(int32(Flushing))

		if rec.Deleted {
			if err := f.store.Delete(ctx, rec.Key); err != nil {
				f.fail(&result, &firstErr, rec, err)
				continue
			}
			if f.cache.CompareAndRemove(rec.Key, rec.Version) {
				result.Deleted++
				f.logger.Infof("flush %s: deleted from store", rec.Key)
			} else {
				result.Superseded++
				f.logger.Infof("flush %s: deleted, superseded by a newer write", rec.Key)
			}
			continue
		}

		if err := f.store.Put(ctx, rec.Key, rec.Value); err != nil {
			f.fail(&result, &firstErr, rec, err)
			continue
		}
		if f.cache.CompareAndClean(rec.Key, rec.Version) {
			result.Persisted++
			f.logger.Infof("flush %s: persisted version %d", rec.Key, rec.Version)
		} else {
			result.Superseded++
			f.logger.Infof("flush %s: persisted version %d, newer write pending", rec.Key, rec.Version)
		}
	}

	f.metrics.AddFlushCycle(result)
	if len(dirty) > 0 {
		f.logger.Debugf("flush cycle: %d dirty, %d persisted, %d deleted, %d superseded, %d failed",
			len(dirty), result.Persisted, result.Deleted, result.Superseded, result.Failed)
	}
	if firstErr != nil {
		return result, errors.Wrapf(firstErr, "flush: %d of %d records failed", result.Failed, len(dirty))
	}
	return result, nil
}

func (f *Flusher[V]) fail(result *FlushResult, firstErr *error, rec Record[V], err error) {
	result.Failed++
	if *firstErr == nil {
		*firstErr = err
	}
	f.logger.Errorf("flush %s: %v, will retry", rec.Key, err)
}

// Drain stops the loop and flushes until no dirty record is left or ctx
// ends. It returns an error naming how many records could not be
// persisted.
func (f *Flusher[V]) Drain(ctx context.Context) error {
	f.Stop()

	for {
		result, err := f.FlushNow(ctx)
		left := f.cache.DirtyCount()
		if left == 0 {
			f.logger.Infof("write-back drained")
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			if err == nil {
				err = ctxErr
			}
			return errors.Wrapf(err, "drain: %d dirty records left", left)
		}
		if result.Persisted+result.Deleted == 0 {
			timer := time.NewTimer(drainBackoff)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
			}
		}
	}
}
