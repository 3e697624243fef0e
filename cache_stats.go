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
	"sync/atomic"
	"time"
)

// CacheStats represents cache statistics
type CacheStats struct {
	Policy        PolicyName `json:"policy"`
	Hits          int64      `json:"hits"`
	Misses        int64      `json:"misses"`
	TotalRequest  int64      `json:"totalRequest"`
	HitRate       float64    `json:"hitRate"`
	Loads         int64      `json:"loads"`
	StoreWrites   int64      `json:"storeWrites"`
	StoreDeletes  int64      `json:"storeDeletes"`
	FlushCycles   int64      `json:"flushCycles"`
	Flushed       int64      `json:"flushed"`
	FlushFailures int64      `json:"flushFailures"`
	Superseded    int64      `json:"superseded"`
	CacheSize     int        `json:"cacheSize"`
	DirtyCount    int        `json:"dirtyCount"`
	LastUpdate    time.Time  `json:"lastUpdate"`
}

// CacheMetrics holds atomic counters for thread-safe statistics
type CacheMetrics struct {
	hits          int64
	misses        int64
	loads         int64
	storeWrites   int64
	storeDeletes  int64
	flushCycles   int64
	flushed       int64
	flushFailures int64
	superseded    int64
}

// IncrementHit atomically increments the hit counter
func (m *CacheMetrics) IncrementHit() {
	atomic.AddInt64(&m.hits, 1)
}

// IncrementMiss atomically increments the miss counter
func (m *CacheMetrics) IncrementMiss() {
	atomic.AddInt64(&m.misses, 1)
}

// IncrementLoad counts a backing store read
func (m *CacheMetrics) IncrementLoad() {
	atomic.AddInt64(&m.loads, 1)
}

// IncrementStoreWrite counts a successful backing store write
func (m *CacheMetrics) IncrementStoreWrite() {
	atomic.AddInt64(&m.storeWrites, 1)
}

// IncrementStoreDelete counts a successful backing store delete
func (m *CacheMetrics) IncrementStoreDelete() {
	atomic.AddInt64(&m.storeDeletes, 1)
}

// AddFlushCycle records the outcome of one flush cycle
func (m *CacheMetrics) AddFlushCycle(result FlushResult) {
	atomic.AddInt64(&m.flushCycles, 1)
	atomic.AddInt64(&m.flushed, int64(result.Persisted+result.Deleted))
	atomic.AddInt64(&m.flushFailures, int64(result.Failed))
	atomic.AddInt64(&m.superseded, int64(result.Superseded))
}

// GetStats returns current statistics
func (m *CacheMetrics) GetStats() CacheStats {
	hits := atomic.LoadInt64(&m.hits)
	misses := atomic.LoadInt64(&m.misses)
	totalRequest := hits + misses

	var hitRate float64
	if totalRequest > 0 {
		hitRate = float64(hits) / float64(totalRequest) * 100
	}

	return CacheStats{
		Hits:          hits,
		Misses:        misses,
		TotalRequest:  totalRequest,
		HitRate:       hitRate,
		Loads:         atomic.LoadInt64(&m.loads),
		StoreWrites:   atomic.LoadInt64(&m.storeWrites),
		StoreDeletes:  atomic.LoadInt64(&m.storeDeletes),
		FlushCycles:   atomic.LoadInt64(&m.flushCycles),
		Flushed:       atomic.LoadInt64(&m.flushed),
		FlushFailures: atomic.LoadInt64(&m.flushFailures),
		Superseded:    atomic.LoadInt64(&m.superseded),
		LastUpdate:    time.Now(),
	}
}

// Reset resets all counters
func (m *CacheMetrics) Reset() {
	atomic.StoreInt64(&m.hits, 0)
	atomic.StoreInt64(&m.misses, 0)
	atomic.StoreInt64(&m.loads, 0)
	atomic.StoreInt64(&m.storeWrites, 0)
	atomic.StoreInt64(&m.storeDeletes, 0)
	atomic.StoreInt64(&m.flushCycles, 0)
	atomic.StoreInt64(&m.flushed, 0)
	atomic.StoreInt64(&m.flushFailures, 0)
	atomic.StoreInt64(&m.superseded, 0)
}
