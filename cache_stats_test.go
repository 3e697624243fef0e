package echo_record_cache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCacheMetrics(t *testing.T) {
	metrics := &CacheMetrics{}

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%4 == 0 {
				metrics.IncrementMiss()
			} else {
				metrics.IncrementHit()
			}
		}(i)
	}
	wg.Wait()

	metrics.IncrementLoad()
	metrics.IncrementStoreWrite()
	metrics.IncrementStoreDelete()
	metrics.AddFlushCycle(FlushResult{Persisted: 3, Deleted: 1, Superseded: 2, Failed: 4})

	stats := metrics.GetStats()
	assert.Equal(t, int64(75), stats.Hits)
	assert.Equal(t, int64(25), stats.Misses)
	assert.Equal(t, int64(100), stats.TotalRequest)
	assert.Equal(t, 75.0, stats.HitRate)
	assert.Equal(t, int64(1), stats.Loads)
	assert.Equal(t, int64(1), stats.StoreWrites)
	assert.Equal(t, int64(1), stats.StoreDeletes)
	assert.Equal(t, int64(1), stats.FlushCycles)
	assert.Equal(t, int64(4), stats.Flushed)
	assert.Equal(t, int64(2), stats.Superseded)
	assert.Equal(t, int64(4), stats.FlushFailures)
	assert.False(t, stats.LastUpdate.IsZero())

	metrics.Reset()
	stats = metrics.GetStats()
	assert.Equal(t, int64(0), stats.TotalRequest)
	assert.Equal(t, 0.0, stats.HitRate)
	assert.Equal(t, int64(0), stats.FlushCycles)
}
