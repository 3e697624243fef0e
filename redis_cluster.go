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
	"time"

	"github.com/go-redis/redis/v8"
)

// NewRedisClusterStore creates a Redis Cluster backing store with default config
func NewRedisClusterStore[V any]() *RedisStore[V] {
	return NewRedisClusterStoreWithConfig[V](redis.ClusterOptions{
		Addrs: []string{"localhost:17000"},
	})
}

// NewRedisClusterStoreWithConfig creates a Redis Cluster backing store
func NewRedisClusterStoreWithConfig[V any](opt redis.ClusterOptions) *RedisStore[V] {
	if opt.ReadTimeout == 0 {
		opt.ReadTimeout = 3 * time.Second
	}
	if opt.WriteTimeout == 0 {
		opt.WriteTimeout = opt.ReadTimeout
	}
	opt.RouteByLatency = true

	return NewRedisStore[V](redis.NewClusterClient(&opt), RedisStoreConfig{})
}

// scanCluster runs a SCAN on every master. ForEachMaster visits the
// masters concurrently, so fn is called under a mutex.
func scanCluster(ctx context.Context, cluster *redis.ClusterClient, match string, fn func(string) error) error {
	var mu sync.Mutex
	return cluster.ForEachMaster(ctx, func(ctx context.Context, shard *redis.Client) error {
		return scanClient(ctx, shard, match, func(key string) error {
			mu.Lock()
			defer mu.Unlock()
			return fn(key)
		})
	})
}
