package echo_record_cache

import (
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
)

func TestRedisClusterStore_Config(t *testing.T) {
	store := NewRedisClusterStore[User]()
	defer store.Close()

	var _ Store[User] = store

	cluster, ok := store.client.(*redis.ClusterClient)
	if assert.True(t, ok) {
		opt := cluster.Options()
		assert.Equal(t, []string{"localhost:17000"}, opt.Addrs)
		assert.Equal(t, 3*time.Second, opt.ReadTimeout)
		assert.Equal(t, opt.ReadTimeout, opt.WriteTimeout)
		assert.True(t, opt.RouteByLatency)
	}
	assert.Equal(t, DefaultRedisKeyPrefix, store.prefix)
}

func TestRedisClusterStore_KeepsExplicitTimeouts(t *testing.T) {
	store := NewRedisClusterStoreWithConfig[User](redis.ClusterOptions{
		Addrs:        []string{"localhost:17000", "localhost:17001"},
		ReadTimeout:  time.Second,
		WriteTimeout: 2 * time.Second,
	})
	defer store.Close()

	opt := store.client.(*redis.ClusterClient).Options()
	assert.Equal(t, time.Second, opt.ReadTimeout)
	assert.Equal(t, 2*time.Second, opt.WriteTimeout)
}
