// Package test holds helpers shared by the Redis backed tests.
package test

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

// NewRedisDB starts an in-process Redis server and a client connected to it.
func NewRedisDB() (*miniredis.Miniredis, redis.UniversalClient) {
	mredis, err := miniredis.Run()
	if err != nil {
		panic(err)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: mredis.Addr()})

	return mredis, redisClient
}

// NewRedisDBT is NewRedisDB with both ends closed when t finishes.
func NewRedisDBT(t testing.TB) (*miniredis.Miniredis, redis.UniversalClient) {
	t.Helper()
	mredis, client := NewRedisDB()
	t.Cleanup(func() {
		_ = client.Close()
		mredis.Close()
	})
	return mredis, client
}
