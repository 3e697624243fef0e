package echo_record_cache

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	redisCache "github.com/go-redis/cache/v8"
	"github.com/go-redis/redis/v8"
)

// DefaultRedisKeyPrefix namespaces record keys inside Redis.
const DefaultRedisKeyPrefix = "record"

const scanCount = 100

type (
	// RedisStore is the Redis backing store. Values are msgpack encoded by
	// go-redis/cache and never expire.
	RedisStore[V any] struct {
		client redis.UniversalClient
		codec  *redisCache.Cache
		prefix string
	}

	// RedisStoreConfig represents configuration for RedisStore
	RedisStoreConfig struct {
		Prefix string
	}
)

// NewRedisStore wraps an existing client. The caller owns the client.
func NewRedisStore[V any](client redis.UniversalClient, config RedisStoreConfig) *RedisStore[V] {
	if config.Prefix == "" {
		config.Prefix = DefaultRedisKeyPrefix
	}
	return &RedisStore[V]{
		client: client,
		codec: redisCache.New(&redisCache.Options{
			Redis: client,
		}),
		prefix: config.Prefix,
	}
}

// NewRedisStoreWithConfig creates a store on a standalone Redis server.
func NewRedisStoreWithConfig[V any](opt redis.Options) *RedisStore[V] {
	return NewRedisStore[V](redis.NewClient(&opt), RedisStoreConfig{})
}

func (store *RedisStore[V]) redisKey(key Key) string {
	return store.prefix + ":" + key.String()
}

// Get implements the Store interface Get method.
func (store *RedisStore[V]) Get(ctx context.Context, key Key) (V, bool, error) {
	var value V
	b, err := store.client.Get(ctx, store.redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return value, false, nil
	}
	if err != nil {
		return value, false, err
	}
	if err := store.codec.Unmarshal(b, &value); err != nil {
		var zero V
		return zero, false, errors.Wrapf(err, "decode %s", key)
	}
	return value, true, nil
}

// Put implements the Store interface Put method. go-redis/cache only
// encodes the value; the write goes straight to the client because Item
// TTLs can not express "never expires".
func (store *RedisStore[V]) Put(ctx context.Context, key Key, value V) error {
	b, err := store.codec.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "encode %s", key)
	}
	return store.client.Set(ctx, store.redisKey(key), b, 0).Err()
}

// Delete implements the Store interface Delete method.
func (store *RedisStore[V]) Delete(ctx context.Context, key Key) error {
	return store.codec.Delete(ctx, store.redisKey(key))
}

// ListKeys implements the Store interface ListKeys method. On a cluster
// every master is scanned.
func (store *RedisStore[V]) ListKeys(ctx context.Context) ([]Key, error) {
	var keys []Key
	err := store.scan(ctx, func(redisKey string) error {
		key, err := ParseKey(strings.TrimPrefix(redisKey, store.prefix+":"))
		if err != nil {
			// foreign key under our prefix, skip it
			return nil
		}
		keys = append(keys, key)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// Clear removes every record under the store prefix.
func (store *RedisStore[V]) Clear() error {
	ctx := context.Background()
	return store.scan(ctx, func(redisKey string) error {
		return store.client.Del(ctx, redisKey).Err()
	})
}

// Size returns the number of records under the store prefix.
func (store *RedisStore[V]) Size() int {
	keys, err := store.ListKeys(context.Background())
	if err != nil {
		return 0
	}
	return len(keys)
}

func (store *RedisStore[V]) scan(ctx context.Context, fn func(string) error) error {
	match := store.prefix + ":*"
	if cluster, ok := store.client.(*redis.ClusterClient); ok {
		return scanCluster(ctx, cluster, match, fn)
	}
	return scanClient(ctx, store.client, match, fn)
}

func scanClient(ctx context.Context, client redis.Cmdable, match string, fn func(string) error) error {
	iter := client.Scan(ctx, 0, match, scanCount).Iterator()
	for iter.Next(ctx) {
		if err := fn(iter.Val()); err != nil {
			return err
		}
	}
	return iter.Err()
}

// Close closes the underlying client.
func (store *RedisStore[V]) Close() error {
	return store.client.Close()
}
