package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	cache "github.com/kenshin579/echo-record-cache"
	"github.com/kenshin579/echo-record-cache/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyFlags(t *testing.T) {
	cmd := newCommand()
	require.NoError(t, cmd.Flags().Parse([]string{
		"--policy", "write-back",
		"--store", "bolt",
		"--bolt-path", "/tmp/users.db",
		"--flush-interval", "250ms",
	}))

	config := cache.DefaultFileConfig
	applyFlags(cmd, &config)

	assert.Equal(t, "write-back", config.Policy)
	assert.Equal(t, cache.StoreBolt, config.Store.Kind)
	assert.Equal(t, "/tmp/users.db", config.Store.BoltPath)
	assert.Equal(t, 250*time.Millisecond, config.FlushInterval)
	// flags left alone keep the file value
	assert.Equal(t, cache.DefaultFileConfig.Addr, config.Addr)
	assert.NoError(t, config.Validate())
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	t.Run("memory is seeded", func(t *testing.T) {
		store, closeStore, err := openStore(ctx, cache.StoreConfig{Kind: cache.StoreMemory})
		require.NoError(t, err)
		defer closeStore()

		keys, err := store.ListKeys(ctx)
		require.NoError(t, err)
		assert.Equal(t, []cache.Key{1, 2, 3}, keys)
	})

	t.Run("bolt is seeded once", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "users.db")
		store, closeStore, err := openStore(ctx, cache.StoreConfig{Kind: cache.StoreBolt, BoltPath: path})
		require.NoError(t, err)
		require.NoError(t, store.Delete(ctx, 3))
		require.NoError(t, closeStore())

		store, closeStore, err = openStore(ctx, cache.StoreConfig{Kind: cache.StoreBolt, BoltPath: path})
		require.NoError(t, err)
		defer closeStore()

		keys, err := store.ListKeys(ctx)
		require.NoError(t, err)
		assert.Equal(t, []cache.Key{1, 2}, keys)
	})

	t.Run("redis is seeded", func(t *testing.T) {
		db, _ := test.NewRedisDB()
		defer db.Close()

		store, closeStore, err := openStore(ctx, cache.StoreConfig{Kind: cache.StoreRedis, RedisAddr: db.Addr()})
		require.NoError(t, err)
		defer closeStore()

		alice, found, err := store.Get(ctx, 1)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "Alice", alice.Name)
	})

	t.Run("unknown kind", func(t *testing.T) {
		_, _, err := openStore(ctx, cache.StoreConfig{Kind: "floppy"})
		assert.Error(t, err)
	})
}
