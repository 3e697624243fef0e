package echo_record_cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testStoreContract runs the behavior every backing store must share.
func testStoreContract(t *testing.T, store Store[User]) {
	ctx := context.Background()

	t.Run("Put, Get", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, 1, User{ID: 1, Name: "Alice", Email: "alice@example.com"}))

		user, found, err := store.Get(ctx, 1)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, User{ID: 1, Name: "Alice", Email: "alice@example.com"}, user)
	})

	t.Run("Get missing", func(t *testing.T) {
		user, found, err := store.Get(ctx, 404)
		require.NoError(t, err)
		assert.False(t, found)
		assert.Equal(t, User{}, user)
	})

	t.Run("Put overwrites", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, 1, User{ID: 1, Name: "Alicia"}))
		user, _, err := store.Get(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "Alicia", user.Name)
	})

	t.Run("ListKeys", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, 2, User{ID: 2, Name: "Bob"}))
		require.NoError(t, store.Put(ctx, 30, User{ID: 30, Name: "Charlie"}))

		keys, err := store.ListKeys(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []Key{1, 2, 30}, keys)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, 2))
		require.NoError(t, store.Delete(ctx, 2))

		_, found, err := store.Get(ctx, 2)
		require.NoError(t, err)
		assert.False(t, found)

		keys, err := store.ListKeys(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []Key{1, 30}, keys)
	})
}

func TestMemoryStore(t *testing.T) {
	testStoreContract(t, NewMemoryStore[User]())
}

func TestMemoryStore_Seed(t *testing.T) {
	seed := SeedUsers()
	store := NewMemoryStoreWithConfig(MemoryStoreConfig[User]{Seed: seed})
	assert.Equal(t, 3, store.Size())

	// the seed map is copied
	delete(seed, 1)
	assert.Equal(t, 3, store.Size())

	keys, err := store.ListKeys(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Key{1, 2, 3}, keys)

	require.NoError(t, store.Clear())
	assert.Equal(t, 0, store.Size())
}

func TestMemoryStore_Latency(t *testing.T) {
	store := NewMemoryStoreWithConfig(MemoryStoreConfig[User]{Latency: 30 * time.Millisecond})

	start := time.Now()
	require.NoError(t, store.Put(context.Background(), 1, User{Name: "slow"}))
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := store.Get(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
}
