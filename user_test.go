package echo_record_cache

import (
	"context"
	stderrors "errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUser(t *testing.T) {
	assert.ErrorIs(t, User{Name: "  "}.Validate(), ErrInvalidInput)
	assert.NoError(t, User{Name: "Alice"}.Validate())

	u := User{ID: 3, Name: "Charlie"}.WithKey(9)
	assert.Equal(t, Key(9), u.ID)
	assert.Equal(t, Key(9), keyOf(u))
	assert.Equal(t, Key(9), stampKey[User](9, User{}).ID)
	assert.Equal(t, Key(0), keyOf("plain"))
}

func TestUserFromQuery(t *testing.T) {
	user, ok := UserFromQuery(2, url.Values{"name": {"Bob"}, "email": {"bob@example.com"}})
	assert.True(t, ok)
	assert.Equal(t, User{ID: 2, Name: "Bob", Email: "bob@example.com"}, user)

	_, ok = UserFromQuery(2, url.Values{"other": {"x"}})
	assert.False(t, ok)
}

func TestParseKey(t *testing.T) {
	key, err := ParseKey("42")
	assert.NoError(t, err)
	assert.Equal(t, Key(42), key)
	assert.Equal(t, "42", key.String())

	_, err = ParseKey("4x")
	assert.Error(t, err)
}

func TestErrorClassification(t *testing.T) {
	err := storeFault(errInjected, "get", 5)
	assert.True(t, IsStoreFault(err))
	assert.False(t, IsNotFound(err))
	assert.Nil(t, storeFault(nil, "get", 5))
	assert.Equal(t, err.Error(), "store get 5: injected store failure")

	// the standard library sees the same classification
	assert.True(t, stderrors.Is(err, ErrStoreFault))
	assert.True(t, stderrors.Is(err, errInjected))
	assert.ErrorIs(t, err, ErrStoreFault)

	input := invalidInput("key must be positive, got %d", 0)
	assert.True(t, stderrors.Is(input, ErrInvalidInput))
	assert.False(t, stderrors.Is(input, ErrStoreFault))
	assert.Equal(t, "key must be positive, got 0", input.Error())
}

func TestErrorClassification_Engine(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, WriteThrough, NewMemoryStore[User]())

	_, err := engine.Put(ctx, 1, User{})
	assert.True(t, stderrors.Is(err, ErrInvalidInput))

	_, err = engine.Get(ctx, 0)
	assert.True(t, stderrors.Is(err, ErrInvalidInput))

	_, err = engine.Get(ctx, 9)
	assert.True(t, stderrors.Is(err, ErrNotFound))

	store := newHookStore[User](nil)
	store.setFailGets(true)
	faulty := newTestEngine(t, WriteThrough, store)
	_, err = faulty.Get(ctx, 1)
	assert.True(t, stderrors.Is(err, ErrStoreFault))
}
