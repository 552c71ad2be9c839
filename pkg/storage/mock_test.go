package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	_, err := m.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.Set(ctx, "a", "1"))
	v, err := m.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "1", v)

	require.NoError(t, m.Remove(ctx, "a"))
	_, err = m.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, m.Remove(ctx, "a"), "removing a missing key is not an error")

	m.SetFailure(ErrUnavailable)
	assert.ErrorIs(t, m.Set(ctx, "a", "1"), ErrUnavailable)
	m.SetFailure(nil)

	m.SetPingError(errors.New("down"))
	assert.Error(t, m.Ping(ctx))
}

func TestPrefixed(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	a := WithPrefix(m, "session:a:")
	b := WithPrefix(m, "session:b:")

	require.NoError(t, a.Set(ctx, "campfire.save", "A"))
	require.NoError(t, b.Set(ctx, "campfire.save", "B"))

	v, err := a.Get(ctx, "campfire.save")
	require.NoError(t, err)
	assert.Equal(t, "A", v)
	assert.Equal(t, []string{"session:a:campfire.save", "session:b:campfire.save"}, m.Keys("session:"))

	require.NoError(t, b.Remove(ctx, "campfire.save"))
	assert.Equal(t, []string{"session:a:campfire.save"}, m.Keys("session:"))
	assert.NoError(t, a.Close())
}
