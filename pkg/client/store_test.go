package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBadgerStore(t *testing.T) {
	store := newLocalStore(t)

	_, err := store.Get(KeyCart)
	assert.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, store.Set(KeyToken, []byte("abc")))
	value, err := store.Get(KeyToken)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), value)

	require.NoError(t, store.Delete(KeyToken))
	require.NoError(t, store.Delete(KeyToken))
	_, err = store.Get(KeyToken)
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestBadgerStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := OpenBadgerStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Set(KeyCheckoutKey, []byte("key-1")))
	require.NoError(t, store.Close())

	store, err = OpenBadgerStore(dir)
	require.NoError(t, err)
	defer store.Close()

	value, err := store.Get(KeyCheckoutKey)
	require.NoError(t, err)
	assert.Equal(t, "key-1", string(value))
}
