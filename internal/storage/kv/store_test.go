package kv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStores(t *testing.T) {
	backends := []Backend{BackendWAL, BackendLevelDB}

	for _, backend := range backends {
		t.Run(string(backend), func(t *testing.T) {
			dir := t.TempDir()

			store, err := Open(backend, dir)
			require.NoError(t, err)

			_, err = store.Get("missing")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, store.Put("k", []byte("v1")))
			require.NoError(t, store.Put("k", []byte("v2")))
			require.NoError(t, store.Put("other", []byte("x")))

			got, err := store.Get("k")
			require.NoError(t, err)
			assert.Equal(t, "v2", string(got))

			assert.Error(t, store.Put("", []byte("x")))
			require.NoError(t, store.Close())

			reopened, err := Open(backend, dir)
			require.NoError(t, err)
			defer reopened.Close()

			got, err = reopened.Get("k")
			require.NoError(t, err)
			assert.Equal(t, "v2", string(got))

			got, err = reopened.Get("other")
			require.NoError(t, err)
			assert.Equal(t, "x", string(got))
		})
	}
}

func TestWALStore_GetReturnsCopy(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Put("k", []byte("abc")))
	got, err := store.Get("k")
	require.NoError(t, err)
	got[0] = 'z'

	again, err := store.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(again))
}

func TestWALStore_NilReceiver(t *testing.T) {
	var store *WALStore
	_, err := store.Get("k")
	assert.Error(t, err)
	assert.Error(t, store.Put("k", nil))
	assert.Error(t, store.Close())
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open("redis", t.TempDir())
	assert.Error(t, err)
}
