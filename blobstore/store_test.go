package blobstore

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStoreRoundTrip(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	w, err := store.Create(ctx, "payload.bin")
	require.NoError(t, err)
	_, err = w.Write([]byte("hello "))
	require.NoError(t, err)
	_, err = w.Write([]byte("archive"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	b, err := store.Open(ctx, "payload.bin")
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, int64(13), b.Size())

	data, err := ReadAll(b)
	require.NoError(t, err)
	assert.Equal(t, "hello archive", string(data))

	p := make([]byte, 7)
	n, err := b.ReadAt(p, 6)
	require.NoError(t, err)
	assert.Equal(t, "archive", string(p[:n]))
}

func TestLocalStore(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		testStoreRoundTrip(t, NewLocalStore(t.TempDir()))
	})

	t.Run("OpenMissing", func(t *testing.T) {
		store := NewLocalStore(t.TempDir())
		_, err := store.Open(context.Background(), "nope.bin")
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("NoPartialFileOnAbort", func(t *testing.T) {
		dir := t.TempDir()
		store := NewLocalStore(dir)

		w, err := store.Create(context.Background(), "half.bin")
		require.NoError(t, err)
		_, err = w.Write([]byte("incomplete"))
		require.NoError(t, err)
		// Blob is not closed: the final name must not exist yet.
		_, statErr := os.Stat(filepath.Join(dir, "half.bin"))
		assert.True(t, errors.Is(statErr, os.ErrNotExist))
		require.NoError(t, w.Close())

		_, statErr = os.Stat(filepath.Join(dir, "half.bin"))
		assert.NoError(t, statErr)
	})

	t.Run("AbortDiscards", func(t *testing.T) {
		dir := t.TempDir()
		store := NewLocalStore(dir)

		w, err := store.Create(context.Background(), "gone.bin")
		require.NoError(t, err)
		_, err = w.Write([]byte("half-written"))
		require.NoError(t, err)
		require.NoError(t, w.Abort())

		_, statErr := os.Stat(filepath.Join(dir, "gone.bin"))
		assert.True(t, errors.Is(statErr, os.ErrNotExist))

		// The temp file is gone too.
		names, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, names)
	})

	t.Run("ReadAtPastEnd", func(t *testing.T) {
		store := NewLocalStore(t.TempDir())
		w, err := store.Create(context.Background(), "tiny.bin")
		require.NoError(t, err)
		_, err = w.Write([]byte("xy"))
		require.NoError(t, err)
		require.NoError(t, w.Close())

		b, err := store.Open(context.Background(), "tiny.bin")
		require.NoError(t, err)
		defer b.Close()

		_, err = b.ReadAt(make([]byte, 1), 10)
		assert.Equal(t, io.EOF, err)
	})
}

func TestMemoryStore(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		testStoreRoundTrip(t, NewMemoryStore())
	})

	t.Run("OpenMissing", func(t *testing.T) {
		_, err := NewMemoryStore().Open(context.Background(), "nope.bin")
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("AbortKeepsPrevious", func(t *testing.T) {
		ctx := context.Background()
		store := NewMemoryStore()

		w, err := store.Create(ctx, "a")
		require.NoError(t, err)
		_, err = w.Write([]byte("good"))
		require.NoError(t, err)
		require.NoError(t, w.Close())

		w, err = store.Create(ctx, "a")
		require.NoError(t, err)
		_, err = w.Write([]byte("bad"))
		require.NoError(t, err)
		require.NoError(t, w.Abort())

		b, err := store.Open(ctx, "a")
		require.NoError(t, err)
		defer b.Close()
		data, err := ReadAll(b)
		require.NoError(t, err)
		assert.Equal(t, "good", string(data))
	})

	t.Run("Delete", func(t *testing.T) {
		ctx := context.Background()
		store := NewMemoryStore()

		w, err := store.Create(ctx, "a")
		require.NoError(t, err)
		require.NoError(t, w.Close())

		require.NoError(t, store.Delete(ctx, "a"))
		_, err = store.Open(ctx, "a")
		assert.True(t, errors.Is(err, ErrNotFound))
	})
}
