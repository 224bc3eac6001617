package artifacts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeysAreNamespacedByJobID(t *testing.T) {
	t.Parallel()

	require.Equal(t, "proof-jobs/job-1/input.tape", TapeKey("job-1"))
	require.Equal(t, "proof-jobs/job-1/result.json", ResultKey("job-1"))
}

func testStoreRoundTrips(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Put(ctx, "k", []byte("hello")))
	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), got)

	require.NoError(t, store.Delete(ctx, "k"))
	_, err = store.Get(ctx, "k")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Delete(ctx, "already-gone"))
}

func TestMemoryStoreRoundTrips(t *testing.T) {
	t.Parallel()
	testStoreRoundTrips(t, NewMemoryStore())
}

func TestMemoryStorePutCopiesInput(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemoryStore()

	data := []byte("original")
	require.NoError(t, store.Put(ctx, "k", data))
	data[0] = 'X'

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("original"), got)
}

func TestFSStoreRoundTrips(t *testing.T) {
	t.Parallel()
	testStoreRoundTrips(t, NewFSStore(t.TempDir()))
}

func TestFSStoreNestsDirectoriesFromKeys(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewFSStore(t.TempDir())

	require.NoError(t, store.Put(ctx, TapeKey("job-1"), []byte("tape-bytes")))
	got, err := store.Get(ctx, TapeKey("job-1"))
	require.NoError(t, err)
	require.Equal(t, []byte("tape-bytes"), got)
}
