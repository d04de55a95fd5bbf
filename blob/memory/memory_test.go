package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/workfleet/fulfill/blob"
)

func TestPutGet(t *testing.T) {
	ctx := context.Background()
	store := New()

	require.NoError(t, store.Put(ctx, "bucket", "prefix/key.ff", []byte("payload")))
	data, err := store.Get(ctx, "bucket", "prefix/key.ff")
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), data)
	require.Equal(t, 1, store.Len())
}

func TestGetMissing(t *testing.T) {
	store := New()
	_, err := store.Get(context.Background(), "bucket", "nope")
	require.ErrorIs(t, err, blob.ErrNotFound)
}

func TestPutCopiesData(t *testing.T) {
	ctx := context.Background()
	store := New()
	data := []byte("abc")
	require.NoError(t, store.Put(ctx, "b", "k", data))
	data[0] = 'x'

	stored, err := store.Get(ctx, "b", "k")
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), stored)
}
