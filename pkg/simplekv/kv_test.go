package simplekv

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	ctx := context.Background()
	kv := New[int]()

	require.NoError(t, kv.Set(ctx, "app1/dev2", 2, 0))
	require.NoError(t, kv.Set(ctx, "app1/dev1", 1, 0))
	require.NoError(t, kv.Set(ctx, "app2/dev1", 3, 0))
	require.Equal(t, 3, kv.Len())

	got, err := kv.Get(ctx, "app1/dev1")
	require.NoError(t, err)
	require.Equal(t, 1, got)

	require.Equal(t, []int{1, 2}, kv.List(ctx, "app1/"))
	require.Equal(t, []int{1, 2, 3}, kv.List(ctx, ""))

	require.NoError(t, kv.Delete(ctx, "app1/dev1"))
	require.ErrorIs(t, kv.Delete(ctx, "app1/dev1"), ErrNotExists)

	_, err = kv.Get(ctx, "app1/dev1")
	require.ErrorIs(t, err, ErrNotExists)
}

func TestExpire(t *testing.T) {
	ctx := context.Background()
	kv := New[string]()

	require.NoError(t, kv.Set(ctx, "state", "verifier", time.Millisecond))
	require.NoError(t, kv.Set(ctx, "keep", "value", 0))
	time.Sleep(5 * time.Millisecond)

	_, err := kv.Get(ctx, "state")
	require.ErrorIs(t, err, ErrNotExists)
	require.Equal(t, 1, kv.Len())
}
