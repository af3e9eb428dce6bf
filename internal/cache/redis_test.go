package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewCache(client, "docchat:"), mr
}

func TestCache_SetGet(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "vec", []float32{0.5, 0.25}, time.Minute))
	assert.True(t, mr.Exists("docchat:vec"))

	var got []float32
	require.NoError(t, c.Get(ctx, "vec", &got))
	assert.Equal(t, []float32{0.5, 0.25}, got)
}

func TestCache_MissAndExpiry(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	var got []float32
	assert.ErrorIs(t, c.Get(ctx, "absent", &got), ErrMiss)

	require.NoError(t, c.Set(ctx, "short", []float32{1}, time.Second))
	mr.FastForward(2 * time.Second)
	assert.ErrorIs(t, c.Get(ctx, "short", &got), ErrMiss)
}
