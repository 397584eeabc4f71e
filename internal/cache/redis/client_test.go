package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	c, err := NewClient(context.Background(), mr.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	return c, mr
}

func TestEmbeddingRoundTrip(t *testing.T) {
	c, mr := setupTestClient(t)
	ctx := context.Background()

	_, ok, err := c.GetEmbedding(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.SetEmbedding(ctx, "abc", []float32{0.5, -0.25}, time.Hour))
	assert.True(t, mr.Exists("embedding:abc"))

	got, ok, err := c.GetEmbedding(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []float32{0.5, -0.25}, got)

	mr.FastForward(2 * time.Hour)
	_, ok, err = c.GetEmbedding(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFlushEmbeddings(t *testing.T) {
	c, mr := setupTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.SetEmbedding(ctx, "a", []float32{1}, 0))
	require.NoError(t, c.SetEmbedding(ctx, "b", []float32{2}, 0))
	require.NoError(t, mr.Set("other", "keep"))

	n, err := c.FlushEmbeddings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, mr.Exists("other"))
}

func TestNewClientFailsWithoutServer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := NewClient(ctx, "127.0.0.1:1", "", 0)
	assert.Error(t, err)
}

func TestCorruptEntryIsAnError(t *testing.T) {
	c, mr := setupTestClient(t)
	require.NoError(t, mr.Set("embedding:bad", "not-json"))

	_, _, err := c.GetEmbedding(context.Background(), "bad")
	assert.Error(t, err)
}
