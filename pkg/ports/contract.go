package ports

import (
	"context"
	"fmt"
	"testing"

	"github.com/aretw0/opera/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunAnalysisCacheContract runs a suite of tests to verify that an
// AnalysisCache implementation adheres to the interface contract.
// The cache must start empty.
func RunAnalysisCacheContract(t *testing.T, cache AnalysisCache) {
	ctx := context.Background()
	key := "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3"

	t.Run("Save and Load", func(t *testing.T) {
		entry := AnalysisEntry{Key: key, Depth: 4, Score: 25, BestMove: "e7e5", PV: []string{"e7e5", "g1f3"}}
		require.NoError(t, cache.Save(ctx, entry))

		loaded, err := cache.Load(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, entry, loaded)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := cache.Load(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrCacheMiss)
	})

	t.Run("Deeper Entry Wins", func(t *testing.T) {
		require.NoError(t, cache.Save(ctx, AnalysisEntry{Key: key, Depth: 2, Score: -5, BestMove: "c7c5"}))
		loaded, err := cache.Load(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, 4, loaded.Depth, "shallower result must not replace a deeper one")

		require.NoError(t, cache.Save(ctx, AnalysisEntry{Key: key, Depth: 6, Score: 10, BestMove: "c7c5"}))
		loaded, err = cache.Load(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "c7c5", loaded.BestMove)
	})

	t.Run("Len and Clear", func(t *testing.T) {
		for i := range 3 {
			require.NoError(t, cache.Save(ctx, AnalysisEntry{Key: fmt.Sprintf("pos-%d", i), Depth: 1}))
		}
		n, err := cache.Len(ctx)
		require.NoError(t, err)
		assert.Equal(t, 4, n)

		require.NoError(t, cache.Clear(ctx))
		n, err = cache.Len(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)

		_, err = cache.Load(ctx, key)
		assert.ErrorIs(t, err, domain.ErrCacheMiss)
	})

	t.Run("Resize", func(t *testing.T) {
		require.NoError(t, cache.Resize(ctx, 2))
		assert.Equal(t, CapacityFor(2), cache.Capacity())
	})
}
