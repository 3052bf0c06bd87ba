package chesscore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/opera/pkg/adapters/memory"
	"github.com/aretw0/opera/pkg/domain"
)

const backRankMateFEN = "6k1/5ppp/8/8/8/8/5PPP/R5K1 w - - 0 1"

func TestSearch_FindsMateInOne(t *testing.T) {
	c := New()
	require.NoError(t, c.SetFEN(backRankMateFEN))

	res, err := c.Search(t.Context(), domain.SearchLimits{Depth: 3}, nil)
	require.NoError(t, err)
	assert.Equal(t, "a1a8", res.BestMove)
	assert.Equal(t, 1, res.MateIn)
	assert.Positive(t, res.Nodes)
}

func TestSearch_ReportsEachDepth(t *testing.T) {
	c := New()
	var depths []int
	res, err := c.Search(t.Context(), domain.SearchLimits{Depth: 3}, func(info domain.SearchInfo) bool {
		depths = append(depths, info.Depth)
		assert.NotEmpty(t, info.PV)
		return true
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, depths)
	assert.Equal(t, 3, res.Depth)

	ok, err := c.IsValidMove(res.BestMove)
	require.NoError(t, err)
	assert.True(t, ok, "best move %q must be legal", res.BestMove)
}

func TestSearch_ProgressCanStop(t *testing.T) {
	c := New()
	res, err := c.Search(t.Context(), domain.SearchLimits{Depth: 10}, func(info domain.SearchInfo) bool {
		return info.Depth < 2
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Depth)
}

func TestSearch_NoLegalMoves(t *testing.T) {
	tests := []struct {
		name string
		fen  string
	}{
		{"checkmated", foolsMateFEN},
		{"stalemated", stalemateFEN},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New()
			require.NoError(t, c.SetFEN(tt.fen))
			res, err := c.Search(t.Context(), domain.SearchLimits{Depth: 4}, nil)
			require.NoError(t, err)
			assert.Empty(t, res.BestMove)
		})
	}
}

func TestSearch_StopReturnsBestEffortMove(t *testing.T) {
	c := New()

	var wg sync.WaitGroup
	var res domain.SearchResult
	var err error
	wg.Add(1)
	go func() {
		defer wg.Done()
		res, err = c.Search(context.Background(), domain.SearchLimits{}, nil)
	}()

	require.Eventually(t, c.IsSearching, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	c.Stop()
	wg.Wait()

	require.NoError(t, err)
	assert.NotEmpty(t, res.BestMove)
	assert.False(t, c.IsSearching())
}

func TestSearch_ContextCancellation(t *testing.T) {
	c := New()
	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	res, err := c.Search(ctx, domain.SearchLimits{}, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, res.BestMove)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestSearch_NodeLimit(t *testing.T) {
	c := New()
	res, err := c.Search(t.Context(), domain.SearchLimits{Nodes: 2000}, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, res.BestMove)
	assert.LessOrEqual(t, res.Nodes, uint64(2001))
}

func TestSearch_SearchMovesRestrictsRoot(t *testing.T) {
	c := New()
	res, err := c.Search(t.Context(), domain.SearchLimits{Depth: 2, SearchMoves: []string{"a2a3"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "a2a3", res.BestMove)
}

func TestSearch_RejectsConcurrentSearch(t *testing.T) {
	c := New()
	c.searching.Store(true)
	_, err := c.Search(t.Context(), domain.SearchLimits{Depth: 1}, nil)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindSearch))
}

func TestSearch_ParallelAgreesOnMate(t *testing.T) {
	c := New()
	require.NoError(t, c.SetThreads(4))
	require.NoError(t, c.SetFEN(backRankMateFEN))

	res, err := c.Search(t.Context(), domain.SearchLimits{Depth: 2}, nil)
	require.NoError(t, err)
	assert.Equal(t, "a1a8", res.BestMove)
}

func TestSearch_UsesAnalysisCache(t *testing.T) {
	cache := memory.NewCache(1)
	c := New(WithCache(cache))

	_, err := c.Search(t.Context(), domain.SearchLimits{Depth: 2}, nil)
	require.NoError(t, err)

	entry, err := cache.Load(t.Context(), positionKey(startFEN))
	require.NoError(t, err)
	assert.Equal(t, 2, entry.Depth)
	assert.NotEmpty(t, entry.BestMove)

	require.NoError(t, c.ClearHash())
	n, _ := cache.Len(t.Context())
	assert.Zero(t, n)
}

func TestMateIn(t *testing.T) {
	assert.Equal(t, 1, mateIn(mateScore-1))
	assert.Equal(t, 2, mateIn(mateScore-3))
	assert.Equal(t, -1, mateIn(-mateScore+2))
	assert.Equal(t, 0, mateIn(150))
}
