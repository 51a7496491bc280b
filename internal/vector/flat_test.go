package vector

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlat(t *testing.T, dim int) *FlatIndex {
	t.Helper()
	idx, err := NewFlatIndex(dim)
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestFlatIndex_AddSearch(t *testing.T) {
	idx := newFlat(t, 3)
	ctx := context.Background()

	vecs := [][]float32{
		{1, 0, 0},
		{0.9, 0.1, 0},
		{0, 1, 0},
	}
	require.NoError(t, idx.Add(ctx, vecs))
	assert.Equal(t, 3, idx.Size())

	results, err := idx.Search(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 0, results[0].Index)
	assert.Equal(t, float32(0), results[0].Distance)
	assert.Equal(t, 1, results[1].Index)
	assert.InDelta(t, 0.02, results[1].Distance, 1e-6)
}

func TestFlatIndex_SearchReturnsOwnIndexFirst(t *testing.T) {
	idx := newFlat(t, 2)
	ctx := context.Background()
	vecs := [][]float32{{0, 0}, {1, 0}, {0, 1}, {1, 1}, {2, 2}}
	require.NoError(t, idx.Add(ctx, vecs))

	for i, v := range vecs {
		results, err := idx.Search(ctx, v, 1)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, i, results[0].Index)
		assert.Zero(t, results[0].Distance)
	}
}

func TestFlatIndex_TiesBrokenByLowerIndex(t *testing.T) {
	idx := newFlat(t, 2)
	ctx := context.Background()
	// Indices 1 and 2 are both at distance 1 from the origin, as are 3 and 4.
	require.NoError(t, idx.Add(ctx, [][]float32{{5, 5}, {0, 1}, {1, 0}, {0, -1}, {-1, 0}}))

	results, err := idx.Search(ctx, []float32{0, 0}, 5)
	require.NoError(t, err)
	got := make([]int, len(results))
	for i, r := range results {
		got[i] = r.Index
	}
	assert.Equal(t, []int{1, 2, 3, 4, 0}, got)
}

func TestFlatIndex_SearchFewerThanK(t *testing.T) {
	idx := newFlat(t, 2)
	ctx := context.Background()
	require.NoError(t, idx.Add(ctx, [][]float32{{1, 0}, {0, 1}}))

	results, err := idx.Search(ctx, []float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestFlatIndex_SearchEmpty(t *testing.T) {
	idx := newFlat(t, 3)
	results, err := idx.Search(context.Background(), []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestFlatIndex_SearchNonPositiveK(t *testing.T) {
	idx := newFlat(t, 2)
	ctx := context.Background()
	require.NoError(t, idx.Add(ctx, [][]float32{{1, 0}}))
	results, err := idx.Search(ctx, []float32{1, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestFlatIndex_DimensionMismatch(t *testing.T) {
	idx := newFlat(t, 3)
	ctx := context.Background()

	err := idx.Add(ctx, [][]float32{{1, 0, 0}, {1, 0}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDimensionMismatch))
	var dm *DimensionMismatchError
	require.True(t, errors.As(err, &dm))
	assert.Equal(t, 3, dm.Expected)
	assert.Equal(t, 2, dm.Got)
	assert.Equal(t, 0, idx.Size(), "a rejected batch must not be partially applied")

	_, err = idx.Search(ctx, []float32{1, 0}, 1)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestFlatIndex_AddEmpty(t *testing.T) {
	idx := newFlat(t, 2)
	require.NoError(t, idx.Add(context.Background(), nil))
	assert.Equal(t, 0, idx.Size())
}

func TestFlatIndex_Reconstruct(t *testing.T) {
	idx := newFlat(t, 2)
	ctx := context.Background()
	require.NoError(t, idx.Add(ctx, [][]float32{{1, 2}, {3, 4}}))

	v, err := idx.Reconstruct(1)
	require.NoError(t, err)
	assert.Equal(t, []float32{3, 4}, v)

	v[0] = 99
	again, err := idx.Reconstruct(1)
	require.NoError(t, err)
	assert.Equal(t, []float32{3, 4}, again, "Reconstruct must return a copy")

	_, err = idx.Reconstruct(2)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = idx.Reconstruct(-1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestFlatIndex_AddCopiesInput(t *testing.T) {
	idx := newFlat(t, 2)
	in := [][]float32{{1, 2}}
	require.NoError(t, idx.Add(context.Background(), in))
	in[0][0] = 42
	v, err := idx.Reconstruct(0)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, v)
}

func TestFlatIndex_Rebuild(t *testing.T) {
	idx := newFlat(t, 2)
	ctx := context.Background()
	require.NoError(t, idx.Add(ctx, [][]float32{{1, 0}, {0, 1}, {1, 1}}))

	require.NoError(t, idx.Rebuild(ctx, [][]float32{{5, 5}}))
	assert.Equal(t, 1, idx.Size())
	v, err := idx.Reconstruct(0)
	require.NoError(t, err)
	assert.Equal(t, []float32{5, 5}, v)

	require.NoError(t, idx.Rebuild(ctx, nil))
	assert.Equal(t, 0, idx.Size())

	err = idx.Rebuild(ctx, [][]float32{{1}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestFlatIndex_ConcurrentAddSearch(t *testing.T) {
	idx := newFlat(t, 2)
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = idx.Add(ctx, [][]float32{{float32(i), 0}})
		}(i)
		go func() {
			defer wg.Done()
			_, _ = idx.Search(ctx, []float32{0, 0}, 3)
		}()
	}
	wg.Wait()
	assert.Equal(t, 8, idx.Size())
}
