package index

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/hyperjump/kioku/internal/vector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newIndex(t *testing.T, indexType string, dim, capacity int) *BoundedIndex {
	t.Helper()
	store, err := vector.NewStore(indexType, dim)
	require.NoError(t, err)
	idx, err := New(store, capacity, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

// unit returns a distinct vector for every i.
func unit(i, dim int) []float32 {
	v := make([]float32, dim)
	v[i%dim] = float32(i/dim + 1)
	return v
}

func TestNew_Validation(t *testing.T) {
	store, err := vector.NewFlatIndex(2)
	require.NoError(t, err)

	_, err = New(store, 0)
	assert.Error(t, err)
	_, err = New(store, -1)
	assert.Error(t, err)
	_, err = New(nil, 3)
	assert.Error(t, err)

	require.NoError(t, store.Add(context.Background(), [][]float32{{1, 0}}))
	_, err = New(store, 3)
	assert.Error(t, err, "a non-empty store would desync the ledger")
}

func TestBoundedIndex_Scenario(t *testing.T) {
	idx := newIndex(t, "flat", 4, 3)
	ctx := context.Background()
	a, b, c, d := []float32{1, 0, 0, 0}, []float32{0, 1, 0, 0}, []float32{0, 0, 1, 0}, []float32{0, 0, 0, 1}

	res, err := idx.Add(ctx, []string{"a", "b", "c"}, [][]float32{a, b, c})
	require.NoError(t, err)
	assert.Equal(t, AddResult{Added: 3, Total: 3}, res)

	res, err = idx.Add(ctx, []string{"d"}, [][]float32{d})
	require.NoError(t, err)
	assert.Equal(t, AddResult{Added: 1, Evicted: 1, Total: 3}, res)

	assert.Equal(t, []string{"b", "c", "d"}, idx.Chunks())
	got, err := idx.Reconstruct(0)
	require.NoError(t, err)
	assert.Equal(t, b, got)
}

func TestBoundedIndex_FIFOEviction(t *testing.T) {
	types := []string{"flat"}
	if vector.IsFAISSAvailable() {
		types = append(types, "faiss")
	}
	for _, typ := range types {
		t.Run(typ, func(t *testing.T) {
			const capacity = 5
			idx := newIndex(t, typ, 3, capacity)
			ctx := context.Background()

			for i := 0; i <= capacity; i++ {
				_, err := idx.Add(ctx, []string{fmt.Sprintf("chunk-%d", i)}, [][]float32{unit(i, 3)})
				require.NoError(t, err)
			}

			assert.Equal(t, capacity, idx.Len())
			assert.Equal(t, []string{"chunk-1", "chunk-2", "chunk-3", "chunk-4", "chunk-5"}, idx.Chunks())
			for pos := 0; pos < capacity; pos++ {
				v, err := idx.Reconstruct(pos)
				require.NoError(t, err)
				assert.Equal(t, unit(pos+1, 3), v, "position %d paired with wrong vector", pos)
			}
		})
	}
}

func TestBoundedIndex_InvariantUnderRandomAdds(t *testing.T) {
	const (
		capacity = 7
		dim      = 4
	)
	idx := newIndex(t, "flat", dim, capacity)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	var all []string
	vecs := map[string][]float32{}
	for step := 0; step < 50; step++ {
		n := rng.Intn(10)
		chunks := make([]string, n)
		vectors := make([][]float32, n)
		for i := range chunks {
			id := len(all)
			chunks[i] = fmt.Sprintf("c%d", id)
			vectors[i] = []float32{float32(id), rng.Float32(), rng.Float32(), rng.Float32()}
			vecs[chunks[i]] = vectors[i]
			all = append(all, chunks[i])
		}
		_, err := idx.Add(ctx, chunks, vectors)
		require.NoError(t, err)

		stored := idx.Chunks()
		require.LessOrEqual(t, len(stored), capacity)
		require.Equal(t, idx.store.Size(), len(stored))

		want := all
		if len(want) > capacity {
			want = want[len(want)-capacity:]
		}
		require.Equal(t, want, stored)
		for pos, text := range stored {
			v, err := idx.Reconstruct(pos)
			require.NoError(t, err)
			require.Equal(t, vecs[text], v)
		}
	}
}

func TestBoundedIndex_OversizedBatchTruncated(t *testing.T) {
	idx := newIndex(t, "flat", 2, 3)
	ctx := context.Background()

	_, err := idx.Add(ctx, []string{"old"}, [][]float32{{9, 9}})
	require.NoError(t, err)

	chunks := []string{"a", "b", "c", "d", "e"}
	vectors := [][]float32{{1, 0}, {2, 0}, {3, 0}, {4, 0}, {5, 0}}
	res, err := idx.Add(ctx, chunks, vectors)
	require.NoError(t, err)
	assert.Equal(t, AddResult{Added: 3, Truncated: 2, Evicted: 1, Total: 3}, res)
	assert.Equal(t, []string{"c", "d", "e"}, idx.Chunks())

	v, err := idx.Reconstruct(0)
	require.NoError(t, err)
	assert.Equal(t, []float32{3, 0}, v)
}

func TestBoundedIndex_LengthMismatch(t *testing.T) {
	idx := newIndex(t, "flat", 2, 3)
	ctx := context.Background()
	_, err := idx.Add(ctx, []string{"a"}, [][]float32{{1, 0}})
	require.NoError(t, err)

	_, err = idx.Add(ctx, []string{"b", "c"}, [][]float32{{1, 1}})
	assert.ErrorIs(t, err, ErrLengthMismatch)
	assert.Equal(t, []string{"a"}, idx.Chunks())
}

func TestBoundedIndex_DimensionMismatchDoesNotMutate(t *testing.T) {
	idx := newIndex(t, "flat", 2, 2)
	ctx := context.Background()
	_, err := idx.Add(ctx, []string{"a", "b"}, [][]float32{{1, 0}, {0, 1}})
	require.NoError(t, err)

	// Would evict both existing entries if it were admitted.
	_, err = idx.Add(ctx, []string{"c", "d"}, [][]float32{{1, 1}, {1, 1, 1}})
	require.Error(t, err)
	assert.ErrorIs(t, err, vector.ErrDimensionMismatch)
	assert.Equal(t, []string{"a", "b"}, idx.Chunks())
	assert.Equal(t, 0, idx.Stats().TotalEvicted)
}

func TestBoundedIndex_EmptyBatch(t *testing.T) {
	idx := newIndex(t, "flat", 2, 2)
	res, err := idx.Add(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, AddResult{}, res)
}

func TestBoundedIndex_SearchEmpty(t *testing.T) {
	idx := newIndex(t, "flat", 2, 2)
	hits, err := idx.Search(context.Background(), []float32{1, 0}, 3)
	require.NoError(t, err)
	assert.NotNil(t, hits)
	assert.Empty(t, hits)

	_, err = idx.Search(context.Background(), []float32{1}, 3)
	assert.ErrorIs(t, err, vector.ErrDimensionMismatch)
}

func TestBoundedIndex_SearchReturnsOwnChunkFirst(t *testing.T) {
	idx := newIndex(t, "flat", 3, 10)
	ctx := context.Background()
	chunks := []string{"x", "y", "z", "w"}
	vectors := [][]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}, {1, 1, 1}}
	_, err := idx.Add(ctx, chunks, vectors)
	require.NoError(t, err)

	for i, v := range vectors {
		hits, err := idx.Search(ctx, v, 2)
		require.NoError(t, err)
		require.NotEmpty(t, hits)
		assert.Equal(t, i, hits[0].Index)
		assert.Equal(t, chunks[i], hits[0].Text)
		assert.Zero(t, hits[0].Distance)
	}

	texts, err := idx.Texts(ctx, []float32{0.9, 0.1, 0}, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, texts)
}

func TestBoundedIndex_SearchAfterEviction(t *testing.T) {
	idx := newIndex(t, "flat", 2, 2)
	ctx := context.Background()
	for i, text := range []string{"a", "b", "c"} {
		_, err := idx.Add(ctx, []string{text}, [][]float32{{float32(i), 0}})
		require.NoError(t, err)
	}
	hits, err := idx.Search(ctx, []float32{0, 0}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "b", hits[0].Text)
	assert.Equal(t, "c", hits[1].Text)
}

func TestBoundedIndex_Stats(t *testing.T) {
	idx := newIndex(t, "flat", 2, 2)
	ctx := context.Background()
	_, err := idx.Add(ctx, []string{"a", "b", "c"}, [][]float32{{1, 0}, {2, 0}, {3, 0}})
	require.NoError(t, err)
	_, err = idx.Add(ctx, []string{"d"}, [][]float32{{4, 0}})
	require.NoError(t, err)

	s := idx.Stats()
	assert.Equal(t, Stats{
		Total:        2,
		Capacity:     2,
		Dimensions:   2,
		IndexType:    "flat",
		TotalAdded:   3,
		TotalEvicted: 1,
		Rebuilds:     1,
	}, s)
}

func TestBoundedIndex_CanceledContext(t *testing.T) {
	idx := newIndex(t, "flat", 2, 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := idx.Add(ctx, []string{"a"}, [][]float32{{1, 0}})
	assert.ErrorIs(t, err, context.Canceled)
	_, err = idx.Search(ctx, []float32{1, 0}, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBoundedIndex_ConcurrentAddSearch(t *testing.T) {
	const capacity = 16
	idx := newIndex(t, "flat", 4, capacity)
	ctx := context.Background()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(2)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				id := w*100 + i
				_, err := idx.Add(ctx, []string{fmt.Sprint(id)}, [][]float32{unit(id, 4)})
				assert.NoError(t, err)
			}
		}(w)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				hits, err := idx.Search(ctx, []float32{1, 0, 0, 0}, 4)
				assert.NoError(t, err)
				assert.LessOrEqual(t, len(hits), 4)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, capacity, idx.Len())
	assert.Equal(t, idx.store.Size(), idx.Len())
}

// brokenStore fails Reconstruct to exercise the invariant panic.
type brokenStore struct {
	*vector.FlatIndex
}

func (brokenStore) Reconstruct(i int) ([]float32, error) {
	return nil, vector.ErrIndexOutOfRange
}

func TestBoundedIndex_ReconstructFailurePanics(t *testing.T) {
	flat, err := vector.NewFlatIndex(2)
	require.NoError(t, err)
	idx, err := New(brokenStore{flat}, 1)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = idx.Add(ctx, []string{"a"}, [][]float32{{1, 0}})
	require.NoError(t, err)
	_, err = idx.Add(ctx, []string{"b"}, [][]float32{{0, 1}})
	require.NoError(t, err, "evicting every entry needs no reconstruct")

	idx2, err := New(brokenStore{mustFlat(t, 2)}, 2)
	require.NoError(t, err)
	_, err = idx2.Add(ctx, []string{"a", "b"}, [][]float32{{1, 0}, {0, 1}})
	require.NoError(t, err)

	defer func() {
		r := recover()
		require.NotNil(t, r)
		var inv *InvariantError
		require.True(t, errors.As(r.(error), &inv))
		assert.Equal(t, "reconstruct", inv.Op)
		assert.ErrorIs(t, inv, vector.ErrIndexOutOfRange)
	}()
	_, _ = idx2.Add(ctx, []string{"c"}, [][]float32{{1, 1}})
}

func mustFlat(t *testing.T, dim int) *vector.FlatIndex {
	t.Helper()
	f, err := vector.NewFlatIndex(dim)
	require.NoError(t, err)
	return f
}
