package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/hyperjump/kioku/internal/embedding"
	"github.com/hyperjump/kioku/internal/index"
	"github.com/hyperjump/kioku/internal/vector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newService(t *testing.T, dims, capacity int, opts ...Option) (*Service, *embedding.MockEmbedder) {
	t.Helper()
	store, err := vector.NewFlatIndex(dims)
	require.NoError(t, err)
	idx, err := index.New(store, capacity)
	require.NoError(t, err)
	mock := embedding.NewMockEmbedder(dims)
	svc, err := NewService(idx, mock, append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)...)
	require.NoError(t, err)
	return svc, mock
}

func TestNewService_DimensionMismatch(t *testing.T) {
	store, err := vector.NewFlatIndex(4)
	require.NoError(t, err)
	idx, err := index.New(store, 3)
	require.NoError(t, err)
	_, err = NewService(idx, embedding.NewMockEmbedder(8))
	assert.Error(t, err)
	_, err = NewService(nil, embedding.NewMockEmbedder(4))
	assert.Error(t, err)
}

func TestBuildPrompt_EmptyIndexSkipsEmbedding(t *testing.T) {
	svc, mock := newService(t, 8, 10)
	got, hits, err := svc.BuildPrompt(context.Background(), "a fox at dawn", 3)
	require.NoError(t, err)
	assert.Equal(t, "a fox at dawn", got)
	assert.Empty(t, hits)
	assert.Zero(t, mock.Calls())
}

func TestBuildPrompt_AppendsSanitizedContext(t *testing.T) {
	svc, _ := newService(t, 16, 10)
	ctx := context.Background()
	chunk := "forest  scene, mail ranger@park.org"
	_, err := svc.EmbedAndAdd(ctx, []string{chunk, "ocean waves"})
	require.NoError(t, err)

	got, hits, err := svc.BuildPrompt(ctx, chunk, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, chunk, hits[0].Text)
	assert.Equal(t, chunk+" forest scene, mail", got)
}

func TestRetrieve_DefaultTopK(t *testing.T) {
	svc, _ := newService(t, 8, 10, WithTopK(2))
	ctx := context.Background()
	_, err := svc.EmbedAndAdd(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)

	hits, err := svc.Retrieve(ctx, "a", 0)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
	assert.Equal(t, 2, svc.TopK())

	hits, err = svc.Retrieve(ctx, "a", 3)
	require.NoError(t, err)
	assert.Len(t, hits, 3)
}

func TestEmbedAndAdd_Evicts(t *testing.T) {
	svc, _ := newService(t, 8, 3)
	ctx := context.Background()
	_, err := svc.EmbedAndAdd(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	res, err := svc.EmbedAndAdd(ctx, []string{"d"})
	require.NoError(t, err)
	assert.Equal(t, index.AddResult{Added: 1, Evicted: 1, Total: 3}, res)
	assert.Equal(t, 3, svc.Stats().Total)
}

func TestEmbedAndAdd_Empty(t *testing.T) {
	svc, mock := newService(t, 8, 3)
	res, err := svc.EmbedAndAdd(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, index.AddResult{}, res)
	assert.Zero(t, mock.Calls())
}

func TestAddChunks_PrecomputedVectors(t *testing.T) {
	svc, _ := newService(t, 2, 5)
	ctx := context.Background()
	res, err := svc.AddChunks(ctx, []string{"x", "y"}, [][]float32{{1, 0}, {0, 1}})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)

	_, err = svc.AddChunks(ctx, []string{"z"}, nil)
	assert.ErrorIs(t, err, index.ErrLengthMismatch)
}

type failingEmbedder struct{ *embedding.MockEmbedder }

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("quota exceeded")
}

func TestRetrieve_EmbedError(t *testing.T) {
	store, err := vector.NewFlatIndex(4)
	require.NoError(t, err)
	idx, err := index.New(store, 3)
	require.NoError(t, err)
	_, err = idx.Add(context.Background(), []string{"a"}, [][]float32{{1, 0, 0, 0}})
	require.NoError(t, err)
	svc, err := NewService(idx, failingEmbedder{embedding.NewMockEmbedder(4)})
	require.NoError(t, err)

	_, _, err = svc.BuildPrompt(context.Background(), "q", 1)
	assert.ErrorContains(t, err, "quota exceeded")
	assert.ErrorIs(t, err, ErrEmbedding)
}

// shortEmbedder claims the index dimension but returns one component less.
type shortEmbedder struct{ *embedding.MockEmbedder }

func (e shortEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err := e.MockEmbedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	return v[:len(v)-1], nil
}

func (e shortEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vs, err := e.MockEmbedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	for i := range vs {
		vs[i] = vs[i][:len(vs[i])-1]
	}
	return vs, nil
}

func TestEmbedderDimensionFaultIsEmbeddingError(t *testing.T) {
	store, err := vector.NewFlatIndex(4)
	require.NoError(t, err)
	idx, err := index.New(store, 3)
	require.NoError(t, err)
	ctx := context.Background()
	_, err = idx.Add(ctx, []string{"a"}, [][]float32{{1, 0, 0, 0}})
	require.NoError(t, err)
	svc, err := NewService(idx, shortEmbedder{embedding.NewMockEmbedder(4)})
	require.NoError(t, err)

	_, err = svc.EmbedAndAdd(ctx, []string{"b"})
	assert.ErrorIs(t, err, ErrEmbedding)
	assert.ErrorIs(t, err, vector.ErrDimensionMismatch)

	_, err = svc.Retrieve(ctx, "q", 1)
	assert.ErrorIs(t, err, ErrEmbedding)

	// Caller-supplied vectors of the wrong size stay plain input errors.
	_, err = svc.AddChunks(ctx, []string{"c"}, [][]float32{{1, 0}})
	assert.ErrorIs(t, err, vector.ErrDimensionMismatch)
	assert.NotErrorIs(t, err, ErrEmbedding)
}
