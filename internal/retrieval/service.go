// Package retrieval owns the bounded index and the embedder and exposes the
// two operations the API serves: adding chunks and building a prompt with
// retrieved context.
package retrieval

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperjump/kioku/internal/embedding"
	"github.com/hyperjump/kioku/internal/index"
	"github.com/hyperjump/kioku/internal/prompt"
	"github.com/hyperjump/kioku/internal/vector"
	"go.uber.org/zap"
)

// ErrEmbedding marks failures of the embedding provider, including vectors of
// the wrong dimension coming back from it.
var ErrEmbedding = errors.New("embedding failed")

// DefaultTopK is used when neither the caller nor the config gives a positive k.
const DefaultTopK = 1

// Service answers add and query requests against one BoundedIndex.
type Service struct {
	index    *index.BoundedIndex
	embedder embedding.Embedder
	topK     int
	logger   *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTopK sets the number of chunks retrieved when a request does not say.
func WithTopK(k int) Option {
	return func(s *Service) {
		if k > 0 {
			s.topK = k
		}
	}
}

// NewService wires an index and an embedder of matching dimension.
func NewService(idx *index.BoundedIndex, embedder embedding.Embedder, opts ...Option) (*Service, error) {
	if idx == nil || embedder == nil {
		return nil, fmt.Errorf("index and embedder are required")
	}
	if idx.Dimensions() != embedder.Dimensions() {
		return nil, fmt.Errorf("embedder produces %d dimensions, index expects %d", embedder.Dimensions(), idx.Dimensions())
	}
	s := &Service{index: idx, embedder: embedder, topK: DefaultTopK, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// AddChunks stores chunks with precomputed vectors.
func (s *Service) AddChunks(ctx context.Context, chunks []string, vectors [][]float32) (index.AddResult, error) {
	return s.index.Add(ctx, chunks, vectors)
}

// EmbedAndAdd embeds chunks and stores them. Embedding happens before the
// index lock is taken.
func (s *Service) EmbedAndAdd(ctx context.Context, chunks []string) (index.AddResult, error) {
	if len(chunks) == 0 {
		return index.AddResult{Total: s.index.Len()}, nil
	}
	vectors, err := s.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return index.AddResult{}, fmt.Errorf("%w: %w", ErrEmbedding, err)
	}
	res, err := s.index.Add(ctx, chunks, vectors)
	if err != nil {
		if errors.Is(err, vector.ErrDimensionMismatch) || errors.Is(err, index.ErrLengthMismatch) {
			return res, fmt.Errorf("%w: %w", ErrEmbedding, err)
		}
		return res, err
	}
	if res.Evicted > 0 {
		s.logger.Info("capacity reached, evicted oldest chunks",
			zap.Int("evicted", res.Evicted),
			zap.Int("total", res.Total))
	}
	return res, nil
}

// Retrieve returns the k chunks nearest to query, or the configured default
// when k is not positive. An empty index returns no hits without calling the
// embedder.
func (s *Service) Retrieve(ctx context.Context, query string, k int) ([]index.Hit, error) {
	if k <= 0 {
		k = s.topK
	}
	if s.index.Len() == 0 {
		return []index.Hit{}, nil
	}
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %w", ErrEmbedding, err)
	}
	hits, err := s.index.Search(ctx, vec, k)
	if errors.Is(err, vector.ErrDimensionMismatch) {
		return nil, fmt.Errorf("%w: query: %w", ErrEmbedding, err)
	}
	return hits, err
}

// BuildPrompt returns query followed by its sanitized retrieved context, or
// query unchanged when nothing is retrieved.
func (s *Service) BuildPrompt(ctx context.Context, query string, k int) (string, []index.Hit, error) {
	hits, err := s.Retrieve(ctx, query, k)
	if err != nil {
		return "", nil, err
	}
	texts := make([]string, len(hits))
	for i, h := range hits {
		texts[i] = h.Text
	}
	return prompt.Assemble(query, texts), hits, nil
}

// TopK returns the default number of retrieved chunks.
func (s *Service) TopK() int {
	return s.topK
}

// Stats returns the index statistics.
func (s *Service) Stats() index.Stats {
	return s.index.Stats()
}
