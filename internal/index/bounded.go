// Package index provides BoundedIndex, a capacity-limited vector index that
// keeps chunk texts paired with their embeddings and evicts the oldest pairs
// first.
package index

import (
	"context"
	"fmt"
	"sync"

	"github.com/hyperjump/kioku/internal/ledger"
	"github.com/hyperjump/kioku/internal/vector"
	"go.uber.org/zap"
)

// Hit is one search result: the chunk text at a positional index and its
// squared L2 distance to the query.
type Hit struct {
	Index    int     `json:"index"`
	Distance float32 `json:"distance"`
	Text     string  `json:"text"`
}

// AddResult summarizes one Add call.
type AddResult struct {
	Added     int `json:"added"`
	Truncated int `json:"truncated"`
	Evicted   int `json:"evicted"`
	Total     int `json:"total"`
}

// Stats is a point-in-time view of the index.
type Stats struct {
	Total        int    `json:"total_chunks"`
	Capacity     int    `json:"capacity"`
	Dimensions   int    `json:"dimensions"`
	IndexType    string `json:"index_type"`
	TotalAdded   int    `json:"total_added"`
	TotalEvicted int    `json:"total_evicted"`
	Rebuilds     int    `json:"rebuilds"`
}

// BoundedIndex composes a vector.Store and a ledger.Ledger. All mutation goes
// through Add, which holds the write lock across the combined update, so
// readers never see the two sides disagree in size.
type BoundedIndex struct {
	mu       sync.RWMutex
	store    vector.Store
	ledger   *ledger.Ledger
	capacity int
	logger   *zap.Logger

	totalAdded   int
	totalEvicted int
	rebuilds     int
}

// Option configures a BoundedIndex.
type Option func(*BoundedIndex)

// WithLogger sets the logger used for eviction and lookup events.
func WithLogger(l *zap.Logger) Option {
	return func(b *BoundedIndex) {
		if l != nil {
			b.logger = l
		}
	}
}

// New wraps an empty store with a capacity ceiling.
func New(store vector.Store, capacity int, opts ...Option) (*BoundedIndex, error) {
	if store == nil {
		return nil, fmt.Errorf("vector store is required")
	}
	if capacity <= 0 {
		return nil, fmt.Errorf("capacity must be positive, got %d", capacity)
	}
	if n := store.Size(); n != 0 {
		return nil, fmt.Errorf("vector store must be empty, holds %d vectors", n)
	}
	b := &BoundedIndex{
		store:    store,
		ledger:   ledger.New(),
		capacity: capacity,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Add stores chunks paired with vectors, evicting the oldest entries when the
// result would exceed capacity. A batch larger than capacity keeps only its
// last capacity entries.
func (b *BoundedIndex) Add(ctx context.Context, chunks []string, vectors [][]float32) (AddResult, error) {
	if err := ctx.Err(); err != nil {
		return AddResult{}, err
	}
	if len(chunks) != len(vectors) {
		return AddResult{}, fmt.Errorf("%w: %d chunks, %d vectors", ErrLengthMismatch, len(chunks), len(vectors))
	}
	dim := b.store.Dimensions()
	for _, v := range vectors {
		if len(v) != dim {
			return AddResult{}, &vector.DimensionMismatchError{Expected: dim, Got: len(v)}
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if len(chunks) == 0 {
		return AddResult{Total: b.ledger.Len()}, nil
	}

	var res AddResult
	if over := len(chunks) - b.capacity; over > 0 {
		res.Truncated = over
		chunks, vectors = chunks[over:], vectors[over:]
		b.logger.Warn("batch exceeds capacity, keeping most recent entries",
			zap.Int("capacity", b.capacity),
			zap.Int("dropped", over))
	}

	count := b.ledger.Len()
	if excess := count + len(chunks) - b.capacity; excess > 0 {
		res.Evicted = b.evictLocked(ctx, min(excess, count))
	}

	if err := b.store.Add(ctx, vectors); err != nil {
		b.checkLocked("add")
		return res, fmt.Errorf("failed to add vectors: %w", err)
	}
	b.ledger.Append(chunks)
	b.checkLocked("add")

	res.Added = len(chunks)
	res.Total = b.ledger.Len()
	b.totalAdded += res.Added
	return res, nil
}

// evictLocked drops the first keepFrom entries by rebuilding the store from
// the reconstructed survivors. It returns the number of evicted entries.
func (b *BoundedIndex) evictLocked(ctx context.Context, keepFrom int) int {
	count := b.ledger.Len()
	survivors := make([][]float32, 0, count-keepFrom)
	for i := keepFrom; i < count; i++ {
		v, err := b.store.Reconstruct(i)
		if err != nil {
			panic(&InvariantError{Op: "reconstruct", Err: err})
		}
		survivors = append(survivors, v)
	}
	if err := b.store.Rebuild(ctx, survivors); err != nil {
		panic(&InvariantError{Op: "rebuild", Err: err})
	}
	b.ledger.Replace(b.ledger.Slice(keepFrom))
	b.checkLocked("evict")

	b.totalEvicted += keepFrom
	b.rebuilds++
	b.logger.Debug("evicted oldest chunks",
		zap.Int("evicted", keepFrom),
		zap.Int("kept", len(survivors)),
		zap.Int("capacity", b.capacity))
	return keepFrom
}

func (b *BoundedIndex) checkLocked(op string) {
	if s, l := b.store.Size(), b.ledger.Len(); s != l || l > b.capacity {
		panic(&InvariantError{Op: op, Err: fmt.Errorf("store size %d, ledger length %d, capacity %d", s, l, b.capacity)})
	}
}

// Search returns up to k stored chunks nearest to query, closest first.
// An empty index yields an empty result.
func (b *BoundedIndex) Search(ctx context.Context, query []float32, k int) ([]Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if dim := b.store.Dimensions(); len(query) != dim {
		return nil, &vector.DimensionMismatchError{Expected: dim, Got: len(query)}
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if k <= 0 || b.ledger.Len() == 0 {
		return []Hit{}, nil
	}
	neighbors, err := b.store.Search(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	hits := make([]Hit, 0, len(neighbors))
	for _, n := range neighbors {
		text, err := b.ledger.Get(n.Index)
		if err != nil {
			b.logger.Warn("search result does not resolve to a chunk",
				zap.Int("index", n.Index),
				zap.Error(err))
			continue
		}
		hits = append(hits, Hit{Index: n.Index, Distance: n.Distance, Text: text})
	}
	return hits, nil
}

// Texts is Search projected onto chunk texts.
func (b *BoundedIndex) Texts(ctx context.Context, query []float32, k int) ([]string, error) {
	hits, err := b.Search(ctx, query, k)
	if err != nil {
		return nil, err
	}
	texts := make([]string, len(hits))
	for i, h := range hits {
		texts[i] = h.Text
	}
	return texts, nil
}

// Chunks returns a copy of every stored chunk, oldest first.
func (b *BoundedIndex) Chunks() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ledger.Slice(0)
}

// Reconstruct returns the vector stored at position i.
func (b *BoundedIndex) Reconstruct(i int) ([]float32, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.store.Reconstruct(i)
}

// Len returns the number of stored pairs.
func (b *BoundedIndex) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ledger.Len()
}

// Capacity returns the configured ceiling.
func (b *BoundedIndex) Capacity() int {
	return b.capacity
}

// Dimensions returns the vector dimension of the underlying store.
func (b *BoundedIndex) Dimensions() int {
	return b.store.Dimensions()
}

// Stats returns current counters.
func (b *BoundedIndex) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return Stats{
		Total:        b.ledger.Len(),
		Capacity:     b.capacity,
		Dimensions:   b.store.Dimensions(),
		IndexType:    b.store.Type(),
		TotalAdded:   b.totalAdded,
		TotalEvicted: b.totalEvicted,
		Rebuilds:     b.rebuilds,
	}
}

// Close releases the underlying store.
func (b *BoundedIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store.Close()
}
