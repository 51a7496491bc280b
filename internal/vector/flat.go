package vector

import (
	"context"
	"fmt"
	"sync"
)

// FlatIndex is an in-memory exact index using brute-force squared L2 search.
// Vectors are kept in one contiguous slice, row i at [i*d, (i+1)*d).
type FlatIndex struct {
	dimensions int
	data       []float32
	mu         sync.RWMutex
}

// NewFlatIndex creates an empty flat index with the given dimension.
func NewFlatIndex(dimensions int) (*FlatIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &FlatIndex{dimensions: dimensions}, nil
}

// Type returns the index type identifier.
func (f *FlatIndex) Type() string {
	return string(IndexTypeFlat)
}

// Dimensions returns the vector dimension.
func (f *FlatIndex) Dimensions() int {
	return f.dimensions
}

// Add appends vectors in order.
func (f *FlatIndex) Add(ctx context.Context, vectors [][]float32) error {
	if len(vectors) == 0 {
		return nil
	}
	if err := checkDimensions(f.dimensions, vectors); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data = appendRows(f.data, vectors)
	return nil
}

// Search returns the k nearest stored vectors to query.
func (f *FlatIndex) Search(ctx context.Context, query []float32, k int) ([]Neighbor, error) {
	if len(query) != f.dimensions {
		return nil, &DimensionMismatchError{Expected: f.dimensions, Got: len(query)}
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	n := len(f.data) / f.dimensions
	if k <= 0 || n == 0 {
		return []Neighbor{}, nil
	}
	neighbors := make([]Neighbor, n)
	for i := 0; i < n; i++ {
		row := f.data[i*f.dimensions : (i+1)*f.dimensions]
		neighbors[i] = Neighbor{Index: i, Distance: SquaredL2(query, row)}
	}
	return topK(neighbors, k), nil
}

// Reconstruct returns a copy of the vector at index i.
func (f *FlatIndex) Reconstruct(i int) ([]float32, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	n := len(f.data) / f.dimensions
	if i < 0 || i >= n {
		return nil, outOfRange(i, n)
	}
	return cloneVector(f.data[i*f.dimensions : (i+1)*f.dimensions]), nil
}

// Rebuild replaces the index contents with vectors.
func (f *FlatIndex) Rebuild(ctx context.Context, vectors [][]float32) error {
	if err := checkDimensions(f.dimensions, vectors); err != nil {
		return err
	}
	data := appendRows(make([]float32, 0, len(vectors)*f.dimensions), vectors)
	f.mu.Lock()
	f.data = data
	f.mu.Unlock()
	return nil
}

// Size returns the number of stored vectors.
func (f *FlatIndex) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.data) / f.dimensions
}

// Close is a no-op for FlatIndex.
func (f *FlatIndex) Close() error {
	return nil
}

func appendRows(dst []float32, vectors [][]float32) []float32 {
	for _, v := range vectors {
		dst = append(dst, v...)
	}
	return dst
}
