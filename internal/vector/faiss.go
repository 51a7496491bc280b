//go:build faiss && cgo
// +build faiss,cgo

package vector

/*
#cgo CFLAGS: -I/opt/homebrew/include -I/usr/local/include
#cgo LDFLAGS: -L/opt/homebrew/lib -L/usr/local/lib -lfaiss_c

#include <stdlib.h>
#include <faiss/c_api/Index_c.h>
#include <faiss/c_api/IndexFlat_c.h>
#include <faiss/c_api/error_c.h>
*/
import "C"

import (
	"context"
	"fmt"
	"sync"
	"unsafe"
)

// FAISSIndex wraps a FAISS IndexFlatL2. FAISS labels are positional, which matches
// the Store contract directly: label i is the i-th added vector since the last reset.
type FAISSIndex struct {
	index      *C.FaissIndex
	dimensions int
	mu         sync.RWMutex
}

// NewFAISSIndex creates an IndexFlatL2 with the given dimension.
func NewFAISSIndex(dimensions int) (*FAISSIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	var flat *C.FaissIndexFlatL2
	if ret := C.faiss_IndexFlatL2_new_with(&flat, C.idx_t(dimensions)); ret != 0 {
		return nil, fmt.Errorf("failed to create FAISS index: %s", faissLastError())
	}
	return &FAISSIndex{
		index:      (*C.FaissIndex)(unsafe.Pointer(flat)),
		dimensions: dimensions,
	}, nil
}

func faissLastError() string {
	cErr := C.faiss_get_last_error()
	if cErr == nil {
		return "unknown error"
	}
	return C.GoString(cErr)
}

// Type returns the index type identifier.
func (f *FAISSIndex) Type() string {
	return string(IndexTypeFAISS)
}

// Dimensions returns the vector dimension.
func (f *FAISSIndex) Dimensions() int {
	return f.dimensions
}

// Add appends vectors in order.
func (f *FAISSIndex) Add(ctx context.Context, vectors [][]float32) error {
	if len(vectors) == 0 {
		return nil
	}
	if err := checkDimensions(f.dimensions, vectors); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addLocked(vectors)
}

func (f *FAISSIndex) addLocked(vectors [][]float32) error {
	if len(vectors) == 0 {
		return nil
	}
	flat := appendRows(make([]float32, 0, len(vectors)*f.dimensions), vectors)
	ret := C.faiss_Index_add(f.index, C.idx_t(len(vectors)), (*C.float)(unsafe.Pointer(&flat[0])))
	if ret != 0 {
		return fmt.Errorf("failed to add vectors to FAISS index: %s", faissLastError())
	}
	return nil
}

// Search returns the k nearest vectors by squared L2 distance. FAISS picks
// arbitrarily among equal distances, so the search is widened until the k-th
// distance is strictly below the last fetched one; ties at the cut are then
// resolved by lower index like FlatIndex.
func (f *FAISSIndex) Search(ctx context.Context, query []float32, k int) ([]Neighbor, error) {
	if len(query) != f.dimensions {
		return nil, &DimensionMismatchError{Expected: f.dimensions, Got: len(query)}
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	ntotal := int(C.faiss_Index_ntotal(f.index))
	if k <= 0 || ntotal == 0 {
		return []Neighbor{}, nil
	}
	if k > ntotal {
		k = ntotal
	}
	fetch := min(k+1, ntotal)
	for {
		neighbors, err := f.searchLocked(query, fetch)
		if err != nil {
			return nil, err
		}
		sortNeighbors(neighbors)
		if fetch == ntotal || len(neighbors) <= k || neighbors[len(neighbors)-1].Distance > neighbors[k-1].Distance {
			if len(neighbors) > k {
				neighbors = neighbors[:k]
			}
			return neighbors, nil
		}
		fetch = min(fetch*2, ntotal)
	}
}

func (f *FAISSIndex) searchLocked(query []float32, n int) ([]Neighbor, error) {
	distances := make([]float32, n)
	labels := make([]int64, n)
	ret := C.faiss_Index_search(
		f.index,
		1,
		(*C.float)(unsafe.Pointer(&query[0])),
		C.idx_t(n),
		(*C.float)(unsafe.Pointer(&distances[0])),
		(*C.idx_t)(unsafe.Pointer(&labels[0])),
	)
	if ret != 0 {
		return nil, fmt.Errorf("FAISS search failed: %s", faissLastError())
	}
	neighbors := make([]Neighbor, 0, n)
	for i := 0; i < n; i++ {
		if labels[i] < 0 {
			continue
		}
		neighbors = append(neighbors, Neighbor{Index: int(labels[i]), Distance: distances[i]})
	}
	return neighbors, nil
}

// Reconstruct copies the stored vector at index i out of FAISS.
func (f *FAISSIndex) Reconstruct(i int) ([]float32, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	ntotal := int(C.faiss_Index_ntotal(f.index))
	if i < 0 || i >= ntotal {
		return nil, outOfRange(i, ntotal)
	}
	out := make([]float32, f.dimensions)
	if ret := C.faiss_Index_reconstruct(f.index, C.idx_t(i), (*C.float)(unsafe.Pointer(&out[0]))); ret != 0 {
		return nil, fmt.Errorf("FAISS reconstruct %d failed: %s", i, faissLastError())
	}
	return out, nil
}

// Rebuild resets the FAISS index and adds vectors.
func (f *FAISSIndex) Rebuild(ctx context.Context, vectors [][]float32) error {
	if err := checkDimensions(f.dimensions, vectors); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if ret := C.faiss_Index_reset(f.index); ret != 0 {
		return fmt.Errorf("FAISS reset failed: %s", faissLastError())
	}
	return f.addLocked(vectors)
}

// Size returns the number of vectors held by FAISS.
func (f *FAISSIndex) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.index == nil {
		return 0
	}
	return int(C.faiss_Index_ntotal(f.index))
}

// Close frees the FAISS index.
func (f *FAISSIndex) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.index != nil {
		C.faiss_Index_free(f.index)
		f.index = nil
	}
	return nil
}
