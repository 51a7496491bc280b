// Package vector provides exact nearest-neighbor stores over fixed-dimension float32 vectors.
// Entries are addressed by their insertion position; there is no per-entry delete.
package vector

import (
	"context"
	"errors"
	"fmt"
)

// Store is a positional vector index searched by squared Euclidean distance.
type Store interface {
	// Add appends vectors in order. Nothing is appended if any vector has the wrong dimension.
	Add(ctx context.Context, vectors [][]float32) error
	// Search returns up to k neighbors ascending by distance, ties broken by lower index.
	// An empty store yields an empty result and no error.
	Search(ctx context.Context, query []float32, k int) ([]Neighbor, error)
	// Reconstruct returns a copy of the vector stored at index i.
	Reconstruct(i int) ([]float32, error)
	// Rebuild discards all contents and stores vectors in order.
	Rebuild(ctx context.Context, vectors [][]float32) error
	Size() int
	Dimensions() int
	Type() string
	Close() error
}

// Neighbor is a single search hit: the positional index and its squared L2 distance to the query.
type Neighbor struct {
	Index    int
	Distance float32
}

// ErrDimensionMismatch is matched by every DimensionMismatchError via errors.Is.
var ErrDimensionMismatch = errors.New("dimension mismatch")

// ErrIndexOutOfRange is returned when a positional index does not address a stored vector.
var ErrIndexOutOfRange = errors.New("index out of range")

// DimensionMismatchError reports a vector whose length differs from the store dimension.
type DimensionMismatchError struct {
	Expected int
	Got      int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}

// Is lets errors.Is(err, ErrDimensionMismatch) match.
func (e *DimensionMismatchError) Is(target error) bool {
	return target == ErrDimensionMismatch
}

func checkDimensions(dimensions int, vectors [][]float32) error {
	for _, v := range vectors {
		if len(v) != dimensions {
			return &DimensionMismatchError{Expected: dimensions, Got: len(v)}
		}
	}
	return nil
}

func outOfRange(i, size int) error {
	return fmt.Errorf("%w: %d (size %d)", ErrIndexOutOfRange, i, size)
}
