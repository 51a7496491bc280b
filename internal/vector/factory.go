package vector

import "fmt"

// IndexType names a Store implementation.
type IndexType string

const (
	// IndexTypeFlat is the pure-Go brute-force index. It is the default.
	IndexTypeFlat IndexType = "flat"
	// IndexTypeFAISS is FAISS IndexFlatL2; requires cgo and -tags=faiss.
	IndexTypeFAISS IndexType = "faiss"
)

// NewStore creates a store of the given type. An empty type selects flat.
func NewStore(indexType string, dimensions int) (Store, error) {
	var (
		store Store
		err   error
	)
	switch IndexType(indexType) {
	case IndexTypeFlat, "":
		store, err = NewFlatIndex(dimensions)
	case IndexTypeFAISS:
		store, err = NewFAISSIndex(dimensions)
	default:
		return nil, fmt.Errorf("unknown index type: %s (supported: flat, faiss)", indexType)
	}
	if err != nil {
		// Keep a typed nil pointer from leaking out as a non-nil Store.
		return nil, err
	}
	return store, nil
}

// IsFAISSAvailable reports whether FAISS support is compiled in.
func IsFAISSAvailable() bool {
	idx, err := NewFAISSIndex(1)
	if err != nil {
		return false
	}
	_ = idx.Close()
	return true
}
