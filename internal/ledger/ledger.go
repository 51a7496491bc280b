// Package ledger keeps chunk texts in insertion order, addressed by the same
// positional index as the vectors they were embedded from.
package ledger

import (
	"errors"
	"fmt"
)

// ErrIndexOutOfRange is returned by Get for a position that holds no chunk.
var ErrIndexOutOfRange = errors.New("ledger index out of range")

// Ledger is an ordered list of chunk texts. It is not safe for concurrent
// use; the owner serializes access.
type Ledger struct {
	chunks []string
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{}
}

// Append adds chunks at the end, preserving their order.
func (l *Ledger) Append(chunks []string) {
	l.chunks = append(l.chunks, chunks...)
}

// Get returns the chunk at position i.
func (l *Ledger) Get(i int) (string, error) {
	if i < 0 || i >= len(l.chunks) {
		return "", fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, i, len(l.chunks))
	}
	return l.chunks[i], nil
}

// Slice returns a copy of the chunks from position from to the end.
// from is clamped to [0, Len].
func (l *Ledger) Slice(from int) []string {
	if from < 0 {
		from = 0
	}
	if from > len(l.chunks) {
		from = len(l.chunks)
	}
	out := make([]string, len(l.chunks)-from)
	copy(out, l.chunks[from:])
	return out
}

// Replace discards the current contents and stores chunks, position 0 first.
func (l *Ledger) Replace(chunks []string) {
	l.chunks = append(make([]string, 0, len(chunks)), chunks...)
}

// Len returns the number of stored chunks.
func (l *Ledger) Len() int {
	return len(l.chunks)
}
