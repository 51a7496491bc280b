package index

import (
	"errors"
	"fmt"
)

// ErrLengthMismatch is returned by Add when chunks and vectors differ in count.
var ErrLengthMismatch = errors.New("chunks and vectors length mismatch")

// InvariantError reports a broken store/ledger pairing. It is raised with
// panic, never returned: it means the eviction logic is defective, not that
// the caller sent bad input.
type InvariantError struct {
	Op  string
	Err error
}

func (e *InvariantError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("index invariant violated during %s", e.Op)
	}
	return fmt.Sprintf("index invariant violated during %s: %v", e.Op, e.Err)
}

func (e *InvariantError) Unwrap() error {
	return e.Err
}
