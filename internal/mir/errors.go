package mir

import (
	"errors"
	"fmt"
)

var (
	// ErrInvariant marks a CFG that contradicts what the builder predicted.
	// It indicates a builder defect and must never be retried.
	ErrInvariant = errors.New("mir: internal consistency violation")
	// ErrMalformed reports bytecode the decoder cannot walk.
	ErrMalformed = errors.New("mir: malformed bytecode")
	// ErrBadCeiling reports a non-positive instruction ceiling.
	ErrBadCeiling = errors.New("mir: instruction ceiling must be positive")
)

// InvariantError carries the numbers behind an ErrInvariant failure.
type InvariantError struct {
	Method string
	Pass   string // "mark", "split" or "link"
	// split: predicted and produced block counts
	Expected, Actual int
	// link and mark: the branch and the offset it targets
	Offset, Target uint32
}

func (e *InvariantError) Error() string {
	switch e.Pass {
	case "split":
		return fmt.Sprintf("%s: %s: expected %d blocks, split %d", e.Method, e.Pass, e.Expected, e.Actual)
	default:
		return fmt.Sprintf("%s: %s: branch at %#x targets %#x, which starts no block", e.Method, e.Pass, e.Offset, e.Target)
	}
}

func (e *InvariantError) Unwrap() error { return ErrInvariant }
