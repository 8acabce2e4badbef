// Package backend turns a finished CFG into a translation in the shared
// code cache.
//
// Native is a reference backend. It does no instruction selection; it
// lowers each block to encoded words sized by a fixed cost model, which is
// enough to exercise the size budget, the code cache and chaining.
package backend

import (
	"context"
	"errors"

	"dexjit/internal/mir"
)

var (
	// ErrCodeTooLarge means the translation does not fit the per-trace
	// budget. Trace compilation retries with fewer instructions.
	ErrCodeTooLarge = errors.New("backend: translation exceeds size budget")
	// ErrCacheFull means the code cache has no room left. It is not retried.
	ErrCacheFull = errors.New("backend: code cache full")
)

// Backend consumes a finished unit. It must not keep references into the
// unit after Compile returns.
type Backend interface {
	Compile(ctx context.Context, u *mir.Unit) (Translation, error)
}

// Cell records a chaining cell of an installed translation.
type Cell struct {
	Kind mir.BlockKind
	// Offset is the bytecode offset the cell resumes at.
	Offset uint32
	// Callee and Target describe an invoke cell with a known redirect.
	Callee string
	Target uint64
}

// Translation is an installed piece of code.
type Translation struct {
	BaseAddr   uint64
	HeaderSize uint32
	Size       uint32
	Insts      int
	Cells      []Cell
}

// Entry is the address execution jumps to.
func (t Translation) Entry() uint64 {
	return t.BaseAddr + uint64(t.HeaderSize)
}
