package mir

import (
	"fmt"

	"dexjit/internal/meta"
)

// BlockID indexes Unit blocks; it equals the block's creation order.
type BlockID int32

// NoBlock marks an absent successor.
const NoBlock BlockID = -1

func (id BlockID) String() string {
	if id == NoBlock {
		return "-"
	}
	return fmt.Sprintf("bb%d", int32(id))
}

// BlockKind classifies a block.
type BlockKind uint8

const (
	BlockCode BlockKind = iota
	// BlockChainingNormal re-enters the VM through a guarded path.
	BlockChainingNormal
	// BlockChainingHot chains to a frequently taken single successor.
	BlockChainingHot
	// BlockChainingInvoke chains into a statically resolved callee.
	BlockChainingInvoke
	BlockPCReconstruction
	BlockExceptionHandling
)

func (k BlockKind) String() string {
	switch k {
	case BlockCode:
		return "code"
	case BlockChainingNormal:
		return "chain-normal"
	case BlockChainingHot:
		return "chain-hot"
	case BlockChainingInvoke:
		return "chain-invoke"
	case BlockPCReconstruction:
		return "pc-reconstruction"
	case BlockExceptionHandling:
		return "exception-handling"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// IsChainingCell reports whether k is one of the chaining cell kinds.
func (k BlockKind) IsChainingCell() bool {
	return k >= BlockChainingNormal && k <= BlockChainingInvoke
}

// Block is a basic block. Code blocks own a contiguous run of instruction
// nodes; chaining cells and epilogue blocks own none.
type Block struct {
	ID          BlockID
	Kind        BlockKind
	StartOffset uint32
	First, Last InstrID
	NumInsts    int

	Taken       BlockID
	FallThrough BlockID
	// Next chains code blocks in creation order across trace runs.
	Next BlockID
	// NeedFallThroughBranch is set when the last instruction cannot leave
	// the block on its own and the backend must emit an explicit jump.
	NeedFallThroughBranch bool
	// Callee is the redirect target of an invoke chaining cell, nil if
	// unknown.
	Callee *meta.Method
}
