package mir

import (
	"fmt"
	"iter"

	"dexjit/internal/arena"
	"dexjit/internal/bytecode"
	"dexjit/internal/meta"
	"dexjit/internal/trace"
)

// Unit is the compilation context of a single attempt. It is not safe for
// concurrent use and must not be touched after its arena is reset.
type Unit struct {
	ID     uint64
	Method *meta.Method
	// Trace is nil when compiling a whole method.
	Trace *meta.Trace
	Code  bytecode.CodeView

	// NumInsts counts instructions added to code blocks.
	NumInsts int
	// TraceSize is the number of code units the attempt covers.
	TraceSize uint32

	// Print forces instruction and summary events out to the tracer.
	Print bool
	// AllSingleStep asks the backend for the degraded single-step
	// translation.
	AllSingleStep bool

	// Starts is the block-start bit-vector, method mode only.
	Starts *StartSet

	Tracer trace.Tracer
	// Span is the enclosing trace span.
	Span uint64

	arena  *arena.Arena
	blocks *arena.Slab[Block]
	instrs *arena.Slab[Instr]
}

// NewUnit prepares an empty unit for m in the current epoch of a.
func NewUnit(a *arena.Arena, m *meta.Method) (*Unit, error) {
	if m == nil {
		return nil, fmt.Errorf("mir: nil method")
	}
	if m.Native {
		return nil, fmt.Errorf("mir: %s is native", m.Ref())
	}
	code, err := m.CodeView()
	if err != nil {
		return nil, fmt.Errorf("mir: %s: %w", m.Ref(), err)
	}
	return &Unit{
		Method: m,
		Code:   code,
		Tracer: trace.Nop,
		arena:  a,
		blocks: arena.NewSlab[Block](a, 8),
		instrs: arena.NewSlab[Instr](a, int(code.Len())),
	}, nil
}

// Arena returns the arena the unit allocates from.
func (u *Unit) Arena() *arena.Arena { return u.arena }

// NumBlocks returns the number of blocks created so far.
func (u *Unit) NumBlocks() int { return u.blocks.Len() }

// Block returns block id. The pointer is invalidated by NewBlock.
func (u *Unit) Block(id BlockID) *Block {
	return u.blocks.At(int(id))
}

// Instr returns node id. The pointer is invalidated by AppendInstr.
func (u *Unit) Instr(id InstrID) *Instr {
	return u.instrs.At(int(id))
}

// NewBlock appends an empty block of kind starting at off.
func (u *Unit) NewBlock(kind BlockKind, off uint32) BlockID {
	id := BlockID(u.blocks.Alloc())
	b := u.blocks.At(int(id))
	*b = Block{
		ID:          id,
		Kind:        kind,
		StartOffset: off,
		First:       NoInstr,
		Last:        NoInstr,
		Taken:       NoBlock,
		FallThrough: NoBlock,
		Next:        NoBlock,
	}
	return id
}

// AppendInstr adds insn at off to the end of block b.
func (u *Unit) AppendInstr(b BlockID, insn bytecode.Instruction, off uint32) InstrID {
	id := InstrID(u.instrs.Alloc())
	blk := u.Block(b)
	*u.instrs.At(int(id)) = Instr{
		Insn:   insn,
		Offset: off,
		Width:  insn.Width,
		Block:  b,
		Prev:   blk.Last,
		Next:   NoInstr,
	}
	if blk.Last != NoInstr {
		u.Instr(blk.Last).Next = id
	} else {
		blk.First = id
	}
	blk.Last = id
	blk.NumInsts++
	if blk.Kind == BlockCode {
		u.NumInsts++
	}
	return id
}

// SplitBlock moves instruction at, and everything after it, from block b
// into a new code block and returns the new block. Successor edges are
// left to the caller.
func (u *Unit) SplitBlock(b BlockID, at InstrID) BlockID {
	tail := u.NewBlock(BlockCode, u.Instr(at).Offset)
	head := u.Block(b)
	nb := u.Block(tail)

	nb.First = at
	nb.Last = head.Last
	head.Last = u.Instr(at).Prev
	if head.Last == NoInstr {
		head.First = NoInstr
	} else {
		u.Instr(head.Last).Next = NoInstr
	}
	u.Instr(at).Prev = NoInstr

	for id := at; id != NoInstr; id = u.Instr(id).Next {
		u.Instr(id).Block = tail
		nb.NumInsts++
	}
	head.NumInsts -= nb.NumInsts
	return tail
}

// Instrs iterates block b's instructions in order.
func (u *Unit) Instrs(b BlockID) iter.Seq2[InstrID, *Instr] {
	return func(yield func(InstrID, *Instr) bool) {
		for id := u.Block(b).First; id != NoInstr; {
			in := u.Instr(id)
			if !yield(id, in) {
				return
			}
			id = in.Next
		}
	}
}

// LastInstr returns the final instruction of b, or nil for an empty block.
func (u *Unit) LastInstr(b BlockID) *Instr {
	last := u.Block(b).Last
	if last == NoInstr {
		return nil
	}
	return u.Instr(last)
}

// Blocks iterates every block in creation order.
func (u *Unit) Blocks() iter.Seq2[BlockID, *Block] {
	return func(yield func(BlockID, *Block) bool) {
		for i := 0; i < u.blocks.Len(); i++ {
			if !yield(BlockID(i), u.blocks.At(i)) {
				return
			}
		}
	}
}

// CodeBlocks returns the ids of all code blocks in creation order.
func (u *Unit) CodeBlocks() []BlockID {
	var ids []BlockID
	for id, b := range u.Blocks() {
		if b.Kind == BlockCode {
			ids = append(ids, id)
		}
	}
	return ids
}

// CountKind returns how many blocks of kind exist.
func (u *Unit) CountKind(kind BlockKind) int {
	n := 0
	for _, b := range u.Blocks() {
		if b.Kind == kind {
			n++
		}
	}
	return n
}

// findBlock searches blocks [from, NumBlocks) for a code block starting at
// off.
func (u *Unit) findBlock(from BlockID, off uint32) BlockID {
	for i := int(from); i < u.blocks.Len(); i++ {
		b := u.blocks.At(i)
		if b.Kind == BlockCode && b.StartOffset == off {
			return BlockID(i)
		}
	}
	return NoBlock
}

// Name is the method reference used in diagnostics.
func (u *Unit) Name() string {
	return u.Method.Ref()
}
