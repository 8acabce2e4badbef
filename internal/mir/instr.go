package mir

import "dexjit/internal/bytecode"

// InstrID indexes the unit's instruction nodes.
type InstrID int32

// NoInstr marks the end of a block's instruction list.
const NoInstr InstrID = -1

// Instr wraps one decoded instruction at its code offset.
type Instr struct {
	Insn   bytecode.Instruction
	Offset uint32
	Width  uint32
	Block  BlockID
	Prev   InstrID
	Next   InstrID
}

// FallThroughOffset is the offset of the instruction that follows.
func (in *Instr) FallThroughOffset() uint32 {
	return in.Offset + in.Width
}
