package bytecode

import (
	"fmt"
	"strings"
)

// Instruction is one decoded instruction. It is immutable once returned by
// Decode.
type Instruction struct {
	Op     Opcode
	Format Format
	VA     uint32
	VB     uint32
	VBWide uint64
	VC     uint32
	Args   [5]uint32
	// Pseudo is non-zero for inline data payloads (switch tables, array
	// data); it holds the signature code unit.
	Pseudo uint16
	Width  uint32
}

// Flags returns the control-flow flags of the instruction's opcode.
func (in Instruction) Flags() Flags {
	if in.Pseudo != 0 {
		return 0
	}
	return in.Op.Flags()
}

// Decode decodes the instruction at off and returns it with its width in
// code units.
func Decode(code CodeView, off uint32) (Instruction, uint32) {
	first := code.Unit(off)
	op := Opcode(first & 0xff)

	var width uint32
	var pseudo uint16
	if op == OpNop && first != 0 {
		pseudo = first
		width = pseudoWidth(code, off, first)
	} else {
		width = uint32(op.Width())
	}

	in := decodeOperands(code, off, op)
	in.Pseudo = pseudo
	in.Width = width
	return in, width
}

// pseudoWidth sizes an inline data payload from its header.
func pseudoWidth(code CodeView, off uint32, signature uint16) uint32 {
	switch signature {
	case PackedSwitchSignature:
		return 4 + uint32(code.unitOrZero(off+1))*2
	case SparseSwitchSignature:
		return 2 + uint32(code.unitOrZero(off+1))*4
	case ArrayDataSignature:
		elemWidth := uint64(code.unitOrZero(off + 1))
		size := uint64(code.unitOrZero(off+2)) | uint64(code.unitOrZero(off+3))<<16
		// round up for odd size*width
		return uint32(4 + (size*elemWidth+1)/2)
	default:
		// nop with garbage in the high byte
		return 1
	}
}

func decodeOperands(code CodeView, off uint32, op Opcode) Instruction {
	first := code.Unit(off)
	in := Instruction{Op: op, Format: op.Format()}
	unit := func(i uint32) uint16 { return code.unitOrZero(off + i) }

	switch in.Format {
	case Fmt10x:
	case Fmt12x:
		in.VA = uint32(first>>8) & 0x0f
		in.VB = uint32(first >> 12)
	case Fmt11n:
		in.VA = uint32(first>>8) & 0x0f
		in.VB = uint32(int32(int16(first)) >> 12)
	case Fmt11x:
		in.VA = uint32(first >> 8)
	case Fmt10t:
		in.VA = uint32(int32(int8(first >> 8)))
	case Fmt20t:
		in.VA = uint32(int32(int16(unit(1))))
	case Fmt20bc, Fmt22x, Fmt21c:
		in.VA = uint32(first >> 8)
		in.VB = uint32(unit(1))
	case Fmt21t, Fmt21s:
		in.VA = uint32(first >> 8)
		in.VB = uint32(int32(int16(unit(1))))
	case Fmt21h:
		in.VA = uint32(first >> 8)
		in.VB = uint32(unit(1))
	case Fmt23x:
		in.VA = uint32(first >> 8)
		in.VB = uint32(unit(1) & 0xff)
		in.VC = uint32(unit(1) >> 8)
	case Fmt22b:
		in.VA = uint32(first >> 8)
		in.VB = uint32(unit(1) & 0xff)
		in.VC = uint32(int32(int8(unit(1) >> 8)))
	case Fmt22t, Fmt22s:
		in.VA = uint32(first>>8) & 0x0f
		in.VB = uint32(first >> 12)
		in.VC = uint32(int32(int16(unit(1))))
	case Fmt22c, Fmt22cs:
		in.VA = uint32(first>>8) & 0x0f
		in.VB = uint32(first >> 12)
		in.VC = uint32(unit(1))
	case Fmt32x:
		in.VA = uint32(unit(1))
		in.VB = uint32(unit(2))
	case Fmt30t:
		in.VA = uint32(unit(1)) | uint32(unit(2))<<16
	case Fmt31t, Fmt31i, Fmt31c:
		in.VA = uint32(first >> 8)
		in.VB = uint32(unit(1)) | uint32(unit(2))<<16
	case Fmt35c, Fmt35ms, Fmt35fs:
		in.VA = uint32(first >> 12)
		in.VB = uint32(unit(1))
		regs := unit(2)
		count := in.VA
		if count > 5 {
			count = 5
		}
		if count == 5 {
			in.Args[4] = uint32(first>>8) & 0x0f
			count = 4
		}
		for i := uint32(0); i < count; i++ {
			in.Args[i] = uint32(regs>>(4*i)) & 0x0f
		}
		if in.VA > 0 {
			in.VC = in.Args[0]
		}
	case Fmt3rc, Fmt3rms:
		in.VA = uint32(first >> 8)
		in.VB = uint32(unit(1))
		in.VC = uint32(unit(2))
	case Fmt51l:
		in.VA = uint32(first >> 8)
		in.VBWide = uint64(unit(1)) | uint64(unit(2))<<16 | uint64(unit(3))<<32 | uint64(unit(4))<<48
	}
	return in
}

// BranchOffset returns the signed branch displacement operand for gotos and
// conditional branches.
func (in Instruction) BranchOffset() (int32, bool) {
	switch in.Format {
	case Fmt10t, Fmt20t, Fmt30t:
		return int32(in.VA), true
	case Fmt22t:
		return int32(in.VC), true
	case Fmt21t:
		return int32(in.VB), true
	}
	return 0, false
}

// String renders the instruction in disassembly form.
func (in Instruction) String() string {
	if in.Pseudo != 0 {
		switch in.Pseudo {
		case PackedSwitchSignature:
			return fmt.Sprintf("packed-switch-data (%d units)", in.Width)
		case SparseSwitchSignature:
			return fmt.Sprintf("sparse-switch-data (%d units)", in.Width)
		case ArrayDataSignature:
			return fmt.Sprintf("array-data (%d units)", in.Width)
		}
	}
	name := in.Op.String()
	switch in.Format {
	case Fmt10x:
		return name
	case Fmt12x:
		return fmt.Sprintf("%s v%d, v%d", name, in.VA, in.VB)
	case Fmt11n:
		return fmt.Sprintf("%s v%d, #%d", name, in.VA, int32(in.VB))
	case Fmt11x:
		return fmt.Sprintf("%s v%d", name, in.VA)
	case Fmt10t, Fmt20t, Fmt30t:
		return fmt.Sprintf("%s %+d", name, int32(in.VA))
	case Fmt21t:
		return fmt.Sprintf("%s v%d, %+d", name, in.VA, int32(in.VB))
	case Fmt21s:
		return fmt.Sprintf("%s v%d, #%d", name, in.VA, int32(in.VB))
	case Fmt22t:
		return fmt.Sprintf("%s v%d, v%d, %+d", name, in.VA, in.VB, int32(in.VC))
	case Fmt22s, Fmt22b:
		return fmt.Sprintf("%s v%d, v%d, #%d", name, in.VA, in.VB, int32(in.VC))
	case Fmt23x:
		return fmt.Sprintf("%s v%d, v%d, v%d", name, in.VA, in.VB, in.VC)
	case Fmt35c, Fmt35ms, Fmt35fs:
		regs := make([]string, 0, 5)
		for i := uint32(0); i < in.VA && i < 5; i++ {
			regs = append(regs, fmt.Sprintf("v%d", in.Args[i]))
		}
		return fmt.Sprintf("%s {%s}, @%d", name, strings.Join(regs, ", "), in.VB)
	case Fmt3rc, Fmt3rms:
		if in.VA == 0 {
			return fmt.Sprintf("%s {}, @%d", name, in.VB)
		}
		return fmt.Sprintf("%s {v%d .. v%d}, @%d", name, in.VC, in.VC+in.VA-1, in.VB)
	case Fmt51l:
		return fmt.Sprintf("%s v%d, #%d", name, in.VA, int64(in.VBWide))
	default:
		return fmt.Sprintf("%s v%d, %d", name, in.VA, in.VB)
	}
}
