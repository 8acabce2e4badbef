package backend

import (
	"fmt"

	"dexjit/internal/bytecode"
	"dexjit/internal/mir"
)

// Costs in 32-bit words.
const (
	wordsInvoke     = 6
	wordsBranch     = 2
	wordsDefault    = 3
	wordsSingleStep = 8
	wordsJump       = 1

	wordsCell       = 4
	wordsInvokeCell = 6
	wordsPCStub     = 2
	wordsExcept     = 3

	// HeaderSize precedes the entry point of every translation.
	HeaderSize = 8
)

// Program is the lowered form of a unit.
type Program struct {
	Words []uint32
	Cells []Cell
	// Stubs counts PC reconstruction stubs, one per throwing instruction.
	Stubs int
	Insts int
}

// Lower walks u in block order and emits its cost-model encoding.
func Lower(u *mir.Unit) (*Program, error) {
	p := &Program{}
	throwing := 0
	for id, b := range u.Blocks() {
		switch b.Kind {
		case mir.BlockCode:
			for _, in := range u.Instrs(id) {
				p.emitInsn(in, u.AllSingleStep)
				if in.Insn.Flags().Has(bytecode.CanThrow) {
					throwing++
				}
			}
			if b.NeedFallThroughBranch {
				p.Words = append(p.Words, encode(0xff, b.FallThrough))
			}
		case mir.BlockChainingNormal, mir.BlockChainingHot:
			p.emitCell(b, wordsCell)
		case mir.BlockChainingInvoke:
			p.emitCell(b, wordsInvokeCell)
		case mir.BlockPCReconstruction:
			for i := 0; i < throwing; i++ {
				p.pad(0xfe, uint32(i), wordsPCStub)
			}
			p.Stubs = throwing
		case mir.BlockExceptionHandling:
			p.pad(0xfd, 0, wordsExcept)
		default:
			return nil, fmt.Errorf("backend: %s: unknown block kind %s", id, b.Kind)
		}
	}
	return p, nil
}

func (p *Program) emitInsn(in *mir.Instr, singleStep bool) {
	p.Insts++
	n := wordsDefault
	switch {
	case singleStep:
		n = wordsSingleStep
	case in.Insn.Pseudo != 0:
		n = int(in.Width+1) / 2
	case in.Insn.Flags().Has(bytecode.Invoke):
		n = wordsInvoke
	case in.Insn.Flags().Any(bytecode.CanBranch | bytecode.CanSwitch):
		n = wordsBranch
	}
	p.pad(uint8(in.Insn.Op), in.Offset, n)
}

func (p *Program) emitCell(b *mir.Block, words int) {
	c := Cell{Kind: b.Kind, Offset: b.StartOffset}
	if b.Callee != nil {
		c.Callee = b.Callee.Ref()
		c.Target = b.Callee.Addr
	}
	p.Cells = append(p.Cells, c)
	p.pad(0xf0|uint8(b.Kind), b.StartOffset, words)
}

// pad appends n words, the first tagged with op and arg.
func (p *Program) pad(op uint8, arg uint32, n int) {
	p.Words = append(p.Words, uint32(op)<<24|arg&0xffffff)
	for i := 1; i < n; i++ {
		p.Words = append(p.Words, 0)
	}
}

func encode(op uint8, target mir.BlockID) uint32 {
	return uint32(op)<<24 | uint32(target)&0xffffff
}
