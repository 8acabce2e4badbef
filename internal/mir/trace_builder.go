package mir

import (
	"fmt"

	"dexjit/internal/bytecode"
	"dexjit/internal/trace"
)

type traceState uint8

const (
	stateAccumulating traceState = iota
	stateRunBoundary
	stateLinking
	stateDone
)

// BuildTrace decodes u.Trace into u, stopping after ceiling instructions,
// and closes the CFG with chaining cells and the two epilogue blocks.
func BuildTrace(u *Unit, ceiling int) error {
	desc := u.Trace
	if desc == nil || len(desc.Runs) == 0 {
		return fmt.Errorf("mir: %s: no trace runs", u.Name())
	}
	if ceiling <= 0 {
		return ErrBadCeiling
	}
	for i, r := range desc.Runs {
		if r.NumInsts == 0 {
			return fmt.Errorf("%w: %s: run %d is empty", ErrMalformed, u.Name(), i)
		}
	}

	run := 0
	off := desc.Runs[0].StartOffset
	left := desc.Runs[0].NumInsts
	cur := u.NewBlock(BlockCode, off)

	state := stateAccumulating
	for state != stateDone {
		switch state {
		case stateAccumulating:
			if off >= u.Code.Len() {
				return fmt.Errorf("%w: %s: run %d reaches %#x, code size is %#x", ErrMalformed, u.Name(), run, off, u.Code.Len())
			}
			insn, width := bytecode.Decode(u.Code, off)
			next, err := u.Code.Advance(off, width)
			if err != nil {
				return fmt.Errorf("%w: %s: %s at %#x: %v", ErrMalformed, u.Name(), insn.Op, off, err)
			}
			u.AppendInstr(cur, insn, off)
			u.TraceSize += width
			if u.Print {
				trace.Printf(u.Tracer, trace.ScopeInstr, u.Span, "insn", "%#06x: %s", off, insn)
			}
			off = next
			left--
			switch {
			case u.NumInsts >= ceiling:
				state = stateLinking
			case left == 0:
				state = stateRunBoundary
			}

		case stateRunBoundary:
			if desc.Runs[run].RunEnd || run == len(desc.Runs)-1 {
				state = stateLinking
				continue
			}
			run++
			off = desc.Runs[run].StartOffset
			left = desc.Runs[run].NumInsts
			nb := u.NewBlock(BlockCode, off)
			u.Block(cur).Next = nb
			cur = nb
			state = stateAccumulating

		case stateLinking:
			u.linkTrace()
			state = stateDone
		}
	}

	u.NewBlock(BlockPCReconstruction, 0)
	u.NewBlock(BlockExceptionHandling, 0)

	if u.Print {
		trace.Printf(u.Tracer, trace.ScopeAttempt, u.Span, "TRACEINFO",
			"%d: %#x %s %#x %d of %d, %d blocks",
			u.ID, u.Method.Addr, u.Method.Signature(), desc.Runs[0].StartOffset,
			u.TraceSize, u.Code.Len(), u.NumBlocks())
	}
	return nil
}

// linkTrace resolves successors of every code block, searching only
// forward, and appends a fresh chaining cell for each edge that leaves the
// compiled region.
func (u *Unit) linkTrace() {
	for _, id := range u.CodeBlocks() {
		last := u.LastInstr(id)
		insn := last.Insn
		flags := insn.Flags()
		ft := last.FallThroughOffset()
		bd, _ := Classify(u.Method, insn, last.Offset)
		// only a trace cut short by the ceiling ends in such an instruction
		needFT := !flags.ChangesFlow()

		taken := NoBlock
		if bd.HasTarget {
			taken = u.findBlock(id+1, bd.Target)
		}
		fall := u.findBlock(id+1, ft)

		if taken == NoBlock {
			switch {
			case bd.Redirect:
				taken = u.NewBlock(BlockChainingInvoke, 0)
				u.Block(taken).Callee = bd.Callee
			case bd.HasTarget:
				kind := BlockChainingNormal
				if flags.Has(bytecode.Unconditional) {
					kind = BlockChainingHot
				}
				taken = u.NewBlock(kind, bd.Target)
			}
		}
		if fall == NoBlock && !IsUnconditionalExit(insn) {
			kind := BlockChainingNormal
			if bd.IsInvoke || needFT {
				kind = BlockChainingHot
			}
			fall = u.NewBlock(kind, ft)
		}

		b := u.Block(id)
		b.Taken = taken
		b.FallThrough = fall
		b.NeedFallThroughBranch = needFT
	}
}
