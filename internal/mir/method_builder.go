package mir

import (
	"fmt"

	"dexjit/internal/bytecode"
	"dexjit/internal/trace"
)

// BuildMethod builds the CFG of the whole method in three passes: decode
// into one block while marking block starts, split at every marked offset,
// then link branch targets. A disagreement between the marks and the
// resulting blocks is reported as an *InvariantError.
func BuildMethod(u *Unit) error {
	size := u.Code.Len()
	if size == 0 {
		return fmt.Errorf("%w: %s: empty method", ErrMalformed, u.Name())
	}
	if err := u.scanMethod(); err != nil {
		return err
	}
	if err := u.splitMethod(); err != nil {
		return err
	}
	if err := u.linkMethod(); err != nil {
		return err
	}
	if u.Print {
		trace.Printf(u.Tracer, trace.ScopeAttempt, u.Span, "METHODINFO",
			"%d: %#x %s size %d, %d blocks", u.ID, u.Method.Addr, u.Method.Signature(), size, u.NumBlocks())
	}
	return nil
}

func (u *Unit) scanMethod() error {
	size := u.Code.Len()
	starts := NewStartSet(size)
	u.Starts = starts
	whole := u.NewBlock(BlockCode, 0)

	for off := uint32(0); off < size; {
		insn, width := bytecode.Decode(u.Code, off)
		next, err := u.Code.Advance(off, width)
		if err != nil {
			return fmt.Errorf("%w: %s: %s at %#x: %v", ErrMalformed, u.Name(), insn.Op, off, err)
		}
		u.AppendInstr(whole, insn, off)
		if u.Print {
			trace.Printf(u.Tracer, trace.ScopeInstr, u.Span, "insn", "%#06x: %s", off, insn)
		}
		if bd, ok := Classify(u.Method, insn, off); ok {
			starts.Mark(next)
			if bd.HasTarget && !starts.Mark(bd.Target) {
				return &InvariantError{Method: u.Name(), Pass: "mark", Offset: off, Target: bd.Target}
			}
		}
		off = next
	}
	u.TraceSize = size
	return nil
}

func (u *Unit) splitMethod() error {
	work := []BlockID{0}
	for len(work) > 0 {
		id := work[len(work)-1]
		work = work[:len(work)-1]

		first := u.Block(id).First
		at := NoInstr
		for iid, in := range u.Instrs(id) {
			if iid != first && u.Starts.IsStart(in.Offset) {
				at = iid
				break
			}
		}
		if at == NoInstr || u.findBlock(0, u.Instr(at).Offset) != NoBlock {
			continue
		}

		tail := u.SplitBlock(id, at)
		if !IsUnconditionalExit(u.LastInstr(id).Insn) {
			u.Block(id).FallThrough = tail
		}
		work = append(work, tail)
	}

	if want, got := u.Starts.ExpectedBlocks(), u.NumBlocks(); want != got {
		return &InvariantError{Method: u.Name(), Pass: "split", Expected: want, Actual: got}
	}
	return nil
}

func (u *Unit) linkMethod() error {
	for i := 0; i < u.NumBlocks(); i++ {
		id := BlockID(i)
		last := u.LastInstr(id)
		bd, ok := Classify(u.Method, last.Insn, last.Offset)
		if !ok || !bd.HasTarget {
			continue
		}
		from := BlockID(0)
		if bd.Target > last.Offset {
			from = id
		}
		target := u.findBlock(from, bd.Target)
		if target == NoBlock {
			return &InvariantError{Method: u.Name(), Pass: "link", Offset: last.Offset, Target: bd.Target}
		}
		u.Block(id).Taken = target
	}
	return nil
}
