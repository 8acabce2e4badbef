package mir

import (
	"fmt"
	"io"
)

// Dump writes a human-readable listing of u. It only reads the unit.
func Dump(w io.Writer, u *Unit) error {
	if w == nil || u == nil {
		return nil
	}
	mode := "method"
	if u.Trace != nil {
		mode = "trace " + u.Trace.Name
	}
	if _, err := fmt.Fprintf(w, "unit %d %s (%s) insns=%d size=%d blocks=%d", u.ID, u.Method.Ref(), mode, u.NumInsts, u.TraceSize, u.NumBlocks()); err != nil {
		return err
	}
	if u.AllSingleStep {
		fmt.Fprint(w, " single-step")
	}
	fmt.Fprintln(w)

	for id, b := range u.Blocks() {
		fmt.Fprintf(w, "%s %s @%#x", id, b.Kind, b.StartOffset)
		if b.Taken != NoBlock {
			fmt.Fprintf(w, " taken=%s", b.Taken)
		}
		if b.FallThrough != NoBlock {
			fmt.Fprintf(w, " fallthrough=%s", b.FallThrough)
		}
		if b.NeedFallThroughBranch {
			fmt.Fprint(w, " explicit-branch")
		}
		if b.Callee != nil {
			fmt.Fprintf(w, " callee=%s@%#x", b.Callee.Ref(), b.Callee.Addr)
		}
		fmt.Fprintln(w)
		for _, in := range u.Instrs(id) {
			fmt.Fprintf(w, "  %#06x: %s\n", in.Offset, in.Insn)
		}
	}
	return nil
}
