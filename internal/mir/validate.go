package mir

import (
	"errors"
	"fmt"
)

// Validate checks the structural invariants of a finished unit.
// Returns every violation found, joined.
func Validate(u *Unit) error {
	if u == nil {
		return nil
	}
	var errs []error

	// 1. Block ids match positions, successors are in range
	if err := validateBlockIDs(u); err != nil {
		errs = append(errs, err)
	}

	// 2. Instruction runs are contiguous and owned by their block
	if err := validateInstrRuns(u); err != nil {
		errs = append(errs, err)
	}

	// 3. Branches have taken edges, non-exits have fallthrough edges
	if err := validateEdges(u); err != nil {
		errs = append(errs, err)
	}

	// 4. Mode-specific shape
	if u.Trace != nil {
		if err := validateTraceShape(u); err != nil {
			errs = append(errs, err)
		}
	} else if err := validateMethodShape(u); err != nil {
		errs = append(errs, err)
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%s: %w", u.Name(), err)
	}
	return nil
}

func validateBlockIDs(u *Unit) error {
	var errs []error
	n := BlockID(u.NumBlocks())
	inRange := func(id BlockID) bool { return id == NoBlock || (id >= 0 && id < n) }
	for id, b := range u.Blocks() {
		if b.ID != id {
			errs = append(errs, fmt.Errorf("%s: recorded id %s", id, b.ID))
		}
		if !inRange(b.Taken) || !inRange(b.FallThrough) || !inRange(b.Next) {
			errs = append(errs, fmt.Errorf("%s: successor out of range (taken=%s fallthrough=%s next=%s)", id, b.Taken, b.FallThrough, b.Next))
		}
	}
	return errors.Join(errs...)
}

func validateInstrRuns(u *Unit) error {
	var errs []error
	total := 0
	for id, b := range u.Blocks() {
		if b.Kind != BlockCode {
			if b.First != NoInstr {
				errs = append(errs, fmt.Errorf("%s: %s block owns instructions", id, b.Kind))
			}
			continue
		}
		if b.First == NoInstr {
			errs = append(errs, fmt.Errorf("%s: empty code block", id))
			continue
		}
		if u.Instr(b.First).Offset != b.StartOffset {
			errs = append(errs, fmt.Errorf("%s: starts at %#x, first instruction at %#x", id, b.StartOffset, u.Instr(b.First).Offset))
		}
		count := 0
		var prev *Instr
		for _, in := range u.Instrs(id) {
			if in.Block != id {
				errs = append(errs, fmt.Errorf("%s: instruction at %#x owned by %s", id, in.Offset, in.Block))
			}
			if prev != nil && prev.FallThroughOffset() != in.Offset {
				errs = append(errs, fmt.Errorf("%s: gap between %#x and %#x", id, prev.Offset, in.Offset))
			}
			prev = in
			count++
		}
		if count != b.NumInsts {
			errs = append(errs, fmt.Errorf("%s: holds %d instructions, counted %d", id, count, b.NumInsts))
		}
		total += count
	}
	if total != u.NumInsts {
		errs = append(errs, fmt.Errorf("unit counts %d instructions, blocks hold %d", u.NumInsts, total))
	}
	return errors.Join(errs...)
}

func validateEdges(u *Unit) error {
	var errs []error
	for _, id := range u.CodeBlocks() {
		b := u.Block(id)
		last := u.LastInstr(id)
		if last == nil {
			continue
		}
		bd, _ := Classify(u.Method, last.Insn, last.Offset)
		if bd.HasTarget && b.Taken == NoBlock {
			errs = append(errs, fmt.Errorf("%s: branch at %#x has no taken edge", id, last.Offset))
		}
		// a method may end in a throw
		atEnd := u.Trace == nil && last.FallThroughOffset() == u.Code.Len()
		if !IsUnconditionalExit(last.Insn) && b.FallThrough == NoBlock && !atEnd {
			errs = append(errs, fmt.Errorf("%s: %s at %#x has no fallthrough edge", id, last.Insn.Op, last.Offset))
		}
	}
	return errors.Join(errs...)
}

func validateTraceShape(u *Unit) error {
	n := u.NumBlocks()
	if n < 3 {
		return fmt.Errorf("trace has %d blocks", n)
	}
	if u.Block(BlockID(n-2)).Kind != BlockPCReconstruction || u.Block(BlockID(n-1)).Kind != BlockExceptionHandling {
		return fmt.Errorf("trace does not end with the epilogue blocks")
	}
	var errs []error
	seenCell := false
	for id, b := range u.Blocks() {
		switch {
		case b.Kind.IsChainingCell():
			seenCell = true
		case b.Kind == BlockCode && seenCell:
			errs = append(errs, fmt.Errorf("%s: code block after chaining cells", id))
		}
	}
	return errors.Join(errs...)
}

func validateMethodShape(u *Unit) error {
	var errs []error
	for id, b := range u.Blocks() {
		if b.Kind != BlockCode {
			errs = append(errs, fmt.Errorf("%s: %s block in method unit", id, b.Kind))
		}
	}
	if u.Starts != nil && u.Starts.ExpectedBlocks() != u.NumBlocks() {
		errs = append(errs, fmt.Errorf("expected %d blocks, have %d", u.Starts.ExpectedBlocks(), u.NumBlocks()))
	}
	return errors.Join(errs...)
}
