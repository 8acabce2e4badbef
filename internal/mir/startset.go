package mir

import "github.com/bits-and-blooms/bitset"

// StartSet marks the code offsets at which method-mode blocks begin. It has
// one bit per offset plus one for the end of the code.
type StartSet struct {
	bits *bitset.BitSet
	end  uint32
}

// NewStartSet returns a set for a method of codeLen units with offset 0
// already marked.
func NewStartSet(codeLen uint32) *StartSet {
	s := &StartSet{bits: bitset.New(uint(codeLen) + 1), end: codeLen}
	s.bits.Set(0)
	return s
}

// Mark sets the bit for off. Offsets past the end of the code are rejected.
func (s *StartSet) Mark(off uint32) bool {
	if off > s.end {
		return false
	}
	s.bits.Set(uint(off))
	return true
}

// IsStart reports whether off is marked.
func (s *StartSet) IsStart(off uint32) bool {
	return off <= s.end && s.bits.Test(uint(off))
}

// Count returns the number of marked offsets, including the end bit.
func (s *StartSet) Count() int {
	return int(s.bits.Count())
}

// EndMarked reports whether the end-of-code offset was marked. That bit is
// set by a boundary instruction at the very end of the method and starts no
// block.
func (s *StartSet) EndMarked() bool {
	return s.bits.Test(uint(s.end))
}

// ExpectedBlocks is the number of code blocks the split pass must produce.
func (s *StartSet) ExpectedBlocks() int {
	n := s.Count()
	if s.EndMarked() {
		n--
	}
	return n
}

// Offsets lists marked offsets in ascending order.
func (s *StartSet) Offsets() []uint32 {
	out := make([]uint32, 0, s.Count())
	for i, ok := s.bits.NextSet(0); ok; i, ok = s.bits.NextSet(i + 1) {
		out = append(out, uint32(i))
	}
	return out
}
