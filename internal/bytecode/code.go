package bytecode

import (
	"fmt"
	"strconv"
	"strings"

	"fortio.org/safecast"
)

// CodeView is a bounds-checked window over a method's code units.
type CodeView struct {
	units []uint16
	size  uint32
}

// NewCodeView wraps units. The buffer is not copied and must not be mutated
// while the view is in use.
func NewCodeView(units []uint16) (CodeView, error) {
	size, err := safecast.Conv[uint32](len(units))
	if err != nil {
		return CodeView{}, fmt.Errorf("code buffer too large: %w", err)
	}
	return CodeView{units: units, size: size}, nil
}

// MustCodeView is NewCodeView for buffers known to be small.
func MustCodeView(units []uint16) CodeView {
	v, err := NewCodeView(units)
	if err != nil {
		panic(err)
	}
	return v
}

// Len returns the number of code units in the view.
func (v CodeView) Len() uint32 { return v.size }

// Unit returns the code unit at off. Reading outside the view panics.
func (v CodeView) Unit(off uint32) uint16 {
	if off >= v.size {
		panic(fmt.Sprintf("bytecode: read at %#x beyond code size %#x", off, v.size))
	}
	return v.units[off]
}

// unitOrZero is Unit for operand reads of the trailing instruction, which a
// truncated buffer may cut short.
func (v CodeView) unitOrZero(off uint32) uint16 {
	if off >= v.size {
		return 0
	}
	return v.units[off]
}

// From returns the code units starting at off.
func (v CodeView) From(off uint32) []uint16 {
	if off > v.size {
		panic(fmt.Sprintf("bytecode: slice at %#x beyond code size %#x", off, v.size))
	}
	return v.units[off:]
}

// Advance returns off+width, failing when the result leaves the view.
func (v CodeView) Advance(off, width uint32) (uint32, error) {
	next := off + width
	if width == 0 || next < off || next > v.size {
		return off, fmt.Errorf("bytecode: cannot advance %d units from %#x (size %#x)", width, off, v.size)
	}
	return next, nil
}

// ParseCode reads whitespace separated hexadecimal code units, with or
// without a 0x prefix.
func ParseCode(src string) ([]uint16, error) {
	fields := strings.Fields(src)
	units := make([]uint16, 0, len(fields))
	for i, f := range fields {
		f = strings.TrimPrefix(strings.TrimPrefix(f, "0x"), "0X")
		u, err := strconv.ParseUint(f, 16, 16)
		if err != nil {
			return nil, fmt.Errorf("code unit %d %q: %w", i, fields[i], err)
		}
		units = append(units, uint16(u))
	}
	return units, nil
}

// FormatCode is the inverse of ParseCode.
func FormatCode(units []uint16) string {
	var sb strings.Builder
	for i, u := range units {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%04x", u)
	}
	return sb.String()
}
