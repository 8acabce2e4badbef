package bytecode

// Format identifies an instruction encoding. The first digit of the name is
// the width in code units, the second the number of registers, the suffix the
// kind of extra operand.
type Format uint8

const (
	FmtUnknown Format = iota
	Fmt10x            // op
	Fmt12x            // op vA, vB
	Fmt11n            // op vA, #+B
	Fmt11x            // op vAA
	Fmt10t            // op +AA
	Fmt20bc           // op AA, thing@BBBB
	Fmt20t            // op +AAAA
	Fmt22x            // op vAA, vBBBB
	Fmt21t            // op vAA, +BBBB
	Fmt21s            // op vAA, #+BBBB
	Fmt21h            // op vAA, #+BBBB00000[00000000]
	Fmt21c            // op vAA, thing@BBBB
	Fmt23x            // op vAA, vBB, vCC
	Fmt22b            // op vAA, vBB, #+CC
	Fmt22t            // op vA, vB, +CCCC
	Fmt22s            // op vA, vB, #+CCCC
	Fmt22c            // op vA, vB, thing@CCCC
	Fmt22cs           // [opt] op vA, vB, field offset CCCC
	Fmt32x            // op vAAAA, vBBBB
	Fmt30t            // op +AAAAAAAA
	Fmt31t            // op vAA, +BBBBBBBB
	Fmt31i            // op vAA, #+BBBBBBBB
	Fmt31c            // op vAA, thing@BBBBBBBB
	Fmt35c            // op {vC, vD, vE, vF, vG}, thing@BBBB
	Fmt35ms           // [opt] invoke-virtual+super
	Fmt35fs           // [opt] invoke-interface
	Fmt3rc            // op {vCCCC .. v(CCCC+AA-1)}, meth@BBBB
	Fmt3rms           // [opt] invoke-virtual+super/range
	Fmt51l            // op vAA, #+BBBBBBBBBBBBBBBB
)

var formatNames = [...]string{
	FmtUnknown: "??",
	Fmt10x:     "10x",
	Fmt12x:     "12x",
	Fmt11n:     "11n",
	Fmt11x:     "11x",
	Fmt10t:     "10t",
	Fmt20bc:    "20bc",
	Fmt20t:     "20t",
	Fmt22x:     "22x",
	Fmt21t:     "21t",
	Fmt21s:     "21s",
	Fmt21h:     "21h",
	Fmt21c:     "21c",
	Fmt23x:     "23x",
	Fmt22b:     "22b",
	Fmt22t:     "22t",
	Fmt22s:     "22s",
	Fmt22c:     "22c",
	Fmt22cs:    "22cs",
	Fmt32x:     "32x",
	Fmt30t:     "30t",
	Fmt31t:     "31t",
	Fmt31i:     "31i",
	Fmt31c:     "31c",
	Fmt35c:     "35c",
	Fmt35ms:    "35ms",
	Fmt35fs:    "35fs",
	Fmt3rc:     "3rc",
	Fmt3rms:    "3rms",
	Fmt51l:     "51l",
}

func (f Format) String() string {
	if int(f) < len(formatNames) {
		return formatNames[f]
	}
	return "??"
}

// Width returns the encoded size of the format in code units, 0 for FmtUnknown.
func (f Format) Width() int {
	switch f {
	case Fmt10x, Fmt12x, Fmt11n, Fmt11x, Fmt10t:
		return 1
	case Fmt20bc, Fmt20t, Fmt22x, Fmt21t, Fmt21s, Fmt21h, Fmt21c,
		Fmt23x, Fmt22b, Fmt22t, Fmt22s, Fmt22c, Fmt22cs:
		return 2
	case Fmt32x, Fmt30t, Fmt31t, Fmt31i, Fmt31c,
		Fmt35c, Fmt35ms, Fmt35fs, Fmt3rc, Fmt3rms:
		return 3
	case Fmt51l:
		return 5
	default:
		return 0
	}
}

// Flags describes how an instruction may affect control flow.
type Flags uint8

const (
	CanBranch     Flags = 1 << iota // conditional or unconditional branch
	CanContinue                     // flow can continue to next statement
	CanSwitch                       // switch statement
	CanThrow                        // could cause an exception to be thrown
	CanReturn                       // returns, no additional statements
	Invoke                          // a flavor of invoke
	Unconditional                   // unconditional branch
)

// Has reports whether every bit of mask is set.
func (f Flags) Has(mask Flags) bool { return f&mask == mask }

// Any reports whether at least one bit of mask is set.
func (f Flags) Any(mask Flags) bool { return f&mask != 0 }

// ChangesFlow reports whether an instruction with these flags can itself
// transfer control somewhere other than the next instruction.
func (f Flags) ChangesFlow() bool {
	return f.Any(CanBranch | CanSwitch | CanReturn | Invoke)
}
