package bytecode

import "fmt"

// Opcode is the low byte of an instruction's first code unit.
type Opcode uint8

const (
	OpNop                  Opcode = 0x00
	OpMove                 Opcode = 0x01
	OpMoveResult           Opcode = 0x0a
	OpReturnVoid           Opcode = 0x0e
	OpReturn               Opcode = 0x0f
	OpReturnWide           Opcode = 0x10
	OpReturnObject         Opcode = 0x11
	OpConst4               Opcode = 0x12
	OpConst16              Opcode = 0x13
	OpConst                Opcode = 0x14
	OpConstWide            Opcode = 0x18
	OpConstString          Opcode = 0x1a
	OpNewInstance          Opcode = 0x22
	OpFillArrayData        Opcode = 0x26
	OpThrow                Opcode = 0x27
	OpGoto                 Opcode = 0x28
	OpGoto16               Opcode = 0x29
	OpGoto32               Opcode = 0x2a
	OpPackedSwitch         Opcode = 0x2b
	OpSparseSwitch         Opcode = 0x2c
	OpIfEq                 Opcode = 0x32
	OpIfNe                 Opcode = 0x33
	OpIfLt                 Opcode = 0x34
	OpIfGe                 Opcode = 0x35
	OpIfGt                 Opcode = 0x36
	OpIfLe                 Opcode = 0x37
	OpIfEqz                Opcode = 0x38
	OpIfNez                Opcode = 0x39
	OpIfLtz                Opcode = 0x3a
	OpIfGez                Opcode = 0x3b
	OpIfGtz                Opcode = 0x3c
	OpIfLez                Opcode = 0x3d
	OpAget                 Opcode = 0x44
	OpIget                 Opcode = 0x52
	OpSget                 Opcode = 0x60
	OpInvokeVirtual        Opcode = 0x6e
	OpInvokeSuper          Opcode = 0x6f
	OpInvokeDirect         Opcode = 0x70
	OpInvokeStatic         Opcode = 0x71
	OpInvokeInterface      Opcode = 0x72
	OpInvokeVirtualRange   Opcode = 0x74
	OpInvokeSuperRange     Opcode = 0x75
	OpInvokeDirectRange    Opcode = 0x76
	OpInvokeStaticRange    Opcode = 0x77
	OpInvokeInterfaceRange Opcode = 0x78
	OpAddInt               Opcode = 0x90
	OpAddInt2Addr          Opcode = 0xb0
	OpAddIntLit16          Opcode = 0xd0
	OpAddIntLit8           Opcode = 0xd8

	OpThrowVerificationError  Opcode = 0xed
	OpExecuteInline           Opcode = 0xee
	OpInvokeDirectEmpty       Opcode = 0xf0
	OpIgetQuick               Opcode = 0xf2
	OpInvokeVirtualQuick      Opcode = 0xf8
	OpInvokeVirtualQuickRange Opcode = 0xf9
	OpInvokeSuperQuick        Opcode = 0xfa
	OpInvokeSuperQuickRange   Opcode = 0xfb
)

// Pseudo-instruction signatures: a full first code unit whose low byte is
// OpNop but which introduces inline data.
const (
	PackedSwitchSignature uint16 = 0x0100
	SparseSwitchSignature uint16 = 0x0200
	ArrayDataSignature    uint16 = 0x0300
)

// Info is the static description of one opcode.
type Info struct {
	Name   string
	Format Format
	Flags  Flags
	// Width is the table width in code units. Negative entries mark opcodes
	// produced only by the optimizer; the magnitude is still the width.
	Width int8
}

var table [256]Info

const (
	flowNone  = CanContinue
	flowThrow = CanContinue | CanThrow
	flowCall  = CanContinue | CanThrow | Invoke
	flowIf    = CanBranch | CanContinue
	flowGoto  = CanBranch | Unconditional
)

func def(op Opcode, name string, f Format, flags Flags) {
	table[op] = Info{Name: name, Format: f, Flags: flags, Width: int8(f.Width())}
}

func defOpt(op Opcode, name string, f Format, flags Flags) {
	table[op] = Info{Name: name, Format: f, Flags: flags, Width: -int8(f.Width())}
}

func defRange(first Opcode, f Format, flags Flags, names ...string) {
	for i, name := range names {
		def(first+Opcode(i), name, f, flags)
	}
}

func init() {
	for i := range table {
		table[i] = Info{Name: fmt.Sprintf("unused-%02x", i), Format: FmtUnknown}
	}

	def(OpNop, "nop", Fmt10x, flowNone)
	defRange(OpMove, Fmt12x, flowNone, "move")
	def(0x02, "move/from16", Fmt22x, flowNone)
	def(0x03, "move/16", Fmt32x, flowNone)
	def(0x04, "move-wide", Fmt12x, flowNone)
	def(0x05, "move-wide/from16", Fmt22x, flowNone)
	def(0x06, "move-wide/16", Fmt32x, flowNone)
	def(0x07, "move-object", Fmt12x, flowNone)
	def(0x08, "move-object/from16", Fmt22x, flowNone)
	def(0x09, "move-object/16", Fmt32x, flowNone)
	defRange(OpMoveResult, Fmt11x, flowNone, "move-result", "move-result-wide", "move-result-object", "move-exception")
	def(OpReturnVoid, "return-void", Fmt10x, CanReturn)
	defRange(OpReturn, Fmt11x, CanReturn, "return", "return-wide", "return-object")
	def(OpConst4, "const/4", Fmt11n, flowNone)
	def(OpConst16, "const/16", Fmt21s, flowNone)
	def(OpConst, "const", Fmt31i, flowNone)
	def(0x15, "const/high16", Fmt21h, flowNone)
	def(0x16, "const-wide/16", Fmt21s, flowNone)
	def(0x17, "const-wide/32", Fmt31i, flowNone)
	def(OpConstWide, "const-wide", Fmt51l, flowNone)
	def(0x19, "const-wide/high16", Fmt21h, flowNone)
	def(OpConstString, "const-string", Fmt21c, flowThrow)
	def(0x1b, "const-string/jumbo", Fmt31c, flowThrow)
	def(0x1c, "const-class", Fmt21c, flowThrow)
	defRange(0x1d, Fmt11x, flowThrow, "monitor-enter", "monitor-exit")
	def(0x1f, "check-cast", Fmt21c, flowThrow)
	def(0x20, "instance-of", Fmt22c, flowThrow)
	def(0x21, "array-length", Fmt12x, flowThrow)
	def(OpNewInstance, "new-instance", Fmt21c, flowThrow)
	def(0x23, "new-array", Fmt22c, flowThrow)
	def(0x24, "filled-new-array", Fmt35c, flowThrow)
	def(0x25, "filled-new-array/range", Fmt3rc, flowThrow)
	def(OpFillArrayData, "fill-array-data", Fmt31t, flowThrow)
	def(OpThrow, "throw", Fmt11x, CanThrow)
	def(OpGoto, "goto", Fmt10t, flowGoto)
	def(OpGoto16, "goto/16", Fmt20t, flowGoto)
	def(OpGoto32, "goto/32", Fmt30t, flowGoto)
	def(OpPackedSwitch, "packed-switch", Fmt31t, CanContinue|CanSwitch)
	def(OpSparseSwitch, "sparse-switch", Fmt31t, CanContinue|CanSwitch)
	defRange(0x2d, Fmt23x, flowNone, "cmpl-float", "cmpg-float", "cmpl-double", "cmpg-double", "cmp-long")
	defRange(OpIfEq, Fmt22t, flowIf, "if-eq", "if-ne", "if-lt", "if-ge", "if-gt", "if-le")
	defRange(OpIfEqz, Fmt21t, flowIf, "if-eqz", "if-nez", "if-ltz", "if-gez", "if-gtz", "if-lez")
	defRange(OpAget, Fmt23x, flowThrow,
		"aget", "aget-wide", "aget-object", "aget-boolean", "aget-byte", "aget-char", "aget-short",
		"aput", "aput-wide", "aput-object", "aput-boolean", "aput-byte", "aput-char", "aput-short")
	defRange(OpIget, Fmt22c, flowThrow,
		"iget", "iget-wide", "iget-object", "iget-boolean", "iget-byte", "iget-char", "iget-short",
		"iput", "iput-wide", "iput-object", "iput-boolean", "iput-byte", "iput-char", "iput-short")
	defRange(OpSget, Fmt21c, flowThrow,
		"sget", "sget-wide", "sget-object", "sget-boolean", "sget-byte", "sget-char", "sget-short",
		"sput", "sput-wide", "sput-object", "sput-boolean", "sput-byte", "sput-char", "sput-short")
	defRange(OpInvokeVirtual, Fmt35c, flowCall,
		"invoke-virtual", "invoke-super", "invoke-direct", "invoke-static", "invoke-interface")
	defRange(OpInvokeVirtualRange, Fmt3rc, flowCall,
		"invoke-virtual/range", "invoke-super/range", "invoke-direct/range", "invoke-static/range", "invoke-interface/range")
	defRange(0x7b, Fmt12x, flowNone,
		"neg-int", "not-int", "neg-long", "not-long", "neg-float", "neg-double",
		"int-to-long", "int-to-float", "int-to-double", "long-to-int", "long-to-float", "long-to-double",
		"float-to-int", "float-to-long", "float-to-double", "double-to-int", "double-to-long", "double-to-float",
		"int-to-byte", "int-to-char", "int-to-short")

	for i, name := range arithNames {
		def(OpAddInt+Opcode(i), name, Fmt23x, arithFlags(name))
		def(OpAddInt2Addr+Opcode(i), name+"/2addr", Fmt12x, arithFlags(name))
	}
	for i, name := range lit16Names {
		def(OpAddIntLit16+Opcode(i), name, Fmt22s, arithFlags(name))
	}
	for i, name := range lit8Names {
		def(OpAddIntLit8+Opcode(i), name, Fmt22b, arithFlags(name))
	}

	defOpt(OpThrowVerificationError, "throw-verification-error", Fmt20bc, CanThrow)
	defOpt(OpExecuteInline, "execute-inline", Fmt35ms, flowThrow)
	defOpt(OpInvokeDirectEmpty, "invoke-direct-empty", Fmt35c, flowCall)
	defOpt(OpIgetQuick, "iget-quick", Fmt22cs, flowThrow)
	defOpt(0xf3, "iget-wide-quick", Fmt22cs, flowThrow)
	defOpt(0xf4, "iget-object-quick", Fmt22cs, flowThrow)
	defOpt(0xf5, "iput-quick", Fmt22cs, flowThrow)
	defOpt(0xf6, "iput-wide-quick", Fmt22cs, flowThrow)
	defOpt(0xf7, "iput-object-quick", Fmt22cs, flowThrow)
	defOpt(OpInvokeVirtualQuick, "invoke-virtual-quick", Fmt35ms, flowCall)
	defOpt(OpInvokeVirtualQuickRange, "invoke-virtual-quick/range", Fmt3rms, flowCall)
	defOpt(OpInvokeSuperQuick, "invoke-super-quick", Fmt35ms, flowCall)
	defOpt(OpInvokeSuperQuickRange, "invoke-super-quick/range", Fmt3rms, flowCall)
}

var arithNames = [...]string{
	"add-int", "sub-int", "mul-int", "div-int", "rem-int", "and-int", "or-int", "xor-int", "shl-int", "shr-int", "ushr-int",
	"add-long", "sub-long", "mul-long", "div-long", "rem-long", "and-long", "or-long", "xor-long", "shl-long", "shr-long", "ushr-long",
	"add-float", "sub-float", "mul-float", "div-float", "rem-float",
	"add-double", "sub-double", "mul-double", "div-double", "rem-double",
}

var lit16Names = [...]string{
	"add-int/lit16", "rsub-int", "mul-int/lit16", "div-int/lit16", "rem-int/lit16", "and-int/lit16", "or-int/lit16", "xor-int/lit16",
}

var lit8Names = [...]string{
	"add-int/lit8", "rsub-int/lit8", "mul-int/lit8", "div-int/lit8", "rem-int/lit8", "and-int/lit8", "or-int/lit8", "xor-int/lit8",
	"shl-int/lit8", "shr-int/lit8", "ushr-int/lit8",
}

// integer division and remainder can raise ArithmeticException
func arithFlags(name string) Flags {
	switch name {
	case "div-int", "rem-int", "div-long", "rem-long",
		"div-int/lit16", "rem-int/lit16", "div-int/lit8", "rem-int/lit8":
		return flowThrow
	}
	return flowNone
}

// Lookup returns the static description of op.
func Lookup(op Opcode) *Info { return &table[op] }

func (op Opcode) String() string { return table[op].Name }

// Format returns the encoding of op.
func (op Opcode) Format() Format { return table[op].Format }

// Flags returns the control-flow flags of op.
func (op Opcode) Flags() Flags { return table[op].Flags }

// Width returns the width of op in code units, ignoring the optimizer sign.
func (op Opcode) Width() int {
	w := int(table[op].Width)
	if w < 0 {
		w = -w
	}
	return w
}

// Valid reports whether op is assigned in the instruction set.
func (op Opcode) Valid() bool { return table[op].Format != FmtUnknown }
