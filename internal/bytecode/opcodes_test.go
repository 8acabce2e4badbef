package bytecode

import "testing"

func TestOpcodeTable_WidthMatchesFormat(t *testing.T) {
	for i := 0; i < 256; i++ {
		op := Opcode(i)
		info := Lookup(op)
		if !op.Valid() {
			if info.Width != 0 {
				t.Errorf("%#02x: unused opcode has width %d", i, info.Width)
			}
			continue
		}
		if op.Width() != info.Format.Width() {
			t.Errorf("%s: width %d, format %s says %d", op, op.Width(), info.Format, info.Format.Width())
		}
		if op.Width() == 0 {
			t.Errorf("%s: zero width", op)
		}
	}
}

func TestOpcodeTable_OptimizedOpcodesCarryNegativeWidth(t *testing.T) {
	for _, op := range []Opcode{OpIgetQuick, OpInvokeVirtualQuick, OpInvokeSuperQuickRange, OpExecuteInline} {
		if Lookup(op).Width >= 0 {
			t.Errorf("%s: table width %d, want negative", op, Lookup(op).Width)
		}
		if op.Width() <= 0 {
			t.Errorf("%s: Width() = %d, want magnitude", op, op.Width())
		}
	}
}

func TestOpcodeTable_ControlFlowFlags(t *testing.T) {
	tests := []struct {
		op   Opcode
		want Flags
	}{
		{OpGoto, CanBranch | Unconditional},
		{OpGoto32, CanBranch | Unconditional},
		{OpIfLe, CanBranch | CanContinue},
		{OpIfGtz, CanBranch | CanContinue},
		{OpReturnObject, CanReturn},
		{OpThrow, CanThrow},
		{OpPackedSwitch, CanContinue | CanSwitch},
		{OpInvokeInterfaceRange, CanContinue | CanThrow | Invoke},
		{OpAddInt, CanContinue},
		{OpAddIntLit8 + 3, CanContinue | CanThrow}, // div-int/lit8
	}
	for _, tt := range tests {
		if got := tt.op.Flags(); got != tt.want {
			t.Errorf("%s: flags %07b, want %07b", tt.op, got, tt.want)
		}
	}
}

func TestOpcodeNames(t *testing.T) {
	names := map[Opcode]string{
		0xaf:                "rem-double",
		0xcf:                "rem-double/2addr",
		0xd7:                "xor-int/lit16",
		0xe2:                "ushr-int/lit8",
		0x8f:                "int-to-short",
		0x51:                "aput-short",
		OpInvokeSuperQuick:  "invoke-super-quick",
		OpInvokeDirectEmpty: "invoke-direct-empty",
		0xff:                "unused-ff",
	}
	for op, want := range names {
		if got := op.String(); got != want {
			t.Errorf("%#02x: name %q, want %q", uint8(op), got, want)
		}
	}
}

func TestFlags_ChangesFlow(t *testing.T) {
	if OpAddInt.Flags().ChangesFlow() {
		t.Error("add-int should not change flow")
	}
	for _, op := range []Opcode{OpGoto, OpIfEq, OpReturnVoid, OpSparseSwitch, OpInvokeStatic} {
		if !op.Flags().ChangesFlow() {
			t.Errorf("%s should change flow", op)
		}
	}
	if OpThrow.Flags().ChangesFlow() {
		t.Error("throw carries no branch/switch/return/invoke flag")
	}
}

func TestParseCode(t *testing.T) {
	units, err := ParseCode("0012 0x2132 0005\n000e")
	if err != nil {
		t.Fatal(err)
	}
	want := []uint16{0x0012, 0x2132, 0x0005, 0x000e}
	if len(units) != len(want) {
		t.Fatalf("units = %v, want %v", units, want)
	}
	for i := range want {
		if units[i] != want[i] {
			t.Fatalf("units = %v, want %v", units, want)
		}
	}
	if got := FormatCode(units); got != "0012 2132 0005 000e" {
		t.Errorf("FormatCode = %q", got)
	}
	if _, err := ParseCode("zz"); err == nil {
		t.Error("expected error for non-hex unit")
	}
	if _, err := ParseCode("10000"); err == nil {
		t.Error("expected error for unit wider than 16 bits")
	}
}

func TestCodeView_Advance(t *testing.T) {
	v := MustCodeView([]uint16{0, 0, 0})
	if next, err := v.Advance(1, 2); err != nil || next != 3 {
		t.Fatalf("Advance(1, 2) = %d, %v", next, err)
	}
	if _, err := v.Advance(2, 2); err == nil {
		t.Error("expected error advancing past the end")
	}
	if _, err := v.Advance(0, 0); err == nil {
		t.Error("expected error for zero width")
	}
}
