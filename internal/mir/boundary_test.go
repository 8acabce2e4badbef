package mir_test

import (
	"testing"

	"dexjit/internal/bytecode"
	"dexjit/internal/mir"
)

func decodeAt(t *testing.T, code []uint16, off uint32) bytecode.Instruction {
	t.Helper()
	in, _ := bytecode.Decode(bytecode.MustCodeView(code), off)
	return in
}

func TestClassify(t *testing.T) {
	f := newFixture()
	tests := []struct {
		name       string
		code       []uint16
		offset     uint32
		boundary   bool
		want       mir.Boundary
		wantCallee string
	}{
		{name: "nop", code: []uint16{nop}},
		{name: "const", code: []uint16{constV0}},
		{name: "return-void", code: []uint16{returnVoid}, boundary: true, want: mir.Boundary{IsInvoke: true}},
		{name: "throw", code: []uint16{0x0027}, boundary: true, want: mir.Boundary{IsInvoke: true}},
		{name: "invoke-virtual", code: []uint16{0x006e, 0, 0}, boundary: true, want: mir.Boundary{IsInvoke: true}},
		{name: "invoke-interface/range", code: []uint16{0x0078, 0, 0}, boundary: true, want: mir.Boundary{IsInvoke: true}},
		{
			name: "invoke-static resolved", code: []uint16{0x0071, 0, 0}, boundary: true,
			want: mir.Boundary{IsInvoke: true, Redirect: true}, wantCallee: "LLoop;->helper",
		},
		{
			name: "invoke-static native", code: []uint16{0x0071, 1, 0}, boundary: true,
			want: mir.Boundary{IsInvoke: true}, wantCallee: "LSys;->arraycopy",
		},
		{
			name: "invoke-direct unresolved", code: []uint16{0x0070, 9, 0}, boundary: true,
			want: mir.Boundary{IsInvoke: true},
		},
		{
			name: "invoke-super via resolved slot", code: []uint16{0x006f, 2, 0}, boundary: true,
			want: mir.Boundary{IsInvoke: true, Redirect: true}, wantCallee: "LBase;->describe",
		},
		{
			name: "invoke-super-quick via slot", code: []uint16{0x00fa, 0, 0}, boundary: true,
			want: mir.Boundary{IsInvoke: true, Redirect: true}, wantCallee: "LBase;->describe",
		},
		{name: "goto forward", code: []uint16{0x0328}, offset: 0, boundary: true, want: mir.Boundary{Target: 3, HasTarget: true}},
		{name: "goto backward", code: []uint16{nop, nop, 0xfe28}, offset: 2, boundary: true, want: mir.Boundary{Target: 0, HasTarget: true}},
		{name: "goto/16", code: []uint16{0x0029, 0x0100}, boundary: true, want: mir.Boundary{Target: 0x100, HasTarget: true}},
		{name: "goto/32 self", code: []uint16{0x002a, 0, 0}, boundary: true, want: mir.Boundary{Target: 0, HasTarget: true}},
		{name: "if-ne", code: []uint16{0x0033, 0x0005}, boundary: true, want: mir.Boundary{Target: 5, HasTarget: true}},
		{name: "if-eqz", code: []uint16{nop, 0x0038, 0xffff}, offset: 1, boundary: true, want: mir.Boundary{Target: 0, HasTarget: true}},
		{name: "packed-switch", code: []uint16{0x002b, 4, 0}},
		{name: "switch payload", code: []uint16{bytecode.PackedSwitchSignature, 0, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := f.method(tt.code...)
			got, ok := mir.Classify(m, decodeAt(t, tt.code, tt.offset), tt.offset)
			if ok != tt.boundary {
				t.Fatalf("boundary = %v, want %v", ok, tt.boundary)
			}
			callee := got.Callee.Ref()
			got.Callee = nil
			if got != tt.want {
				t.Errorf("Classify = %+v, want %+v", got, tt.want)
			}
			if callee != tt.wantCallee {
				t.Errorf("callee = %q, want %q", callee, tt.wantCallee)
			}
		})
	}
}

func TestClassify_NativeCalleeHasNoTarget(t *testing.T) {
	f := newFixture()
	code := []uint16{0x0071, 1, 0}
	got, _ := mir.Classify(f.method(code...), decodeAt(t, code, 0), 0)
	if got.HasTarget || got.Redirect {
		t.Errorf("native callee must not produce a target: %+v", got)
	}
}

func TestIsUnconditionalExit(t *testing.T) {
	exits := map[bytecode.Opcode]bool{
		bytecode.OpReturnVoid: true, bytecode.OpReturn: true, bytecode.OpReturnWide: true, bytecode.OpReturnObject: true,
		bytecode.OpGoto: true, bytecode.OpGoto16: true, bytecode.OpGoto32: true,
	}
	for op := 0; op < 256; op++ {
		insn := bytecode.Instruction{Op: bytecode.Opcode(op)}
		if got := mir.IsUnconditionalExit(insn); got != exits[bytecode.Opcode(op)] {
			t.Errorf("IsUnconditionalExit(%s) = %v", bytecode.Opcode(op), got)
		}
	}
}
