package mir_test

import (
	"bytes"
	"errors"
	"slices"
	"strings"
	"testing"

	"dexjit/internal/mir"
)

func TestBuildMethod_Loop(t *testing.T) {
	f := newFixture()
	// 0: const/4 v0, #0
	// 1: add-int/lit8 v0, v0, #1
	// 3: if-nez v0, -2
	// 5: return-void
	u := newUnit(t, f.method(constV0, 0x00d8, 0x0000, 0x0039, 0xfffe, returnVoid))
	if err := mir.BuildMethod(u); err != nil {
		t.Fatalf("BuildMethod: %v", err)
	}

	if got := u.Starts.Offsets(); !slices.Equal(got, []uint32{0, 1, 5, 6}) {
		t.Errorf("start offsets = %v", got)
	}
	if !u.Starts.EndMarked() || u.Starts.ExpectedBlocks() != 3 {
		t.Errorf("end marked=%v expected=%d", u.Starts.EndMarked(), u.Starts.ExpectedBlocks())
	}
	if u.NumBlocks() != 3 {
		t.Fatalf("blocks = %d, want 3", u.NumBlocks())
	}

	starts := []uint32{u.Block(0).StartOffset, u.Block(1).StartOffset, u.Block(2).StartOffset}
	if !slices.Equal(starts, []uint32{0, 1, 5}) {
		t.Errorf("block starts = %v", starts)
	}
	if b := u.Block(0); b.FallThrough != 1 || b.Taken != mir.NoBlock {
		t.Errorf("bb0 taken=%s fallthrough=%s", b.Taken, b.FallThrough)
	}
	if b := u.Block(1); b.Taken != 1 || b.FallThrough != 2 {
		t.Errorf("bb1 taken=%s fallthrough=%s, want loop to itself", b.Taken, b.FallThrough)
	}
	if b := u.Block(2); b.Taken != mir.NoBlock || b.FallThrough != mir.NoBlock {
		t.Errorf("bb2 taken=%s fallthrough=%s", b.Taken, b.FallThrough)
	}
	if u.CountKind(mir.BlockCode) != u.NumBlocks() {
		t.Error("method units hold only code blocks")
	}
	if err := mir.Validate(u); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestBuildMethod_BackwardGotoToEntry(t *testing.T) {
	f := newFixture()
	code := make([]uint16, 10)
	code = append(code, 0xf628) // 10: goto -10
	u := newUnit(t, f.method(code...))

	if err := mir.BuildMethod(u); err != nil {
		t.Fatal(err)
	}
	// bit 0 is set twice, bit 11 is the end of the code
	if got := u.Starts.Offsets(); !slices.Equal(got, []uint32{0, 11}) {
		t.Errorf("start offsets = %v", got)
	}
	if u.Starts.ExpectedBlocks() != 1 || u.NumBlocks() != 1 {
		t.Fatalf("expected=%d blocks=%d", u.Starts.ExpectedBlocks(), u.NumBlocks())
	}
	if u.Block(0).Taken != 0 {
		t.Errorf("taken = %s, want bb0", u.Block(0).Taken)
	}
}

func TestBuildMethod_InvokeAndReturnSplits(t *testing.T) {
	f := newFixture()
	// 0: invoke-static helper   3: return-void   4: const/4   5: return-void
	u := newUnit(t, f.method(0x0071, 0, 0, returnVoid, constV0, returnVoid))
	if err := mir.BuildMethod(u); err != nil {
		t.Fatal(err)
	}
	if u.NumBlocks() != 3 {
		t.Fatalf("blocks = %d, want 3", u.NumBlocks())
	}
	// invoke redirects are not block starts
	if u.Starts.IsStart(0x2000) {
		t.Error("callee address marked as block start")
	}
	if u.Block(0).FallThrough != 1 {
		t.Error("invoke block should fall through")
	}
	if u.Block(1).FallThrough != mir.NoBlock {
		t.Error("return block must not fall through")
	}
}

func TestBuildMethod_BranchIntoInstructionIsFatal(t *testing.T) {
	f := newFixture()
	// 0: goto +2   1: add-int/lit8 (two units)   3: return-void
	u := newUnit(t, f.method(0x0228, 0x00d8, 0x0000, returnVoid))

	err := mir.BuildMethod(u)
	if !errors.Is(err, mir.ErrInvariant) {
		t.Fatalf("err = %v, want ErrInvariant", err)
	}
	var inv *mir.InvariantError
	if !errors.As(err, &inv) {
		t.Fatalf("err %T is not *InvariantError", err)
	}
	if inv.Pass != "split" || inv.Expected != 3 || inv.Actual != 2 {
		t.Errorf("InvariantError = %+v", inv)
	}
	if !strings.Contains(err.Error(), "expected 3 blocks, split 2") {
		t.Errorf("message = %q", err)
	}
}

func TestBuildMethod_TargetOutsideMethod(t *testing.T) {
	f := newFixture()
	// 0: goto -5
	u := newUnit(t, f.method(0xfb28, returnVoid))
	var inv *mir.InvariantError
	if err := mir.BuildMethod(u); !errors.As(err, &inv) || inv.Pass != "mark" {
		t.Fatalf("err = %v, want mark failure", err)
	}
}

func TestBuildMethod_BranchToEndOfCode(t *testing.T) {
	f := newFixture()
	// 0: if-eqz v0, +3   2: return-void; offset 3 is the end of the code
	u := newUnit(t, f.method(0x0038, 0x0003, returnVoid))
	var inv *mir.InvariantError
	if err := mir.BuildMethod(u); !errors.As(err, &inv) || inv.Pass != "link" || inv.Target != 3 {
		t.Fatalf("err = %v, want link failure for 0x3", err)
	}
}

func TestBuildMethod_Malformed(t *testing.T) {
	f := newFixture()
	for name, code := range map[string][]uint16{
		"empty":        nil,
		"unused op":    {0x003e},
		"cut const16":  {0x0013},
		"cut switch":   {0x002b},
		"cut payload":  {nop, 0x0100, 0x0005},
		"unused first": {0x00ff},
	} {
		t.Run(name, func(t *testing.T) {
			u := newUnit(t, f.method(code...))
			if err := mir.BuildMethod(u); !errors.Is(err, mir.ErrMalformed) {
				t.Errorf("err = %v, want ErrMalformed", err)
			}
		})
	}
}

func TestValidate_ReportsBrokenEdges(t *testing.T) {
	f := newFixture()
	u := newUnit(t, f.method(constV0, 0x00d8, 0x0000, 0x0039, 0xfffe, returnVoid))
	if err := mir.BuildMethod(u); err != nil {
		t.Fatal(err)
	}
	u.Block(1).Taken = mir.NoBlock
	u.Block(0).FallThrough = 42

	err := mir.Validate(u)
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"no taken edge", "successor out of range"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestDump(t *testing.T) {
	f := newFixture()
	u := newUnit(t, f.method(0x0071, 0, 0, returnVoid))
	if err := mir.BuildMethod(u); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := mir.Dump(&buf, u); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"LLoop;->run (method)", "bb0 code @0x0 fallthrough=bb1", "invoke-static", "return-void"} {
		if !strings.Contains(out, want) {
			t.Errorf("dump missing %q:\n%s", want, out)
		}
	}
}

func TestUnit_UnusableAfterReset(t *testing.T) {
	f := newFixture()
	u := newUnit(t, f.method(returnVoid))
	if err := mir.BuildMethod(u); err != nil {
		t.Fatal(err)
	}
	u.Arena().Reset()
	defer func() {
		if recover() == nil {
			t.Error("reading a block after arena reset should panic")
		}
	}()
	_ = u.Block(0)
}
