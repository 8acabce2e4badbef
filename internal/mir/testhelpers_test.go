package mir_test

import (
	"testing"

	"dexjit/internal/arena"
	"dexjit/internal/meta"
	"dexjit/internal/mir"
)

const (
	constV0    = 0x0012 // const/4 v0, #0
	returnVoid = 0x000e
	nop        = 0x0000
)

// fixture is a tiny class hierarchy: LLoop; extends LBase; and calls into
// LSys;, whose only method is native.
type fixture struct {
	dex      *meta.DexFile
	base     *meta.Class
	loop     *meta.Class
	describe *meta.Method // LBase;->describe
	helper   *meta.Method // LLoop;->helper
	native   *meta.Method // LSys;->arraycopy
}

func newFixture() *fixture {
	f := &fixture{dex: &meta.DexFile{}}
	f.base = &meta.Class{Descriptor: "LBase;", Dex: f.dex}
	f.loop = &meta.Class{Descriptor: "LLoop;", Super: f.base, Dex: f.dex}
	sys := &meta.Class{Descriptor: "LSys;", Dex: f.dex}

	f.describe = &meta.Method{Name: "describe", Class: f.base, Code: []uint16{returnVoid}, Addr: 0x1000}
	f.helper = &meta.Method{Name: "helper", Class: f.loop, Code: []uint16{returnVoid}, Addr: 0x2000}
	f.native = &meta.Method{Name: "arraycopy", Class: sys, Native: true}
	override := &meta.Method{Name: "describe", Class: f.loop, Code: []uint16{returnVoid}, Addr: 0x3000}

	f.base.VTable = []*meta.Method{f.describe}
	f.loop.VTable = []*meta.Method{override}
	// 0: helper, 1: native, 2: LLoop;->describe (vtable slot 0)
	f.dex.ResolvedMethods = []*meta.Method{f.helper, f.native, override}
	return f
}

func (f *fixture) method(code ...uint16) *meta.Method {
	return &meta.Method{Name: "run", Class: f.loop, Code: code, Addr: 0x4000}
}

func newUnit(t *testing.T, m *meta.Method) *mir.Unit {
	t.Helper()
	u, err := mir.NewUnit(arena.New(), m)
	if err != nil {
		t.Fatalf("NewUnit: %v", err)
	}
	return u
}

func traceUnit(t *testing.T, m *meta.Method, runs ...meta.TraceRun) *mir.Unit {
	t.Helper()
	runs[len(runs)-1].RunEnd = true
	u := newUnit(t, m)
	u.Trace = &meta.Trace{Name: "t", Method: m, Runs: runs}
	return u
}

func kinds(u *mir.Unit) []mir.BlockKind {
	var out []mir.BlockKind
	for _, b := range u.Blocks() {
		out = append(out, b.Kind)
	}
	return out
}

func cells(u *mir.Unit) int {
	return u.CountKind(mir.BlockChainingNormal) + u.CountKind(mir.BlockChainingHot) + u.CountKind(mir.BlockChainingInvoke)
}
