package backend_test

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"dexjit/internal/arena"
	"dexjit/internal/backend"
	"dexjit/internal/bytecode"
	"dexjit/internal/meta"
	"dexjit/internal/mir"
)

func buildTrace(t *testing.T, ceiling int, code ...uint16) *mir.Unit {
	t.Helper()
	m := &meta.Method{Name: "run", Class: &meta.Class{Descriptor: "LT;"}, Code: code}
	u, err := mir.NewUnit(arena.New(), m)
	if err != nil {
		t.Fatal(err)
	}
	view := bytecode.MustCodeView(code)
	var n uint32
	for off := uint32(0); off < view.Len(); n++ {
		_, w := bytecode.Decode(view, off)
		off += w
	}
	u.Trace = meta.SingleRun(m, 0, n)
	if err := mir.BuildTrace(u, ceiling); err != nil {
		t.Fatal(err)
	}
	return u
}

func TestLower_CostModel(t *testing.T) {
	tests := []struct {
		name       string
		code       []uint16
		ceiling    int
		singleStep bool
		words      int
		stubs      int
		cells      int
	}{
		// two consts + explicit branch + hot cell + exception block
		{name: "truncated", code: []uint16{0x0012, 0x0012, 0x0012, 0x000e}, ceiling: 2, words: 2*3 + 1 + 4 + 3, cells: 1},
		{name: "single step", code: []uint16{0x0012, 0x0012, 0x0012, 0x000e}, ceiling: 2, singleStep: true, words: 2*8 + 1 + 4 + 3, cells: 1},
		// const-string throws: one reconstruction stub
		{name: "throwing", code: []uint16{0x001a, 0x0000, 0x000e}, ceiling: 10, words: 3 + 3 + 2 + 3, stubs: 1},
		// invoke-static unresolved: invoke cost + hot fallthrough cell
		{name: "invoke", code: []uint16{0x0071, 0x0000, 0x0000}, ceiling: 10, words: 6 + 4 + 2 + 3, stubs: 1, cells: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := buildTrace(t, tt.ceiling, tt.code...)
			u.AllSingleStep = tt.singleStep
			p, err := backend.Lower(u)
			if err != nil {
				t.Fatal(err)
			}
			if len(p.Words) != tt.words {
				t.Errorf("words = %d, want %d", len(p.Words), tt.words)
			}
			if p.Stubs != tt.stubs {
				t.Errorf("stubs = %d, want %d", p.Stubs, tt.stubs)
			}
			if len(p.Cells) != tt.cells {
				t.Errorf("cells = %d, want %d", len(p.Cells), tt.cells)
			}
		})
	}
}

func TestNative_CompileInstalls(t *testing.T) {
	cache := backend.NewCodeCache(0x40000000, 1024)
	be := backend.NewNative(cache, 0)
	u := buildTrace(t, 2, 0x0012, 0x0012, 0x0012, 0x000e)

	tr, err := be.Compile(context.Background(), u)
	if err != nil {
		t.Fatal(err)
	}
	if tr.BaseAddr != 0x40000000 || tr.Entry() != 0x40000000+backend.HeaderSize {
		t.Errorf("base=%#x entry=%#x", tr.BaseAddr, tr.Entry())
	}
	if tr.Size != backend.HeaderSize+4*14 || tr.Insts != 2 {
		t.Errorf("size=%d insts=%d", tr.Size, tr.Insts)
	}
	if len(tr.Cells) != 1 || tr.Cells[0].Kind != mir.BlockChainingHot || tr.Cells[0].Offset != 2 {
		t.Errorf("cells = %+v", tr.Cells)
	}

	hdr, err := cache.Read(tr.BaseAddr, backend.HeaderSize)
	if err != nil {
		t.Fatal(err)
	}
	if binary.LittleEndian.Uint32(hdr) != 14 || binary.LittleEndian.Uint32(hdr[4:]) != 2 {
		t.Errorf("header = %x", hdr)
	}

	second, err := be.Compile(context.Background(), u)
	if err != nil {
		t.Fatal(err)
	}
	if second.BaseAddr != tr.BaseAddr+uint64(tr.Size) {
		t.Errorf("second translation at %#x, want bump from %#x", second.BaseAddr, tr.BaseAddr)
	}
	if st := cache.Stats(); st.Translations != 2 || st.Used != 2*int(tr.Size) {
		t.Errorf("stats = %+v", st)
	}
}

func TestNative_TooLarge(t *testing.T) {
	be := backend.NewNative(backend.NewCodeCache(0, 0), 32)
	u := buildTrace(t, 10, 0x0012, 0x0012, 0x0012, 0x000e)
	if _, err := be.Compile(context.Background(), u); !errors.Is(err, backend.ErrCodeTooLarge) {
		t.Fatalf("err = %v, want ErrCodeTooLarge", err)
	}
	if be.Cache().Stats().Used != 0 {
		t.Error("oversized translation must not be installed")
	}
}

func TestNative_CacheFull(t *testing.T) {
	be := backend.NewNative(backend.NewCodeCache(0, 64), 0)
	u := buildTrace(t, 2, 0x0012, 0x0012, 0x0012, 0x000e)
	if _, err := be.Compile(context.Background(), u); err != nil {
		t.Fatal(err)
	}
	if _, err := be.Compile(context.Background(), u); !errors.Is(err, backend.ErrCacheFull) {
		t.Fatalf("err = %v, want ErrCacheFull", err)
	}
	be.Cache().Reset()
	if _, err := be.Compile(context.Background(), u); err != nil {
		t.Errorf("after reset: %v", err)
	}
}

func TestNative_CanceledContext(t *testing.T) {
	be := backend.NewNative(backend.NewCodeCache(0, 0), 0)
	u := buildTrace(t, 2, 0x0012, 0x000e)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := be.Compile(ctx, u); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v", err)
	}
}
