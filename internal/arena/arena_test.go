package arena

import "testing"

type node struct {
	a, b uint64
}

func TestSlab_AllocAndAt(t *testing.T) {
	a := New()
	s := NewSlab[node](a, 2)
	for i := 0; i < 5; i++ {
		idx := s.Alloc()
		if idx != i {
			t.Fatalf("Alloc() = %d, want %d", idx, i)
		}
		s.At(idx).a = uint64(i)
	}
	if s.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", s.Len())
	}
	if s.At(3).a != 3 || s.At(3).b != 0 {
		t.Errorf("element 3 = %+v", *s.At(3))
	}
	if a.Charged() != 5*16 {
		t.Errorf("Charged() = %d, want %d", a.Charged(), 5*16)
	}
}

func TestArena_ResetInvalidatesSlabs(t *testing.T) {
	a := New()
	s := NewSlab[node](a, 0)
	s.Alloc()
	epoch := a.Epoch()

	a.Reset()
	if a.Epoch() != epoch+1 {
		t.Errorf("epoch = %d, want %d", a.Epoch(), epoch+1)
	}
	if a.Charged() != 0 || a.Peak() != 16 || a.Resets() != 1 {
		t.Errorf("after reset charged=%d peak=%d resets=%d", a.Charged(), a.Peak(), a.Resets())
	}

	defer func() {
		if recover() == nil {
			t.Error("reading a slab after Reset should panic")
		}
	}()
	_ = s.At(0)
}

func TestArena_FreshSlabAfterReset(t *testing.T) {
	a := New()
	NewSlab[node](a, 0).Alloc()
	a.Reset()

	s := NewSlab[node](a, 0)
	if idx := s.Alloc(); idx != 0 {
		t.Errorf("new slab starts at %d, want 0", idx)
	}
}
