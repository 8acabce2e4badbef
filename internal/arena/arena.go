// Package arena provides compilation-scoped bulk allocation.
//
// An Arena hands out typed slabs. Everything allocated from an arena is
// released together by Reset, which also advances the arena epoch; a slab
// touched after its arena was reset panics instead of returning stale data.
package arena

import (
	"fmt"
	"unsafe"
)

// Arena owns the slabs of one compilation attempt at a time.
type Arena struct {
	epoch   uint64
	charged int
	peak    int
	resets  uint64
	slabs   []resetter
}

type resetter interface {
	release()
}

// New returns an empty arena.
func New() *Arena {
	return &Arena{epoch: 1}
}

// Epoch identifies the current allocation generation.
func (a *Arena) Epoch() uint64 { return a.epoch }

// Charged returns the bytes allocated since the last Reset.
func (a *Arena) Charged() int { return a.charged }

// Peak returns the largest Charged value observed at a Reset.
func (a *Arena) Peak() int { return a.peak }

// Resets returns how many times the arena has been reset.
func (a *Arena) Resets() uint64 { return a.resets }

// Reset frees everything allocated since the previous reset.
func (a *Arena) Reset() {
	for _, s := range a.slabs {
		s.release()
	}
	a.slabs = a.slabs[:0]
	if a.charged > a.peak {
		a.peak = a.charged
	}
	a.charged = 0
	a.epoch++
	a.resets++
}

// Slab is a growable array of T whose lifetime is bound to an arena epoch.
type Slab[T any] struct {
	arena *Arena
	epoch uint64
	items []T
	size  int
}

// NewSlab allocates a slab in a. hint is the expected number of elements.
func NewSlab[T any](a *Arena, hint int) *Slab[T] {
	var zero T
	s := &Slab[T]{
		arena: a,
		epoch: a.epoch,
		items: make([]T, 0, hint),
		size:  int(unsafe.Sizeof(zero)),
	}
	a.slabs = append(a.slabs, s)
	return s
}

func (s *Slab[T]) release() {
	s.items = nil
}

func (s *Slab[T]) check() {
	if s.epoch != s.arena.epoch {
		panic(fmt.Sprintf("arena: slab from epoch %d used in epoch %d", s.epoch, s.arena.epoch))
	}
}

// Alloc appends a zeroed element and returns its index.
func (s *Slab[T]) Alloc() int {
	s.check()
	var zero T
	s.items = append(s.items, zero)
	s.arena.charged += s.size
	return len(s.items) - 1
}

// At returns a pointer to element i. The pointer is invalid after the next
// Alloc or Reset.
func (s *Slab[T]) At(i int) *T {
	s.check()
	return &s.items[i]
}

// Len returns the number of allocated elements.
func (s *Slab[T]) Len() int {
	s.check()
	return len(s.items)
}
