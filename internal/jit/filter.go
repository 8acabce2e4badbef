package jit

import (
	mapset "github.com/deckarep/golang-set/v2"

	"dexjit/internal/meta"
	"dexjit/internal/mir"
)

// MethodFilter matches methods against a configured list. Entries may be a
// full signature ("LFoo;run"), a class descriptor ("LFoo;") or a bare
// method name ("run").
type MethodFilter struct {
	include bool
	entries mapset.Set[string]
}

// NewMethodFilter returns nil for an empty list.
func NewMethodFilter(cfg FilterConfig) *MethodFilter {
	if len(cfg.Methods) == 0 {
		return nil
	}
	return &MethodFilter{
		include: cfg.Include,
		entries: mapset.NewThreadUnsafeSet(cfg.Methods...),
	}
}

// Match reports whether m is listed, trying the signature, then the class
// descriptor, then the method name.
func (f *MethodFilter) Match(m *meta.Method) bool {
	if f == nil || m == nil {
		return false
	}
	if f.entries.Contains(m.Signature()) {
		return true
	}
	if m.Class != nil && f.entries.Contains(m.Class.Descriptor) {
		return true
	}
	return f.entries.Contains(m.Name)
}

// Apply sets the unit flags for m. A listed method in include mode is
// printed; any method on the wrong side of the list is translated in
// single-step mode.
func (f *MethodFilter) Apply(m *meta.Method, u *mir.Unit) {
	if f == nil {
		return
	}
	found := f.Match(m)
	if f.include != found {
		u.AllSingleStep = true
	}
	if f.include && found {
		u.Print = true
	}
}

// Len returns the number of entries.
func (f *MethodFilter) Len() int {
	if f == nil {
		return 0
	}
	return f.entries.Cardinality()
}
