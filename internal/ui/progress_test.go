package ui

import (
	"errors"
	"strings"
	"testing"

	"dexjit/internal/jit"
)

func newTestModel(names ...string) *progressModel {
	return NewProgressModel("compiling", names, nil).(*progressModel)
}

func TestApplyEvent_Counts(t *testing.T) {
	m := newTestModel("a", "b", "c")

	m.applyEvent(jit.Event{Index: 0, Status: jit.StatusCompiling})
	if got := m.percent(); got != 0.5/3 {
		t.Errorf("percent = %v, want %v", got, 0.5/3)
	}

	m.applyEvent(jit.Event{Index: 0, Status: jit.StatusDone, Result: jit.Result{Insts: 7}})
	m.applyEvent(jit.Event{Index: 1, Status: jit.StatusFailed, Err: errors.New("boom")})
	// a repeated final event is not counted twice
	m.applyEvent(jit.Event{Index: 1, Status: jit.StatusFailed, Err: errors.New("boom")})

	if m.finished != 2 || m.failed != 1 {
		t.Errorf("finished=%d failed=%d, want 2 and 1", m.finished, m.failed)
	}
	if m.items[0].detail != "7 insns" {
		t.Errorf("detail = %q", m.items[0].detail)
	}
	if m.items[1].detail != "boom" {
		t.Errorf("detail = %q", m.items[1].detail)
	}
}

func TestApplyEvent_IgnoresUnknownIndex(t *testing.T) {
	m := newTestModel("a")
	if cmd := m.applyEvent(jit.Event{Index: 5, Status: jit.StatusDone}); cmd != nil {
		t.Error("out of range event should be ignored")
	}
	if m.finished != 0 {
		t.Errorf("finished = %d", m.finished)
	}
}

func TestView(t *testing.T) {
	m := newTestModel("LLoop;->run", "hot")
	m.applyEvent(jit.Event{Index: 1, Status: jit.StatusDone, Result: jit.Result{Cached: true}})
	m.done = true

	out := m.View()
	for _, want := range []string{"compiling (1/2)", "LLoop;->run", "hot", "cached", "queued"} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q:\n%s", want, out)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"short", 10, "short"},
		{"a-very-long-name", 8, "a-ver..."},
		{"exactly8", 8, "exactly8"},
		{"abcdef", 2, "ab"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.width); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
	}
}
