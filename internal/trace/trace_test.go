package trace

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	tests := []struct {
		level Level
		scope Scope
		want  bool
	}{
		{LevelError, ScopeDriver, false},
		{LevelPhase, ScopeAttempt, true},
		{LevelPhase, ScopePass, false},
		{LevelDetail, ScopePass, true},
		{LevelDetail, ScopeInstr, false},
		{LevelDebug, ScopeInstr, true},
	}
	for _, tt := range tests {
		if got := tt.level.ShouldEmit(tt.scope); got != tt.want {
			t.Errorf("%s.ShouldEmit(%s) = %v, want %v", tt.level, tt.scope, got, tt.want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	if l, err := ParseLevel("DETAIL"); err != nil || l != LevelDetail {
		t.Errorf("ParseLevel(DETAIL) = %v, %v", l, err)
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestStreamTracer_ForcedBypassesLevel(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelPhase, FormatText)

	Point(tr, ScopeInstr, 0, "decode", "hidden")
	Printf(tr, ScopeInstr, 0, "decode", "%s", "shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("instr event leaked at phase level:\n%s", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("forced event missing:\n%s", out)
	}
}

func TestSpan_NDJSON(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelDetail, FormatNDJSON)

	outer := Begin(tr, ScopeAttempt, "attempt", 0)
	inner := Begin(tr, ScopePass, "link", outer.ID())
	inner.WithExtra("cells", "2").End("")
	outer.End("ok")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want 4:\n%s", len(lines), buf.String())
	}
	var ev jsonEvent
	if err := json.Unmarshal([]byte(lines[2]), &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Kind != "end" || ev.Name != "link" || ev.ParentID != outer.ID() || ev.Extra["cells"] != "2" {
		t.Errorf("unexpected inner end event: %+v", ev)
	}
}

func TestSpan_DisabledIsSafe(t *testing.T) {
	s := Begin(Nop, ScopeAttempt, "x", 0)
	s.WithExtra("k", "v")
	if s.End("") != 0 || s.ID() != 0 {
		t.Error("disabled span should be inert")
	}
}

func TestRingTracer_Wraps(t *testing.T) {
	r := NewRingTracer(3, LevelDebug)
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		Point(r, ScopeInstr, 0, name, "")
	}
	snap := r.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("len = %d, want 3", len(snap))
	}
	for i, want := range []string{"c", "d", "e"} {
		if snap[i].Name != want {
			t.Errorf("snap[%d] = %s, want %s", i, snap[i].Name, want)
		}
	}
	if r.Dropped() != 2 {
		t.Errorf("Dropped() = %d, want 2", r.Dropped())
	}

	var buf bytes.Buffer
	if err := r.Dump(&buf, FormatText); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(buf.String(), "... 2 earlier events dropped") {
		t.Errorf("dump = %q", buf.String())
	}
}

func TestFatal_EmittedAtErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelError, FormatText)
	Fatal(tr, "method", errors.New("block count mismatch"))
	if !strings.Contains(buf.String(), "block count mismatch") {
		t.Errorf("fatal event missing: %q", buf.String())
	}
}

func TestMultiTracer_RingAccessor(t *testing.T) {
	var buf bytes.Buffer
	m := NewMultiTracer(LevelPhase, NewStreamTracer(&buf, LevelPhase, FormatText), NewRingTracer(8, LevelPhase))
	Point(m, ScopeDriver, 0, "batch", "")
	if m.Ring() == nil || len(m.Ring().Snapshot()) != 1 {
		t.Error("ring tracer did not receive the event")
	}
	if buf.Len() == 0 {
		t.Error("stream tracer did not receive the event")
	}
}
