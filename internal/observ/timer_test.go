package observ

import (
	"strings"
	"testing"
	"time"
)

func TestTimer_Report(t *testing.T) {
	tm := NewTimer()
	for _, ceiling := range []string{"ceiling 8", "ceiling 4"} {
		i := tm.Begin("build")
		time.Sleep(time.Millisecond)
		tm.End(i, ceiling)
		j := tm.Begin("backend")
		tm.End(j, "")
	}
	tm.End(99, "ignored")

	r := tm.Report()
	if len(r.Phases) != 4 || r.Phases[0].Note != "ceiling 8" {
		t.Fatalf("phases = %+v", r.Phases)
	}
	if r.TotalMS < 2 {
		t.Errorf("total = %.3f ms, want at least 2", r.TotalMS)
	}

	byName := r.ByName()
	if len(byName) != 2 || byName[0].Name != "build" || byName[1].Name != "backend" {
		t.Errorf("ByName = %+v", byName)
	}
	if byName[0].DurationMS < 2 {
		t.Errorf("build = %.3f ms, want both attempts summed", byName[0].DurationMS)
	}

	s := r.Summary()
	if !strings.Contains(s, "// ceiling 4") || !strings.Contains(s, "total") {
		t.Errorf("summary:\n%s", s)
	}
}

func TestReport_Merge(t *testing.T) {
	a := Report{TotalMS: 1, Phases: []PhaseReport{{Name: "build", DurationMS: 1}}}
	a.Merge(Report{TotalMS: 2, Phases: []PhaseReport{{Name: "build", DurationMS: 2}}})
	if a.TotalMS != 3 || len(a.Phases) != 2 || a.ByName()[0].DurationMS != 3 {
		t.Errorf("merged = %+v", a)
	}
}

func TestNilTimerReport(t *testing.T) {
	var tm *Timer
	if r := tm.Report(); len(r.Phases) != 0 {
		t.Errorf("nil timer report = %+v", r)
	}
}
