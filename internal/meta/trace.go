package meta

import (
	"fmt"
	"strings"
)

// TraceRun is one contiguous stretch of a trace.
type TraceRun struct {
	StartOffset uint32
	NumInsts    uint32
	RunEnd      bool
}

// Trace describes a hot path through one method as an ordered list of
// disjoint runs. The last run has RunEnd set.
type Trace struct {
	Name   string
	Method *Method
	Runs   []TraceRun
}

// Key identifies the trace for translation lookup: the method plus every
// run boundary. A run that ends the trace is marked with "!".
func (t *Trace) Key() string {
	var sb strings.Builder
	sb.WriteString(t.Method.Ref())
	for _, r := range t.Runs {
		fmt.Fprintf(&sb, "@%x+%d", r.StartOffset, r.NumInsts)
		if r.RunEnd {
			sb.WriteByte('!')
		}
	}
	return sb.String()
}

// NumInsts is the total instruction count across all runs.
func (t *Trace) NumInsts() int {
	n := 0
	for _, r := range t.Runs {
		n += int(r.NumInsts)
	}
	return n
}

// SingleRun returns a one-run trace starting at off.
func SingleRun(m *Method, off, count uint32) *Trace {
	return &Trace{
		Name:   fmt.Sprintf("%s@%x", m.Ref(), off),
		Method: m,
		Runs:   []TraceRun{{StartOffset: off, NumInsts: count, RunEnd: true}},
	}
}
