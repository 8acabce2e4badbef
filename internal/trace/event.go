package trace

import "time"

// Kind represents the type of trace event.
type Kind uint8

const (
	KindSpanBegin Kind = iota + 1 // span start
	KindSpanEnd                   // span end
	KindPoint                     // instant event
	KindFatal                     // invariant violation, emitted before abort
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	switch k {
	case KindSpanBegin:
		return "begin"
	case KindSpanEnd:
		return "end"
	case KindPoint:
		return "point"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Scope is the granularity of an event. Lower values are coarser.
type Scope uint8

const (
	ScopeDriver  Scope = iota + 1 // CLI command or batch
	ScopeAttempt                  // one compilation attempt
	ScopePass                     // CFG passes, lowering, assembly
	ScopeInstr                    // single decoded instruction
)

// String returns the string representation of Scope.
func (s Scope) String() string {
	switch s {
	case ScopeDriver:
		return "driver"
	case ScopeAttempt:
		return "attempt"
	case ScopePass:
		return "pass"
	case ScopeInstr:
		return "instr"
	default:
		return "unknown"
	}
}

// Event is a single trace record.
type Event struct {
	Time     time.Time
	Seq      uint64
	Kind     Kind
	Scope    Scope
	SpanID   uint64
	ParentID uint64
	Name     string // e.g. "trace", "link", "decode"
	Detail   string
	Extra    map[string]string
	// Forced events bypass the level filter; set for units compiled with
	// the print flag and for fatal reports.
	Forced bool
}

func passes(l Level, ev *Event) bool {
	if l == LevelOff {
		return false
	}
	return ev.Forced || l.ShouldEmit(ev.Scope)
}
