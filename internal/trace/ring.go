package trace

import (
	"fmt"
	"io"
	"sync"
)

// RingTracer keeps the most recent events in memory so they can be dumped
// after a fatal error.
type RingTracer struct {
	mu    sync.RWMutex
	buf   []Event
	total uint64 // events ever stored
	level Level
}

// NewRingTracer returns a ring holding up to capacity events.
func NewRingTracer(capacity int, level Level) *RingTracer {
	if capacity <= 0 {
		capacity = 4096
	}
	return &RingTracer{buf: make([]Event, capacity), level: level}
}

func (t *RingTracer) Emit(ev *Event) {
	if !passes(t.level, ev) {
		return
	}
	stored := *ev
	stored.Seq = NextSeq()

	t.mu.Lock()
	t.buf[t.total%uint64(len(t.buf))] = stored
	t.total++
	t.mu.Unlock()
}

// Dropped is the number of events overwritten so far.
func (t *RingTracer) Dropped() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.dropped()
}

func (t *RingTracer) dropped() uint64 {
	if n := uint64(len(t.buf)); t.total > n {
		return t.total - n
	}
	return 0
}

// Snapshot copies the retained events, oldest first.
func (t *RingTracer) Snapshot() []Event {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := uint64(len(t.buf))
	out := make([]Event, 0, min(t.total, n))
	for i := t.dropped(); i < t.total; i++ {
		out = append(out, t.buf[i%n])
	}
	return out
}

// Dump writes the retained events to w, preceded by a note when older
// events were lost.
func (t *RingTracer) Dump(w io.Writer, format Format) error {
	events := t.Snapshot()
	if lost := t.Dropped(); lost > 0 && format != FormatNDJSON {
		if _, err := fmt.Fprintf(w, "... %d earlier events dropped\n", lost); err != nil {
			return err
		}
	}
	for i := range events {
		if _, err := w.Write(FormatEvent(&events[i], format)); err != nil {
			return err
		}
	}
	return nil
}

func (t *RingTracer) Flush() error  { return nil }
func (t *RingTracer) Close() error  { return nil }
func (t *RingTracer) Level() Level  { return t.level }
func (t *RingTracer) Enabled() bool { return t.level > LevelOff }
