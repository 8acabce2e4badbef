// Package trace is the compiler's event log.
//
// Compilation requests, attempts and passes are recorded as spans; decoded
// instructions and trace summaries are recorded as point events. Output goes
// to a stream (stderr or a file), to an in-memory ring kept for crash dumps,
// or to both.
//
// # Levels
//
//   - LevelOff: nothing
//   - LevelError: only fatal reports
//   - LevelPhase: requests and attempts
//   - LevelDetail: CFG passes and backend phases
//   - LevelDebug: every decoded instruction
//
// Units compiled with the print flag set force their instruction and
// summary events through regardless of level, as long as a tracer is
// enabled.
//
// # Context Propagation
//
//	ctx = trace.WithTracer(ctx, tracer)
//	t := trace.FromContext(ctx)
//
//	span := trace.Begin(t, trace.ScopePass, "link", parentID)
//	defer span.End("")
package trace
