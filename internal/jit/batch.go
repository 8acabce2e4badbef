package jit

import (
	"context"
	"runtime"
	"strconv"

	"golang.org/x/sync/errgroup"

	"dexjit/internal/meta"
	"dexjit/internal/trace"
)

// Request is a trace or a whole method to compile.
type Request struct {
	Trace  *meta.Trace
	Method *meta.Method
}

// Name identifies the request in progress output.
func (r Request) Name() string {
	if r.Trace != nil {
		if r.Trace.Name != "" {
			return r.Trace.Name
		}
		return r.Trace.Key()
	}
	return r.Method.Ref()
}

// Status is the state of a batch request.
type Status uint8

const (
	StatusQueued Status = iota
	StatusCompiling
	StatusDone
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusQueued:
		return "queued"
	case StatusCompiling:
		return "compiling"
	case StatusDone:
		return "done"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Event reports progress of request Index.
type Event struct {
	Index  int
	Name   string
	Status Status
	Result Result
	Err    error
}

// Sink receives batch events. It is called from several goroutines.
type Sink func(Event)

// Outcome is the final state of one request.
type Outcome struct {
	Request Request
	Result  Result
	Err     error
}

// Batch compiles reqs with up to jobs workers. Per-request failures are
// reported in the outcomes; the returned error is only set when ctx ends
// the batch early.
func Batch(ctx context.Context, c *Compiler, reqs []Request, jobs int, sink Sink) ([]Outcome, error) {
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	if sink == nil {
		sink = func(Event) {}
	}
	outcomes := make([]Outcome, len(reqs))
	if len(reqs) == 0 {
		return outcomes, nil
	}
	jobs = min(jobs, len(reqs))

	span := trace.Begin(c.tracer, trace.ScopeDriver, "batch", trace.CurrentSpan(ctx))
	ctx = trace.WithSpan(ctx, span)

	workers := make(chan *Worker, jobs)
	for i := 0; i < jobs; i++ {
		workers <- c.NewWorker()
	}

	for i, r := range reqs {
		outcomes[i].Request = r
		sink(Event{Index: i, Name: r.Name(), Status: StatusQueued})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, r := range reqs {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			w := <-workers
			defer func() { workers <- w }()

			sink(Event{Index: i, Name: r.Name(), Status: StatusCompiling})
			var (
				res Result
				err error
			)
			if r.Trace != nil {
				res, err = w.CompileTrace(gctx, r.Trace)
			} else {
				res, err = w.CompileMethod(gctx, r.Method)
			}
			// index i is owned by this goroutine
			outcomes[i].Result = res
			outcomes[i].Err = err
			ev := Event{Index: i, Name: r.Name(), Status: StatusDone, Result: res, Err: err}
			if err != nil {
				ev.Status = StatusFailed
			}
			sink(ev)
			return nil
		})
	}
	err := g.Wait()
	span.WithExtra("requests", strconv.Itoa(len(reqs))).End("")
	return outcomes, err
}
