package jit

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"dexjit/internal/arena"
	"dexjit/internal/backend"
	"dexjit/internal/meta"
	"dexjit/internal/mir"
	"dexjit/internal/observ"
	"dexjit/internal/trace"
)

// ErrTraceTooLarge is returned when halving the ceiling reached zero
// without the backend accepting the trace.
var ErrTraceTooLarge = errors.New("jit: trace does not fit at any length")

// AbortFunc handles an internal consistency violation. It is expected not
// to return; when it does, the compilation fails with the original error.
type AbortFunc func(err error)

// DefaultAbort reports err and terminates the process.
func DefaultAbort(err error) {
	fmt.Fprintf(os.Stderr, "dexjit: fatal: %v\n", err)
	os.Exit(70)
}

// Compiler is shared by all workers.
type Compiler struct {
	cfg     Config
	backend backend.Backend
	filter  *MethodFilter
	lookup  *lru.Cache[string, backend.Translation]
	tracer  trace.Tracer
	abort   AbortFunc

	seq       atomic.Uint64
	traces    atomic.Uint64
	methods   atomic.Uint64
	retries   atomic.Uint64
	hits      atomic.Uint64
	failures  atomic.Uint64
	tooLarge  atomic.Uint64
	aborts    atomic.Uint64
	installed atomic.Uint64
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithTracer routes compilation events to t.
func WithTracer(t trace.Tracer) Option {
	return func(c *Compiler) {
		if t != nil {
			c.tracer = t
		}
	}
}

// WithAbort replaces DefaultAbort.
func WithAbort(f AbortFunc) Option {
	return func(c *Compiler) {
		if f != nil {
			c.abort = f
		}
	}
}

// NewCompiler validates cfg and returns a compiler using be.
func NewCompiler(cfg Config, be backend.Backend, opts ...Option) (*Compiler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if be == nil {
		return nil, errors.New("jit: nil backend")
	}
	lookup, err := lru.New[string, backend.Translation](cfg.LookupCacheSize)
	if err != nil {
		return nil, fmt.Errorf("jit: lookup cache: %w", err)
	}
	c := &Compiler{
		cfg:     cfg,
		backend: be,
		filter:  NewMethodFilter(cfg.Filter),
		lookup:  lookup,
		tracer:  trace.Nop,
		abort:   DefaultAbort,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Config returns the compiler settings.
func (c *Compiler) Config() Config { return c.cfg }

// Lookup returns a previously installed translation for key.
func (c *Compiler) Lookup(key string) (backend.Translation, bool) {
	return c.lookup.Get(key)
}

// Stats is a snapshot of compiler counters.
type Stats struct {
	Compilations uint64
	Traces       uint64
	Methods      uint64
	Retries      uint64
	CacheHits    uint64
	Failures     uint64
	TooLarge     uint64
	Aborts       uint64
	Installed    uint64
	Cached       int
}

// Stats returns the current counters.
func (c *Compiler) Stats() Stats {
	return Stats{
		Compilations: c.seq.Load(),
		Traces:       c.traces.Load(),
		Methods:      c.methods.Load(),
		Retries:      c.retries.Load(),
		CacheHits:    c.hits.Load(),
		Failures:     c.failures.Load(),
		TooLarge:     c.tooLarge.Load(),
		Aborts:       c.aborts.Load(),
		Installed:    c.installed.Load(),
		Cached:       c.lookup.Len(),
	}
}

// Worker compiles one request at a time with its own arena. Workers must
// not be shared between goroutines.
type Worker struct {
	c     *Compiler
	arena *arena.Arena
}

// NewWorker returns a worker with a fresh arena.
func (c *Compiler) NewWorker() *Worker {
	return &Worker{c: c, arena: arena.New()}
}

// Arena exposes the worker's arena for statistics.
func (w *Worker) Arena() *arena.Arena { return w.arena }

// Result describes one finished compilation.
type Result struct {
	Key         string
	Method      string
	Mode        string
	Translation backend.Translation
	Insts       int
	// Ceilings lists the instruction ceiling of every trace attempt.
	Ceilings []int
	Cached   bool
	Timings  observ.Report
}

// Attempts is the number of backend attempts made.
func (r Result) Attempts() int {
	if r.Mode == "method" && !r.Cached {
		return 1
	}
	return len(r.Ceilings)
}

// CompileTrace compiles desc, halving the instruction ceiling each time the
// backend reports the code does not fit.
func (w *Worker) CompileTrace(ctx context.Context, desc *meta.Trace) (res Result, err error) {
	c := w.c
	if desc == nil || desc.Method == nil {
		return Result{}, errors.New("jit: nil trace")
	}
	key := desc.Key()
	res = Result{Key: key, Method: desc.Method.Ref(), Mode: "trace"}
	if t, ok := c.lookup.Get(key); ok {
		c.hits.Add(1)
		res.Translation, res.Insts, res.Cached = t, t.Insts, true
		return res, nil
	}
	c.traces.Add(1)

	span := trace.Begin(c.tracer, trace.ScopeDriver, "trace", trace.CurrentSpan(ctx))
	timer := observ.NewTimer()
	defer func() { res.Timings = timer.Report() }()

	ceiling := c.cfg.MaxTraceInsns
	for {
		if ceiling <= 0 {
			c.failures.Add(1)
			span.End("too large")
			return res, fmt.Errorf("%w: %s", ErrTraceTooLarge, key)
		}
		res.Ceilings = append(res.Ceilings, ceiling)
		compiled, t, err := w.attemptTrace(ctx, desc, ceiling, timer, span.ID())
		if err == nil {
			c.lookup.Add(key, t)
			c.installed.Add(1)
			res.Translation, res.Insts = t, compiled
			span.WithExtra("attempts", fmt.Sprint(len(res.Ceilings))).End("")
			return res, nil
		}
		if !errors.Is(err, backend.ErrCodeTooLarge) {
			c.failures.Add(1)
			span.End(err.Error())
			if errors.Is(err, mir.ErrInvariant) {
				w.fatal(err)
			}
			return res, err
		}
		c.tooLarge.Add(1)
		c.retries.Add(1)
		ceiling = compiled / 2
	}
}

// attemptTrace is one build + backend round on a fresh unit. The arena is
// reset before it returns, whatever the outcome.
func (w *Worker) attemptTrace(ctx context.Context, desc *meta.Trace, ceiling int, timer *observ.Timer, parent uint64) (int, backend.Translation, error) {
	c := w.c
	defer w.arena.Reset()

	span := trace.Begin(c.tracer, trace.ScopeAttempt, "attempt", parent)
	span.WithExtra("ceiling", fmt.Sprint(ceiling))

	u, err := w.newUnit(desc.Method, span.ID())
	if err != nil {
		span.End(err.Error())
		return 0, backend.Translation{}, err
	}
	u.Trace = desc

	idx := timer.Begin("build")
	err = mir.BuildTrace(u, ceiling)
	if err == nil {
		err = w.validate(u)
	}
	timer.End(idx, fmt.Sprintf("ceiling %d", ceiling))
	if err != nil {
		span.End(err.Error())
		return u.NumInsts, backend.Translation{}, err
	}
	w.dump(u)

	idx = timer.Begin("backend")
	t, err := c.backend.Compile(ctx, u)
	timer.End(idx, "")
	if u.Print {
		if errors.Is(err, backend.ErrCodeTooLarge) {
			trace.Printf(c.tracer, trace.ScopeAttempt, u.Span, "assemble", "Assembler aborted")
		}
		trace.Printf(c.tracer, trace.ScopeAttempt, u.Span, "end", "End %s, %d instructions", u.Method.Signature(), u.NumInsts)
	}
	if err != nil {
		span.End(err.Error())
		return u.NumInsts, backend.Translation{}, err
	}
	span.WithExtra("insns", fmt.Sprint(u.NumInsts)).End("")
	return u.NumInsts, t, nil
}

// CompileMethod compiles all of m. There is no retry: a backend failure is
// returned as is, and a CFG that contradicts its own block-start marks
// aborts before the backend runs.
func (w *Worker) CompileMethod(ctx context.Context, m *meta.Method) (res Result, err error) {
	c := w.c
	if m == nil {
		return Result{}, errors.New("jit: nil method")
	}
	key := "method:" + m.Ref()
	res = Result{Key: key, Method: m.Ref(), Mode: "method"}
	if t, ok := c.lookup.Get(key); ok {
		c.hits.Add(1)
		res.Translation, res.Insts, res.Cached = t, t.Insts, true
		return res, nil
	}
	c.methods.Add(1)
	defer w.arena.Reset()

	span := trace.Begin(c.tracer, trace.ScopeDriver, "method", trace.CurrentSpan(ctx))
	timer := observ.NewTimer()
	defer func() { res.Timings = timer.Report() }()

	u, err := w.newUnit(m, span.ID())
	if err != nil {
		c.failures.Add(1)
		span.End(err.Error())
		return res, err
	}

	idx := timer.Begin("build")
	err = mir.BuildMethod(u)
	if err == nil {
		err = w.validate(u)
	}
	timer.End(idx, "")
	if err != nil {
		c.failures.Add(1)
		span.End(err.Error())
		if errors.Is(err, mir.ErrInvariant) {
			w.fatal(err)
		}
		return res, err
	}
	w.dump(u)

	idx = timer.Begin("backend")
	t, err := c.backend.Compile(ctx, u)
	timer.End(idx, "")
	if err != nil {
		c.failures.Add(1)
		span.End(err.Error())
		return res, err
	}
	c.lookup.Add(key, t)
	c.installed.Add(1)
	res.Translation, res.Insts = t, u.NumInsts
	span.End("")
	return res, nil
}

func (w *Worker) newUnit(m *meta.Method, span uint64) (*mir.Unit, error) {
	c := w.c
	u, err := mir.NewUnit(w.arena, m)
	if err != nil {
		return nil, err
	}
	u.ID = c.seq.Add(1)
	u.Tracer = c.tracer
	u.Span = span
	u.Print = c.cfg.Print
	c.filter.Apply(m, u)
	return u, nil
}

// validate turns a structurally broken CFG into a fatal error.
func (w *Worker) validate(u *mir.Unit) error {
	if err := mir.Validate(u); err != nil {
		return fmt.Errorf("%w: %w", mir.ErrInvariant, err)
	}
	return nil
}

func (w *Worker) fatal(err error) {
	w.c.aborts.Add(1)
	trace.Fatal(w.c.tracer, "abort", err)
	w.c.abort(err)
}

func (w *Worker) dump(u *mir.Unit) {
	if !u.Print {
		return
	}
	var sb strings.Builder
	if err := mir.Dump(&sb, u); err != nil {
		return
	}
	trace.Printf(w.c.tracer, trace.ScopeAttempt, u.Span, "cfg", "%s", strings.TrimRight(sb.String(), "\n"))
}
