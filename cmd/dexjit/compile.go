package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"dexjit/internal/jit"
	"dexjit/internal/meta"
)

var traceCmd = &cobra.Command{
	Use:   "trace [flags] <image.toml> [trace-name...]",
	Short: "Compile recorded traces",
	Long: `Compile traces recorded in an image. Without names every trace is compiled.
--method with --start and --count compiles an ad hoc single-run trace instead.`,
	Args: cobra.MinimumNArgs(1),
	RunE: traceExecution,
}

var methodCmd = &cobra.Command{
	Use:   "method [flags] <image.toml> [method-ref...]",
	Short: "Compile whole methods",
	Long:  `Compile methods of an image as a single unit. Without references every method with code is compiled.`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  methodExecution,
}

func init() {
	traceCmd.Flags().String("method", "", "method reference for an ad hoc trace (e.g. LFoo;->run)")
	traceCmd.Flags().String("start", "0", "start offset of the ad hoc trace in code units")
	traceCmd.Flags().Uint32("count", 0, "instruction count of the ad hoc trace")
	traceCmd.Flags().Bool("stats", false, "print compiler and code cache statistics")
	methodCmd.Flags().Bool("stats", false, "print compiler and code cache statistics")
}

func traceExecution(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd, args[0])
	if err != nil {
		return err
	}
	defer s.close()

	reqs, err := traceRequests(cmd, s.image, args[1:])
	if err != nil {
		return err
	}
	return s.compileAll(cmd, reqs)
}

func methodExecution(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd, args[0])
	if err != nil {
		return err
	}
	defer s.close()

	reqs, err := methodRequests(s.image, args[1:])
	if err != nil {
		return err
	}
	return s.compileAll(cmd, reqs)
}

// compileAll compiles reqs in order on a single worker and reports every
// result. The error counts failed requests.
func (s *session) compileAll(cmd *cobra.Command, reqs []jit.Request) error {
	out := cmd.OutOrStdout()
	w := s.compiler.NewWorker()
	failed := 0
	for _, r := range reqs {
		var (
			res jit.Result
			err error
		)
		if r.Trace != nil {
			res, err = w.CompileTrace(cmd.Context(), r.Trace)
		} else {
			res, err = w.CompileMethod(cmd.Context(), r.Method)
		}
		if err != nil {
			failed++
		}
		printResult(out, r.Name(), res, err, s.timings)
	}
	if stats, _ := cmd.Flags().GetBool("stats"); stats {
		printStats(out, s.compiler.Stats(), s.native.Cache().Stats())
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d compilations failed", failed, len(reqs))
	}
	return nil
}

func traceRequests(cmd *cobra.Command, img *meta.Image, names []string) ([]jit.Request, error) {
	ref, err := cmd.Flags().GetString("method")
	if err != nil {
		return nil, err
	}
	if ref != "" {
		if len(names) > 0 {
			return nil, errors.New("--method cannot be combined with trace names")
		}
		return adHocTrace(cmd, img, ref)
	}

	if len(names) == 0 {
		if len(img.Traces) == 0 {
			return nil, errors.New("image records no traces")
		}
		reqs := make([]jit.Request, len(img.Traces))
		for i, t := range img.Traces {
			reqs[i] = jit.Request{Trace: t}
		}
		return reqs, nil
	}
	reqs := make([]jit.Request, 0, len(names))
	for _, name := range names {
		t := img.Trace(name)
		if t == nil {
			return nil, fmt.Errorf("unknown trace %q", name)
		}
		reqs = append(reqs, jit.Request{Trace: t})
	}
	return reqs, nil
}

func adHocTrace(cmd *cobra.Command, img *meta.Image, ref string) ([]jit.Request, error) {
	m := img.Method(ref)
	if m == nil {
		return nil, fmt.Errorf("unknown method %q", ref)
	}
	startStr, err := cmd.Flags().GetString("start")
	if err != nil {
		return nil, err
	}
	// accepts 0x prefixed offsets
	start, err := strconv.ParseUint(startStr, 0, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid --start %q: %w", startStr, err)
	}
	count, err := cmd.Flags().GetUint32("count")
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, errors.New("--count must be positive")
	}
	if start >= uint64(len(m.Code)) {
		return nil, fmt.Errorf("--start %#x is beyond the %d code units of %s", start, len(m.Code), ref)
	}
	return []jit.Request{{Trace: meta.SingleRun(m, uint32(start), count)}}, nil
}

func methodRequests(img *meta.Image, refs []string) ([]jit.Request, error) {
	if len(refs) == 0 {
		var reqs []jit.Request
		for _, ref := range img.MethodRefs() {
			if m := img.Method(ref); !m.Native {
				reqs = append(reqs, jit.Request{Method: m})
			}
		}
		return reqs, nil
	}
	reqs := make([]jit.Request, 0, len(refs))
	for _, ref := range refs {
		m := img.Method(ref)
		if m == nil {
			return nil, fmt.Errorf("unknown method %q", ref)
		}
		reqs = append(reqs, jit.Request{Method: m})
	}
	return reqs, nil
}
