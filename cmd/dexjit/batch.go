package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"

	"dexjit/internal/jit"
)

var batchCmd = &cobra.Command{
	Use:   "batch [flags] <image.toml>",
	Short: "Compile every trace of an image concurrently",
	Long: `Compile every recorded trace, and with --methods every method with code,
on a pool of workers. --log writes the installed translations to a file.`,
	Args: cobra.ExactArgs(1),
	RunE: batchExecution,
}

func init() {
	batchCmd.Flags().Int("jobs", 0, "worker count (0: config, then GOMAXPROCS)")
	batchCmd.Flags().Bool("methods", false, "also compile every method with code")
	batchCmd.Flags().String("ui", "auto", "progress UI (auto|on|off)")
	batchCmd.Flags().String("log", "", "write installed translations to this file")
	batchCmd.Flags().Bool("stats", false, "print compiler and code cache statistics")
}

func batchExecution(cmd *cobra.Command, args []string) error {
	uiValue, err := cmd.Flags().GetString("ui")
	if err != nil {
		return err
	}
	mode, err := readUIMode(uiValue)
	if err != nil {
		return err
	}
	withMethods, err := cmd.Flags().GetBool("methods")
	if err != nil {
		return err
	}
	logPath, err := cmd.Flags().GetString("log")
	if err != nil {
		return err
	}

	s, err := openSession(cmd, args[0])
	if err != nil {
		return err
	}
	defer s.close()

	reqs := make([]jit.Request, 0, len(s.image.Traces))
	for _, t := range s.image.Traces {
		reqs = append(reqs, jit.Request{Trace: t})
	}
	if withMethods {
		methods, err := methodRequests(s.image, nil)
		if err != nil {
			return err
		}
		reqs = append(reqs, methods...)
	}
	if len(reqs) == 0 {
		return fmt.Errorf("%s: nothing to compile", args[0])
	}

	out := cmd.OutOrStdout()
	var outcomes []jit.Outcome
	if shouldUseTUI(mode) && !s.cfg.Print {
		outcomes, err = runBatchWithUI(cmd.Context(), "compiling "+args[0], s.compiler, reqs, s.cfg.Jobs)
	} else {
		outcomes, err = jit.Batch(cmd.Context(), s.compiler, reqs, s.cfg.Jobs, lineSink(out))
	}
	if err != nil {
		return err
	}

	failed := 0
	entries := make([]jit.LogEntry, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
			continue
		}
		entries = append(entries, jit.NewLogEntry(o.Result))
	}
	if s.timings {
		for _, o := range outcomes {
			if o.Err == nil && len(o.Result.Timings.Phases) > 0 {
				fmt.Fprintf(out, "%s\n%s", o.Request.Name(), o.Result.Timings.Summary())
			}
		}
	}
	if logPath != "" {
		if err := jit.WriteLog(logPath, entries); err != nil {
			return err
		}
		fmt.Fprintf(out, "wrote %d translations to %s\n", len(entries), logPath)
	}
	if stats, _ := cmd.Flags().GetBool("stats"); stats {
		printStats(out, s.compiler.Stats(), s.native.Cache().Stats())
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d compilations failed", failed, len(reqs))
	}
	return nil
}

// lineSink prints final batch events as plain result lines.
func lineSink(out io.Writer) jit.Sink {
	var mu sync.Mutex
	return func(ev jit.Event) {
		if ev.Status != jit.StatusDone && ev.Status != jit.StatusFailed {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		printResult(out, ev.Name, ev.Result, ev.Err, false)
	}
}
