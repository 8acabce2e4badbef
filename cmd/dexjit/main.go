// Package main implements the dexjit CLI.
package main

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"dexjit/internal/version"
)

var rootCmd = &cobra.Command{
	Use:           "dexjit",
	Short:         "Front end of a trace JIT for register bytecode",
	Long:          `dexjit builds control-flow graphs for recorded traces and whole methods of a bytecode image and hands them to the code cache backend.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(traceCmd)
	rootCmd.AddCommand(methodCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(versionCmd)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "path to dexjit.toml (default: searched upwards from the working directory)")
	pf.String("color", "auto", "colorize output (auto|on|off)")
	pf.Bool("timings", false, "show per-phase timings")
	pf.Bool("print", false, "print decoded instructions and the built CFG")
	pf.Int("max-insns", 0, "initial trace instruction ceiling (overrides config)")
	pf.String("trace", "", "trace output file (- for stderr; .ndjson selects NDJSON)")
	pf.String("trace-level", "off", "trace level (off|error|phase|detail|debug)")
	pf.String("trace-mode", "stream", "trace storage (stream|ring|both)")
	pf.String("trace-format", "auto", "trace format (auto|text|ndjson)")
	pf.Int("trace-ring-size", 4096, "ring buffer capacity for ring and both modes")
}

// main runs the root command. Errors exit with status 1; internal invariant
// violations exit through the compiler's abort hook.
func main() {
	if err := rootCmd.Execute(); err != nil {
		printError(rootCmd.ErrOrStderr(), err)
		os.Exit(1)
	}
}

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
