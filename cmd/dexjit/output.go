package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"dexjit/internal/backend"
	"dexjit/internal/jit"
)

var (
	okLabel     = color.New(color.FgGreen, color.Bold).Sprint
	cachedLabel = color.New(color.FgCyan).Sprint
	failLabel   = color.New(color.FgRed, color.Bold).Sprint
	dimText     = color.New(color.Faint).Sprint
)

var numbers = message.NewPrinter(language.English)

func printError(out io.Writer, err error) {
	fmt.Fprintf(out, "%s %v\n", failLabel("error:"), err)
}

// printResult writes one line per compilation, plus its timings when asked.
func printResult(out io.Writer, name string, r jit.Result, err error, timings bool) {
	if err != nil {
		fmt.Fprintf(out, "%s %s: %v\n", failLabel("FAIL"), name, err)
		return
	}
	label := okLabel("ok  ")
	if r.Cached {
		label = cachedLabel("hit ")
	}
	t := r.Translation
	fmt.Fprintf(out, "%s %s %s\n", label, name, dimText(describeTranslation(r)))
	if len(t.Cells) > 0 && !r.Cached {
		for _, c := range t.Cells {
			fmt.Fprintf(out, "       %s\n", describeCell(c))
		}
	}
	if timings && len(r.Timings.Phases) > 0 {
		for _, line := range strings.Split(strings.TrimRight(r.Timings.Summary(), "\n"), "\n") {
			fmt.Fprintf(out, "       %s\n", line)
		}
	}
}

func describeTranslation(r jit.Result) string {
	t := r.Translation
	var sb strings.Builder
	numbers.Fprintf(&sb, "%s, %d insns, entry %#x, %d bytes", r.Mode, r.Insts, t.Entry(), t.Size)
	if len(r.Ceilings) > 1 {
		ceilings := make([]string, len(r.Ceilings))
		for i, c := range r.Ceilings {
			ceilings[i] = fmt.Sprint(c)
		}
		fmt.Fprintf(&sb, ", ceilings %s", strings.Join(ceilings, " > "))
	}
	return sb.String()
}

func describeCell(c backend.Cell) string {
	if c.Callee != "" {
		return fmt.Sprintf("%-12s @%#x -> %s (%#x)", c.Kind, c.Offset, c.Callee, c.Target)
	}
	return fmt.Sprintf("%-12s @%#x", c.Kind, c.Offset)
}

// printStats writes compiler counters and code cache usage.
func printStats(out io.Writer, s jit.Stats, cache backend.CacheStats) {
	numbers.Fprintf(out, "compilations %d (traces %d, methods %d), retries %d, cache hits %d\n",
		s.Compilations, s.Traces, s.Methods, s.Retries, s.CacheHits)
	if s.Failures > 0 || s.TooLarge > 0 {
		numbers.Fprintf(out, "failures %d, oversize attempts %d, aborts %d\n", s.Failures, s.TooLarge, s.Aborts)
	}
	numbers.Fprintf(out, "code cache %d / %d bytes in %d translations\n", cache.Used, cache.Capacity, cache.Translations)
}
