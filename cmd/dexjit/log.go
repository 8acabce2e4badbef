package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"dexjit/internal/jit"
)

var logCmd = &cobra.Command{
	Use:   "log [flags] <translations.msgpack>",
	Short: "Show a translation log written by batch --log",
	Args:  cobra.ExactArgs(1),
	RunE:  logExecution,
}

func init() {
	logCmd.Flags().String("format", "pretty", "output format (pretty|json)")
	logCmd.Flags().String("method", "", "only show translations of this method")
}

func logExecution(cmd *cobra.Command, args []string) error {
	if err := applyColorMode(cmd); err != nil {
		return err
	}
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	method, err := cmd.Flags().GetString("method")
	if err != nil {
		return err
	}
	format = strings.ToLower(format)
	if format != "pretty" && format != "json" {
		return fmt.Errorf("unsupported format %q (must be pretty or json)", format)
	}

	entries, written, err := jit.ReadLog(args[0])
	if err != nil {
		return err
	}
	if method != "" {
		kept := entries[:0]
		for _, e := range entries {
			if e.Method == method {
				kept = append(kept, e)
			}
		}
		entries = kept
	}

	if format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}
	renderLog(cmd.OutOrStdout(), entries, written)
	return nil
}

func renderLog(out io.Writer, entries []jit.LogEntry, written time.Time) {
	numbers.Fprintf(out, "%d translations, written %s\n", len(entries), written.Local().Format(time.DateTime))
	for _, e := range entries {
		fmt.Fprintf(out, "%s %s\n", okLabel(e.Mode), e.Key)
		numbers.Fprintf(out, "    %d insns, entry %#x, %d bytes", e.Insts, e.Entry, e.Size)
		if len(e.Ceilings) > 1 {
			fmt.Fprintf(out, ", %d attempts", len(e.Ceilings))
		}
		fmt.Fprintln(out)
		for _, c := range e.Cells {
			if c.Callee != "" {
				fmt.Fprintf(out, "    %-12s @%#x -> %s (%#x)\n", c.Kind, c.Offset, c.Callee, c.Target)
				continue
			}
			fmt.Fprintf(out, "    %-12s @%#x\n", c.Kind, c.Offset)
		}
	}
}
