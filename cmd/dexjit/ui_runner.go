package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"dexjit/internal/jit"
	"dexjit/internal/ui"
)

type batchOutcome struct {
	outcomes []jit.Outcome
	err      error
}

// runBatchWithUI runs the batch in the background and renders its events
// until the last one arrives.
func runBatchWithUI(ctx context.Context, title string, c *jit.Compiler, reqs []jit.Request, jobs int) ([]jit.Outcome, error) {
	events := make(chan jit.Event, 256)
	outcomeCh := make(chan batchOutcome, 1)

	go func() {
		outcomes, err := jit.Batch(ctx, c, reqs, jobs, func(ev jit.Event) { events <- ev })
		outcomeCh <- batchOutcome{outcomes: outcomes, err: err}
		close(events)
	}()

	names := make([]string, len(reqs))
	for i, r := range reqs {
		names[i] = r.Name()
	}
	model := ui.NewProgressModel(title, names, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	// the model may quit early on ctrl+c; keep the producer unblocked
	go func() {
		for range events {
		}
	}()
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.outcomes, uiErr
	}
	return outcome.outcomes, outcome.err
}
