// Package ui renders interactive batch compilation progress.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"dexjit/internal/jit"
)

type progressModel struct {
	title    string
	events   <-chan jit.Event
	spinner  spinner.Model
	prog     progress.Model
	items    []requestItem
	finished int
	failed   int
	width    int
	done     bool
}

type requestItem struct {
	name   string
	status jit.Status
	detail string
}

type eventMsg jit.Event
type doneMsg struct{}

// NewProgressModel returns a Bubble Tea model that renders one line per
// batch request. names are indexed like jit.Event.Index; the model quits
// when events is closed.
func NewProgressModel(title string, names []string, events <-chan jit.Event) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 76

	items := make([]requestItem, len(names))
	for i, name := range names {
		items[i] = requestItem{name: name, status: jit.StatusQueued}
	}
	return &progressModel{
		title:   title,
		events:  events,
		spinner: sp,
		prog:    prog,
		items:   items,
		width:   80,
	}
}

func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForEvent())
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		cmd := m.applyEvent(jit.Event(msg))
		return m, tea.Batch(cmd, m.listenForEvent())
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.prog.Width = msg.Width - 4
		}
		return m, nil
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		return m, nil
	case progress.FrameMsg:
		pm, cmd := m.prog.Update(msg)
		m.prog = pm.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *progressModel) View() string {
	if len(m.items) == 0 {
		return ""
	}
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	header := fmt.Sprintf("%s (%d/%d", m.title, m.finished, len(m.items))
	if m.failed > 0 {
		header += fmt.Sprintf(", %d failed", m.failed)
	}
	header += ")"
	if m.done {
		header = "done: " + header
	} else {
		header = m.spinner.View() + " " + header
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n\n")

	const statusWidth = 10
	nameWidth := max(m.width-statusWidth-4, 20)
	for _, item := range m.items {
		status := styleStatus(item.status).Render(fmt.Sprintf("%10s", item.status))
		line := "  " + status + " " + truncate(item.name, nameWidth)
		if item.detail != "" {
			line += " " + lipgloss.NewStyle().Faint(true).Render(item.detail)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.done {
		b.WriteString(m.prog.ViewAs(1.0))
	} else {
		b.WriteString(m.prog.View())
	}
	b.WriteString("\n")
	return b.String()
}

func (m *progressModel) listenForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return doneMsg{}
		}
		return eventMsg(ev)
	}
}

func (m *progressModel) applyEvent(ev jit.Event) tea.Cmd {
	if ev.Index < 0 || ev.Index >= len(m.items) {
		return nil
	}
	item := &m.items[ev.Index]
	prev := item.status
	item.status = ev.Status
	switch ev.Status {
	case jit.StatusDone:
		item.detail = describeResult(ev.Result)
	case jit.StatusFailed:
		if ev.Err != nil {
			item.detail = ev.Err.Error()
		}
	}
	if isFinal(ev.Status) && !isFinal(prev) {
		m.finished++
		if ev.Status == jit.StatusFailed {
			m.failed++
		}
	}
	return m.prog.SetPercent(m.percent())
}

// percent counts compiling requests as half done.
func (m *progressModel) percent() float64 {
	total := 0.0
	for _, item := range m.items {
		switch {
		case isFinal(item.status):
			total++
		case item.status == jit.StatusCompiling:
			total += 0.5
		}
	}
	return total / float64(len(m.items))
}

func isFinal(s jit.Status) bool {
	return s == jit.StatusDone || s == jit.StatusFailed
}

func describeResult(r jit.Result) string {
	switch {
	case r.Cached:
		return "cached"
	case r.Attempts() > 1:
		return fmt.Sprintf("%d insns, %d attempts", r.Insts, r.Attempts())
	default:
		return fmt.Sprintf("%d insns", r.Insts)
	}
}

func styleStatus(s jit.Status) lipgloss.Style {
	switch s {
	case jit.StatusDone:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	case jit.StatusFailed:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	case jit.StatusCompiling:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	}
}

func truncate(value string, width int) string {
	if width <= 0 || runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width, "...")
}
