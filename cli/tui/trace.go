package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sievebox/sievecore/interp"
)

// TraceModel is a Bubble Tea model rendering a completed run's trace
// events, in dispatch order.
type TraceModel struct {
	events   []interp.TraceEvent
	width    int
	height   int
	quitting bool
}

// NewTraceModel creates a trace model over a finished run's event log.
func NewTraceModel(events []interp.TraceEvent) TraceModel {
	return TraceModel{events: events}
}

func (m TraceModel) Init() tea.Cmd { return nil }

func (m TraceModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m TraceModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render(fmt.Sprintf("Execution Trace (%d ops)", len(m.events))))
	b.WriteString("\n\n")

	for _, ev := range m.events {
		line := fmt.Sprintf("%s  %-12s  %s",
			LabelStyle.Render(fmt.Sprintf("pc=%-6d", ev.PC)),
			ValueStyle.Render(ev.Mnemonic),
			StateStyle(ev.Status).Render(ev.Status))
		if ev.LoopDepth > 0 {
			line += StatLabelStyle.Render(fmt.Sprintf("  loop_depth=%d", ev.LoopDepth))
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	help := HelpStyle.Render("Press q or Ctrl+C to quit")
	return BoxStyle.Render(b.String()) + "\n" + help
}

// keyMap defines key bindings shared by every sieve TUI view.
type keyMap struct {
	Quit key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// RunTraceTUI runs the trace TUI over a []interp.TraceEvent.
func RunTraceTUI(viewType string, data any) error {
	events, ok := data.([]interp.TraceEvent)
	if !ok {
		return fmt.Errorf("tui: trace view expects []interp.TraceEvent, got %T", data)
	}
	model := NewTraceModel(events)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderTraceStatic renders the trace without a full TUI (non-TTY fallback).
func RenderTraceStatic(events []interp.TraceEvent) string {
	model := NewTraceModel(events)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
