package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sievebox/sievecore/action"
	"github.com/sievebox/sievecore/sieve"
)

// PlanModel is a Bubble Tea model rendering a finished run's committed
// action plan: the actions taken and whether the implicit keep fired.
type PlanModel struct {
	viewType string
	data     any
	width    int
	height   int
	quitting bool
}

// NewPlanModel creates a plan model over a run's result.
func NewPlanModel(viewType string, data any) PlanModel {
	return PlanModel{viewType: viewType, data: data}
}

func (m PlanModel) Init() tea.Cmd { return nil }

func (m PlanModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
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

func (m PlanModel) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.viewType {
	case "plan_run":
		content = m.renderExecResult()
	case "plan_commit":
		content = m.renderCommitOutcome()
	default:
		content = fmt.Sprintf("Unknown view type: %s", m.viewType)
	}

	help := HelpStyle.Render("Press q or Ctrl+C to quit")
	return content + "\n" + help
}

func (m PlanModel) renderExecResult() string {
	result, ok := m.data.(*sieve.ExecResult)
	if !ok {
		return "Invalid data type for plan_run"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Run Plan"))
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("%s %s\n",
		LabelStyle.Render("Result:"),
		StateStyle(codeState(result.Code)).Render(result.Code.String())))
	b.WriteString(m.renderCommit(result.Commit))
	return b.String()
}

func (m PlanModel) renderCommitOutcome() string {
	out, ok := m.data.(*action.CommitOutcome)
	if !ok {
		return "Invalid data type for plan_commit"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Commit Plan"))
	b.WriteString("\n\n")
	b.WriteString(m.renderCommit(out))
	return b.String()
}

func (m PlanModel) renderCommit(out *action.CommitOutcome) string {
	var b strings.Builder
	if out == nil {
		b.WriteString(LabelStyle.Render("Actions:"))
		b.WriteString(ValueStyle.Render("none"))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(fmt.Sprintf("%s %s\n",
		LabelStyle.Render("Implicit keep:"),
		planKeepText(out)))

	if len(out.Log) == 0 {
		b.WriteString(LabelStyle.Render("Actions:"))
		b.WriteString(ValueStyle.Render("none committed"))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(LabelStyle.Render("Actions:"))
	b.WriteString("\n")
	for i, line := range out.Log {
		b.WriteString(fmt.Sprintf("  %s %s\n",
			StatLabelStyle.Render(fmt.Sprintf("%d.", i+1)),
			ValueStyle.Render(line)))
	}
	return b.String()
}

func planKeepText(out *action.CommitOutcome) string {
	if !out.KeepAttempted {
		return ValueStyle.Render("not attempted (suppressed by a delivering action)")
	}
	keepState := "kept"
	if !out.KeepSucceeded {
		keepState = "KEEP_FAILED"
	}
	return StateStyle(keepState).Render(keepState)
}

// codeState maps an ErrorCode to a StateStyle key.
func codeState(code sieve.ErrorCode) string {
	if code == sieve.ErrNone {
		return "OK"
	}
	return "FAILURE"
}

// RunPlanTUI runs the plan TUI over a *sieve.ExecResult or *action.CommitOutcome.
func RunPlanTUI(viewType string, data any) error {
	model := NewPlanModel(viewType, data)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderPlanStatic renders the plan without a full TUI (non-TTY fallback).
func RenderPlanStatic(viewType string, data any) string {
	model := NewPlanModel(viewType, data)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
