package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/deepthink/internal/orchestrator"
)

// RunState is what the view knows about the run being displayed.
type RunState struct {
	RunID     string
	Query     string
	Phase     orchestrator.RunState
	Analysis  *orchestrator.AnalysisResult
	Tasks     []orchestrator.TaskResult
	Result    orchestrator.RunResult
	StartedAt time.Time
	Err       error
}

// apply folds one engine update into the state. Updates carry full
// snapshots, so a task update simply replaces the stored copy.
func (s *RunState) apply(u orchestrator.Update) {
	if s.RunID != "" && u.RunID != s.RunID {
		return
	}
	s.RunID = u.RunID
	s.Phase = u.State
	if s.StartedAt.IsZero() && u.State == orchestrator.StateAnalyzing {
		s.StartedAt = u.At
	}

	switch u.Kind {
	case orchestrator.UpdateAnalysis:
		if u.Analysis != nil {
			a := *u.Analysis
			s.Analysis = &a
		}
		for _, t := range u.Tasks {
			s.upsert(t)
		}
	case orchestrator.UpdateTask:
		if u.Task != nil {
			s.upsert(*u.Task)
		}
	case orchestrator.UpdateSynthesis:
		if u.Result != nil {
			s.Result = *u.Result
		}
	case orchestrator.UpdateState:
		if u.Result != nil {
			s.Result = *u.Result
		}
		if u.Err != nil {
			s.Err = u.Err
		}
	}
}

func (s *RunState) upsert(t orchestrator.TaskResult) {
	for i := range s.Tasks {
		if s.Tasks[i].ID == t.ID {
			s.Tasks[i] = t
			return
		}
	}
	s.Tasks = append(s.Tasks, t)
}

// RunView renders the progress of a single run.
type RunView struct {
	state  RunState
	width  int
	height int

	// Styles
	headerStyle  lipgloss.Style
	labelStyle   lipgloss.Style
	valueStyle   lipgloss.Style
	phaseStyle   lipgloss.Style
	pendingStyle lipgloss.Style
	runningStyle lipgloss.Style
	doneStyle    lipgloss.Style
	failedStyle  lipgloss.Style
	mutedStyle   lipgloss.Style
	answerStyle  lipgloss.Style
}

// NewRunView creates a new RunView instance.
func NewRunView() *RunView {
	return &RunView{
		width:  80,
		height: 24,

		headerStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("238")).
			MarginBottom(1),

		labelStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(12),

		valueStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Bold(true),

		phaseStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true),

		pendingStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")), // Gray

		runningStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")), // Green

		doneStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("28")), // Dark green

		failedStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")), // Red

		mutedStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true),

		answerStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")),
	}
}

// SetSize sets the view dimensions.
func (v *RunView) SetSize(width, height int) {
	v.width = width
	v.height = height
}

// State returns the current run state.
func (v *RunView) State() RunState {
	return v.state
}

// View renders the run. spin is drawn next to running tasks.
func (v *RunView) View(spin spinner.Model, now time.Time) string {
	var b strings.Builder

	b.WriteString(v.headerStyle.Render("Deep Think"))
	b.WriteString("\n")

	if v.state.Query != "" {
		b.WriteString(v.labelStyle.Render("Query:"))
		b.WriteString(v.valueStyle.Render(truncate(oneLine(v.state.Query), v.width-14)))
		b.WriteString("\n")
	}

	phase := string(v.state.Phase)
	if phase == "" {
		phase = string(orchestrator.StateIdle)
	}
	b.WriteString(v.labelStyle.Render("Phase:"))
	b.WriteString(v.phaseStyle.Render(phase))
	if !v.state.StartedAt.IsZero() {
		b.WriteString(v.mutedStyle.Render(fmt.Sprintf("  %s", now.Sub(v.state.StartedAt).Round(100*time.Millisecond))))
	}
	b.WriteString("\n")

	if a := v.state.Analysis; a != nil && a.Rationale != "" {
		b.WriteString(v.labelStyle.Render("Plan:"))
		b.WriteString(v.mutedStyle.Render(truncate(oneLine(a.Rationale), v.width-14)))
		b.WriteString("\n")
	}

	if len(v.state.Tasks) > 0 {
		b.WriteString("\n")
		for _, t := range v.state.Tasks {
			b.WriteString(v.renderTask(t, spin))
			b.WriteString("\n")
		}
	}

	if v.state.Result.FinalThoughts != "" && v.state.Result.FinalText == "" {
		b.WriteString("\n")
		b.WriteString(v.mutedStyle.Render(tail(v.state.Result.FinalThoughts, 3, v.width-4)))
		b.WriteString("\n")
	}

	if v.state.Result.FinalText != "" {
		b.WriteString("\n")
		b.WriteString(v.answerStyle.Width(v.width - 2).Render(v.state.Result.FinalText))
		b.WriteString("\n")
	}

	return b.String()
}

func (v *RunView) renderTask(t orchestrator.TaskResult, spin spinner.Model) string {
	var icon string
	var style lipgloss.Style
	switch t.Status {
	case orchestrator.TaskRunning:
		icon, style = spin.View(), v.runningStyle
	case orchestrator.TaskCompleted:
		icon, style = "✓", v.doneStyle
	case orchestrator.TaskError:
		icon, style = "✗", v.failedStyle
	default:
		icon, style = "○", v.pendingStyle
	}

	line := fmt.Sprintf(" %s %-8s %s", icon, t.ID, style.Render(t.Role))
	line += v.mutedStyle.Render(fmt.Sprintf(" (temp %g)", t.Temperature))
	if d := t.Duration(); d > 0 {
		line += v.mutedStyle.Render(fmt.Sprintf(" %s", d.Round(100*time.Millisecond)))
	}
	if t.Status == orchestrator.TaskRunning {
		preview := t.Content
		if preview == "" {
			preview = t.Thoughts
		}
		if preview != "" {
			line += "\n   " + v.mutedStyle.Render(truncate(lastLine(preview), v.width-6))
		}
	}
	return line
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func lastLine(s string) string {
	s = strings.TrimRight(s, "\n ")
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// truncate shortens s to at most width runes.
func truncate(s string, width int) string {
	if width <= 3 {
		width = 3
	}
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-3]) + "..."
}

// tail returns the last n lines of s, each truncated to width.
func tail(s string, n, width int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	for i, l := range lines {
		lines[i] = truncate(l, width)
	}
	return strings.Join(lines, "\n")
}
