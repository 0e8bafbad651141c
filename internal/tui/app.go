package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/deepthink/internal/orchestrator"
)

// RunUpdateMsg carries one engine update.
type RunUpdateMsg struct {
	Update orchestrator.Update
}

// RunDoneMsg is sent when the run resolves. Err is orchestrator.ErrStopped
// for a stopped run.
type RunDoneMsg struct {
	Outcome *orchestrator.Outcome
	Err     error
}

// tickMsg refreshes elapsed times.
type tickMsg time.Time

// RunApp is the bubbletea model for watching one run.
type RunApp struct {
	view     *RunView
	spinner  spinner.Model
	stop     func()
	now      time.Time
	width    int
	height   int
	quitting bool
	stopping bool
	done     bool
	outcome  *orchestrator.Outcome
	err      error

	// Styles
	errorStyle lipgloss.Style
	doneStyle  lipgloss.Style
	hintStyle  lipgloss.Style
}

// NewRunApp creates a RunApp for query. stop is called when the user asks
// to stop the run; it may be nil.
func NewRunApp(query string, stop func()) *RunApp {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("34"))

	v := NewRunView()
	v.state.Query = query

	return &RunApp{
		view:    v,
		spinner: s,
		stop:    stop,
		now:     time.Now(),

		errorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true),

		doneStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")).
			Bold(true),

		hintStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),
	}
}

// Init implements tea.Model.
func (a *RunApp) Init() tea.Cmd {
	return tea.Batch(a.spinner.Tick, tick())
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update implements tea.Model.
func (a *RunApp) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			a.requestStop()
			a.quitting = true
			return a, tea.Quit
		case "s", "esc":
			a.requestStop()
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.view.SetSize(msg.Width, msg.Height)

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case tickMsg:
		a.now = time.Time(msg)
		if a.done {
			return a, nil
		}
		return a, tick()

	case RunUpdateMsg:
		a.view.state.apply(msg.Update)
		if !msg.Update.At.IsZero() {
			a.now = msg.Update.At
		}

	case RunDoneMsg:
		a.done = true
		a.outcome = msg.Outcome
		a.err = msg.Err
		if msg.Outcome != nil {
			a.view.state.Result.FinalText = msg.Outcome.FinalText
		}
		// Don't quit immediately - let user see final state
	}

	return a, nil
}

func (a *RunApp) requestStop() {
	if a.done || a.stopping || a.stop == nil {
		return
	}
	a.stopping = true
	a.stop()
}

// View implements tea.Model.
func (a *RunApp) View() string {
	if a.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(a.view.View(a.spinner, a.now))
	b.WriteString("\n")

	switch {
	case a.done && errors.Is(a.err, orchestrator.ErrStopped):
		b.WriteString(a.hintStyle.Render("Stopped. Press q to exit."))
	case a.done && a.err != nil:
		b.WriteString(a.errorStyle.Render(fmt.Sprintf("Error: %v", a.err)))
		b.WriteString("\n")
		b.WriteString(a.hintStyle.Render("Press q to exit."))
	case a.done:
		b.WriteString(a.doneStyle.Render("Done."))
		b.WriteString(a.hintStyle.Render(" Press q to exit."))
	case a.stopping:
		b.WriteString(a.hintStyle.Render("Stopping..."))
	default:
		b.WriteString(a.hintStyle.Render("Press s to stop, q to quit"))
	}
	b.WriteString("\n")

	return b.String()
}

// Outcome returns the run outcome once done, or nil.
func (a *RunApp) Outcome() *orchestrator.Outcome {
	return a.outcome
}

// Err returns the run error once done.
func (a *RunApp) Err() error {
	return a.err
}

// NewRunProgram creates a new Bubbletea program for watching a run.
func NewRunProgram(query string, stop func()) (*tea.Program, *RunApp) {
	app := NewRunApp(query, stop)
	p := tea.NewProgram(app, tea.WithAltScreen())
	return p, app
}
