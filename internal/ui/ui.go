// package ui renders a live research job in the terminal.
package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/scout/internal/research"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	ProgressView ViewState = iota
	ResultView
)

// Model represents the TUI application state for one running job.
type Model struct {
	ctx  context.Context
	view ViewState
	job  *research.Job

	width  int
	height int

	spinner  spinner.Model
	bar      progress.Model
	status   research.Status
	snapshot research.Snapshot
	sources  []research.Source
	result   *research.Result
	err      error

	cancelling bool
	help       help.Model
	keys       keyMap
}

type updateMsg research.Update

type jobDoneMsg struct{}

type cancelFailedMsg struct{ err error }

// NewModel creates a TUI model tracking the given job.
func NewModel(ctx context.Context, job *research.Job) *Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.title

	return &Model{
		ctx:     ctx,
		view:    ProgressView,
		job:     job,
		spinner: sp,
		bar:     progress.New(progress.WithDefaultGradient()),
		status:  job.Status(),
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Init starts the spinner and begins consuming job updates.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitForUpdate())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = min(msg.Width-8, 60)
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case updateMsg:
		m.status = msg.Status
		m.snapshot = msg.Progress
		if msg.Kind == research.UpdateSource && msg.Source != nil {
			m.sources = append(m.sources, *msg.Source)
		}
		if msg.Kind == research.UpdateTerminal {
			m.err = msg.Err
		}
		return m, m.waitForUpdate()

	case jobDoneMsg:
		m.status = m.job.Status()
		m.result = m.job.Result()
		if m.err == nil {
			m.err = m.job.Err()
		}
		m.view = ResultView
		return m, nil

	case cancelFailedMsg:
		m.cancelling = false
		m.err = msg.err
		return m, nil
	}

	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case ProgressView:
		return m.renderProgress()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "c":
		if m.view == ProgressView && !m.cancelling {
			m.cancelling = true
			return m, m.cancelJob()
		}
	}
	return m, nil
}

// waitForUpdate blocks on the job's update channel; a closed channel means
// the job finalized.
func (m *Model) waitForUpdate() tea.Cmd {
	return func() tea.Msg {
		update, ok := <-m.job.Updates()
		if !ok {
			return jobDoneMsg{}
		}
		return updateMsg(update)
	}
}

func (m *Model) cancelJob() tea.Cmd {
	return func() tea.Msg {
		if err := m.job.Cancel(m.ctx); err != nil {
			return cancelFailedMsg{err: err}
		}
		return nil
	}
}

func (m *Model) renderProgress() string {
	title := styles.title.Render("Researching: " + m.job.Query())

	step := m.snapshot.CurrentStep
	if step == "" {
		step = "waiting for backend"
	}
	line := fmt.Sprintf("%s %s (%s)", m.spinner.View(), step, m.status)
	if m.cancelling {
		line = fmt.Sprintf("%s %s", m.spinner.View(), styles.warn.Render("cancelling..."))
	}

	bar := m.bar.ViewAs(m.snapshot.Percentage / 100)

	var counters string
	if m.snapshot.SourcesFound > 0 {
		counters = fmt.Sprintf("sources: %d found, %d processed",
			m.snapshot.SourcesFound, m.snapshot.SourcesProcessed)
	}

	var steps string
	if len(m.snapshot.StepsCompleted) > 0 {
		var b strings.Builder
		for _, s := range m.snapshot.StepsCompleted {
			b.WriteString(styles.ok.Render("✓") + " " + s + "\n")
		}
		steps = b.String()
	}

	helpView := m.help.ShortHelpView(m.keys.ShortHelp())

	return fmt.Sprintf("%s\n%s\n%s\n%s\n%s\n%s", title, line, bar, counters, steps, helpView)
}

func (m *Model) renderResult() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Research %s: %v", m.status, m.err)) +
			styles.help.Render("\n\nPress q to quit")
	}

	switch m.status {
	case research.StatusCancelled:
		return styles.warn.Render("Research cancelled.") + styles.help.Render("\n\nPress q to quit")
	case research.StatusCompleted:
		title := styles.ok.Render("✓ Research complete")
		body := ""
		if m.result != nil {
			body = "\n\n" + m.result.Report
			if len(m.result.Sources) > 0 {
				var b strings.Builder
				b.WriteString("\n\nSources:\n")
				for _, s := range m.result.Sources {
					b.WriteString(fmt.Sprintf("  • %s (%s)\n", s.Title, s.URL))
				}
				body += b.String()
			}
		}
		return title + body + styles.help.Render("\n\nPress q to quit")
	default:
		return styles.warn.Render(fmt.Sprintf("Research ended in state %q", m.status)) +
			styles.help.Render("\n\nPress q to quit")
	}
}
