// Package app is the terminal UI for a fetch run. It subscribes to the
// engine's event channel and drives the pause/resume/cancel controls.
package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/chairdump/chairdump/internal/engine"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	pausedStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1)
	statsStyle   = lipgloss.NewStyle().PaddingLeft(2)
)

const logLines = 8

// eventMsg wraps an engine event for the bubbletea loop.
type eventMsg struct {
	event engine.Event
}

// eventsClosedMsg signals the engine channel is drained.
type eventsClosedMsg struct{}

// Model is the bubbletea model for one run.
type Model struct {
	eng    *engine.Engine
	events <-chan engine.Event

	spinner         spinner.Model
	overallProgress progress.Model

	itemsDone    int
	itemsTotal   int
	eta          time.Duration
	currentItem  string
	filePct      float64
	fileBytes    int64
	fileTotal    int64
	recentLog    []string
	finalStats   *engine.Stats
	wasCancelled bool

	termWidth int
	quitting  bool
}

// NewModel wires a model to a configured, not-yet-started engine.
func NewModel(eng *engine.Engine) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return &Model{
		eng:             eng,
		events:          eng.Events(),
		spinner:         s,
		overallProgress: progress.New(progress.WithDefaultGradient()),
	}
}

// Stats returns the final run statistics once the run has ended.
func (m *Model) Stats() (engine.Stats, bool) {
	if m.finalStats == nil {
		return engine.Stats{}, false
	}
	return *m.finalStats, true
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitForEvent())
}

func (m *Model) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg{event: ev}
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.termWidth = msg.Width
		m.overallProgress.Width = msg.Width - 8
		if m.overallProgress.Width > 60 {
			m.overallProgress.Width = 60
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case eventMsg:
		m.applyEvent(msg.event)
		return m, m.waitForEvent()

	case eventsClosedMsg:
		if m.finalStats != nil {
			// Keep the summary on screen until the user quits.
			return m, nil
		}
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "p":
		m.eng.Pause()
	case "r":
		m.eng.Resume()
	case "c", "ctrl+c":
		m.eng.Cancel()
	case "q", "enter", "esc":
		if m.finalStats != nil {
			m.quitting = true
			return m, tea.Quit
		}
		m.eng.Cancel()
	}
	return m, nil
}

func (m *Model) applyEvent(ev engine.Event) {
	switch ev := ev.(type) {
	case engine.ProgressEvent:
		m.itemsDone = ev.ItemsDone
		m.itemsTotal = ev.ItemsTotal
		m.eta = ev.ETA
		m.filePct = 0
		m.fileBytes = 0
		m.fileTotal = 0
	case engine.FileProgressEvent:
		m.currentItem = ev.Item
		m.filePct = ev.Pct
		m.fileBytes = ev.Bytes
		m.fileTotal = ev.TotalBytes
	case engine.LogEvent:
		line := ev.Message
		switch ev.Level {
		case engine.LevelError:
			line = errorStyle.Render(line)
		case engine.LevelWarning:
			line = warnStyle.Render(line)
		}
		m.recentLog = append(m.recentLog, line)
		if len(m.recentLog) > logLines {
			m.recentLog = m.recentLog[len(m.recentLog)-logLines:]
		}
	case engine.DoneEvent:
		stats := ev.Stats
		m.finalStats = &stats
		m.wasCancelled = ev.Cancelled
	}
}

func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Blockchair Bitcoin dump fetch"))
	b.WriteString("\n\n")

	if m.finalStats != nil {
		if m.wasCancelled {
			b.WriteString(warnStyle.Render("Run cancelled.") + "\n\n")
		} else {
			b.WriteString(successStyle.Render("Run complete.") + "\n\n")
		}
		b.WriteString(m.renderStats(*m.finalStats))
		b.WriteString(helpStyle.Render("press q to exit"))
		return b.String()
	}

	state := m.eng.State()
	switch state {
	case engine.StatePaused:
		b.WriteString(pausedStyle.Render("⏸ paused"))
	case engine.StateCancelling:
		b.WriteString(warnStyle.Render("cancelling..."))
	default:
		b.WriteString(m.spinner.View() + "downloading")
	}
	b.WriteString("\n\n")

	if m.itemsTotal > 0 {
		pct := float64(m.itemsDone) / float64(m.itemsTotal)
		b.WriteString(m.overallProgress.ViewAs(pct))
		b.WriteString(fmt.Sprintf("  %d/%d", m.itemsDone, m.itemsTotal))
		if m.eta > 0 {
			b.WriteString(infoStyle.Render(fmt.Sprintf("  ETA %s", m.eta.Round(time.Second))))
		}
		b.WriteString("\n")
	}

	if m.currentItem != "" && m.fileBytes > 0 {
		line := fmt.Sprintf("  %s: %.1f MB", m.currentItem, float64(m.fileBytes)/1024/1024)
		if m.filePct >= 0 && m.fileTotal > 0 {
			line += fmt.Sprintf(" / %.1f MB (%.0f%%)", float64(m.fileTotal)/1024/1024, m.filePct)
		}
		b.WriteString(infoStyle.Render(line) + "\n")
	}

	if len(m.recentLog) > 0 {
		b.WriteString("\n")
		for _, line := range m.recentLog {
			b.WriteString("  " + line + "\n")
		}
	}

	b.WriteString(helpStyle.Render("p pause · r resume · c cancel"))
	return b.String()
}

func (m *Model) renderStats(s engine.Stats) string {
	var b strings.Builder
	b.WriteString(statsStyle.Render(fmt.Sprintf("total:      %d", s.Total)) + "\n")
	b.WriteString(statsStyle.Render(fmt.Sprintf("successful: %d", s.Successful)) + "\n")
	b.WriteString(statsStyle.Render(fmt.Sprintf("skipped:    %d", s.Skipped)) + "\n")
	b.WriteString(statsStyle.Render(fmt.Sprintf("failed:     %d", s.Failed)) + "\n")
	b.WriteString(statsStyle.Render(fmt.Sprintf("downloaded: %.1f MB", float64(s.DownloadedBytes)/1024/1024)) + "\n\n")
	return b.String()
}
