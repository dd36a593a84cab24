package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aaweaver-actuary/repgrow/internal/arena"
	"github.com/aaweaver-actuary/repgrow/internal/metrics"
)

const tickInterval = 200 * time.Millisecond

// Progress is the read side the TUI polls. Both Arena and metrics.Collector
// are already safe for concurrent readers while a dispatcher run is
// in-flight, so the model can poll them directly from the UI goroutine.
type Progress struct {
	Arena   *arena.Arena
	Metrics *metrics.Collector
}

func (p Progress) snapshot() (metrics.Snapshot, int) {
	return p.Metrics.Snapshot(), p.Arena.Len()
}

var quitKey = key.NewBinding(key.WithKeys("q", "ctrl+c", "esc"))

type tickMsg time.Time

// Model is a bubbletea model that polls Progress on a tick and renders node
// and provider counters until the run's Done channel closes.
type Model struct {
	progress Progress
	done     <-chan struct{}

	finished bool
	quitting bool

	snap      metrics.Snapshot
	nodeCount int
}

// NewModel builds a Model. done is closed by the caller once the dispatcher
// run returns; the model keeps polling and rendering one final frame after
// that, then quits.
func NewModel(progress Progress, done <-chan struct{}) Model {
	return Model{progress: progress, done: done}
}

// Run drives the TUI to completion in the alt screen. Returns once the user
// quits or the run finishes and the final frame has been shown.
func Run(progress Progress, done <-chan struct{}) error {
	m := NewModel(progress, done)
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, quitKey) {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case tickMsg:
		snap, nodeCount := m.progress.snapshot()
		m.snap = snap
		m.nodeCount = nodeCount

		select {
		case <-m.done:
			m.finished = true
			return m, tea.Quit
		default:
			return m, tick()
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b string
	b += TitleStyle.Render(fmt.Sprintf("Building repertoire (%s)", m.snap.Side))
	b += "\n\n"

	boxes := []string{
		m.box("Nodes", m.nodeCount, highlightColor),
		m.box("Expanded", int(m.snap.NodesExpanded), successColor),
		m.box("Skipped", int(m.snap.NodesSkipped), mutedColor),
		m.box("Provider calls", int(m.snap.ProviderCalls), highlightColor),
		m.box("Provider errs", int(m.snap.ProviderErrors), errorColor),
		m.box("Cache hits", int(m.snap.CacheHits), successColor),
		m.box("Retries", int(m.snap.HTTPRetries), warningColor),
	}
	b += lipgloss.JoinHorizontal(lipgloss.Top, boxes...)

	if m.finished {
		b += "\n\n" + DoneStyle.Render("done")
	}
	b += "\n" + HelpStyle.Render("Press q to quit")
	return b
}

func (m Model) box(label string, value int, color lipgloss.Color) string {
	style := StatBoxStyle.BorderForeground(color)
	valueStr := StatValueStyle.Foreground(color).Render(fmt.Sprintf("%d", value))
	labelStr := StatLabelStyle.Render(label)
	return style.Render(lipgloss.JoinVertical(lipgloss.Center, valueStr, labelStr))
}
