package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/goodtune/sitetime/internal/dashboard"
	"github.com/goodtune/sitetime/internal/storage"
)

// refreshInterval re-summarizes so "today" follows the clock past midnight.
const refreshInterval = time.Minute

type tickMsg time.Time

// changeMsg carries a map delivered by the store's change notifications.
type changeMsg storage.AccumulatedMap

// watchClosedMsg reports that change notifications stopped.
type watchClosedMsg struct{}

// Model is the interactive dashboard.
type Model struct {
	view    *dashboard.View
	changes <-chan storage.AccumulatedMap
	summary dashboard.Summary
	live    bool
	width   int
	height  int
}

// NewModel creates a model showing initial and following changes. changes
// may be nil when no notifications are available.
func NewModel(view *dashboard.View, changes <-chan storage.AccumulatedMap, initial dashboard.Summary) Model {
	return Model{
		view:    view,
		changes: changes,
		summary: initial,
		live:    changes != nil,
	}
}

// Summary returns what the model currently shows.
func (m Model) Summary() dashboard.Summary {
	return m.summary
}

func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func waitForChange(changes <-chan storage.AccumulatedMap) tea.Cmd {
	return func() tea.Msg {
		data, ok := <-changes
		if !ok {
			return watchClosedMsg{}
		}
		return changeMsg(data)
	}
}

func (m Model) Init() tea.Cmd {
	if m.changes == nil {
		return tickCmd()
	}
	return tea.Batch(tickCmd(), waitForChange(m.changes))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "t", "1":
			m.summary = m.view.SelectRange(dashboard.RangeToday)
		case "w", "2":
			m.summary = m.view.SelectRange(dashboard.RangeWeek)
		case "a", "3":
			m.summary = m.view.SelectRange(dashboard.RangeAllTime)
		case "tab":
			m.summary = m.view.SelectRange(m.view.Selected().Next())
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case changeMsg:
		m.summary = m.view.OnExternalChange(storage.AccumulatedMap(msg))
		return m, waitForChange(m.changes)
	case watchClosedMsg:
		m.live = false
	case tickMsg:
		m.summary = m.view.Summary()
		return m, tickCmd()
	}
	return m, nil
}

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	status := "Live"
	if !m.live {
		status = "Not receiving updates"
	}
	footer := mutedStyle.
		Width(m.width).
		Render("t/w/a or tab to switch range • q to quit • " + status)

	return lipgloss.JoinVertical(lipgloss.Left, Render(m.summary, m.width), footer)
}
