// Package tui draws dashboard summaries in the terminal.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/goodtune/sitetime/internal/dashboard"
)

// DefaultWidth is used when the terminal size is unknown.
const DefaultWidth = 80

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#4285F4")).
			Padding(0, 1).
			MarginBottom(1)

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#4285F4")).
			Padding(0, 1)

	tabStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#9AA0A6")).
			Padding(0, 1)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575")).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#4285F4")).
			Padding(0, 1)

	barStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4285F4"))
)

// Render draws s in a terminal width columns wide.
func Render(s dashboard.Summary, width int) string {
	if width <= 0 {
		width = DefaultWidth
	}
	inner := width - 4 // border and padding
	if inner < 20 {
		inner = 20
	}

	header := headerStyle.Width(width).Render("Site Time")

	stats := boxStyle.Width(inner).Render(fmt.Sprintf(
		"Total Time: %s\nTop Site:   %s",
		valueStyle.Render(s.Total),
		valueStyle.Render(s.TopSite),
	))

	list := boxStyle.Width(inner).Render(renderRows(s, inner-2))
	chart := boxStyle.Width(inner).Render(renderChart(s.Chart, inner-2))

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		renderTabs(s.Range),
		stats,
		list,
		chart,
	)
}

func renderTabs(selected dashboard.Range) string {
	keys := map[dashboard.Range]string{
		dashboard.RangeToday:   "t",
		dashboard.RangeWeek:    "w",
		dashboard.RangeAllTime: "a",
	}

	tabs := make([]string, 0, len(dashboard.Ranges))
	for _, r := range dashboard.Ranges {
		label := fmt.Sprintf("[%s] %s", keys[r], r.Label())
		if r == selected {
			tabs = append(tabs, activeTabStyle.Render(label))
		} else {
			tabs = append(tabs, tabStyle.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func renderRows(s dashboard.Summary, width int) string {
	if s.Empty() {
		return mutedStyle.Render(s.EmptyMessage)
	}

	var b strings.Builder
	b.WriteString(mutedStyle.Render("Domain") + "\n")
	for i, row := range s.Rows {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(justify(row.Domain, row.Duration, width))
	}
	return b.String()
}

func renderChart(bars []dashboard.Bar, width int) string {
	if len(bars) == 0 {
		return mutedStyle.Render("Minutes spent: nothing to chart")
	}

	labelWidth := 0
	var most int64
	for _, bar := range bars {
		if n := lipgloss.Width(bar.Domain); n > labelWidth {
			labelWidth = n
		}
		if bar.Minutes > most {
			most = bar.Minutes
		}
	}
	if labelWidth > width/3 {
		labelWidth = width / 3
	}

	barWidth := width - labelWidth - 10
	if barWidth < 10 {
		barWidth = 10
	}

	var b strings.Builder
	b.WriteString(mutedStyle.Render("Minutes spent") + "\n")
	for i, bar := range bars {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%-*s %s %s",
			labelWidth, truncate(bar.Domain, labelWidth),
			createBar(bar.Minutes, most, barWidth),
			bar.Tooltip,
		)
	}
	return b.String()
}

// createBar draws value relative to most across width cells.
func createBar(value, most int64, width int) string {
	filled := 0
	if most > 0 {
		filled = int(value * int64(width) / most)
	}
	if filled > width {
		filled = width
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return barStyle.Render(bar)
}

// justify places left and right at either end of width columns.
func justify(left, right string, width int) string {
	room := width - lipgloss.Width(right) - 1
	if room < 1 {
		room = 1
	}
	left = truncate(left, room)
	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

func truncate(s string, width int) string {
	if width <= 0 || lipgloss.Width(s) <= width {
		return s
	}
	runes := []rune(s)
	if width == 1 {
		return "…"
	}
	if len(runes) > width-1 {
		runes = runes[:width-1]
	}
	return string(runes) + "…"
}
