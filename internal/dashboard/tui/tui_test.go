package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/goodtune/sitetime/internal/dashboard"
	"github.com/goodtune/sitetime/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapSource storage.AccumulatedMap

func (s mapSource) Load(context.Context) (storage.AccumulatedMap, error) {
	return storage.AccumulatedMap(s), nil
}

func (s mapSource) Subscribe(context.Context) (<-chan storage.AccumulatedMap, error) {
	return nil, nil
}

var now = time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)

func newTestModel(t *testing.T, changes chan storage.AccumulatedMap) Model {
	t.Helper()

	src := mapSource{
		"2024-01-01": {"a.com": 100, "b.com": 50},
		"2024-01-02": {"a.com": 20},
	}
	view := dashboard.NewView(src, dashboard.RangeToday, dashboard.WithNow(func() time.Time { return now }))
	initial, err := view.Load(context.Background())
	require.NoError(t, err)

	var ch <-chan storage.AccumulatedMap
	if changes != nil {
		ch = changes
	}
	return NewModel(view, ch, initial)
}

func press(t *testing.T, m Model, key tea.KeyMsg) Model {
	t.Helper()
	next, _ := m.Update(key)
	return next.(Model)
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestRenderSummary(t *testing.T) {
	s := dashboard.Summarize(dashboard.RangeToday, dashboard.FilteredMap{
		{Domain: "a.com", Seconds: 100},
		{Domain: "b.com", Seconds: 50},
	}, 0)

	out := Render(s, 60)

	assert.Contains(t, out, "Total Time: 2m 30s")
	assert.Contains(t, out, "Top Site:   a.com")
	assert.Contains(t, out, "1m 40s")
	assert.Contains(t, out, "Last 7 Days")
	assert.Contains(t, out, "█")
	assert.Less(t, strings.Index(out, "a.com"), strings.Index(out, "b.com"))
}

func TestRenderEmpty(t *testing.T) {
	out := Render(dashboard.Summarize(dashboard.RangeWeek, nil, 0), 0)

	assert.Contains(t, out, dashboard.EmptyMessage)
	assert.Contains(t, out, "Top Site:   -")
	assert.Contains(t, out, "Total Time: 0s")
}

func TestCreateBar(t *testing.T) {
	assert.Equal(t, 10, strings.Count(createBar(5, 10, 20), "█"))
	assert.Equal(t, 0, strings.Count(createBar(0, 0, 8), "█"))
	assert.Equal(t, 8, strings.Count(createBar(0, 0, 8), "░"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "example.com", truncate("example.com", 20))
	assert.Equal(t, "exam…", truncate("example.com", 5))
}

func TestKeysSelectRange(t *testing.T) {
	m := newTestModel(t, nil)
	assert.Equal(t, "20s", m.Summary().Total)

	m = press(t, m, runes("w"))
	assert.Equal(t, dashboard.RangeWeek, m.Summary().Range)
	assert.Equal(t, "2m 50s", m.Summary().Total)

	m = press(t, m, runes("a"))
	assert.Equal(t, dashboard.RangeAllTime, m.Summary().Range)

	m = press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, dashboard.RangeToday, m.Summary().Range)

	m = press(t, m, runes("2"))
	assert.Equal(t, dashboard.RangeWeek, m.Summary().Range)
}

func TestQuit(t *testing.T) {
	m := newTestModel(t, nil)

	_, cmd := m.Update(runes("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestChangeMessagesReRender(t *testing.T) {
	changes := make(chan storage.AccumulatedMap, 1)
	m := newTestModel(t, changes)
	m = press(t, m, runes("w"))

	changes <- storage.AccumulatedMap{"2024-01-02": {"c.com": 3600}}
	msg := waitForChange(changes)()

	next, cmd := m.Update(msg)
	m = next.(Model)
	assert.NotNil(t, cmd, "keeps listening for changes")
	assert.Equal(t, dashboard.RangeWeek, m.Summary().Range)
	assert.Equal(t, "c.com", m.Summary().TopSite)
	assert.Equal(t, "1h 0m 0s", m.Summary().Total)

	close(changes)
	next, _ = m.Update(waitForChange(changes)())
	m = next.(Model)
	assert.False(t, m.live)
}

func TestViewWaitsForSize(t *testing.T) {
	m := newTestModel(t, nil)
	assert.Equal(t, "Loading...", m.View())

	next, _ := m.Update(tea.WindowSizeMsg{Width: 70, Height: 30})
	out := next.(Model).View()
	assert.Contains(t, out, "Total Time: 20s")
	assert.Contains(t, out, "q to quit")
}
