package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/goodtune/sitetime/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := time.Parse(storage.DayKeyLayout, s)
	if err != nil {
		panic(err)
	}
	return t.Add(15 * time.Hour)
}

func TestParseRange(t *testing.T) {
	for in, want := range map[string]Range{
		"today":       RangeToday,
		"week":        RangeWeek,
		"last-7-days": RangeWeek,
		"all-time":    RangeAllTime,
		" Week ":      RangeWeek,
	} {
		got, err := ParseRange(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseRange("month")
	assert.Error(t, err)
}

func TestRangeNextCycles(t *testing.T) {
	assert.Equal(t, RangeWeek, RangeToday.Next())
	assert.Equal(t, RangeAllTime, RangeWeek.Next())
	assert.Equal(t, RangeToday, RangeAllTime.Next())
}

func TestFormatDuration(t *testing.T) {
	tests := map[int64]string{
		0:    "0s",
		5:    "5s",
		60:   "1m 0s",
		150:  "2m 30s",
		3600: "1h 0m 0s",
		3605: "1h 0m 5s",
		7384: "2h 3m 4s",
	}
	for in, want := range tests {
		assert.Equal(t, want, FormatDuration(in), "FormatDuration(%d)", in)
	}
}

func TestFormatMinutes(t *testing.T) {
	assert.Equal(t, "0m", FormatMinutes(0))
	assert.Equal(t, "59m", FormatMinutes(59))
	assert.Equal(t, "1h 0m", FormatMinutes(60))
	assert.Equal(t, "2h 5m", FormatMinutes(125))
}

func TestFilterToday(t *testing.T) {
	data := storage.AccumulatedMap{"2024-01-01": {"b.com": 50, "a.com": 100}}

	got := Filter(data, RangeToday, day("2024-01-01"))

	assert.Equal(t, FilteredMap{{"a.com", 100}, {"b.com", 50}}, got)
	assert.Empty(t, Filter(data, RangeToday, day("2024-01-02")))
}

func TestFilterWeekSumsSevenDays(t *testing.T) {
	data := storage.AccumulatedMap{
		"2023-12-26": {"old.com": 999},
		"2023-12-27": {"c.com": 7},
		"2024-01-01": {"a.com": 100, "b.com": 50},
		"2024-01-02": {"a.com": 20},
		"2024-01-03": {"future.com": 1},
	}

	got := Filter(data, RangeWeek, day("2024-01-02"))

	assert.Equal(t, FilteredMap{{"c.com", 7}, {"a.com", 120}, {"b.com", 50}}, got)
	assert.Equal(t, int64(120), got.Seconds("a.com"))
	assert.Equal(t, int64(0), got.Seconds("old.com"))
	assert.Equal(t, int64(0), got.Seconds("future.com"))
}

func TestFilterAllTime(t *testing.T) {
	data := storage.AccumulatedMap{
		"2023-06-01": {"z.com": 1},
		"2024-01-01": {"a.com": 100, "z.com": 4},
	}

	got := Filter(data, RangeAllTime, day("2024-01-01"))

	assert.Equal(t, FilteredMap{{"z.com", 5}, {"a.com", 100}}, got)
	assert.Equal(t, int64(105), got.Total())
}

func TestSummarizeToday(t *testing.T) {
	data := storage.AccumulatedMap{"2024-01-01": {"a.com": 100, "b.com": 50}}

	s := Summarize(RangeToday, Filter(data, RangeToday, day("2024-01-01")), 0)

	assert.Equal(t, "2m 30s", s.Total)
	assert.Equal(t, int64(150), s.TotalSeconds)
	assert.Equal(t, "a.com", s.TopSite)
	assert.Equal(t, []Row{
		{Domain: "a.com", Seconds: 100, Duration: "1m 40s"},
		{Domain: "b.com", Seconds: 50, Duration: "50s"},
	}, s.Rows)
	assert.Equal(t, []Bar{
		{Domain: "a.com", Minutes: 1, Tooltip: "1m"},
		{Domain: "b.com", Minutes: 0, Tooltip: "0m"},
	}, s.Chart)
	assert.False(t, s.Empty())
	assert.Empty(t, s.EmptyMessage)
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(RangeWeek, FilteredMap{}, 0)

	assert.True(t, s.Empty())
	assert.Equal(t, EmptyMessage, s.EmptyMessage)
	assert.Equal(t, "-", s.TopSite)
	assert.Equal(t, "0s", s.Total)
	assert.Empty(t, s.Chart)
}

func TestSummarizeTiesKeepEncounterOrder(t *testing.T) {
	f := FilteredMap{{"b.com", 30}, {"a.com", 60}, {"c.com", 60}, {"d.com", 30}}

	s := Summarize(RangeAllTime, f, 0)

	assert.Equal(t, "a.com", s.TopSite)
	var order []string
	for _, row := range s.Rows {
		order = append(order, row.Domain)
	}
	assert.Equal(t, []string{"a.com", "c.com", "b.com", "d.com"}, order)
}

func TestSummarizeChartLimit(t *testing.T) {
	var f FilteredMap
	for i := 0; i < 15; i++ {
		f = append(f, Entry{Domain: string(rune('a'+i)) + ".com", Seconds: int64(i+1) * 3600})
	}

	s := Summarize(RangeAllTime, f, 0)
	require.Len(t, s.Chart, DefaultChartLimit)
	assert.Equal(t, "o.com", s.Chart[0].Domain)
	assert.Equal(t, int64(900), s.Chart[0].Minutes)
	assert.Equal(t, "15h 0m", s.Chart[0].Tooltip)
	assert.Len(t, s.Rows, 15)

	assert.Len(t, Summarize(RangeAllTime, f, 3).Chart, 3)
}

type staticSource struct {
	data storage.AccumulatedMap
}

func (s staticSource) Load(context.Context) (storage.AccumulatedMap, error) {
	if s.data == nil {
		return nil, storage.ErrNotFound
	}
	return s.data, nil
}

func (s staticSource) Subscribe(ctx context.Context) (<-chan storage.AccumulatedMap, error) {
	ch := make(chan storage.AccumulatedMap)
	close(ch)
	return ch, nil
}

func TestViewLoadSelectAndChange(t *testing.T) {
	ctx := context.Background()
	src := staticSource{data: storage.AccumulatedMap{
		"2024-01-01": {"a.com": 100, "b.com": 50},
		"2024-01-02": {"a.com": 20},
	}}
	now := func() time.Time { return day("2024-01-02") }

	v := NewView(src, "", WithNow(now))
	s, err := v.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, RangeToday, s.Range)
	assert.Equal(t, "20s", s.Total)

	s = v.SelectRange(RangeWeek)
	assert.Equal(t, RangeWeek, v.Selected())
	assert.Equal(t, "2m 50s", s.Total)
	assert.Equal(t, "a.com", s.TopSite)
	assert.Equal(t, int64(120), s.Rows[0].Seconds)

	s = v.OnExternalChange(storage.AccumulatedMap{"2024-01-02": {"c.com": 3600}})
	assert.Equal(t, RangeWeek, s.Range, "selected range survives external changes")
	assert.Equal(t, "1h 0m 0s", s.Total)
	assert.Equal(t, "c.com", s.TopSite)

	s = v.OnExternalChange(nil)
	assert.True(t, s.Empty())
}

func TestViewLoadMissingData(t *testing.T) {
	v := NewView(staticSource{}, RangeAllTime)

	s, err := v.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, s.Empty())
	assert.Equal(t, "-", s.TopSite)
}
