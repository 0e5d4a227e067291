package dashboard

import (
	"fmt"
	"sort"
)

const (
	// EmptyMessage replaces the domain list when a range has no data.
	EmptyMessage = "No browsing data available"
	// NoTopSite is shown as the top site when a range has no data.
	NoTopSite = "-"
	// DefaultChartLimit is how many domains the bar chart shows.
	DefaultChartLimit = 10
)

// Row is one line of the domain list.
type Row struct {
	Domain   string `json:"domain"`
	Seconds  int64  `json:"seconds"`
	Duration string `json:"duration"`
}

// Bar is one bar of the chart, valued in whole minutes.
type Bar struct {
	Domain  string `json:"domain"`
	Minutes int64  `json:"minutes"`
	Tooltip string `json:"tooltip"`
}

// Summary is everything a renderer needs to draw one range.
type Summary struct {
	Range        Range  `json:"range"`
	TotalSeconds int64  `json:"total_seconds"`
	Total        string `json:"total"`
	TopSite      string `json:"top_site"`
	Rows         []Row  `json:"rows"`
	EmptyMessage string `json:"empty_message,omitempty"`
	Chart        []Bar  `json:"chart"`
}

// Empty reports whether the range had no data.
func (s Summary) Empty() bool {
	return len(s.Rows) == 0
}

// Summarize computes the figures for f. chartLimit <= 0 uses DefaultChartLimit.
func Summarize(r Range, f FilteredMap, chartLimit int) Summary {
	if chartLimit <= 0 {
		chartLimit = DefaultChartLimit
	}

	total := f.Total()
	s := Summary{
		Range:        r,
		TotalSeconds: total,
		Total:        FormatDuration(total),
		TopSite:      TopSite(f),
		Rows:         make([]Row, 0, len(f)),
		Chart:        []Bar{},
	}

	sorted := make(FilteredMap, len(f))
	copy(sorted, f)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Seconds > sorted[j].Seconds
	})

	for _, e := range sorted {
		s.Rows = append(s.Rows, Row{Domain: e.Domain, Seconds: e.Seconds, Duration: FormatDuration(e.Seconds)})
	}
	if len(s.Rows) == 0 {
		s.EmptyMessage = EmptyMessage
	}

	for i, e := range sorted {
		if i == chartLimit {
			break
		}
		minutes := e.Seconds / 60
		s.Chart = append(s.Chart, Bar{Domain: e.Domain, Minutes: minutes, Tooltip: FormatMinutes(minutes)})
	}

	return s
}

// TopSite returns the domain with the most time, the first encountered on
// ties, or NoTopSite.
func TopSite(f FilteredMap) string {
	top := NoTopSite
	var most int64
	for _, e := range f {
		if e.Seconds > most {
			most = e.Seconds
			top = e.Domain
		}
	}
	return top
}

// FormatDuration renders seconds as "Xh Ym Zs", omitting leading zero hours
// and minutes. Seconds are always shown.
func FormatDuration(seconds int64) string {
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	secs := seconds % 60

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, secs)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, secs)
	default:
		return fmt.Sprintf("%ds", secs)
	}
}

// FormatMinutes renders a chart value as "Xh Ym", or "Ym" under an hour.
func FormatMinutes(minutes int64) string {
	hours := minutes / 60
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes%60)
	}
	return fmt.Sprintf("%dm", minutes)
}
