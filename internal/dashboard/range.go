// Package dashboard turns the accumulated map into the figures the user sees:
// per-range totals, a top site, a sorted domain list and a bar chart.
package dashboard

import (
	"fmt"
	"strings"
)

// Range selects which days contribute to a view.
type Range string

const (
	RangeToday   Range = "today"
	RangeWeek    Range = "week"
	RangeAllTime Range = "all-time"
)

// DefaultRange is shown when nothing else was selected.
const DefaultRange = RangeToday

// Ranges lists the selectable ranges in display order.
var Ranges = []Range{RangeToday, RangeWeek, RangeAllTime}

// ParseRange accepts a range name. "last-7-days" is an alias of week.
func ParseRange(s string) (Range, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "today":
		return RangeToday, nil
	case "week", "last-7-days":
		return RangeWeek, nil
	case "all-time":
		return RangeAllTime, nil
	default:
		return "", fmt.Errorf("unknown range %q (must be today, week or all-time)", s)
	}
}

// Label is the human readable name of r.
func (r Range) Label() string {
	switch r {
	case RangeToday:
		return "Today"
	case RangeWeek:
		return "Last 7 Days"
	case RangeAllTime:
		return "All Time"
	default:
		return string(r)
	}
}

// Next returns the range after r in display order, wrapping around.
func (r Range) Next() Range {
	for i, candidate := range Ranges {
		if candidate == r {
			return Ranges[(i+1)%len(Ranges)]
		}
	}
	return DefaultRange
}
