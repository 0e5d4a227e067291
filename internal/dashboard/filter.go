package dashboard

import (
	"sort"
	"time"

	"github.com/goodtune/sitetime/internal/storage"
)

// weekDays is how many day keys, including today, the week range covers.
const weekDays = 7

// Entry is one domain's total within a range.
type Entry struct {
	Domain  string `json:"domain"`
	Seconds int64  `json:"seconds"`
}

// FilteredMap holds per-domain totals in the order domains were first
// encountered: days ascending, domains ascending within a day.
type FilteredMap []Entry

// Total returns the sum of all entries.
func (f FilteredMap) Total() int64 {
	var total int64
	for _, e := range f {
		total += e.Seconds
	}
	return total
}

// Seconds returns the total for domain.
func (f FilteredMap) Seconds(domain string) int64 {
	for _, e := range f {
		if e.Domain == domain {
			return e.Seconds
		}
	}
	return 0
}

// Filter sums data over the days r selects, relative to now.
func Filter(data storage.AccumulatedMap, r Range, now time.Time) FilteredMap {
	out := FilteredMap{}
	index := make(map[string]int)

	for _, day := range daysFor(data, r, now) {
		domains := data[day]
		names := make([]string, 0, len(domains))
		for domain := range domains {
			names = append(names, domain)
		}
		sort.Strings(names)

		for _, domain := range names {
			if i, ok := index[domain]; ok {
				out[i].Seconds += domains[domain]
				continue
			}
			index[domain] = len(out)
			out = append(out, Entry{Domain: domain, Seconds: domains[domain]})
		}
	}

	return out
}

// daysFor returns the day keys r covers, ascending.
func daysFor(data storage.AccumulatedMap, r Range, now time.Time) []string {
	switch r {
	case RangeWeek:
		days := make([]string, 0, weekDays)
		for i := weekDays - 1; i >= 0; i-- {
			days = append(days, storage.DayKey(now.AddDate(0, 0, -i)))
		}
		return days
	case RangeAllTime:
		return data.Days()
	default:
		return []string{storage.DayKey(now)}
	}
}
