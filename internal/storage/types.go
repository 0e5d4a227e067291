package storage

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// DayKeyLayout is the layout of the outer keys of an AccumulatedMap.
const DayKeyLayout = "2006-01-02"

// AccumulatedMap maps a day key to the seconds spent on each domain that day.
type AccumulatedMap map[string]map[string]int64

// DayKey returns the UTC calendar date of t in DayKeyLayout.
func DayKey(t time.Time) string {
	return t.UTC().Format(DayKeyLayout)
}

// Add adds seconds to day/domain, creating the nested entries as needed.
func (m AccumulatedMap) Add(day, domain string, seconds int64) {
	domains, ok := m[day]
	if !ok {
		domains = make(map[string]int64)
		m[day] = domains
	}
	domains[domain] += seconds
}

// Get returns the seconds recorded for day/domain.
func (m AccumulatedMap) Get(day, domain string) int64 {
	return m[day][domain]
}

// Days returns the day keys in ascending order.
func (m AccumulatedMap) Days() []string {
	days := make([]string, 0, len(m))
	for day := range m {
		days = append(days, day)
	}
	sort.Strings(days)
	return days
}

// Clone returns a deep copy of m.
func (m AccumulatedMap) Clone() AccumulatedMap {
	out := make(AccumulatedMap, len(m))
	for day, domains := range m {
		copied := make(map[string]int64, len(domains))
		for domain, seconds := range domains {
			copied[domain] = seconds
		}
		out[day] = copied
	}
	return out
}

// Encode serializes m as nested JSON objects with integer leaves.
func Encode(m AccumulatedMap) ([]byte, error) {
	if m == nil {
		m = AccumulatedMap{}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal accumulated map: %w", err)
	}
	return data, nil
}

// Decode parses data produced by Encode. Negative leaves are rejected.
func Decode(data []byte) (AccumulatedMap, error) {
	var m AccumulatedMap
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal accumulated map: %w", err)
	}
	if m == nil {
		return AccumulatedMap{}, nil
	}
	for day, domains := range m {
		if domains == nil {
			m[day] = make(map[string]int64)
			continue
		}
		for domain, seconds := range domains {
			if seconds < 0 {
				return nil, fmt.Errorf("negative seconds for %s on %s: %d", domain, day, seconds)
			}
		}
	}
	return m, nil
}
