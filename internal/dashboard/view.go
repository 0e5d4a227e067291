package dashboard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goodtune/sitetime/internal/storage"
)

// View holds the selected range and the latest map. It never writes to the
// store.
type View struct {
	source     storage.Source
	chartLimit int
	now        func() time.Time

	mu       sync.Mutex
	selected Range
	data     storage.AccumulatedMap
}

// ViewOption configures a View.
type ViewOption func(*View)

// WithNow overrides the time used to pick today's day key.
func WithNow(now func() time.Time) ViewOption {
	return func(v *View) { v.now = now }
}

// WithChartLimit sets how many bars the chart shows.
func WithChartLimit(limit int) ViewOption {
	return func(v *View) { v.chartLimit = limit }
}

// NewView creates a view over source starting on initial.
func NewView(source storage.Source, initial Range, opts ...ViewOption) *View {
	if initial == "" {
		initial = DefaultRange
	}
	v := &View{
		source:     source,
		chartLimit: DefaultChartLimit,
		now:        time.Now,
		selected:   initial,
		data:       storage.AccumulatedMap{},
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Load reads the map from the source and summarizes the selected range.
func (v *View) Load(ctx context.Context) (Summary, error) {
	data, err := storage.LoadOrEmpty(ctx, v.source)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to load accumulated data: %w", err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	v.data = data
	return v.summaryLocked(), nil
}

// SelectRange switches the range and summarizes it against the current map.
func (v *View) SelectRange(r Range) Summary {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.selected = r
	return v.summaryLocked()
}

// OnExternalChange replaces the map after a store write and re-summarizes
// the selected range. A nil map is treated as empty.
func (v *View) OnExternalChange(data storage.AccumulatedMap) Summary {
	if data == nil {
		data = storage.AccumulatedMap{}
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	v.data = data
	return v.summaryLocked()
}

// Summary summarizes the selected range without changing anything.
func (v *View) Summary() Summary {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.summaryLocked()
}

// Selected returns the selected range.
func (v *View) Selected() Range {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.selected
}

// Watch subscribes to store changes.
func (v *View) Watch(ctx context.Context) (<-chan storage.AccumulatedMap, error) {
	return v.source.Subscribe(ctx)
}

func (v *View) summaryLocked() Summary {
	return Summarize(v.selected, Filter(v.data, v.selected, v.now()), v.chartLimit)
}
