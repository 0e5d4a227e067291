package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goodtune/sitetime/internal/host"
	"github.com/goodtune/sitetime/internal/metrics"
	"github.com/goodtune/sitetime/internal/storage"
	"github.com/rs/zerolog"
)

// DefaultFlushInterval is how often a running session is written out.
const DefaultFlushInterval = time.Minute

// Config holds tracker configuration
type Config struct {
	FlushInterval   time.Duration
	ExcludedSchemes []string
	Clock           Clock
}

// Session is the domain currently being timed.
type Session struct {
	Domain    string
	StartedAt time.Time
}

// Tracker times the focused tab's domain and folds the elapsed seconds into
// the accumulated map.
type Tracker struct {
	store         storage.Store
	tabs          host.Tabs
	resolver      *Resolver
	clock         Clock
	flushInterval time.Duration
	logger        zerolog.Logger

	mu            sync.Mutex
	session       *Session
	windowFocused bool
	accumulated   storage.AccumulatedMap

	stopChan chan struct{}
	done     chan struct{}
}

// New creates a tracker. Call Initialize before delivering events.
func New(store storage.Store, tabs host.Tabs, config Config, logger zerolog.Logger) *Tracker {
	if config.FlushInterval <= 0 {
		config.FlushInterval = DefaultFlushInterval
	}
	if config.Clock == nil {
		config.Clock = RealClock{}
	}

	return &Tracker{
		store:         store,
		tabs:          tabs,
		resolver:      NewResolver(config.ExcludedSchemes),
		clock:         config.Clock,
		flushInterval: config.FlushInterval,
		logger:        logger.With().Str("component", "tracker").Logger(),
		windowFocused: true,
		accumulated:   storage.AccumulatedMap{},
	}
}

// Initialize loads the persisted map and starts timing the active tab of the
// current window, if any.
func (t *Tracker) Initialize(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	data, err := storage.LoadOrEmpty(ctx, t.store)
	if err != nil {
		return fmt.Errorf("failed to load accumulated data: %w", err)
	}
	t.accumulated = data

	t.logger.Info().Int("days", len(data)).Msg("Loaded accumulated data")

	tab, err := t.tabs.ActiveTab(ctx, host.CurrentWindow)
	if err != nil {
		if errors.Is(err, host.ErrTabNotFound) {
			t.logger.Debug().Msg("No active tab at startup")
			return nil
		}
		return fmt.Errorf("failed to query active tab: %w", err)
	}

	t.focusTab(ctx, tab)
	return nil
}

// OnTabFocusChanged switches the session to the domain of tabID.
func (t *Tracker) OnTabFocusChanged(ctx context.Context, tabID int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	tab, err := t.tabs.Tab(ctx, tabID)
	if err != nil {
		metrics.SkippedEvents.WithLabelValues("tab_not_found").Inc()
		t.logger.Debug().Err(err).Int("tab_id", tabID).Msg("Focused tab not resolvable")
		return fmt.Errorf("failed to get tab %d: %w", tabID, err)
	}

	t.focusTab(ctx, tab)
	return nil
}

// OnTabUpdated treats a finished load of the active tab as a focus change.
func (t *Tracker) OnTabUpdated(ctx context.Context, tab host.Tab) error {
	if !tab.Active || tab.Status != host.StatusComplete {
		return nil
	}
	return t.OnTabFocusChanged(ctx, tab.ID)
}

// OnWindowFocusChanged ends the session when the browser loses focus and
// resumes timing the focused window's active tab when it regains focus.
func (t *Tracker) OnWindowFocusChanged(ctx context.Context, windowID int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if windowID == host.WindowNone {
		t.windowFocused = false
		t.logger.Debug().Msg("Browser lost focus")
		t.endSession(ctx)
		return nil
	}

	t.windowFocused = true

	tab, err := t.tabs.ActiveTab(ctx, windowID)
	if err != nil {
		if errors.Is(err, host.ErrTabNotFound) {
			metrics.SkippedEvents.WithLabelValues("no_active_tab").Inc()
			t.logger.Debug().Int("window_id", windowID).Msg("Focused window has no known active tab")
			return nil
		}
		return fmt.Errorf("failed to query active tab of window %d: %w", windowID, err)
	}

	t.focusTab(ctx, tab)
	return nil
}

// EndSession books the running session, if any, and clears it.
func (t *Tracker) EndSession(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.endSession(ctx)
}

// OnPeriodicTick books the running session and continues it from now.
func (t *Tracker) OnPeriodicTick(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.session == nil {
		return
	}

	domain := t.session.Domain
	t.endSession(ctx)
	t.beginSession(domain)
}

// OnProcessSuspending books the running session before the process exits.
func (t *Tracker) OnProcessSuspending(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.logger.Info().Msg("Final flush before shutdown")
	t.endSession(ctx)
}

// Accumulated returns a copy of the in-memory map.
func (t *Tracker) Accumulated() storage.AccumulatedMap {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.accumulated.Clone()
}

// Current returns the running session.
func (t *Tracker) Current() (Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.session == nil {
		return Session{}, false
	}
	return *t.session, true
}

// WindowFocused reports whether the browser currently has focus.
func (t *Tracker) WindowFocused() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.windowFocused
}

// Start begins periodic flushing until ctx is done or Stop is called.
func (t *Tracker) Start(ctx context.Context) {
	t.stopChan = make(chan struct{})
	t.done = make(chan struct{})

	go t.run(ctx)

	t.logger.Info().
		Dur("flush_interval", t.flushInterval).
		Msg("Periodic flush started")
}

// Stop halts periodic flushing and waits for the loop to exit.
func (t *Tracker) Stop() {
	if t.stopChan == nil {
		return
	}
	close(t.stopChan)
	<-t.done
	t.stopChan = nil

	t.logger.Info().Msg("Periodic flush stopped")
}

// run is the flush loop
func (t *Tracker) run(ctx context.Context) {
	defer close(t.done)

	ticker := time.NewTicker(t.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.OnPeriodicTick(ctx)
		case <-t.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// focusTab resolves tab and restarts the session on its domain (must be
// called with lock held).
func (t *Tracker) focusTab(ctx context.Context, tab host.Tab) {
	domain, err := t.resolver.Domain(tab.URL)
	if err != nil {
		switch {
		case errors.Is(err, ErrNoHost):
			// The previous domain lost focus even though nothing new is timed.
			metrics.SkippedEvents.WithLabelValues("no_host").Inc()
			t.logger.Debug().Int("tab_id", tab.ID).Str("url", tab.URL).Msg("Page has no domain")
			t.endSession(ctx)
		case errors.Is(err, ErrExcludedScheme):
			metrics.SkippedEvents.WithLabelValues("excluded_scheme").Inc()
			t.logger.Debug().Int("tab_id", tab.ID).Str("url", tab.URL).Msg("Ignoring browser page")
		default:
			metrics.SkippedEvents.WithLabelValues("invalid_url").Inc()
			t.logger.Warn().Err(err).Int("tab_id", tab.ID).Str("url", tab.URL).Msg("Invalid URL")
		}
		return
	}

	t.endSession(ctx)

	if !t.windowFocused {
		metrics.SkippedEvents.WithLabelValues("window_unfocused").Inc()
		t.logger.Debug().Str("domain", domain).Msg("Window not focused, not starting session")
		return
	}

	t.beginSession(domain)
}

// beginSession starts timing domain now (must be called with lock held).
func (t *Tracker) beginSession(domain string) {
	t.session = &Session{Domain: domain, StartedAt: t.clock.Now()}
	metrics.SessionsStarted.Inc()

	t.logger.Debug().Str("domain", domain).Msg("Started session")
}

// endSession books and clears the session (must be called with lock held).
func (t *Tracker) endSession(ctx context.Context) {
	if t.session == nil {
		return
	}

	session := *t.session
	t.session = nil

	now := t.clock.Now()
	elapsed := int64(now.Sub(session.StartedAt) / time.Second)
	if elapsed <= 0 {
		metrics.SessionsDiscarded.Inc()
		t.logger.Debug().
			Str("domain", session.Domain).
			Int64("elapsed_seconds", elapsed).
			Msg("Discarding empty session")
		return
	}

	day := storage.DayKey(now)
	t.accumulated.Add(day, session.Domain, elapsed)
	metrics.TrackedSeconds.WithLabelValues(session.Domain).Add(float64(elapsed))

	t.logger.Debug().
		Str("date", day).
		Str("domain", session.Domain).
		Int64("seconds", elapsed).
		Msg("Booked session")

	t.persist(ctx)
}

// persist writes the whole map (must be called with lock held).
func (t *Tracker) persist(ctx context.Context) {
	if err := t.store.Save(ctx, t.accumulated); err != nil {
		metrics.StoreWrites.WithLabelValues("error").Inc()
		t.logger.Error().Err(err).Msg("Failed to save accumulated data")
		return
	}
	metrics.StoreWrites.WithLabelValues("ok").Inc()
}
