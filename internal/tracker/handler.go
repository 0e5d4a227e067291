package tracker

import (
	"context"

	"github.com/goodtune/sitetime/internal/host"
)

// EventHandler receives host events. Implementations must be safe for
// concurrent use; the Tracker serializes all calls behind one mutex.
type EventHandler interface {
	// OnTabFocusChanged is called when tabID became the active tab.
	OnTabFocusChanged(ctx context.Context, tabID int) error
	// OnTabUpdated is called with the latest state of a tab after it changed.
	OnTabUpdated(ctx context.Context, tab host.Tab) error
	// OnWindowFocusChanged is called with the newly focused window, or
	// host.WindowNone when the browser lost focus.
	OnWindowFocusChanged(ctx context.Context, windowID int) error
	// OnPeriodicTick flushes the running session.
	OnPeriodicTick(ctx context.Context)
	// OnProcessSuspending performs the final flush before shutdown.
	OnProcessSuspending(ctx context.Context)
}

var _ EventHandler = (*Tracker)(nil)
