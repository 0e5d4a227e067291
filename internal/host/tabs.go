// Package host models the browser primitives the tracker depends on: tabs,
// windows and their focus. Browser-side code reports events to the bridge API
// in host/api, which keeps a Registry current.
package host

import (
	"context"
	"errors"
)

const (
	// WindowNone is reported when no browser window has focus.
	WindowNone = -1
	// CurrentWindow selects the most recently focused window.
	CurrentWindow = -2
)

// Tab load states reported with tab updates.
const (
	StatusLoading  = "loading"
	StatusComplete = "complete"
)

// ErrTabNotFound is returned when a tab is unknown to the host.
var ErrTabNotFound = errors.New("host: tab not found")

// Tab is the host's view of a browser tab.
type Tab struct {
	ID       int    `json:"id"`
	WindowID int    `json:"window_id"`
	URL      string `json:"url"`
	Status   string `json:"status"`
	Active   bool   `json:"active"`
}

// Tabs answers tab queries the way the browser's tabs API does.
type Tabs interface {
	// Tab returns the tab with the given id.
	Tab(ctx context.Context, id int) (Tab, error)
	// ActiveTab returns the active tab of windowID, or of the most recently
	// focused window when windowID is CurrentWindow.
	ActiveTab(ctx context.Context, windowID int) (Tab, error)
}
