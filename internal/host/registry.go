package host

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultRegistrySize bounds how many tabs the registry remembers.
const DefaultRegistrySize = 512

// Registry is an in-memory Tabs implementation fed by host events. Tabs the
// browser never reports as removed are eventually evicted.
type Registry struct {
	mu             sync.Mutex
	tabs           *lru.Cache[int, Tab]
	activeByWindow map[int]int
	lastFocused    int
	hasFocused     bool
}

// NewRegistry creates a registry remembering at most size tabs.
func NewRegistry(size int) (*Registry, error) {
	if size <= 0 {
		size = DefaultRegistrySize
	}

	r := &Registry{activeByWindow: make(map[int]int)}

	// The evict callback runs with r.mu already held by the caller.
	cache, err := lru.NewWithEvict[int, Tab](size, func(id int, tab Tab) {
		if active, ok := r.activeByWindow[tab.WindowID]; ok && active == id {
			delete(r.activeByWindow, tab.WindowID)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("create tab cache: %w", err)
	}
	r.tabs = cache

	return r, nil
}

// Update records the latest state of a tab.
func (r *Registry) Update(tab Tab) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.tabs.Peek(tab.ID); ok && prev.WindowID != tab.WindowID {
		// Tab moved between windows.
		if active, ok := r.activeByWindow[prev.WindowID]; ok && active == tab.ID {
			delete(r.activeByWindow, prev.WindowID)
		}
	}

	active := tab.Active
	tab.Active = false
	r.tabs.Add(tab.ID, tab)
	if active {
		r.activeByWindow[tab.WindowID] = tab.ID
	}
}

// Activate marks tabID as the active tab of windowID.
func (r *Registry) Activate(tabID, windowID int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tab, ok := r.tabs.Get(tabID)
	if !ok {
		tab = Tab{ID: tabID}
	}
	tab.WindowID = windowID
	r.tabs.Add(tabID, tab)
	r.activeByWindow[windowID] = tabID
	if !r.hasFocused {
		r.lastFocused = windowID
		r.hasFocused = true
	}
}

// Remove forgets a closed tab. It reports whether the tab was known.
func (r *Registry) Remove(tabID int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.tabs.Remove(tabID)
}

// FocusWindow records a window focus change. WindowNone keeps the last
// focused window as the current one.
func (r *Registry) FocusWindow(windowID int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if windowID == WindowNone {
		return
	}
	r.lastFocused = windowID
	r.hasFocused = true
}

// Tab returns the tab with the given id.
func (r *Registry) Tab(ctx context.Context, id int) (Tab, error) {
	if err := ctx.Err(); err != nil {
		return Tab{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tab, ok := r.tabs.Get(id)
	if !ok {
		return Tab{}, ErrTabNotFound
	}
	tab.Active = r.activeByWindow[tab.WindowID] == id
	return tab, nil
}

// ActiveTab returns the active tab of windowID.
func (r *Registry) ActiveTab(ctx context.Context, windowID int) (Tab, error) {
	if err := ctx.Err(); err != nil {
		return Tab{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if windowID == CurrentWindow {
		if !r.hasFocused {
			return Tab{}, ErrTabNotFound
		}
		windowID = r.lastFocused
	}

	id, ok := r.activeByWindow[windowID]
	if !ok {
		return Tab{}, ErrTabNotFound
	}
	tab, ok := r.tabs.Get(id)
	if !ok {
		return Tab{}, ErrTabNotFound
	}
	tab.Active = true
	return tab, nil
}
