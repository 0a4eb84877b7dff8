package frontend

import "sync"

// Navigation is a pending route change for the browser.
type Navigation struct {
	Path string `json:"path"`
	// Hard marks a redirect that replaces the current view.
	Hard bool `json:"hard"`
}

// Navigator records the latest route change requested by the session
// components until the next response takes it.
type Navigator struct {
	mu      sync.Mutex
	pending *Navigation
}

// Navigate records a regular navigation.
func (n *Navigator) Navigate(path string) {
	n.set(Navigation{Path: path})
}

// Redirect records a hard redirect.
func (n *Navigator) Redirect(path string) {
	n.set(Navigation{Path: path, Hard: true})
}

func (n *Navigator) set(nav Navigation) {
	n.mu.Lock()
	n.pending = &nav
	n.mu.Unlock()
}

// Take returns the pending navigation and clears it.
func (n *Navigator) Take() (Navigation, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.pending == nil {
		return Navigation{}, false
	}
	nav := *n.pending
	n.pending = nil
	return nav, true
}
