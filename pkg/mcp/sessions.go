package mcp

import (
	"slices"
	"sync"
)

// SessionRegistry tracks which MCP sessions watch which saved diagrams. A
// session starts watching a diagram when it saves or fetches it.
type SessionRegistry struct {
	mu       sync.RWMutex
	watchers map[string]map[string]struct{} // diagramID → sessionIDs
}

// NewSessionRegistry creates a new empty SessionRegistry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{watchers: make(map[string]map[string]struct{})}
}

// Watch subscribes sessionID to changes of diagramID.
func (r *SessionRegistry) Watch(diagramID, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.watchers[diagramID]
	if !ok {
		set = make(map[string]struct{})
		r.watchers[diagramID] = set
	}
	set[sessionID] = struct{}{}
}

// SessionsFor returns the sessions watching diagramID, sorted.
func (r *SessionRegistry) SessionsFor(diagramID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.watchers[diagramID]))
	for sid := range r.watchers[diagramID] {
		out = append(out, sid)
	}
	slices.Sort(out)
	return out
}

// Forget drops every watcher of diagramID.
func (r *SessionRegistry) Forget(diagramID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.watchers, diagramID)
}

// Remove deletes all subscriptions of a disconnected session.
func (r *SessionRegistry) Remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for did, set := range r.watchers {
		delete(set, sessionID)
		if len(set) == 0 {
			delete(r.watchers, did)
		}
	}
}
