package mcp

import (
	"sort"
	"sync"
)

// WatcherRegistry tracks the MCP client sessions that asked to receive
// evaluation results as notifications.
type WatcherRegistry struct {
	mu       sync.RWMutex
	sessions map[string]struct{}
}

// NewWatcherRegistry creates an empty registry.
func NewWatcherRegistry() *WatcherRegistry {
	return &WatcherRegistry{sessions: make(map[string]struct{})}
}

// Register adds a client session. Registering twice is a no-op.
func (r *WatcherRegistry) Register(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sessionID] = struct{}{}
}

// Remove drops a client session, typically after it disconnected.
func (r *WatcherRegistry) Remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
}

// Sessions returns the registered client session IDs in sorted order.
func (r *WatcherRegistry) Sessions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Len reports the number of watchers.
func (r *WatcherRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
