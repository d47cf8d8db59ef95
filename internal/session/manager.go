// Package session scopes captured data to page sessions and clears it when
// a session navigates away, ends, or goes quiet.
package session

import (
	"sort"
	"time"

	"github.com/tinytelemetry/pageinspect/internal/retention"
)

// Target is the storage a Manager clears.
type Target interface {
	ClearSession(sessionID string) retention.Removed
	Reset() retention.Removed
}

// Manager tracks when each session was last heard from. It is not safe for
// concurrent use; the engine calls it under its own lock.
type Manager struct {
	target   Target
	lastSeen map[string]time.Time
}

// NewManager creates a manager clearing data in target.
func NewManager(target Target) *Manager {
	return &Manager{target: target, lastSeen: make(map[string]time.Time)}
}

// Touch records activity for sessionID at t.
func (m *Manager) Touch(sessionID string, t time.Time) {
	if sessionID == "" {
		return
	}
	if prev, ok := m.lastSeen[sessionID]; ok && prev.After(t) {
		return
	}
	m.lastSeen[sessionID] = t
}

// LastSeen returns when sessionID was last touched.
func (m *Manager) LastSeen(sessionID string) (time.Time, bool) {
	t, ok := m.lastSeen[sessionID]
	return t, ok
}

// Sessions returns the tracked session ids in sorted order.
func (m *Manager) Sessions() []string {
	ids := make([]string, 0, len(m.lastSeen))
	for id := range m.lastSeen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ClearSession removes everything captured for sessionID from the active
// buffers and the archives. Other sessions are untouched.
func (m *Manager) ClearSession(sessionID string) retention.Removed {
	delete(m.lastSeen, sessionID)
	return m.target.ClearSession(sessionID)
}

// ClearAll removes everything and forgets every session.
func (m *Manager) ClearAll() retention.Removed {
	clear(m.lastSeen)
	return m.target.Reset()
}

// Idle returns the sessions not touched within timeout of now, sorted.
// A non-positive timeout returns nothing.
func (m *Manager) Idle(now time.Time, timeout time.Duration) []string {
	if timeout <= 0 {
		return nil
	}
	cutoff := now.Add(-timeout)
	var idle []string
	for id, seen := range m.lastSeen {
		if !seen.After(cutoff) {
			idle = append(idle, id)
		}
	}
	sort.Strings(idle)
	return idle
}
