package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinytelemetry/pageinspect/internal/model"
	"github.com/tinytelemetry/pageinspect/internal/retention"
)

func newStore(t *testing.T) *retention.Store {
	t.Helper()
	s := retention.NewStore(model.DefaultSettings(), nil)
	for _, sid := range []string{"tab-1", "tab-2", "tab-1"} {
		s.AddLog(model.LogEntry{ID: sid + "-log", SessionID: sid})
		s.AddNetwork(model.NetworkRequest{ID: sid + "-req", SessionID: sid})
	}
	return s
}

func TestClearSessionLeavesOthers(t *testing.T) {
	store := newStore(t)
	m := NewManager(store)
	base := time.Unix(1000, 0)
	m.Touch("tab-1", base)
	m.Touch("tab-2", base)

	removed := m.ClearSession("tab-1")
	assert.Equal(t, 2, removed.Logs)
	assert.Equal(t, 2, removed.NetworkRequests)

	for _, e := range store.Logs() {
		assert.Equal(t, "tab-2", e.SessionID)
	}
	for _, r := range store.NetworkRequests() {
		assert.Equal(t, "tab-2", r.SessionID)
	}
	assert.Equal(t, []string{"tab-2"}, m.Sessions())
}

func TestClearAll(t *testing.T) {
	store := newStore(t)
	m := NewManager(store)
	m.Touch("tab-1", time.Unix(1, 0))

	removed := m.ClearAll()
	assert.Equal(t, 6, removed.Total())
	logs, network := store.Len()
	assert.Zero(t, logs)
	assert.Zero(t, network)
	assert.Empty(t, m.Sessions())
}

func TestTouchKeepsLatest(t *testing.T) {
	m := NewManager(newStore(t))
	later := time.Unix(2000, 0)
	m.Touch("tab-1", later)
	m.Touch("tab-1", time.Unix(1000, 0))
	m.Touch("", later)

	seen, ok := m.LastSeen("tab-1")
	require.True(t, ok)
	assert.Equal(t, later, seen)
	assert.Equal(t, []string{"tab-1"}, m.Sessions())
}

func TestIdle(t *testing.T) {
	m := NewManager(newStore(t))
	now := time.Unix(10_000, 0)
	m.Touch("old", now.Add(-10*time.Minute))
	m.Touch("edge", now.Add(-5*time.Minute))
	m.Touch("fresh", now.Add(-time.Minute))

	assert.Equal(t, []string{"edge", "old"}, m.Idle(now, 5*time.Minute))
	assert.Nil(t, m.Idle(now, 0))
}
