package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tinytelemetry/pageinspect/internal/model"
)

type recorderStub struct {
	received, stored, filtered, evicted int
}

func (r *recorderStub) Received(string)         { r.received++ }
func (r *recorderStub) Stored(string)           { r.stored++ }
func (r *recorderStub) Filtered(string, string) { r.filtered++ }
func (r *recorderStub) Evicted(_ string, n int) { r.evicted += n }

func TestCounterKeepsInvariant(t *testing.T) {
	rec := &recorderStub{}
	c := NewCounter(rec)

	for i := 0; i < 4; i++ {
		c.Received(model.CategoryLogs)
		c.Stored(model.CategoryLogs)
		assert.True(t, c.Snapshot().Logs.Balanced())
	}
	c.DroppedByLimit(model.CategoryLogs, 1)
	c.Received(model.CategoryLogs)
	c.DroppedByFilter(model.CategoryLogs, model.ReasonContent)

	got := c.Snapshot().Logs
	assert.True(t, got.Balanced())
	assert.Equal(t, model.CategoryStats{
		Received:        5,
		Stored:          3,
		DroppedByFilter: 1,
		DroppedByLimit:  1,
		FilterReasons:   map[string]int64{model.ReasonContent: 1},
	}, got)
	assert.Equal(t, 5, rec.received)
	assert.Equal(t, 1, rec.evicted)
}

func TestCounterEvictionNeverGoesNegative(t *testing.T) {
	c := NewCounter(nil)
	c.Received(model.CategoryNetwork)
	c.Stored(model.CategoryNetwork)
	c.DroppedByLimit(model.CategoryNetwork, 5)

	got := c.Snapshot().Network
	assert.Zero(t, got.Stored)
	assert.Equal(t, int64(1), got.DroppedByLimit)
	assert.True(t, got.Balanced())
}

func TestCounterSeedAndReset(t *testing.T) {
	c := NewCounter(nil)
	c.Seed(3, 2)
	s := c.Snapshot()
	assert.Equal(t, int64(3), s.Logs.Received)
	assert.Equal(t, int64(3), s.Logs.Stored)
	assert.Equal(t, int64(2), s.Network.Stored)
	assert.True(t, s.Logs.Balanced())

	c.Reset()
	assert.Equal(t, model.Stats{}, c.Snapshot())
}

func TestCounterSnapshotIsACopy(t *testing.T) {
	c := NewCounter(nil)
	c.DroppedByFilter(model.CategoryLogs, model.ReasonLevel)
	snap := c.Snapshot()
	snap.Logs.FilterReasons[model.ReasonLevel] = 99
	assert.Equal(t, int64(1), c.Snapshot().Logs.FilterReasons[model.ReasonLevel])
}
