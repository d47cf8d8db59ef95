// Package stats keeps the per-category ingestion counters.
package stats

import "github.com/tinytelemetry/pageinspect/internal/model"

// Recorder mirrors counter updates elsewhere, typically Prometheus.
type Recorder interface {
	Received(category string)
	Stored(category string)
	Filtered(category, reason string)
	Evicted(category string, n int)
}

// Counter maintains received == stored + droppedByFilter + droppedByLimit
// for each category. An eviction moves items from stored to droppedByLimit,
// so stored tracks what the active buffer holds. Counter is not safe for
// concurrent use.
type Counter struct {
	stats    model.Stats
	recorder Recorder
}

// NewCounter creates a zeroed counter. rec may be nil.
func NewCounter(rec Recorder) *Counter {
	return &Counter{recorder: rec}
}

func (c *Counter) category(cat model.Category) *model.CategoryStats {
	if cat == model.CategoryNetwork {
		return &c.stats.Network
	}
	return &c.stats.Logs
}

// Received counts one item offered while recording.
func (c *Counter) Received(cat model.Category) {
	c.category(cat).Received++
	if c.recorder != nil {
		c.recorder.Received(string(cat))
	}
}

// Stored counts one admitted item.
func (c *Counter) Stored(cat model.Category) {
	c.category(cat).Stored++
	if c.recorder != nil {
		c.recorder.Stored(string(cat))
	}
}

// DroppedByFilter counts one admission rejection under reason.
func (c *Counter) DroppedByFilter(cat model.Category, reason string) {
	s := c.category(cat)
	s.DroppedByFilter++
	if s.FilterReasons == nil {
		s.FilterReasons = make(map[string]int64)
	}
	s.FilterReasons[reason]++
	if c.recorder != nil {
		c.recorder.Filtered(string(cat), reason)
	}
}

// DroppedByLimit reclassifies n stored items as evicted.
func (c *Counter) DroppedByLimit(cat model.Category, n int) {
	if n <= 0 {
		return
	}
	s := c.category(cat)
	moved := int64(n)
	if moved > s.Stored {
		moved = s.Stored
	}
	s.Stored -= moved
	s.DroppedByLimit += moved
	if c.recorder != nil {
		c.recorder.Evicted(string(cat), n)
	}
}

// Seed resets the counters to a rehydrated buffer: every held item counts
// as received and stored, nothing as dropped.
func (c *Counter) Seed(logs, network int) {
	c.stats = model.Stats{
		Logs:    model.CategoryStats{Received: int64(logs), Stored: int64(logs)},
		Network: model.CategoryStats{Received: int64(network), Stored: int64(network)},
	}
}

// Reset zeroes every counter.
func (c *Counter) Reset() {
	c.stats = model.Stats{}
}

// Snapshot returns a copy of the counters.
func (c *Counter) Snapshot() model.Stats {
	return c.stats.Clone()
}
