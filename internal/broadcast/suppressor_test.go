package broadcast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSuppressorStateMachine(t *testing.T) {
	now := time.Unix(100, 0)
	s := NewSuppressor(time.Minute, func() time.Time { return now })

	assert.Equal(t, Decision{Log: true}, s.Observe("a"))
	assert.Equal(t, Decision{}, s.Observe("a"))
	assert.Equal(t, Decision{}, s.Observe("a"))
	assert.Equal(t, 2, s.Pending())

	// A different message flushes the count of the previous one.
	assert.Equal(t, Decision{Log: true, Flushed: 2, FlushedMessage: "a"}, s.Observe("b"))
	assert.Zero(t, s.Pending())

	now = now.Add(30 * time.Second)
	assert.Equal(t, Decision{}, s.Observe("b"))

	// The window elapsing re-logs the same message.
	now = now.Add(30 * time.Second)
	assert.Equal(t, Decision{Log: true, Flushed: 1, FlushedMessage: "b"}, s.Observe("b"))
}

func TestSuppressorWindowWithoutRepeats(t *testing.T) {
	now := time.Unix(0, 0)
	s := NewSuppressor(time.Second, func() time.Time { return now })

	s.Observe("x")
	now = now.Add(2 * time.Second)
	assert.Equal(t, Decision{Log: true}, s.Observe("x"))
}
