package broadcast

import (
	"sync"
	"time"
)

// DefaultSuppressWindow is how long repeats of one error stay silent.
const DefaultSuppressWindow = 60 * time.Second

// Decision tells the caller what to log for one observed error.
type Decision struct {
	// Log is true when the observed message itself should be logged.
	Log bool
	// Flushed is the number of repeats of FlushedMessage that were held
	// back and should now be reported once.
	Flushed        int
	FlushedMessage string
}

// Suppressor rate-limits a stream of error messages. The first occurrence
// of a message is logged; repeats inside the window are only counted. When
// the message changes or the window elapses, the held-back count is
// reported once and the new occurrence is logged.
type Suppressor struct {
	mu         sync.Mutex
	window     time.Duration
	now        func() time.Time
	last       string
	firstSeen  time.Time
	suppressed int
}

// NewSuppressor creates a suppressor. now may be nil.
func NewSuppressor(window time.Duration, now func() time.Time) *Suppressor {
	if now == nil {
		now = time.Now
	}
	return &Suppressor{window: window, now: now}
}

// Observe records one occurrence of msg.
func (s *Suppressor) Observe(msg string) Decision {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if msg == s.last && !s.firstSeen.IsZero() && now.Sub(s.firstSeen) < s.window {
		s.suppressed++
		return Decision{}
	}

	d := Decision{Log: true}
	if s.suppressed > 0 {
		d.Flushed = s.suppressed
		d.FlushedMessage = s.last
	}
	s.last = msg
	s.firstSeen = now
	s.suppressed = 0
	return d
}

// Pending reports the number of repeats currently held back.
func (s *Suppressor) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.suppressed
}
