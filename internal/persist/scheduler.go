// Package persist debounces state snapshots into a durable key-value store
// and rehydrates them on start.
package persist

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tinytelemetry/pageinspect/internal/logging"
	"github.com/tinytelemetry/pageinspect/internal/model"
)

// SaveFunc writes one snapshot.
type SaveFunc func(ctx context.Context) error

const saveTimeout = 10 * time.Second

// Scheduler coalesces save requests. A request arms a debounce timer
// unless one is already armed. Saves never overlap: a timer that fires
// while a save is in flight queues exactly one follow-up save.
type Scheduler struct {
	clock  Clock
	delay  time.Duration
	save   SaveFunc
	logger *logrus.Logger

	mu      sync.Mutex
	timer   Timer
	saving  bool
	rerun   bool
	stopped bool
	idle    chan struct{}
}

// NewScheduler creates a scheduler that calls save delay after the first
// of a burst of ScheduleSave calls. A non-positive delay uses the default.
func NewScheduler(save SaveFunc, delay time.Duration, clock Clock, logger *logrus.Logger) *Scheduler {
	if delay <= 0 {
		delay = model.DefaultSaveDebounce
	}
	if clock == nil {
		clock = RealClock{}
	}
	return &Scheduler{
		clock:  clock,
		delay:  delay,
		save:   save,
		logger: logging.OrDiscard(logger),
	}
}

// ScheduleSave arms the debounce timer if it is not armed already.
func (s *Scheduler) ScheduleSave() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.timer != nil {
		return
	}
	s.timer = s.clock.AfterFunc(s.delay, s.fire)
}

// Pending reports whether a debounced save is armed.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

// Saving reports whether a save is in flight.
func (s *Scheduler) Saving() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saving
}

func (s *Scheduler) fire() {
	s.mu.Lock()
	s.timer = nil
	if s.saving {
		s.rerun = true
		s.mu.Unlock()
		return
	}
	s.beginLocked()
	s.mu.Unlock()

	s.run()
}

// beginLocked marks a save as in flight. s.mu must be held.
func (s *Scheduler) beginLocked() {
	s.saving = true
	s.idle = make(chan struct{})
}

// run performs saves until no follow-up is queued, then signals idle.
func (s *Scheduler) run() {
	for {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		if err := s.save(ctx); err != nil {
			s.logger.WithError(err).Warn("state save failed")
		}
		cancel()

		s.mu.Lock()
		if s.rerun {
			s.rerun = false
			s.mu.Unlock()
			continue
		}
		s.saving = false
		close(s.idle)
		s.mu.Unlock()
		return
	}
}

// FlushNow cancels the debounce timer and saves immediately, or queues a
// follow-up save when one is in flight. It returns once the scheduler is
// idle or ctx is done.
func (s *Scheduler) FlushNow(ctx context.Context) error {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.saving {
		s.rerun = true
		idle := s.idle
		s.mu.Unlock()
		select {
		case <-idle:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.beginLocked()
	s.mu.Unlock()

	s.run()
	return nil
}

// Stop disarms the timer and ignores later ScheduleSave calls. A save in
// flight is not interrupted.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
