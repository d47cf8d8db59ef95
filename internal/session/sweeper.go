package session

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tinytelemetry/pageinspect/internal/logging"
)

// SweepFunc clears sessions idle for longer than timeout and returns the
// ids it cleared.
type SweepFunc func(timeout time.Duration) []string

// Sweeper periodically clears idle sessions.
type Sweeper struct {
	sweep    SweepFunc
	timeout  time.Duration
	interval time.Duration
	logger   *logrus.Logger

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewSweeper starts a sweeper. It returns nil when timeout is 0 (disabled).
// The check interval is a quarter of the timeout, at least one second.
func NewSweeper(sweep SweepFunc, timeout time.Duration, logger *logrus.Logger) *Sweeper {
	if timeout <= 0 {
		return nil
	}
	interval := timeout / 4
	if interval < time.Second {
		interval = time.Second
	}
	return newSweeper(sweep, timeout, interval, logger)
}

func newSweeper(sweep SweepFunc, timeout, interval time.Duration, logger *logrus.Logger) *Sweeper {
	s := &Sweeper{
		sweep:    sweep,
		timeout:  timeout,
		interval: interval,
		logger:   logging.OrDiscard(logger),
		done:     make(chan struct{}),
	}
	s.wg.Add(1)
	go s.tickLoop()
	return s
}

func (s *Sweeper) tickLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.run()
		case <-s.done:
			return
		}
	}
}

func (s *Sweeper) run() {
	cleared := s.sweep(s.timeout)
	if len(cleared) > 0 {
		s.logger.WithFields(logrus.Fields{
			"sessions": cleared,
			"timeout":  s.timeout,
		}).Info("session: cleared idle sessions")
	}
}

// Stop signals the sweeper to stop and waits for it to finish. Stop on a
// nil sweeper is a no-op.
func (s *Sweeper) Stop() {
	if s == nil {
		return
	}
	s.stopOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
	})
}
