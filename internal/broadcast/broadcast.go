// Package broadcast fans state-change notifications out to inspector UIs
// and other listeners on a best-effort basis.
package broadcast

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tinytelemetry/pageinspect/internal/logging"
	"github.com/tinytelemetry/pageinspect/internal/model"
)

// ErrNoListener reports that nobody is on the other end of a listener.
var ErrNoListener = errors.New("no listener")

// disconnectPhrases mark errors that only mean the receiving side is gone.
var disconnectPhrases = []string{
	"no listener",
	"receiving end does not exist",
	"channel closed",
	"connection closed",
	"context invalidated",
	"use of closed network connection",
}

// Listener receives notifications.
type Listener interface {
	Name() string
	Deliver(ctx context.Context, n model.Notification) error
}

// Recorder observes delivery outcomes.
type Recorder interface {
	Notification(listener, result string)
}

// Report summarizes one Notify call.
type Report struct {
	Delivered    int
	Disconnected int
	Failed       int
}

// IsDisconnect reports whether err only signals an absent receiver.
func IsDisconnect(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNoListener) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, phrase := range disconnectPhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}

// Broadcaster delivers notifications to every registered listener.
// Disconnect errors are silent; other errors are logged through a
// Suppressor so a failing listener cannot flood the log.
type Broadcaster struct {
	mu        sync.RWMutex
	listeners []Listener

	suppressor *Suppressor
	logger     *logrus.Logger
	recorder   Recorder
	now        func() time.Time
}

// New creates a broadcaster. rec and now may be nil.
func New(logger *logrus.Logger, rec Recorder, now func() time.Time) *Broadcaster {
	if now == nil {
		now = time.Now
	}
	return &Broadcaster{
		suppressor: NewSuppressor(DefaultSuppressWindow, now),
		logger:     logging.OrDiscard(logger),
		recorder:   rec,
		now:        now,
	}
}

// Register adds a listener.
func (b *Broadcaster) Register(l Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, l)
}

// Listeners returns the registered listener names.
func (b *Broadcaster) Listeners() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, len(b.listeners))
	for i, l := range b.listeners {
		names[i] = l.Name()
	}
	return names
}

// Notify sends one notification to every listener and reports the
// outcome. It never returns an error.
func (b *Broadcaster) Notify(ctx context.Context, t model.UpdateType, payload any) Report {
	n := model.Notification{Type: t, Payload: payload, Timestamp: b.now().UnixMilli()}

	b.mu.RLock()
	listeners := append([]Listener(nil), b.listeners...)
	b.mu.RUnlock()

	var report Report
	for _, l := range listeners {
		err := l.Deliver(ctx, n)
		switch {
		case err == nil:
			report.Delivered++
			b.record(l.Name(), "delivered")
		case IsDisconnect(err):
			report.Disconnected++
			b.record(l.Name(), "disconnected")
		default:
			report.Failed++
			b.record(l.Name(), "failed")
			b.logFailure(l.Name(), err)
		}
	}
	return report
}

func (b *Broadcaster) record(listener, result string) {
	if b.recorder != nil {
		b.recorder.Notification(listener, result)
	}
}

func (b *Broadcaster) logFailure(listener string, err error) {
	msg := listener + ": " + err.Error()
	d := b.suppressor.Observe(msg)
	if d.Flushed > 0 {
		b.logger.WithFields(logrus.Fields{
			"repeats": d.Flushed,
			"error":   d.FlushedMessage,
		}).Warn("broadcast: suppressed repeated delivery errors")
	}
	if d.Log {
		b.logger.WithField("listener", listener).WithError(err).Warn("broadcast: delivery failed")
	}
}
