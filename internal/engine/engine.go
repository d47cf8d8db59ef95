// Package engine owns the inspector state and dispatches inbound envelopes
// through sanitization, admission, retention and stats.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tinytelemetry/pageinspect/internal/broadcast"
	"github.com/tinytelemetry/pageinspect/internal/ingest"
	"github.com/tinytelemetry/pageinspect/internal/logging"
	"github.com/tinytelemetry/pageinspect/internal/metrics"
	"github.com/tinytelemetry/pageinspect/internal/model"
	"github.com/tinytelemetry/pageinspect/internal/retention"
	"github.com/tinytelemetry/pageinspect/internal/session"
	"github.com/tinytelemetry/pageinspect/internal/stats"
)

// Notifier sends state-change notifications. *broadcast.Broadcaster
// satisfies it.
type Notifier interface {
	Notify(ctx context.Context, t model.UpdateType, payload any) broadcast.Report
}

// SaveScheduler requests a debounced snapshot. *persist.Scheduler
// satisfies it.
type SaveScheduler interface {
	ScheduleSave()
}

// Options configures an Engine. Every field is optional; a nil Settings
// uses model.DefaultSettings.
type Options struct {
	Settings *model.Settings
	Logger   *logrus.Logger
	Metrics  *metrics.Metrics
	Notifier Notifier
	Now      func() time.Time
	NewID    func() string
}

// Engine is the single owner of captured state. One mutex serializes every
// mutation and snapshot; a batch holds it for all of its messages.
// Notifications and save requests go out after the lock is released.
type Engine struct {
	mu        sync.Mutex
	settings  model.Settings
	recording bool
	store     *retention.Store
	counter   *stats.Counter
	sessions  *session.Manager

	decoder  *ingest.Decoder
	notifier Notifier
	saver    SaveScheduler
	metrics  *metrics.Metrics
	logger   *logrus.Logger
	now      func() time.Time
	newID    func() string
}

// New creates an engine in the recording state.
func New(opts Options) *Engine {
	settings := model.DefaultSettings()
	if opts.Settings != nil {
		settings = opts.Settings.Clamped().Clone()
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}

	store := retention.NewStore(settings, now)
	var rec stats.Recorder
	if opts.Metrics != nil {
		rec = opts.Metrics
	}
	e := &Engine{
		settings:  settings,
		recording: true,
		store:     store,
		counter:   stats.NewCounter(rec),
		sessions:  session.NewManager(store),
		decoder:   ingest.NewDecoder(),
		notifier:  opts.Notifier,
		metrics:   opts.Metrics,
		logger:    logging.OrDiscard(opts.Logger),
		now:       now,
		newID:     newID,
	}
	e.recordSizesLocked()
	return e
}

// AttachScheduler sets where save requests go. It must be called before
// the engine starts handling envelopes.
func (e *Engine) AttachScheduler(s SaveScheduler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.saver = s
}

// notification is queued under the lock and sent after it is released.
type notification struct {
	kind    model.UpdateType
	payload any
}

// outbox collects the side effects of one locked section.
type outbox struct {
	notes []notification
	save  bool
}

func (o *outbox) notify(t model.UpdateType, payload any) {
	o.notes = append(o.notes, notification{kind: t, payload: payload})
}

// flush runs outside the lock.
func (e *Engine) flush(ctx context.Context, out *outbox) {
	if out.save && e.saver != nil {
		e.saver.ScheduleSave()
	}
	if e.notifier == nil {
		return
	}
	for _, n := range out.notes {
		e.notifier.Notify(ctx, n.kind, n.payload)
	}
}

// HandleRaw decodes data and handles the envelope. Malformed input gets an
// error response.
func (e *Engine) HandleRaw(ctx context.Context, data []byte, originSessionID string) model.Response {
	env, err := e.decoder.Decode(data)
	if err != nil {
		e.metrics.Envelope("malformed", false)
		e.logger.WithError(err).WithField("origin", originSessionID).Debug("engine: rejected envelope")
		return model.Response{OK: false, Error: err.Error()}
	}
	return e.Handle(ctx, env, originSessionID)
}

// Handle processes one decoded envelope. originSessionID is the fallback
// session for entries that name none.
func (e *Engine) Handle(ctx context.Context, env model.Envelope, originSessionID string) model.Response {
	var out outbox
	e.mu.Lock()
	resp := e.handleLocked(env, originSessionID, &out)
	if out.save {
		e.recordSizesLocked()
	}
	e.mu.Unlock()

	e.flush(ctx, &out)
	return resp
}

// NavigationStarted clears the session's data ahead of a new page load.
func (e *Engine) NavigationStarted(ctx context.Context, sessionID string) model.Response {
	return e.Handle(ctx, model.Envelope{Type: model.MessageNavigationStarted, Target: sessionID}, "")
}

// SessionEnded clears the data of a closed session.
func (e *Engine) SessionEnded(ctx context.Context, sessionID string) model.Response {
	return e.Handle(ctx, model.Envelope{Type: model.MessageSessionEnded, Target: sessionID}, "")
}

// SweepIdle clears every session not heard from within timeout and returns
// the cleared ids.
func (e *Engine) SweepIdle(ctx context.Context, timeout time.Duration) []string {
	var out outbox
	e.mu.Lock()
	ids := e.sessions.Idle(e.now(), timeout)
	for _, id := range ids {
		e.clearSessionLocked(id, &out)
	}
	if out.save {
		e.recordSizesLocked()
	}
	e.mu.Unlock()

	e.metrics.Swept(len(ids))
	e.flush(ctx, &out)
	return ids
}

// Snapshot returns a deep copy of the state, restricted to one session
// when sessionID is not empty.
func (e *Engine) Snapshot(sessionID string) model.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked().ForSession(sessionID)
}

// Stats returns a copy of the counters.
func (e *Engine) Stats() model.Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.counter.Snapshot()
}

// Settings returns a copy of the current settings.
func (e *Engine) Settings() model.Settings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.settings.Clone()
}

// IsRecording reports whether capture is on.
func (e *Engine) IsRecording() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.recording
}

// Sessions returns the ids of sessions with recent activity.
func (e *Engine) Sessions() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sessions.Sessions()
}

// Restore replaces the state with a rehydrated snapshot. Persisted settings
// win over the initial ones, and the counters are reseeded from what the
// buffers hold so a restart never double counts.
func (e *Engine) Restore(st model.State) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.settings = st.Settings.Clamped().Clone()
	e.recording = st.IsRecording
	e.store.ApplyLimits(e.settings)
	e.store.Load(st)

	logs, network := e.store.Len()
	e.counter.Seed(logs, network)

	now := e.now()
	for _, l := range e.store.Logs() {
		e.sessions.Touch(l.SessionID, now)
	}
	for _, r := range e.store.NetworkRequests() {
		e.sessions.Touch(r.SessionID, now)
	}
	e.recordSizesLocked()

	e.logger.WithFields(logrus.Fields{
		"logs":    logs,
		"network": network,
	}).Info("engine: state restored")
}

func (e *Engine) snapshotLocked() model.State {
	return model.State{
		Logs:            e.store.Logs(),
		NetworkRequests: e.store.NetworkRequests(),
		IsRecording:     e.recording,
		Settings:        e.settings.Clone(),
		Stats:           e.counter.Snapshot(),
		Archives:        e.store.Archives(),
	}
}

func (e *Engine) recordSizesLocked() {
	if e.metrics == nil {
		return
	}
	logs, network := e.store.Len()
	archivedLogs, archivedNetwork := e.store.ArchiveLen()
	e.metrics.SetBufferSizes(logs, network, archivedLogs, archivedNetwork)
}
