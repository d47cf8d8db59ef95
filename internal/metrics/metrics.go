// Package metrics holds the Prometheus instruments of the inspector daemon.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every metric name.
const Namespace = "pageinspect"

// Metrics groups the daemon's instruments. All methods are safe to call on
// a nil *Metrics, which records nothing.
type Metrics struct {
	// ReceivedTotal counts items offered while recording.
	// Labels: category
	ReceivedTotal *prometheus.CounterVec

	// StoredTotal counts items admitted into an active buffer.
	// Labels: category
	StoredTotal *prometheus.CounterVec

	// FilteredTotal counts admission rejections.
	// Labels: category, reason
	FilteredTotal *prometheus.CounterVec

	// EvictedTotal counts items pushed out of an active buffer by its limit.
	// Labels: category
	EvictedTotal *prometheus.CounterVec

	// BufferItems is the current number of held items.
	// Labels: buffer (logs, network, archived_logs, archived_network)
	BufferItems *prometheus.GaugeVec

	// SavesTotal counts snapshot writes.
	// Labels: result (ok, error)
	SavesTotal *prometheus.CounterVec

	// SaveDuration observes snapshot encode+write time in seconds.
	SaveDuration prometheus.Histogram

	// SnapshotBytes is the size of the last written snapshot.
	SnapshotBytes prometheus.Gauge

	// NotificationsTotal counts broadcast deliveries per listener.
	// Labels: listener, result (delivered, disconnected, failed)
	NotificationsTotal *prometheus.CounterVec

	// EnvelopesTotal counts inbound envelopes.
	// Labels: type, result (ok, error)
	EnvelopesTotal *prometheus.CounterVec

	// SessionsSwept counts sessions cleared for inactivity.
	SessionsSwept prometheus.Counter
}

// New creates the instruments and registers them with reg. A nil reg uses
// the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		ReceivedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "received_total",
				Help:      "Items offered to the engine while recording",
			},
			[]string{"category"},
		),
		StoredTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "stored_total",
				Help:      "Items admitted into an active buffer",
			},
			[]string{"category"},
		),
		FilteredTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "filtered_total",
				Help:      "Items rejected by the admission filter",
			},
			[]string{"category", "reason"},
		),
		EvictedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "evicted_total",
				Help:      "Items evicted from an active buffer by its limit",
			},
			[]string{"category"},
		),
		BufferItems: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "buffer_items",
				Help:      "Items currently held per buffer",
			},
			[]string{"buffer"},
		),
		SavesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "saves_total",
				Help:      "State snapshot writes",
			},
			[]string{"result"},
		),
		SaveDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "save_duration_seconds",
				Help:      "State snapshot encode and write time",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
		),
		SnapshotBytes: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "snapshot_bytes",
				Help:      "Compressed size of the last written snapshot",
			},
		),
		NotificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "notifications_total",
				Help:      "Notification deliveries per listener and outcome",
			},
			[]string{"listener", "result"},
		),
		EnvelopesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "envelopes_total",
				Help:      "Inbound envelopes by type and outcome",
			},
			[]string{"type", "result"},
		),
		SessionsSwept: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "sessions_swept_total",
				Help:      "Sessions cleared after exceeding the idle timeout",
			},
		),
	}
}

// Received records one item offered in category.
func (m *Metrics) Received(category string) {
	if m == nil {
		return
	}
	m.ReceivedTotal.WithLabelValues(category).Inc()
}

// Stored records one admitted item.
func (m *Metrics) Stored(category string) {
	if m == nil {
		return
	}
	m.StoredTotal.WithLabelValues(category).Inc()
}

// Filtered records one admission rejection.
func (m *Metrics) Filtered(category, reason string) {
	if m == nil {
		return
	}
	m.FilteredTotal.WithLabelValues(category, reason).Inc()
}

// Evicted records n limit evictions.
func (m *Metrics) Evicted(category string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.EvictedTotal.WithLabelValues(category).Add(float64(n))
}

// SetBufferSizes updates the buffer gauges.
func (m *Metrics) SetBufferSizes(logs, network, archivedLogs, archivedNetwork int) {
	if m == nil {
		return
	}
	m.BufferItems.WithLabelValues("logs").Set(float64(logs))
	m.BufferItems.WithLabelValues("network").Set(float64(network))
	m.BufferItems.WithLabelValues("archived_logs").Set(float64(archivedLogs))
	m.BufferItems.WithLabelValues("archived_network").Set(float64(archivedNetwork))
}

// SaveResult records a snapshot write outcome.
func (m *Metrics) SaveResult(err error, seconds float64, size int) {
	if m == nil {
		return
	}
	if err != nil {
		m.SavesTotal.WithLabelValues("error").Inc()
		return
	}
	m.SavesTotal.WithLabelValues("ok").Inc()
	m.SaveDuration.Observe(seconds)
	m.SnapshotBytes.Set(float64(size))
}

// Notification records one delivery attempt.
func (m *Metrics) Notification(listener, result string) {
	if m == nil {
		return
	}
	m.NotificationsTotal.WithLabelValues(listener, result).Inc()
}

// Envelope records one inbound envelope.
func (m *Metrics) Envelope(msgType string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.EnvelopesTotal.WithLabelValues(msgType, result).Inc()
}

// Swept records n sessions cleared for inactivity.
func (m *Metrics) Swept(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.SessionsSwept.Add(float64(n))
}
