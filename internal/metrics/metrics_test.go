package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRecord(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Received("logs")
	m.Received("logs")
	m.Stored("logs")
	m.Filtered("logs", "content")
	m.Evicted("network", 3)
	m.SetBufferSizes(1, 2, 3, 4)
	m.SaveResult(nil, 0.01, 128)
	m.SaveResult(errors.New("disk full"), 0, 0)
	m.Envelope("console-log", true)
	m.Swept(2)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ReceivedTotal.WithLabelValues("logs")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoredTotal.WithLabelValues("logs")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FilteredTotal.WithLabelValues("logs", "content")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.EvictedTotal.WithLabelValues("network")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.BufferItems.WithLabelValues("archived_network")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SavesTotal.WithLabelValues("error")))
	assert.Equal(t, 128.0, testutil.ToFloat64(m.SnapshotBytes))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EnvelopesTotal.WithLabelValues("console-log", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SessionsSwept))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Received("logs")
		m.Evicted("logs", 1)
		m.SaveResult(nil, 1, 1)
		m.Notification("ws", "delivered")
	})
}
