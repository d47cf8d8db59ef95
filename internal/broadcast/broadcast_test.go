package broadcast

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinytelemetry/pageinspect/internal/model"
)

type stubListener struct {
	name string
	err  error
	got  []model.Notification
}

func (s *stubListener) Name() string { return s.name }

func (s *stubListener) Deliver(_ context.Context, n model.Notification) error {
	s.got = append(s.got, n)
	return s.err
}

type recorderStub map[string]int

func (r recorderStub) Notification(listener, result string) { r[listener+"/"+result]++ }

func bufferLogger() (*logrus.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	return l, &buf
}

func TestIsDisconnect(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{ErrNoListener, true},
		{fmt.Errorf("hub: %w", ErrNoListener), true},
		{errors.New("Could not establish connection. Receiving end does not exist."), true},
		{errors.New("write tcp 127.0.0.1:1->127.0.0.1:2: use of closed network connection"), true},
		{errors.New("Extension context invalidated."), true},
		{errors.New("nats: connection closed"), true},
		{errors.New("payload too large"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsDisconnect(tt.err), "IsDisconnect(%v)", tt.err)
	}
}

func TestNotifyReportsOutcomes(t *testing.T) {
	logger, buf := bufferLogger()
	rec := recorderStub{}
	now := time.UnixMilli(1_700_000_000_000)
	b := New(logger, rec, func() time.Time { return now })

	ok := &stubListener{name: "ok"}
	gone := &stubListener{name: "gone", err: ErrNoListener}
	broken := &stubListener{name: "broken", err: errors.New("payload too large")}
	b.Register(ok)
	b.Register(gone)
	b.Register(broken)

	report := b.Notify(context.Background(), model.UpdateLogAdded, map[string]string{"id": "l1"})
	assert.Equal(t, Report{Delivered: 1, Disconnected: 1, Failed: 1}, report)
	require.Len(t, ok.got, 1)
	assert.Equal(t, model.UpdateLogAdded, ok.got[0].Type)
	assert.Equal(t, int64(1_700_000_000_000), ok.got[0].Timestamp)

	assert.Equal(t, 1, rec["gone/disconnected"])
	assert.Equal(t, 1, rec["broken/failed"])
	assert.True(t, strings.Contains(buf.String(), "payload too large"))
	assert.False(t, strings.Contains(buf.String(), "no listener"))
	assert.Equal(t, []string{"ok", "gone", "broken"}, b.Listeners())
}

func TestNotifyWithoutListeners(t *testing.T) {
	b := New(nil, nil, nil)
	assert.Equal(t, Report{}, b.Notify(context.Background(), model.UpdateSettingsUpdated, nil))
}

func TestRepeatedFailuresAreSuppressed(t *testing.T) {
	logger, buf := bufferLogger()
	now := time.Unix(0, 0)
	b := New(logger, nil, func() time.Time { return now })
	b.Register(&stubListener{name: "broken", err: errors.New("payload too large")})

	for i := 0; i < 5; i++ {
		b.Notify(context.Background(), model.UpdateLogAdded, nil)
	}
	assert.Equal(t, 1, strings.Count(buf.String(), "delivery failed"))
	assert.Zero(t, strings.Count(buf.String(), "suppressed"))

	now = now.Add(DefaultSuppressWindow)
	b.Notify(context.Background(), model.UpdateLogAdded, nil)
	assert.Equal(t, 2, strings.Count(buf.String(), "delivery failed"))
	assert.Equal(t, 1, strings.Count(buf.String(), "suppressed repeated delivery errors"))
	assert.True(t, strings.Contains(buf.String(), "repeats=4"))
}
