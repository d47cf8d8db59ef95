package wshub

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tinytelemetry/pageinspect/internal/broadcast"
	"github.com/tinytelemetry/pageinspect/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func waitClients(t *testing.T, h *Hub, want int) {
	t.Helper()
	require.Eventually(t, func() bool { return h.Clients() == want }, 2*time.Second, 5*time.Millisecond)
}

func TestDeliverWithoutClients(t *testing.T) {
	h := New(nil)
	defer h.Close()

	err := h.Deliver(context.Background(), model.Notification{Type: model.UpdateLogAdded})
	assert.ErrorIs(t, err, broadcast.ErrNoListener)
	assert.True(t, broadcast.IsDisconnect(err))
}

func TestDeliverReachesClient(t *testing.T) {
	h := New(nil)
	srv := httptest.NewServer(h)
	defer srv.Close()
	defer h.Close()

	conn := dial(t, srv)
	defer conn.Close()
	waitClients(t, h, 1)

	require.NoError(t, h.Deliver(context.Background(), model.Notification{
		Type:      model.UpdateRecordingToggled,
		Payload:   map[string]bool{"isRecording": false},
		Timestamp: 42,
	}))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var got model.Notification
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, model.UpdateRecordingToggled, got.Type)
	assert.Equal(t, int64(42), got.Timestamp)
}

func TestClientDisconnectIsRemoved(t *testing.T) {
	h := New(nil)
	srv := httptest.NewServer(h)
	defer srv.Close()
	defer h.Close()

	conn := dial(t, srv)
	waitClients(t, h, 1)
	require.NoError(t, conn.Close())
	waitClients(t, h, 0)

	err := h.Deliver(context.Background(), model.Notification{Type: model.UpdateLogsCleared})
	assert.ErrorIs(t, err, broadcast.ErrNoListener)
}

func TestCloseDisconnectsClients(t *testing.T) {
	h := New(nil)
	srv := httptest.NewServer(h)
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()
	waitClients(t, h, 1)

	h.Close()
	assert.Equal(t, 0, h.Clients())

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}
