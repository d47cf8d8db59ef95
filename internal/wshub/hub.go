// Package wshub streams inspector notifications to browser panels over
// websockets.
package wshub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/tinytelemetry/pageinspect/internal/broadcast"
	"github.com/tinytelemetry/pageinspect/internal/logging"
	"github.com/tinytelemetry/pageinspect/internal/model"
)

const (
	sendBuffer = 64
	writeWait  = 5 * time.Second
)

type client struct {
	id   uint64
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// Hub tracks connected panels and implements broadcast.Listener.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *logrus.Logger

	mu      sync.Mutex
	clients map[uint64]*client
	nextID  uint64
	closed  bool

	wg sync.WaitGroup
}

// New creates an empty hub.
func New(logger *logrus.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger:  logging.OrDiscard(logger),
		clients: make(map[uint64]*client),
	}
}

// Name implements broadcast.Listener.
func (h *Hub) Name() string { return "websocket" }

// ServeWS upgrades the request and streams notifications until the peer
// goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Debug("websocket upgrade failed")
		return
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.nextID++
	c := &client{
		id:   h.nextID,
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
	h.clients[c.id] = c
	h.wg.Add(2)
	h.mu.Unlock()

	h.logger.WithField("client", c.id).Debug("websocket client connected")
	go h.readPump(c)
	go h.writePump(c)
}

// readPump only watches for the peer closing the connection.
func (h *Hub) readPump(c *client) {
	defer h.wg.Done()
	defer h.remove(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	defer h.wg.Done()
	defer h.remove(c)
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c.id]
	delete(h.clients, c.id)
	h.mu.Unlock()
	c.close()
	if ok {
		h.logger.WithField("client", c.id).Debug("websocket client disconnected")
	}
}

// Clients returns the number of connected panels.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Deliver implements broadcast.Listener. A client whose queue is full is
// dropped rather than blocking the caller.
func (h *Hub) Deliver(_ context.Context, n model.Notification) error {
	h.mu.Lock()
	if len(h.clients) == 0 {
		h.mu.Unlock()
		return broadcast.ErrNoListener
	}
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	msg, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("wshub: encode %s: %w", n.Type, err)
	}

	for _, c := range clients {
		select {
		case <-c.done:
		case c.send <- msg:
		default:
			h.logger.WithField("client", c.id).Warn("websocket client too slow, dropping")
			h.remove(c)
		}
	}
	return nil
}

// Close disconnects every client and waits for their pumps to exit.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
	h.wg.Wait()
}

// ServeHTTP lets the hub be mounted directly as a handler.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) { h.ServeWS(w, r) }
