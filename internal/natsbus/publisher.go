// Package natsbus mirrors inspector notifications onto NATS subjects so
// other tools can follow a capture session.
package natsbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/tinytelemetry/pageinspect/internal/logging"
	"github.com/tinytelemetry/pageinspect/internal/model"
)

// DefaultSubjectPrefix is used when no prefix is configured.
const DefaultSubjectPrefix = "pageinspect"

// Event is the JSON document published for each notification.
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Source    string          `json:"source"`
	Subject   string          `json:"subject"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

type conn interface {
	Publish(subject string, data []byte) error
	Close()
}

// Publisher is a broadcast listener that publishes to <prefix>.<type>.
type Publisher struct {
	conn   conn
	prefix string
	logger *logrus.Logger
}

// Connect dials the NATS server at url. Reconnects are retried forever;
// messages published while disconnected are buffered by the client.
func Connect(url, prefix string, logger *logrus.Logger) (*Publisher, error) {
	logger = logging.OrDiscard(logger)
	nc, err := nats.Connect(url,
		nats.Name("pageinspect"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.WithError(err).Warn("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.WithField("url", c.ConnectedUrl()).Info("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("natsbus: connect %s: %w", url, err)
	}
	return newPublisher(nc, prefix, logger), nil
}

func newPublisher(c conn, prefix string, logger *logrus.Logger) *Publisher {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &Publisher{conn: c, prefix: prefix, logger: logging.OrDiscard(logger)}
}

// Name implements broadcast.Listener.
func (p *Publisher) Name() string { return "nats" }

// Subject returns the subject a notification type is published on.
func (p *Publisher) Subject(t model.UpdateType) string {
	return p.prefix + "." + string(t)
}

// Deliver implements broadcast.Listener.
func (p *Publisher) Deliver(_ context.Context, n model.Notification) error {
	subject := p.Subject(n.Type)
	event := Event{
		ID:        uuid.NewString(),
		Type:      string(n.Type),
		Source:    "pageinspect",
		Subject:   subject,
		Timestamp: time.UnixMilli(n.Timestamp).UTC(),
	}
	if n.Payload != nil {
		data, err := json.Marshal(n.Payload)
		if err != nil {
			return fmt.Errorf("natsbus: encode %s payload: %w", n.Type, err)
		}
		event.Data = data
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("natsbus: encode event: %w", err)
	}
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("natsbus: publish %s: %w", subject, err)
	}

	p.logger.WithFields(logrus.Fields{
		"subject":  subject,
		"event_id": event.ID,
	}).Debug("notification published")
	return nil
}

// Close closes the connection.
func (p *Publisher) Close() {
	p.conn.Close()
}
