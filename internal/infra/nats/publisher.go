package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"mathduel-service/internal/domain"

	natsgo "github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// conn is the subset of *natsgo.Conn the publisher needs.
type conn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// Publisher emits match lifecycle events on <prefix>.match.started and <prefix>.match.ended.
type Publisher struct {
	conn   conn
	prefix string
}

// Connect dials url and keeps reconnecting forever in the background.
func Connect(url, prefix string, logger *zap.Logger) (*Publisher, error) {
	nc, err := natsgo.Connect(
		url,
		natsgo.Name("mathduel-service"),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(time.Second),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return newPublisher(nc, prefix), nil
}

func newPublisher(c conn, prefix string) *Publisher {
	if prefix == "" {
		prefix = "mathduel"
	}
	return &Publisher{conn: c, prefix: prefix}
}

func (p *Publisher) Publish(ctx context.Context, event domain.MatchEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event.Kind, err)
	}
	return p.conn.Publish(p.Subject(event.Kind), data)
}

// Subject returns the subject events of kind are published on.
func (p *Publisher) Subject(kind domain.EventKind) string {
	return p.prefix + "." + string(kind)
}

// Close flushes pending events and closes the connection.
func (p *Publisher) Close() error {
	return p.conn.Drain()
}
