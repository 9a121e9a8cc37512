package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	nats "github.com/nats-io/nats.go"
)

// flushTimeout applies when the caller's context has no deadline.
const flushTimeout = 2 * time.Second

// NATSPublisher publishes events on "<prefix>.<event_type>" subjects.
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
	owned  bool
}

// NewNATSPublisher wraps an existing connection. The caller keeps ownership of conn.
func NewNATSPublisher(conn *nats.Conn, prefix string) *NATSPublisher {
	return &NATSPublisher{conn: conn, prefix: prefix}
}

// DialNATS connects to url and returns a publisher that closes the connection on Close.
func DialNATS(url, prefix string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url, nats.Name("auction-engine"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("events: connect nats %s: %w", url, err)
	}
	return &NATSPublisher{conn: conn, prefix: prefix, owned: true}, nil
}

// Subject returns the subject an event type is published on.
func (p *NATSPublisher) Subject(t Type) string {
	if p.prefix == "" {
		return string(t)
	}
	return p.prefix + "." + string(t)
}

func (p *NATSPublisher) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("events: marshal %s: %w", event.Type, err)
	}
	if err := p.conn.Publish(p.Subject(event.Type), body); err != nil {
		return fmt.Errorf("events: publish %s: %w", event.Type, err)
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, flushTimeout)
		defer cancel()
	}
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("events: flush %s: %w", event.Type, err)
	}
	return nil
}

func (p *NATSPublisher) Close() error {
	if p.owned && p.conn != nil {
		return p.conn.Drain()
	}
	return nil
}
