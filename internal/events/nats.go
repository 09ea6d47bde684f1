package events

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
)

// NATSPublisher publishes ingest events over NATS JetStream. JetStream gives
// consumers persistence and replay, which matters because an ingest event
// missed is a partition an indexer never learns about.
type NATSPublisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// newNATSPublisher connects to a NATS server and enables JetStream.
func newNATSPublisher(url, username, password string) (*NATSPublisher, error) {
	var opts []nats.Option
	if username != "" {
		opts = append(opts, nats.UserInfo(username, password))
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("events: connect to NATS: %w", err)
	}

	return newNATSPublisherWithConn(conn)
}

// newNATSPublisherWithConn wraps an existing connection (used in tests with
// an embedded server).
func newNATSPublisherWithConn(conn *nats.Conn) (*NATSPublisher, error) {
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("events: create JetStream context: %w", err)
	}

	return &NATSPublisher{conn: conn, js: js}, nil
}

// Publish publishes one event synchronously so a broker rejection surfaces
// to the caller instead of a background error handler.
func (p *NATSPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	if _, err := p.js.Publish(subject, data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("events: publish to subject %s: %w", subject, err)
	}
	return nil
}

// Close closes the NATS connection.
func (p *NATSPublisher) Close() error {
	p.conn.Close()
	return nil
}
