package notification

import (
	"context"
	"fmt"
	"log"

	"github.com/nats-io/nats.go"
)

// natsConn is the part of *nats.Conn used by NATSPublisher
type natsConn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// NATSPublisher publishes task events on <subject>.<event type>
type NATSPublisher struct {
	conn    natsConn
	subject string
}

func NewNATSPublisher(url, subject string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url, nats.Name("plantpal-backend"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", url, err)
	}
	log.Printf("[NATS] Connected to %s", nc.ConnectedUrl())
	return &NATSPublisher{conn: nc, subject: subject}, nil
}

func (p *NATSPublisher) Subject(eventType EventType) string {
	return p.subject + "." + string(eventType)
}

func (p *NATSPublisher) Publish(ctx context.Context, event Event) error {
	// nats Publish does not take a context
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before publish: %w", err)
	}
	data, err := event.Encode()
	if err != nil {
		return err
	}
	if err := p.conn.Publish(p.Subject(event.Type), data); err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}
