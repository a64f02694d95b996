package notification

import (
	"context"
)

// Publisher emits task lifecycle events to other services
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

type nopPublisher struct{}

// NewNopPublisher returns a Publisher that drops every event
func NewNopPublisher() Publisher { return nopPublisher{} }

func (nopPublisher) Publish(ctx context.Context, event Event) error { return nil }
func (nopPublisher) Close() error                                   { return nil }
