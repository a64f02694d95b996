package notification

import (
	"context"
	"fmt"
	"log"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/google/uuid"
	"google.golang.org/api/option"
)

const originAttribute = "origin"

// PubSubPublisher publishes task events to a Google Cloud Pub/Sub topic.
// Messages carry the publishing instance's origin so Listen can skip them.
type PubSubPublisher struct {
	client    *pubsub.Client
	topic     *pubsub.Topic
	topicName string
	origin    string
}

func NewPubSubPublisher(ctx context.Context, projectID, topicName, credentialsFile string) (*PubSubPublisher, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}

	topic := client.Topic(topicName)
	exists, err := topic.Exists(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to check topic %s: %w", topicName, err)
	}
	if !exists {
		if topic, err = client.CreateTopic(ctx, topicName); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to create topic %s: %w", topicName, err)
		}
		log.Printf("[PubSub] Created topic: %s", topicName)
	}

	return &PubSubPublisher{client: client, topic: topic, topicName: topicName, origin: uuid.New().String()}, nil
}

func (p *PubSubPublisher) Publish(ctx context.Context, event Event) error {
	msg, err := p.message(event)
	if err != nil {
		return err
	}
	result := p.topic.Publish(ctx, msg)
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.Type, err)
	}
	return nil
}

// Listen receives events from the subscription subName, creating it on the
// topic when missing, and hands each one to handle. Blocks until ctx is done.
func (p *PubSubPublisher) Listen(ctx context.Context, subName string, handle func(Event)) error {
	sub := p.client.Subscription(subName)
	exists, err := sub.Exists(ctx)
	if err != nil {
		return fmt.Errorf("failed to check subscription %s: %w", subName, err)
	}
	if !exists {
		sub, err = p.client.CreateSubscription(ctx, subName, pubsub.SubscriptionConfig{
			Topic:       p.topic,
			AckDeadline: 10 * time.Second,
		})
		if err != nil {
			return fmt.Errorf("failed to create subscription %s: %w", subName, err)
		}
		log.Printf("[PubSub] Created subscription: %s", subName)
	}

	log.Printf("[PubSub] Listening for task events on subscription: %s", subName)
	return sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		defer msg.Ack()
		if event, ok := p.accept(msg); ok {
			handle(event)
		}
	})
}

func (p *PubSubPublisher) message(event Event) (*pubsub.Message, error) {
	data, err := event.Encode()
	if err != nil {
		return nil, err
	}
	return &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"type":          string(event.Type),
			"user_id":       event.UserID,
			originAttribute: p.origin,
		},
	}, nil
}

// accept decodes msg unless this instance published it
func (p *PubSubPublisher) accept(msg *pubsub.Message) (Event, bool) {
	if p.origin != "" && msg.Attributes[originAttribute] == p.origin {
		return Event{}, false
	}
	event, err := DecodeEvent(msg.Data)
	if err != nil {
		log.Printf("[PubSub] Dropping malformed message %s: %v", msg.ID, err)
		return Event{}, false
	}
	return event, true
}

func (p *PubSubPublisher) Close() error {
	p.topic.Stop()
	return p.client.Close()
}
