package mq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/elasticdoctor/webapp/config"
	"google.golang.org/api/option"
)

const (
	pubsubAckDeadline     = 30 * time.Second
	pubsubMaxOutstanding  = 10
	pubsubMinRetryBackoff = 10 * time.Second
	pubsubMaxRetryBackoff = 10 * time.Minute
)

// pubsubBackend maps each channel to a topic of the same name and one
// shared subscription named channel + suffix.
type pubsubBackend struct {
	client *pubsub.Client
	suffix string

	mu     sync.Mutex
	topics map[string]*pubsub.Topic
}

func newPubSubBackend(ctx context.Context, cfg config.PubSubConfig) (*pubsubBackend, error) {
	if cfg.ProjectID == "" {
		return nil, errors.New("PUBSUB_PROJECT_ID is required")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("pubsub client: %w", err)
	}

	suffix := cfg.SubscriptionSuffix
	if suffix == "" {
		suffix = "-sub"
	}
	return &pubsubBackend{client: client, suffix: suffix, topics: map[string]*pubsub.Topic{}}, nil
}

// Publish blocks until the server assigns a message id.
func (b *pubsubBackend) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	topic, err := b.topic(ctx, channel)
	if err != nil {
		return "", err
	}
	return topic.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs}).Get(ctx)
}

// Subscribe receives until ctx is done. A handler error nacks the message
// and the subscription retry policy schedules redelivery.
func (b *pubsubBackend) Subscribe(ctx context.Context, channel string, handler Handler) error {
	topic, err := b.topic(ctx, channel)
	if err != nil {
		return err
	}
	sub, err := b.subscription(ctx, channel+b.suffix, topic)
	if err != nil {
		return err
	}
	sub.ReceiveSettings.MaxOutstandingMessages = pubsubMaxOutstanding

	return sub.Receive(ctx, func(ctx context.Context, m *pubsub.Message) {
		if err := handler(ctx, Message{ID: m.ID, Data: m.Data, Attributes: m.Attributes}); err != nil {
			m.Nack()
			return
		}
		m.Ack()
	})
}

func (b *pubsubBackend) Close() error {
	b.mu.Lock()
	for _, t := range b.topics {
		t.Stop()
	}
	b.mu.Unlock()
	return b.client.Close()
}

func (b *pubsubBackend) topic(ctx context.Context, name string) (*pubsub.Topic, error) {
	if name == "" {
		return nil, errors.New("channel is required")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if t, ok := b.topics[name]; ok {
		return t, nil
	}

	t := b.client.Topic(name)
	exists, err := t.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("topic %s: %w", name, err)
	}
	if !exists {
		if t, err = b.client.CreateTopic(ctx, name); err != nil {
			return nil, fmt.Errorf("create topic %s: %w", name, err)
		}
	}
	b.topics[name] = t
	return t, nil
}

func (b *pubsubBackend) subscription(ctx context.Context, name string, topic *pubsub.Topic) (*pubsub.Subscription, error) {
	sub := b.client.Subscription(name)
	exists, err := sub.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("subscription %s: %w", name, err)
	}
	if exists {
		return sub, nil
	}
	return b.client.CreateSubscription(ctx, name, pubsub.SubscriptionConfig{
		Topic:       topic,
		AckDeadline: pubsubAckDeadline,
		RetryPolicy: &pubsub.RetryPolicy{
			MinimumBackoff: pubsubMinRetryBackoff,
			MaximumBackoff: pubsubMaxRetryBackoff,
		},
	})
}
