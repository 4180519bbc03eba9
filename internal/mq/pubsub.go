package mq

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/adb-analytics/apiserver/config"
	"google.golang.org/api/option"
)

// Pub/Sub only accepts dead letter policies within these bounds.
const (
	pubsubMinAttempts = 5
	pubsubMaxAttempts = 100
)

// PubSubClient maps each channel to a topic with one subscription and a
// dead letter topic.
type PubSubClient struct {
	client      *pubsub.Client
	suffix      string
	maxAttempts int

	mu     sync.Mutex
	topics map[string]*pubsub.Topic
}

func NewPubSubClient(ctx context.Context, cfg config.PubSubConfig, maxAttempts int) (*PubSubClient, error) {
	if strings.TrimSpace(cfg.ProjectID) == "" {
		return nil, errors.New("PUBSUB_PROJECT_ID is required")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, err
	}

	suffix := cfg.SubscriptionSuffix
	if suffix == "" {
		suffix = "-sub"
	}
	return &PubSubClient{
		client:      client,
		suffix:      suffix,
		maxAttempts: maxAttempts,
		topics:      make(map[string]*pubsub.Topic),
	}, nil
}

func (p *PubSubClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	topic, err := p.topic(ctx, channel)
	if err != nil {
		return "", err
	}
	return topic.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs}).Get(ctx)
}

// Subscribe receives from the channel's subscription until ctx is done.
// Pub/Sub counts attempts itself; messages past maxAttempts are acked
// and dropped so the service-side dead letter policy only catches
// handler crashes.
func (p *PubSubClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	sub, err := p.subscription(ctx, channel)
	if err != nil {
		return err
	}

	return sub.Receive(ctx, func(ctx context.Context, m *pubsub.Message) {
		attempt := 1
		if m.DeliveryAttempt != nil {
			attempt = *m.DeliveryAttempt
		}
		err := handler(ctx, Message{ID: m.ID, Data: m.Data, Attributes: m.Attributes, Attempt: attempt})
		switch {
		case err == nil:
			m.Ack()
		case attempt >= p.maxAttempts:
			log.Printf("mq: dropping %s after %d attempts: %v", m.ID, attempt, err)
			m.Ack()
		default:
			m.Nack()
		}
	})
}

func (p *PubSubClient) Close() error {
	p.mu.Lock()
	for _, topic := range p.topics {
		topic.Stop()
	}
	p.topics = make(map[string]*pubsub.Topic)
	p.mu.Unlock()
	return p.client.Close()
}

func (p *PubSubClient) topic(ctx context.Context, name string) (*pubsub.Topic, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errors.New("pubsub channel is required")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if topic, ok := p.topics[name]; ok {
		return topic, nil
	}

	topic := p.client.Topic(name)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		if topic, err = p.client.CreateTopic(ctx, name); err != nil {
			return nil, err
		}
	}
	p.topics[name] = topic
	return topic, nil
}

func (p *PubSubClient) subscription(ctx context.Context, channel string) (*pubsub.Subscription, error) {
	topic, err := p.topic(ctx, channel)
	if err != nil {
		return nil, err
	}
	dead, err := p.topic(ctx, deadLetterName(channel))
	if err != nil {
		return nil, err
	}

	sub := p.client.Subscription(channel + p.suffix)
	exists, err := sub.Exists(ctx)
	if err != nil || exists {
		return sub, err
	}

	attempts := p.maxAttempts
	if attempts < pubsubMinAttempts {
		attempts = pubsubMinAttempts
	}
	if attempts > pubsubMaxAttempts {
		attempts = pubsubMaxAttempts
	}
	return p.client.CreateSubscription(ctx, channel+p.suffix, pubsub.SubscriptionConfig{
		Topic:       topic,
		AckDeadline: 30 * time.Second,
		DeadLetterPolicy: &pubsub.DeadLetterPolicy{
			DeadLetterTopic:     dead.String(),
			MaxDeliveryAttempts: attempts,
		},
		RetryPolicy: &pubsub.RetryPolicy{
			MinimumBackoff: 10 * time.Second,
			MaximumBackoff: 10 * time.Minute,
		},
	})
}
