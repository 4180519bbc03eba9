// Package mq moves messages between the API and the worker over a broker.
// Deliveries are at-least-once; a message whose handler keeps failing is
// retried until its attempt count reaches the configured maximum and is
// then dead-lettered.
package mq

import (
	"context"
	"fmt"
	"strconv"

	"github.com/adb-analytics/apiserver/config"
)

const (
	DefaultMaxAttempts = 3

	// attemptHeader carries the delivery attempt on brokers that do not
	// count redeliveries themselves.
	attemptHeader = "x-attempt"
)

// Message represents a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
	// Attempt is 1 on first delivery.
	Attempt int
}

// Handler processes a message. Return an error to have it redelivered.
type Handler func(ctx context.Context, msg Message) error

// Backend defines the broker-agnostic operations used by the app.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// MQ wraps a backend with a stable API.
type MQ struct {
	backend Backend
}

func New(backend Backend) *MQ {
	return &MQ{backend: backend}
}

// Open builds the backend selected by cfg.Backend. It returns nil, nil
// when queueing is disabled.
func Open(ctx context.Context, cfg config.MQConfig) (*MQ, error) {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	switch cfg.Backend {
	case "", "none":
		return nil, nil
	case "memory":
		return New(NewMemoryBackend(0, maxAttempts)), nil
	case "rabbitmq":
		client, err := NewRabbitMQClient(cfg.RabbitMQ, maxAttempts)
		if err != nil {
			return nil, fmt.Errorf("rabbitmq: %w", err)
		}
		return New(client), nil
	case "pubsub":
		client, err := NewPubSubClient(ctx, cfg.PubSub, maxAttempts)
		if err != nil {
			return nil, fmt.Errorf("pubsub: %w", err)
		}
		return New(client), nil
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.Backend)
	}
}

// Publish sends a message to the named channel.
func (m *MQ) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	return m.backend.Publish(ctx, channel, data, attrs)
}

// Subscribe consumes messages from the named channel until ctx is done.
func (m *MQ) Subscribe(ctx context.Context, channel string, handler Handler) error {
	return m.backend.Subscribe(ctx, channel, handler)
}

func (m *MQ) Close() error {
	return m.backend.Close()
}

func deadLetterName(channel string) string {
	return channel + ".dead"
}

func parseAttempt(value string) int {
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 {
		return 1
	}
	return n
}
