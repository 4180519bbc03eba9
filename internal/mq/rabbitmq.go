package mq

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/adb-analytics/apiserver/config"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMQClient publishes to and consumes from one queue per channel.
// Each queue dead-letters into "<channel>.dead" through the default exchange.
type RabbitMQClient struct {
	conn        *amqp.Connection
	ch          *amqp.Channel
	cfg         config.RabbitMQConfig
	maxAttempts int

	mu       sync.Mutex
	declared map[string]bool
}

func NewRabbitMQClient(cfg config.RabbitMQConfig, maxAttempts int) (*RabbitMQClient, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("RABBITMQ_URL is required")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if cfg.PrefetchCount > 0 {
		if err := ch.Qos(cfg.PrefetchCount, 0, false); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}

	return &RabbitMQClient{
		conn:        conn,
		ch:          ch,
		cfg:         cfg,
		maxAttempts: maxAttempts,
		declared:    make(map[string]bool),
	}, nil
}

func (r *RabbitMQClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if err := r.declare(channel); err != nil {
		return "", err
	}
	id := uuid.NewString()
	return id, r.publish(ctx, channel, id, data, attrs, 1)
}

func (r *RabbitMQClient) publish(ctx context.Context, queue, id string, data []byte, attrs map[string]string, attempt int) error {
	headers := amqp.Table{attemptHeader: fmt.Sprint(attempt)}
	for key, value := range attrs {
		headers[key] = value
	}

	mode := amqp.Transient
	if r.cfg.QueueDurable {
		mode = amqp.Persistent
	}
	return r.ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: mode,
		MessageId:    id,
		Headers:      headers,
		Body:         data,
	})
}

// Subscribe consumes the channel's queue until ctx is done. A failed
// delivery is republished with its attempt count raised and the original
// acked; once attempts are exhausted it is rejected into the dead queue.
func (r *RabbitMQClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if err := r.declare(channel); err != nil {
		return err
	}

	tag := "adb-worker-" + uuid.NewString()
	deliveries, err := r.ch.Consume(channel, tag, false, false, false, false, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = r.ch.Cancel(tag, false)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("rabbitmq delivery channel closed")
			}
			r.handle(ctx, channel, d, handler)
		}
	}
}

func (r *RabbitMQClient) handle(ctx context.Context, channel string, d amqp.Delivery, handler Handler) {
	attrs := headersToAttributes(d.Headers)
	msg := Message{ID: d.MessageId, Data: d.Body, Attributes: attrs, Attempt: parseAttempt(attrs[attemptHeader])}
	delete(attrs, attemptHeader)

	err := handler(ctx, msg)
	if err == nil {
		_ = d.Ack(false)
		return
	}
	if msg.Attempt >= r.maxAttempts {
		log.Printf("mq: dead-lettering %s after %d attempts: %v", msg.ID, msg.Attempt, err)
		_ = d.Reject(false)
		return
	}
	if pubErr := r.publish(ctx, channel, msg.ID, msg.Data, attrs, msg.Attempt+1); pubErr != nil {
		_ = d.Nack(false, true)
		return
	}
	_ = d.Ack(false)
}

func (r *RabbitMQClient) Close() error {
	_ = r.ch.Close()
	return r.conn.Close()
}

// declare creates the channel's queue and its dead queue once per client.
func (r *RabbitMQClient) declare(channel string) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("rabbitmq channel is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.declared[channel] {
		return nil
	}

	dead := deadLetterName(channel)
	if _, err := r.ch.QueueDeclare(dead, r.cfg.QueueDurable, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s: %w", dead, err)
	}
	args := amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": dead,
	}
	if _, err := r.ch.QueueDeclare(channel, r.cfg.QueueDurable, r.cfg.QueueAutoDelete, false, false, args); err != nil {
		return fmt.Errorf("declare %s: %w", channel, err)
	}
	r.declared[channel] = true
	return nil
}

func headersToAttributes(headers amqp.Table) map[string]string {
	attrs := make(map[string]string, len(headers))
	for key, value := range headers {
		switch v := value.(type) {
		case string:
			attrs[key] = v
		case []byte:
			attrs[key] = string(v)
		default:
			attrs[key] = fmt.Sprint(v)
		}
	}
	return attrs
}
