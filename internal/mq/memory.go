package mq

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/google/uuid"
)

// ErrQueueFull is returned by MemoryBackend.Publish when the channel
// buffer is full. The message is dead-lettered instead of blocking.
var ErrQueueFull = errors.New("memory queue full")

// MemoryBackend is an in-process queue. Messages published before a
// subscriber attaches are buffered per channel. Dead-lettered messages
// are kept and can be read with DeadLetters.
type MemoryBackend struct {
	mu          sync.Mutex
	queues      map[string]chan Message
	dead        map[string][]Message
	closed      bool
	size        int
	maxAttempts int
}

func NewMemoryBackend(size, maxAttempts int) *MemoryBackend {
	if size <= 0 {
		size = 64
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &MemoryBackend{
		queues:      make(map[string]chan Message),
		dead:        make(map[string][]Message),
		size:        size,
		maxAttempts: maxAttempts,
	}
}

func (b *MemoryBackend) queue(channel string) (chan Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, errors.New("memory queue closed")
	}
	q, ok := b.queues[channel]
	if !ok {
		q = make(chan Message, b.size)
		b.queues[channel] = q
	}
	return q, nil
}

func (b *MemoryBackend) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	q, err := b.queue(channel)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	msg := Message{ID: uuid.NewString(), Data: data, Attributes: attrs, Attempt: 1}
	select {
	case q <- msg:
		return msg.ID, nil
	default:
		b.deadLetter(channel, msg)
		return msg.ID, ErrQueueFull
	}
}

// Subscribe delivers messages until ctx is cancelled. A failed message
// goes to the back of the channel until it runs out of attempts.
func (b *MemoryBackend) Subscribe(ctx context.Context, channel string, handler Handler) error {
	q, err := b.queue(channel)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-q:
			err := handler(ctx, msg)
			if err == nil {
				continue
			}
			if msg.Attempt >= b.maxAttempts {
				log.Printf("mq: dead-lettering %s after %d attempts: %v", msg.ID, msg.Attempt, err)
				b.deadLetter(channel, msg)
				continue
			}
			msg.Attempt++
			select {
			case q <- msg:
			default:
				b.deadLetter(channel, msg)
			}
		}
	}
}

func (b *MemoryBackend) deadLetter(channel string, msg Message) {
	b.mu.Lock()
	b.dead[channel] = append(b.dead[channel], msg)
	b.mu.Unlock()
}

// DeadLetters returns the messages that exhausted their attempts on channel.
func (b *MemoryBackend) DeadLetters(channel string) []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Message(nil), b.dead[channel]...)
}

func (b *MemoryBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}
