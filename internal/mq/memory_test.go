package mq

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/adb-analytics/apiserver/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBackend_PublishSubscribe(t *testing.T) {
	queue := New(NewMemoryBackend(8, 3))
	defer queue.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	id, err := queue.Publish(ctx, "emails", []byte(`{"to":"a@b.co"}`), map[string]string{"kind": "email"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	received := make(chan Message, 1)
	go func() {
		_ = queue.Subscribe(ctx, "emails", func(ctx context.Context, msg Message) error {
			received <- msg
			return nil
		})
	}()

	select {
	case msg := <-received:
		assert.Equal(t, id, msg.ID)
		assert.Equal(t, "email", msg.Attributes["kind"])
	case <-ctx.Done():
		t.Fatal("message not delivered")
	}
}

func TestMemoryBackend_DeadLettersAfterMaxAttempts(t *testing.T) {
	backend := NewMemoryBackend(8, 2)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := backend.Publish(ctx, "emails", []byte("x"), nil)
	require.NoError(t, err)

	attempts := make(chan int, 4)
	go func() {
		_ = backend.Subscribe(ctx, "emails", func(ctx context.Context, msg Message) error {
			attempts <- msg.Attempt
			return errors.New("smtp down")
		})
	}()

	for want := 1; want <= 2; want++ {
		select {
		case got := <-attempts:
			assert.Equal(t, want, got)
		case <-ctx.Done():
			t.Fatalf("expected delivery attempt %d", want)
		}
	}

	select {
	case <-attempts:
		t.Fatal("message delivered past max attempts")
	case <-time.After(100 * time.Millisecond):
	}

	dead := backend.DeadLetters("emails")
	require.Len(t, dead, 1)
	assert.Equal(t, []byte("x"), dead[0].Data)
	assert.Equal(t, 2, dead[0].Attempt)
}

func TestMemoryBackend_SucceedsOnRetry(t *testing.T) {
	backend := NewMemoryBackend(8, 3)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := backend.Publish(ctx, "emails", []byte("x"), nil)
	require.NoError(t, err)

	done := make(chan int, 1)
	go func() {
		_ = backend.Subscribe(ctx, "emails", func(ctx context.Context, msg Message) error {
			if msg.Attempt < 2 {
				return errors.New("transient")
			}
			done <- msg.Attempt
			return nil
		})
	}()

	select {
	case attempt := <-done:
		assert.Equal(t, 2, attempt)
	case <-ctx.Done():
		t.Fatal("message not redelivered")
	}
	assert.Empty(t, backend.DeadLetters("emails"))
}

func TestMemoryBackend_Closed(t *testing.T) {
	backend := NewMemoryBackend(1, 1)
	require.NoError(t, backend.Close())

	_, err := backend.Publish(context.Background(), "emails", nil, nil)
	assert.Error(t, err)
}

func TestOpen_None(t *testing.T) {
	queue, err := Open(context.Background(), config.MQConfig{Backend: "none"})
	require.NoError(t, err)
	assert.Nil(t, queue)

	_, err = Open(context.Background(), config.MQConfig{Backend: "kafka"})
	assert.Error(t, err)

	queue, err = Open(context.Background(), config.MQConfig{Backend: "memory"})
	require.NoError(t, err)
	assert.NotNil(t, queue)
	assert.NoError(t, queue.Close())
}

func TestOpen_RabbitMQRequiresURL(t *testing.T) {
	_, err := Open(context.Background(), config.MQConfig{Backend: "rabbitmq"})
	assert.ErrorContains(t, err, "RABBITMQ_URL")
}

func TestParseAttempt(t *testing.T) {
	assert.Equal(t, 1, parseAttempt(""))
	assert.Equal(t, 1, parseAttempt("zero"))
	assert.Equal(t, 1, parseAttempt("0"))
	assert.Equal(t, 4, parseAttempt("4"))
}

func TestMemoryBackend_PublishDoesNotBlockWhenFull(t *testing.T) {
	backend := NewMemoryBackend(1, 3)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := backend.Publish(ctx, "emails", []byte("first"), nil)
	require.NoError(t, err)

	start := time.Now()
	id, err := backend.Publish(ctx, "emails", []byte("second"), nil)
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Less(t, time.Since(start), time.Second)

	dead := backend.DeadLetters("emails")
	require.Len(t, dead, 1)
	assert.Equal(t, id, dead[0].ID)
	assert.Equal(t, []byte("second"), dead[0].Data)
}
