package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/adb-analytics/apiserver/internal/mq"
)

// Publisher is the part of mq.MQ the dispatcher needs.
type Publisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// Dispatcher hands emails to the queue when one is configured and sends
// them inline otherwise.
type Dispatcher struct {
	mailer    Mailer
	publisher Publisher
	channel   string
}

func NewDispatcher(mailer Mailer, publisher Publisher, channel string) *Dispatcher {
	return &Dispatcher{mailer: mailer, publisher: publisher, channel: channel}
}

func (d *Dispatcher) Dispatch(ctx context.Context, email Email) error {
	if d.publisher == nil {
		return d.mailer.Send(ctx, email)
	}

	data, err := json.Marshal(email)
	if err != nil {
		return fmt.Errorf("encode email: %w", err)
	}
	if _, err := d.publisher.Publish(ctx, d.channel, data, map[string]string{"kind": "email"}); err != nil {
		return fmt.Errorf("publish email: %w", err)
	}
	return nil
}

// Handler returns the mq handler the worker subscribes with.
func Handler(mailer Mailer) mq.Handler {
	return func(ctx context.Context, msg mq.Message) error {
		var email Email
		if err := json.Unmarshal(msg.Data, &email); err != nil {
			log.Printf("notify: dropping malformed message %s: %v", msg.ID, err)
			return nil
		}
		return mailer.Send(ctx, email)
	}
}
