// Package broker hides the message transport behind a small publish/subscribe surface.
// Subscribers log and acknowledge a message whatever the handler returns; handlers own retries.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
)

type Message struct {
	Topic string
	Key   []byte
	Body  []byte
}

type Handler func(ctx context.Context, msg Message) error

type Publisher interface {
	PublishEvent(ctx context.Context, topic, key string, event any) error
	Close() error
}

type Subscriber interface {
	// Subscribe blocks until ctx is done or the transport fails.
	Subscribe(ctx context.Context, topic string, h Handler) error
	Close() error
}

func encode(event any) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("broker: marshal event: %w", err)
	}
	return data, nil
}

type Noop struct{}

func (Noop) PublishEvent(context.Context, string, string, any) error { return nil }

func (Noop) Close() error { return nil }
