package broker

import (
	"context"
	"sync"
)

// Memory is an in-process broker. Published messages are delivered to the
// subscriber of the same topic in publish order.
type Memory struct {
	mu     sync.Mutex
	queues map[string]chan Message
}

func NewMemory() *Memory {
	return &Memory{queues: map[string]chan Message{}}
}

func (m *Memory) queue(topic string) chan Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.queues[topic]
	if !ok {
		q = make(chan Message, 256)
		m.queues[topic] = q
	}
	return q
}

func (m *Memory) PublishEvent(ctx context.Context, topic, key string, event any) error {
	body, err := encode(event)
	if err != nil {
		return err
	}
	return m.PublishRaw(ctx, topic, key, body)
}

func (m *Memory) PublishRaw(ctx context.Context, topic, key string, body []byte) error {
	select {
	case m.queue(topic) <- Message{Topic: topic, Key: []byte(key), Body: body}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Messages drains whatever is currently queued on topic without blocking.
func (m *Memory) Messages(topic string) []Message {
	q := m.queue(topic)
	var out []Message
	for {
		select {
		case msg := <-q:
			out = append(out, msg)
		default:
			return out
		}
	}
}

func (m *Memory) Subscribe(ctx context.Context, topic string, h Handler) error {
	q := m.queue(topic)
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-q:
			_ = h(ctx, msg)
		}
	}
}

func (m *Memory) Close() error { return nil }
