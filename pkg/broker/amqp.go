package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Skotchmaster/order_service/pkg/logging"
)

// Rabbit publishes through the default exchange with the topic as queue name,
// so publisher and consumer only have to agree on durable queue names.
type Rabbit struct {
	url      string
	consumer string

	connMu sync.Mutex
	conn   *amqp.Connection

	mu       sync.Mutex
	pubCh    *amqp.Channel
	declared map[string]bool
}

func DialRabbit(url, consumerTag string) (*Rabbit, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: dial: %w", err)
	}
	return &Rabbit{url: url, conn: conn, consumer: consumerTag, declared: map[string]bool{}}, nil
}

// channel opens a channel, redialing first if the connection was lost.
func (r *Rabbit) channel() (*amqp.Channel, error) {
	r.connMu.Lock()
	defer r.connMu.Unlock()

	if r.conn.IsClosed() {
		conn, err := amqp.Dial(r.url)
		if err != nil {
			return nil, fmt.Errorf("rabbitmq: redial: %w", err)
		}
		r.conn = conn
	}
	ch, err := r.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: open channel: %w", err)
	}
	return ch, nil
}

func declareQueue(ch *amqp.Channel, name string) error {
	_, err := ch.QueueDeclare(
		name,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	return err
}

func (r *Rabbit) PublishEvent(ctx context.Context, topic, key string, event any) error {
	body, err := encode(event)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pubCh == nil || r.pubCh.IsClosed() {
		ch, err := r.channel()
		if err != nil {
			return err
		}
		r.pubCh = ch
		r.declared = map[string]bool{}
	}
	if !r.declared[topic] {
		if err := declareQueue(r.pubCh, topic); err != nil {
			return fmt.Errorf("rabbitmq: declare %s: %w", topic, err)
		}
		r.declared[topic] = true
	}

	pubCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	err = r.pubCh.PublishWithContext(pubCtx, "", topic, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    key,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("rabbitmq: publish to %s: %w", topic, err)
	}
	return nil
}

func (r *Rabbit) Subscribe(ctx context.Context, topic string, h Handler) error {
	ch, err := r.channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := declareQueue(ch, topic); err != nil {
		return fmt.Errorf("rabbitmq: declare %s: %w", topic, err)
	}
	if err := ch.Qos(16, 0, false); err != nil {
		return fmt.Errorf("rabbitmq: qos: %w", err)
	}

	msgs, err := ch.Consume(
		topic,
		r.consumer,
		false, // autoAck
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("rabbitmq: consume %s: %w", topic, err)
	}

	l := logging.FromContext(ctx).With("broker", "rabbitmq", "topic", topic)
	l.Info("consumer_started")

	for {
		select {
		case <-ctx.Done():
			l.Info("consumer_stopped")
			return nil
		case d, ok := <-msgs:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("rabbitmq: delivery channel for %s closed", topic)
			}

			ml := l.With("delivery_tag", d.DeliveryTag, "redelivered", d.Redelivered)
			hctx := logging.IntoContext(ctx, ml)
			if err := h(hctx, Message{Topic: topic, Key: []byte(d.MessageId), Body: d.Body}); err != nil {
				ml.Error("message_handler_failed", "error", err)
			}
			if err := d.Ack(false); err != nil {
				ml.Error("ack_failed", "error", err)
			}
		}
	}
}

func (r *Rabbit) Close() error {
	r.mu.Lock()
	if r.pubCh != nil {
		_ = r.pubCh.Close()
	}
	r.mu.Unlock()

	r.connMu.Lock()
	defer r.connMu.Unlock()
	if r.conn.IsClosed() {
		return nil
	}
	return r.conn.Close()
}
