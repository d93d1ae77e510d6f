package broker

import (
	"context"
	"time"

	"github.com/Skotchmaster/order_service/pkg/logging"
)

// SubscribeForever keeps sub attached to topic until ctx is done. A transport
// failure is logged and the subscription is retried after delay.
func SubscribeForever(ctx context.Context, sub Subscriber, topic string, h Handler, delay time.Duration) {
	l := logging.FromContext(ctx).With("topic", topic)
	for {
		err := sub.Subscribe(ctx, topic, h)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			l.Error("subscription_failed", "reason", "resubscribing", "retry_in", delay, "error", err)
		} else {
			l.Warn("subscription_ended", "reason", "resubscribing", "retry_in", delay)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}
