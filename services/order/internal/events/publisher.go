package events

import (
	"context"
	"time"

	"github.com/Skotchmaster/order_service/pkg/broker"
	"github.com/Skotchmaster/order_service/pkg/logging"
	"github.com/Skotchmaster/order_service/services/order/internal/domain"
	"github.com/Skotchmaster/order_service/services/order/internal/models"
)

const (
	OrderCreated       = "order_created"
	OrderStatusChanged = "order_status_changed"
	OrderPaid          = "order_paid"
)

// OrderPublisher emits order lifecycle events keyed by order id.
// Publish errors are logged and swallowed.
type OrderPublisher struct {
	Producer broker.Publisher
	Topic    string
	Now      func() time.Time
}

func (p *OrderPublisher) OrderCreated(ctx context.Context, order *models.Order) {
	p.publish(ctx, OrderCreated, order, nil)
}

func (p *OrderPublisher) StatusChanged(ctx context.Context, order *models.Order, from domain.OrderStatus) {
	p.publish(ctx, OrderStatusChanged, order, map[string]any{"previousStatus": from})
}

func (p *OrderPublisher) OrderPaid(ctx context.Context, order *models.Order) {
	extra := map[string]any{}
	if order.PaymentReference != nil {
		extra["paymentReference"] = *order.PaymentReference
	}
	p.publish(ctx, OrderPaid, order, extra)
}

func (p *OrderPublisher) publish(ctx context.Context, typ string, order *models.Order, extra map[string]any) {
	l := logging.FromContext(ctx).With("publisher", "order_events")

	now := time.Now
	if p.Now != nil {
		now = p.Now
	}

	event := map[string]any{
		"type":        typ,
		"orderID":     order.ID.String(),
		"status":      order.Status,
		"totalAmount": order.TotalAmount.String(),
		"occurredAt":  now().UTC().Format(time.RFC3339Nano),
	}
	for k, v := range extra {
		event[k] = v
	}

	if err := p.Producer.PublishEvent(ctx, p.Topic, order.ID.String(), event); err != nil {
		l.Error("publish_failed", "type", typ, "topic", p.Topic, "order_id", order.ID, "error", err)
	}
}
