package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Skotchmaster/order_service/pkg/broker"
	"github.com/Skotchmaster/order_service/pkg/logging"
	"github.com/Skotchmaster/order_service/services/order/internal/service"
)

var ErrInvalidPayload = errors.New("invalid payment payload")

// paymentSucceededPayload accepts both the payments service field names
// (stripeOrderId, receipUrl) and the spelled-out ones.
type paymentSucceededPayload struct {
	StripeOrderID    string `json:"stripeOrderId"`
	PaymentReference string `json:"paymentReference"`
	OrderID          string `json:"orderId"`
	ReceipURL        string `json:"receipUrl"`
	ReceiptURL       string `json:"receiptUrl"`
}

func ParsePaymentSucceeded(body []byte) (service.PaymentSucceeded, error) {
	var p paymentSucceededPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return service.PaymentSucceeded{}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	id, err := uuid.Parse(p.OrderID)
	if err != nil {
		return service.PaymentSucceeded{}, fmt.Errorf("%w: orderId %q: %w", ErrInvalidPayload, p.OrderID, err)
	}

	ev := service.PaymentSucceeded{
		OrderID:    id,
		Reference:  firstNonEmpty(p.StripeOrderID, p.PaymentReference),
		ReceiptURL: firstNonEmpty(p.ReceipURL, p.ReceiptURL),
	}
	if ev.Reference == "" {
		return service.PaymentSucceeded{}, fmt.Errorf("%w: payment reference missing for order %s", ErrInvalidPayload, id)
	}
	return ev, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

type PaymentService interface {
	OnPaymentSucceeded(ctx context.Context, p service.PaymentSucceeded) error
}

const (
	DefaultAttempts = 3
	DefaultBackoff  = 200 * time.Millisecond
)

// PaymentHandler applies payment.succeeded messages. Only persistence
// failures are retried; everything else is final for the message.
type PaymentHandler struct {
	Svc      PaymentService
	Attempts int
	Backoff  time.Duration
}

func (h *PaymentHandler) Handle(ctx context.Context, msg broker.Message) error {
	l := logging.FromContext(ctx).With("handler", "events.payment_succeeded")

	ev, err := ParsePaymentSucceeded(msg.Body)
	if err != nil {
		l.Warn("payment_event_dropped", "reason", "invalid payload", "error", err)
		return err
	}
	return h.Apply(logging.IntoContext(ctx, l), ev)
}

// Apply runs the service call with retries. It is shared by the broker and webhook paths.
func (h *PaymentHandler) Apply(ctx context.Context, ev service.PaymentSucceeded) error {
	l := logging.FromContext(ctx)

	attempts := h.Attempts
	if attempts < 1 {
		attempts = DefaultAttempts
	}
	backoff := h.Backoff
	if backoff <= 0 {
		backoff = DefaultBackoff
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = h.Svc.OnPaymentSucceeded(ctx, ev)
		if err == nil || !errors.Is(err, service.ErrPersistence) {
			break
		}
		if attempt == attempts {
			break
		}

		l.Warn("payment_event_retry", "order_id", ev.OrderID, "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff * time.Duration(attempt)):
		}
	}

	if err != nil {
		l.Error("payment_event_failed", "order_id", ev.OrderID, "reason", service.Kind(err), "error", err)
		return err
	}
	return nil
}
