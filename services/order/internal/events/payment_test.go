package events

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/order_service/pkg/broker"
	"github.com/Skotchmaster/order_service/services/order/internal/service"
)

type fakePaymentService struct {
	errs  []error
	calls []service.PaymentSucceeded
}

func (f *fakePaymentService) OnPaymentSucceeded(_ context.Context, p service.PaymentSucceeded) error {
	f.calls = append(f.calls, p)
	if len(f.errs) == 0 {
		return nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return err
}

func TestParsePaymentSucceeded(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name    string
		body    string
		ref     string
		receipt string
		wantErr bool
	}{
		{
			name:    "payments service field names",
			body:    fmt.Sprintf(`{"stripeOrderId":"ch_1","orderId":%q,"receipUrl":"https://r/1"}`, id),
			ref:     "ch_1",
			receipt: "https://r/1",
		},
		{
			name:    "spelled out field names",
			body:    fmt.Sprintf(`{"paymentReference":"pi_2","orderId":%q,"receiptUrl":"https://r/2"}`, id),
			ref:     "pi_2",
			receipt: "https://r/2",
		},
		{name: "not json", body: `{`, wantErr: true},
		{name: "bad order id", body: `{"stripeOrderId":"ch_1","orderId":"42"}`, wantErr: true},
		{name: "no reference", body: fmt.Sprintf(`{"orderId":%q}`, id), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := ParsePaymentSucceeded([]byte(tt.body))
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidPayload), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, id, ev.OrderID)
			assert.Equal(t, tt.ref, ev.Reference)
			assert.Equal(t, tt.receipt, ev.ReceiptURL)
		})
	}
}

func TestPaymentHandler_RetriesPersistenceFailures(t *testing.T) {
	svc := &fakePaymentService{errs: []error{
		fmt.Errorf("%w: db gone", service.ErrPersistence),
		fmt.Errorf("%w: db gone", service.ErrPersistence),
	}}
	h := &PaymentHandler{Svc: svc, Attempts: 3, Backoff: time.Millisecond}

	require.NoError(t, h.Apply(context.Background(), service.PaymentSucceeded{OrderID: uuid.New(), Reference: "ch"}))
	assert.Len(t, svc.calls, 3)
}

func TestPaymentHandler_GivesUpAfterAttempts(t *testing.T) {
	persist := fmt.Errorf("%w: db gone", service.ErrPersistence)
	svc := &fakePaymentService{errs: []error{persist, persist, persist, persist}}
	h := &PaymentHandler{Svc: svc, Attempts: 3, Backoff: time.Millisecond}

	err := h.Apply(context.Background(), service.PaymentSucceeded{OrderID: uuid.New(), Reference: "ch"})
	assert.True(t, errors.Is(err, service.ErrPersistence))
	assert.Len(t, svc.calls, 3)
}

func TestPaymentHandler_DoesNotRetryOtherFailures(t *testing.T) {
	svc := &fakePaymentService{errs: []error{fmt.Errorf("%w: order x", service.ErrNotFound)}}
	h := &PaymentHandler{Svc: svc, Backoff: time.Millisecond}

	err := h.Apply(context.Background(), service.PaymentSucceeded{OrderID: uuid.New(), Reference: "ch"})
	assert.True(t, errors.Is(err, service.ErrNotFound))
	assert.Len(t, svc.calls, 1)
}

func TestPaymentHandler_StopsOnCancel(t *testing.T) {
	persist := fmt.Errorf("%w: db gone", service.ErrPersistence)
	svc := &fakePaymentService{errs: []error{persist, persist, persist}}
	h := &PaymentHandler{Svc: svc, Attempts: 3, Backoff: time.Hour}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := h.Apply(ctx, service.PaymentSucceeded{OrderID: uuid.New(), Reference: "ch"})
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Len(t, svc.calls, 1)
}

type chanPaymentService chan service.PaymentSucceeded

func (c chanPaymentService) OnPaymentSucceeded(_ context.Context, p service.PaymentSucceeded) error {
	c <- p
	return nil
}

func TestPaymentHandler_ConsumesFromBroker(t *testing.T) {
	mem := broker.NewMemory()
	applied := make(chanPaymentService, 4)
	h := &PaymentHandler{Svc: applied}
	id := uuid.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, mem.PublishRaw(ctx, "payment.succeeded", "", []byte(`not json`)))
	require.NoError(t, mem.PublishRaw(ctx, "payment.succeeded", id.String(),
		[]byte(fmt.Sprintf(`{"stripeOrderId":"ch_9","orderId":%q,"receipUrl":"https://r"}`, id))))

	done := make(chan error, 1)
	go func() { done <- mem.Subscribe(ctx, "payment.succeeded", h.Handle) }()

	select {
	case ev := <-applied:
		assert.Equal(t, id, ev.OrderID)
		assert.Equal(t, "ch_9", ev.Reference)
		assert.Equal(t, "https://r", ev.ReceiptURL)
	case <-time.After(2 * time.Second):
		t.Fatal("payment event was not applied")
	}

	cancel()
	require.NoError(t, <-done)
	assert.Empty(t, applied)
}
