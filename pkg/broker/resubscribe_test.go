package broker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type flakySubscriber struct {
	mu       sync.Mutex
	failures int
	calls    int
	attached chan struct{}
}

func (f *flakySubscriber) Subscribe(ctx context.Context, _ string, _ Handler) error {
	f.mu.Lock()
	f.calls++
	fail := f.calls <= f.failures
	f.mu.Unlock()

	if fail {
		return errors.New("fetch: connection refused")
	}
	close(f.attached)
	<-ctx.Done()
	return nil
}

func (f *flakySubscriber) Close() error { return nil }

func TestSubscribeForever_ResubscribesAfterFailures(t *testing.T) {
	sub := &flakySubscriber{failures: 2, attached: make(chan struct{})}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		SubscribeForever(ctx, sub, "payment.succeeded", func(context.Context, Message) error { return nil }, time.Millisecond)
		close(done)
	}()

	select {
	case <-sub.attached:
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber never reattached")
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("SubscribeForever did not return after cancel")
	}

	sub.mu.Lock()
	defer sub.mu.Unlock()
	assert.Equal(t, 3, sub.calls)
}

func TestSubscribeForever_StopsWhileWaiting(t *testing.T) {
	sub := &flakySubscriber{failures: 100, attached: make(chan struct{})}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	SubscribeForever(ctx, sub, "payment.succeeded", func(context.Context, Message) error { return nil }, time.Hour)
	assert.Less(t, time.Since(start), time.Second)
}
