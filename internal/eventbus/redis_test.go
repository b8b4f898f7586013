package eventbus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"ezagent/internal/core"
)

func newTestBus(t *testing.T) (*RedisBus, *miniredis.Miniredis) {
	t.Helper()
	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(s.Close)
	bus := NewRedisBus(&redis.Options{Addr: s.Addr()}, nil)
	t.Cleanup(func() { bus.Close() })
	return bus, s
}

func TestPublishSubscribe(t *testing.T) {
	bus, _ := newTestBus(t)
	ctx := context.Background()
	ch, err := bus.Subscribe(ctx, "ez.click")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	ev := core.NewEvent("click", "test", core.Payload{"message": "hi"})
	if err := bus.Publish(ctx, "ez.click", ev); err != nil {
		t.Fatalf("publish: %v", err)
	}
	select {
	case got := <-ch:
		if got.ID != ev.ID || got.Payload["message"] != "hi" {
			t.Fatalf("unexpected event %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestPatternSubscribe(t *testing.T) {
	bus, _ := newTestBus(t)
	ctx := context.Background()
	ch, err := bus.SubscribePattern(ctx, "ez.*")
	if err != nil {
		t.Fatalf("subscribe pattern: %v", err)
	}
	if err := bus.Publish(ctx, "ez.submit", core.NewEvent("submit", "test", nil)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	select {
	case got := <-ch:
		if got.Type != "submit" {
			t.Fatalf("unexpected type %s", got.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for pattern event")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus, _ := newTestBus(t)
	ctx := context.Background()
	ch, err := bus.Subscribe(ctx, "ez.scroll")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := bus.Unsubscribe(ctx, "ez.scroll"); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	if err := bus.Unsubscribe(ctx, "ez.unknown"); err != nil {
		t.Fatalf("unsubscribe unknown: %v", err)
	}
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after unsubscribe")
	}
}

func TestPublishUnencodablePayload(t *testing.T) {
	bus, _ := newTestBus(t)
	ev := core.NewEvent("click", "test", core.Payload{"ch": make(chan int)})
	if err := bus.Publish(context.Background(), "ez.click", ev); err == nil {
		t.Fatal("expected encode error")
	}
}

func TestReconnectClosesStaleClient(t *testing.T) {
	bus, s := newTestBus(t)
	ctx := context.Background()
	old := bus.client
	s.Close()
	if err := bus.Publish(ctx, "ez.click", core.NewEvent("click", "test", nil)); err == nil {
		t.Fatal("expected publish error with server down")
	}
	if bus.client == old {
		t.Fatal("expected a fresh client after failed ping")
	}
	if err := old.Ping(ctx).Err(); !errors.Is(err, redis.ErrClosed) {
		t.Fatalf("stale client should be closed, got %v", err)
	}
}
