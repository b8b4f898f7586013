package eventbus

import (
	"context"

	"ezagent/internal/core"
)

// Bus defines publish/subscribe semantics for events leaving the process.
type Bus interface {
	Publish(ctx context.Context, topic string, event core.Event) error
	Subscribe(ctx context.Context, topic string) (<-chan core.Event, error)
	SubscribePattern(ctx context.Context, pattern string) (<-chan core.Event, error)
	Unsubscribe(ctx context.Context, topic string) error
	Close() error
}

// Topic joins a prefix and an event type into a channel name.
func Topic(prefix, eventType string) string {
	return prefix + "." + eventType
}

type originKey struct{}

// WithOrigin marks ctx as carrying an event received from the bus.
func WithOrigin(ctx context.Context, ev core.Event) context.Context {
	return context.WithValue(ctx, originKey{}, ev)
}

// Origin returns the bus event ctx was dispatched for, if any.
func Origin(ctx context.Context) (core.Event, bool) {
	ev, ok := ctx.Value(originKey{}).(core.Event)
	return ev, ok
}
