package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"ezagent/internal/core"
)

// RedisBus implements Bus using Redis Pub/Sub with automatic reconnection.
type RedisBus struct {
	mu            sync.Mutex
	client        *redis.Client
	options       *redis.Options
	subscriptions map[string]*redis.PubSub
	logger        *zerolog.Logger
}

// NewRedisBus creates a Redis-backed event bus using the given options.
func NewRedisBus(opts *redis.Options, logger *zerolog.Logger) *RedisBus {
	if logger == nil {
		logger = &log.Logger
	}
	return &RedisBus{
		client:        redis.NewClient(opts),
		options:       opts,
		subscriptions: make(map[string]*redis.PubSub),
		logger:        logger,
	}
}

// ensureConnection pings the server and reconnects if necessary. The old
// client is closed, which also ends subscriptions opened through it.
func (b *RedisBus) ensureConnection(ctx context.Context) {
	err := b.client.Ping(ctx).Err()
	if err == nil || ctx.Err() != nil {
		return
	}
	b.logger.Warn().Err(err).Msg("eventbus reconnecting to redis")
	if cerr := b.client.Close(); cerr != nil {
		b.logger.Debug().Err(cerr).Msg("eventbus closing stale client")
	}
	b.client = redis.NewClient(b.options)
}

// Publish sends an event to a topic.
func (b *RedisBus) Publish(ctx context.Context, topic string, event core.Event) error {
	b.mu.Lock()
	b.ensureConnection(ctx)
	client := b.client
	b.mu.Unlock()
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", event.Type, err)
	}
	return client.Publish(ctx, topic, data).Err()
}

// listen waits for the subscription to be confirmed, then decodes messages
// onto the returned channel until ctx ends or the subscription closes.
func (b *RedisBus) listen(ctx context.Context, name string, pubsub *redis.PubSub) (<-chan core.Event, error) {
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", name, err)
	}
	ch := make(chan core.Event)
	go func() {
		defer close(ch)
		for {
			msg, err := pubsub.ReceiveMessage(ctx)
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, redis.ErrClosed) {
					return
				}
				b.logger.Error().Err(err).Str("subscription", name).Msg("eventbus receive error")
				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Second):
				}
				continue
			}
			var ev core.Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				b.logger.Warn().Err(err).Str("channel", msg.Channel).Msg("eventbus dropped undecodable message")
				continue
			}
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// Subscribe listens for events on a topic.
func (b *RedisBus) Subscribe(ctx context.Context, topic string) (<-chan core.Event, error) {
	b.mu.Lock()
	b.ensureConnection(ctx)
	ps := b.client.Subscribe(ctx, topic)
	b.subscriptions[topic] = ps
	b.mu.Unlock()
	return b.listen(ctx, topic, ps)
}

// SubscribePattern listens for events on every topic matching pattern.
func (b *RedisBus) SubscribePattern(ctx context.Context, pattern string) (<-chan core.Event, error) {
	b.mu.Lock()
	b.ensureConnection(ctx)
	ps := b.client.PSubscribe(ctx, pattern)
	b.subscriptions[pattern] = ps
	b.mu.Unlock()
	return b.listen(ctx, pattern, ps)
}

// Unsubscribe stops listening on a topic or pattern.
func (b *RedisBus) Unsubscribe(ctx context.Context, topic string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	ps, ok := b.subscriptions[topic]
	if !ok {
		return nil
	}
	delete(b.subscriptions, topic)
	return ps.Close()
}

// Close terminates all subscriptions and closes the client.
func (b *RedisBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ps := range b.subscriptions {
		_ = ps.Close()
	}
	b.subscriptions = make(map[string]*redis.PubSub)
	return b.client.Close()
}

var _ Bus = (*RedisBus)(nil)
