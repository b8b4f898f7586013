package eventbus

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"ezagent/internal/core"
)

// Dispatcher accepts events for local handling.
type Dispatcher interface {
	HandleEvent(ctx context.Context, eventType string, data core.Payload)
}

// Bridge feeds events published under a prefix into a local Dispatcher.
type Bridge struct {
	bus     Bus
	pattern string
	local   map[string]struct{}
	target  Dispatcher
	logger  *zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewBridge subscribes to <prefix>.* once started. Events whose source is one
// of the local relay ids are ignored; events without a source are always
// dispatched.
func NewBridge(bus Bus, prefix string, local []string, target Dispatcher, logger *zerolog.Logger) *Bridge {
	if logger == nil {
		logger = &log.Logger
	}
	ids := make(map[string]struct{}, len(local))
	for _, id := range local {
		if id != "" {
			ids[id] = struct{}{}
		}
	}
	return &Bridge{bus: bus, pattern: prefix + ".*", local: ids, target: target, logger: logger}
}

func (b *Bridge) isLocal(source string) bool {
	if source == "" {
		return false
	}
	_, ok := b.local[source]
	return ok
}

// Start subscribes and begins dispatching in the background.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel != nil {
		return fmt.Errorf("bridge already started")
	}
	runCtx, cancel := context.WithCancel(ctx)
	ch, err := b.bus.SubscribePattern(runCtx, b.pattern)
	if err != nil {
		cancel()
		return err
	}
	b.cancel = cancel
	b.wg.Add(1)
	go b.run(runCtx, ch)
	return nil
}

func (b *Bridge) run(ctx context.Context, ch <-chan core.Event) {
	defer b.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				if ctx.Err() == nil {
					b.logger.Warn().Str("pattern", b.pattern).Msg("bridge subscription closed")
				}
				return
			}
			if b.isLocal(ev.Source) {
				continue
			}
			b.logger.Debug().Str("type", ev.Type).Str("source", ev.Source).Str("id", ev.ID).Msg("bridge dispatching event")
			b.target.HandleEvent(WithOrigin(ctx, ev), ev.Type, ev.Payload)
		}
	}
}

// Stop cancels the subscription and waits for the dispatch loop to exit.
func (b *Bridge) Stop(ctx context.Context) error {
	b.mu.Lock()
	cancel := b.cancel
	b.cancel = nil
	b.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	err := b.bus.Unsubscribe(ctx, b.pattern)
	b.wg.Wait()
	return err
}

var _ core.Lifecycle = (*Bridge)(nil)
