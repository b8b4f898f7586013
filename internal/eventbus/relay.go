package eventbus

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"ezagent/internal/core"
)

// RelayAgent republishes every broadcast it receives onto the bus under
// <prefix>.<type>. Events that themselves arrived from the bus are not
// republished.
type RelayAgent struct {
	id     string
	bus    Bus
	prefix string
	logger *zerolog.Logger
}

// NewRelayAgent returns a relay publishing with id as the event source.
func NewRelayAgent(id string, bus Bus, prefix string, logger *zerolog.Logger) *RelayAgent {
	if logger == nil {
		logger = &log.Logger
	}
	return &RelayAgent{id: id, bus: bus, prefix: prefix, logger: logger}
}

func (r *RelayAgent) ID() string { return r.id }

// HandleEvent implements core.Agent.
func (r *RelayAgent) HandleEvent(ctx context.Context, eventType string, data core.Payload) error {
	if origin, ok := Origin(ctx); ok {
		r.logger.Debug().Str("type", eventType).Str("origin", origin.Source).Msg("relay skipped bus event")
		return nil
	}
	ev := core.NewEvent(eventType, r.id, data)
	if err := r.bus.Publish(ctx, Topic(r.prefix, eventType), ev); err != nil {
		return fmt.Errorf("relay %s: %w", eventType, err)
	}
	return nil
}

var _ core.Agent = (*RelayAgent)(nil)
