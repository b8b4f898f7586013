package agent

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"ezagent/internal/core"
)

// Observer logs every broadcast it receives and never fails.
type Observer struct {
	id     string
	logger *zerolog.Logger
}

// NewObserver returns an observer logging at info level.
func NewObserver(id string, logger *zerolog.Logger) *Observer {
	if logger == nil {
		logger = &log.Logger
	}
	return &Observer{id: id, logger: logger}
}

func (o *Observer) ID() string { return o.id }

func (o *Observer) HandleEvent(ctx context.Context, eventType string, data core.Payload) error {
	o.logger.Info().Str("agent", o.id).Str("type", eventType).Interface("data", data).Msg("agent received event")
	return nil
}
