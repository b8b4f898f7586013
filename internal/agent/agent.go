package agent

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"ezagent/internal/controller"
	"ezagent/internal/core"
)

// CustomHandler is a controller handler bound to the agent that registered it.
type CustomHandler func(ctx context.Context, a *Agent, data core.Payload) error

// ClickData is the subset of a click payload the agent inspects.
type ClickData struct {
	Message string `mapstructure:"message"`
}

// SubmitData is the subset of a submit payload the agent inspects.
type SubmitData struct {
	Message string                 `mapstructure:"message"`
	Fields  map[string]interface{} `mapstructure:"fields"`
}

// Agent subscribes to a controller and runs its own dispatch on every
// broadcast it receives, independent of the controller's registry.
type Agent struct {
	id         string
	controller *controller.Controller
	logger     *zerolog.Logger

	clicks    atomic.Int64
	submits   atomic.Int64
	unhandled atomic.Int64
}

// New creates an agent with a private controller and subscribes to it.
func New(id string, logger *zerolog.Logger) *Agent {
	if logger == nil {
		logger = &log.Logger
	}
	a, _ := NewWithController(id, controller.New(logger), logger)
	return a
}

// NewWithController subscribes a new agent to an existing controller.
func NewWithController(id string, c *controller.Controller, logger *zerolog.Logger) (*Agent, error) {
	if logger == nil {
		logger = &log.Logger
	}
	l := logger.With().Str("agent", id).Logger()
	a := &Agent{id: id, controller: c, logger: &l}
	if err := c.RegisterAgent(a); err != nil {
		return nil, err
	}
	return a, nil
}

// ID returns the agent identifier.
func (a *Agent) ID() string { return a.id }

// Controller returns the controller the agent is subscribed to.
func (a *Agent) Controller() *controller.Controller { return a.controller }

// HandleEvent implements core.Agent.
func (a *Agent) HandleEvent(ctx context.Context, eventType string, data core.Payload) error {
	a.logger.Debug().Str("type", eventType).Interface("data", data).Msg("agent received event")
	switch core.Kind(eventType) {
	case core.KindClick:
		return a.OnClick(ctx, data)
	case core.KindSubmit:
		return a.OnSubmit(ctx, data)
	default:
		a.unhandled.Add(1)
		a.logger.Info().Str("type", eventType).Msg("unhandled event type by agent")
		return nil
	}
}

// OnClick handles click events.
func (a *Agent) OnClick(ctx context.Context, data core.Payload) error {
	var d ClickData
	if err := core.Decode(data, &d); err != nil {
		a.logger.Warn().Err(err).Interface("data", data).Msg("click payload not understood")
	}
	a.clicks.Add(1)
	a.logger.Info().Str("message", d.Message).Msg("agent handling click event")
	return nil
}

// OnSubmit handles submit events.
func (a *Agent) OnSubmit(ctx context.Context, data core.Payload) error {
	var d SubmitData
	if err := core.Decode(data, &d); err != nil {
		a.logger.Warn().Err(err).Interface("data", data).Msg("submit payload not understood")
	}
	a.submits.Add(1)
	a.logger.Info().Str("message", d.Message).Int("fields", len(d.Fields)).Msg("agent handling submit event")
	return nil
}

// RegisterCustomEventHandler binds h to eventType on the agent's controller.
func (a *Agent) RegisterCustomEventHandler(eventType string, h CustomHandler) {
	a.controller.RegisterEventHandler(eventType, func(ctx context.Context, data core.Payload) error {
		return h(ctx, a, data)
	})
}

// Emit hands an event to the controller, which runs its handler and then
// broadcasts to every subscriber including this agent.
func (a *Agent) Emit(ctx context.Context, eventType string, data core.Payload) {
	a.controller.HandleEvent(ctx, eventType, data)
}

// SimulateEvents feeds one click and one submit into the agent's own dispatch.
func (a *Agent) SimulateEvents(ctx context.Context) error {
	if err := a.HandleEvent(ctx, string(core.KindClick), core.Payload{"message": "Simulated click event"}); err != nil {
		return err
	}
	return a.HandleEvent(ctx, string(core.KindSubmit), core.Payload{"message": "Simulated submit event"})
}

// Stats is a snapshot of the agent's dispatch counters.
type Stats struct {
	Clicks    int64
	Submits   int64
	Unhandled int64
}

// Stats returns how many events each branch of HandleEvent has processed.
func (a *Agent) Stats() Stats {
	return Stats{Clicks: a.clicks.Load(), Submits: a.submits.Load(), Unhandled: a.unhandled.Load()}
}

var _ core.Agent = (*Agent)(nil)
