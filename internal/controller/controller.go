package controller

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"ezagent/internal/core"
)

// Handler processes the payload of one event type.
type Handler func(ctx context.Context, data core.Payload) error

// Option configures a Controller.
type Option func(*Controller)

// WithMetrics records dispatch outcomes on m.
func WithMetrics(m *Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithErrorHook receives every swallowed failure after it has been logged.
func WithErrorHook(fn func(error)) Option {
	return func(c *Controller) { c.onError = fn }
}

// Controller maps event types to handlers and notifies registered agents
// after each handled event.
type Controller struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	agents   []core.Agent

	logger  *zerolog.Logger
	metrics *Metrics
	onError func(error)
}

// New returns a controller with an empty registry and no agents.
func New(logger *zerolog.Logger, opts ...Option) *Controller {
	if logger == nil {
		logger = &log.Logger
	}
	c := &Controller{
		handlers: make(map[string]Handler),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RegisterAgent appends an agent to the broadcast list.
func (c *Controller) RegisterAgent(agent core.Agent) error {
	if isNil(agent) {
		return &InvalidAgentError{Agent: agent}
	}
	c.mu.Lock()
	c.agents = append(c.agents, agent)
	c.mu.Unlock()
	return nil
}

// RegisterEventHandler binds h to eventType, replacing any previous handler.
// A nil handler removes the binding.
func (c *Controller) RegisterEventHandler(eventType string, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if h == nil {
		delete(c.handlers, eventType)
		return
	}
	c.handlers[eventType] = h
}

// RegisterDefaultHandlers installs logging handlers for click and submit.
func (c *Controller) RegisterDefaultHandlers() {
	c.RegisterEventHandler(string(core.KindClick), c.onClick)
	c.RegisterEventHandler(string(core.KindSubmit), c.onSubmit)
}

func (c *Controller) onClick(ctx context.Context, data core.Payload) error {
	c.logger.Info().Interface("data", data).Msg("click event handled")
	return nil
}

func (c *Controller) onSubmit(ctx context.Context, data core.Payload) error {
	c.logger.Info().Interface("data", data).Msg("submit event handled")
	return nil
}

// HasHandler reports whether eventType has a registered handler.
func (c *Controller) HasHandler(eventType string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.handlers[eventType]
	return ok
}

// Agents returns the number of registered agents.
func (c *Controller) Agents() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.agents)
}

// HandleEvent dispatches an event and discards the report. Failures are
// logged and never reach the caller.
func (c *Controller) HandleEvent(ctx context.Context, eventType string, data core.Payload) {
	_ = c.Dispatch(ctx, eventType, data)
}

// Dispatch runs the handler bound to eventType, then broadcasts the event to
// every agent in registration order. Unregistered types are logged and
// skipped entirely.
func (c *Controller) Dispatch(ctx context.Context, eventType string, data core.Payload) Report {
	start := time.Now()
	c.mu.RLock()
	h, ok := c.handlers[eventType]
	c.mu.RUnlock()

	rep := Report{Type: eventType}
	if !ok {
		c.logger.Warn().Str("type", eventType).Msg("unhandled event type")
		rep.Unregistered = &UnregisteredEventTypeError{Type: eventType}
		c.metrics.event(eventType, "unregistered", false)
		if c.onError != nil {
			c.onError(rep.Unregistered)
		}
		return rep
	}

	rep.Handled = true
	if err := c.invokeHandler(ctx, eventType, h, data); err != nil {
		rep.HandlerErr = err
	}
	rep.AgentErrs = c.BroadcastEventToAgents(ctx, eventType, data)

	outcome := "ok"
	if rep.HandlerErr != nil || len(rep.AgentErrs) > 0 {
		outcome = "failed"
	}
	c.metrics.event(eventType, outcome, true)
	c.metrics.observe(time.Since(start).Seconds())
	return rep
}

func (c *Controller) invokeHandler(ctx context.Context, eventType string, h Handler, data core.Payload) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recovered(r)
		}
		if err != nil {
			err = c.fail(&HandlerFailure{Type: eventType, Stage: StageHandler, Err: err})
		}
	}()
	return h(ctx, data)
}

// BroadcastEventToAgents notifies each agent in turn, waiting for one to
// return before calling the next. A failing agent does not stop delivery.
func (c *Controller) BroadcastEventToAgents(ctx context.Context, eventType string, data core.Payload) []error {
	c.mu.RLock()
	agents := make([]core.Agent, len(c.agents))
	copy(agents, c.agents)
	c.mu.RUnlock()

	var errs []error
	for _, a := range agents {
		c.metrics.delivery()
		if err := c.notify(ctx, a, eventType, data); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func (c *Controller) notify(ctx context.Context, a core.Agent, eventType string, data core.Payload) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recovered(r)
		}
		if err != nil {
			err = c.fail(&HandlerFailure{Type: eventType, Stage: StageAgent, Agent: core.AgentName(a), Err: err})
		}
	}()
	return a.HandleEvent(ctx, eventType, data)
}

func (c *Controller) fail(f *HandlerFailure) error {
	ev := c.logger.Error().Err(f.Err).Str("type", f.Type).Str("stage", string(f.Stage))
	if f.Agent != "" {
		ev = ev.Str("agent", f.Agent)
	}
	ev.Msg("event handling failed")
	c.metrics.failure(f.Stage)
	if c.onError != nil {
		c.onError(f)
	}
	return f
}

// Report describes the outcome of one Dispatch.
type Report struct {
	Type         string
	Handled      bool
	Unregistered *UnregisteredEventTypeError
	HandlerErr   error
	AgentErrs    []error
}

// Err joins every failure recorded in the report, or returns nil.
func (r Report) Err() error {
	if r.Unregistered != nil {
		return r.Unregistered
	}
	errs := make([]error, 0, len(r.AgentErrs)+1)
	if r.HandlerErr != nil {
		errs = append(errs, r.HandlerErr)
	}
	errs = append(errs, r.AgentErrs...)
	return errors.Join(errs...)
}

func isNil(a core.Agent) bool {
	if a == nil {
		return true
	}
	v := reflect.ValueOf(a)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Func, reflect.Chan, reflect.Slice, reflect.Interface:
		return v.IsNil()
	}
	return false
}
