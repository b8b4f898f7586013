package controller

import (
	"errors"
	"fmt"
)

// InvalidAgentError is returned by RegisterAgent when the agent cannot
// receive events.
type InvalidAgentError struct {
	Agent interface{}
}

func (e *InvalidAgentError) Error() string {
	return fmt.Sprintf("agent must implement HandleEvent (got %T)", e.Agent)
}

// UnregisteredEventTypeError reports a dispatch for which no handler exists.
type UnregisteredEventTypeError struct {
	Type string
}

func (e *UnregisteredEventTypeError) Error() string {
	return "unhandled event type: " + e.Type
}

// Stage identifies where a HandlerFailure occurred.
type Stage string

const (
	StageHandler Stage = "handler"
	StageAgent   Stage = "agent"
)

// HandlerFailure wraps an error returned (or a panic raised) by a handler or
// by an agent during broadcast.
type HandlerFailure struct {
	Type  string
	Stage Stage
	Agent string
	Err   error
}

func (e *HandlerFailure) Error() string {
	if e.Stage == StageAgent {
		return fmt.Sprintf("error broadcasting %s event to agent %s: %v", e.Type, e.Agent, e.Err)
	}
	return fmt.Sprintf("error handling %s event: %v", e.Type, e.Err)
}

func (e *HandlerFailure) Unwrap() error { return e.Err }

// ErrPanic is wrapped by failures recovered from a panic.
var ErrPanic = errors.New("panic")

func recovered(v interface{}) error {
	if err, ok := v.(error); ok {
		return fmt.Errorf("%w: %w", ErrPanic, err)
	}
	return fmt.Errorf("%w: %v", ErrPanic, v)
}
