package core

import "context"

// Agent is a subscriber notified after primary event handling.
type Agent interface {
	HandleEvent(ctx context.Context, eventType string, data Payload) error
}

// Identified is implemented by agents that carry a stable identifier.
type Identified interface {
	ID() string
}

// Lifecycle is implemented by agents owning background resources.
type Lifecycle interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// AgentFunc adapts a plain function to the Agent interface.
type AgentFunc func(ctx context.Context, eventType string, data Payload) error

func (f AgentFunc) HandleEvent(ctx context.Context, eventType string, data Payload) error {
	return f(ctx, eventType, data)
}

// AgentName returns the agent identifier if it has one, or its dynamic type.
func AgentName(a Agent) string {
	if id, ok := a.(Identified); ok {
		return id.ID()
	}
	return typeName(a)
}
