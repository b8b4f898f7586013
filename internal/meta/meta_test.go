package meta

import (
	"context"
	"errors"
	"testing"

	"ezagent/internal/controller"
	"ezagent/internal/core"
)

type dummyAgent struct {
	id      string
	started bool
	stops   *[]string
	events  int
}

func (d *dummyAgent) ID() string                      { return d.id }
func (d *dummyAgent) Start(ctx context.Context) error { d.started = true; return nil }
func (d *dummyAgent) Stop(ctx context.Context) error {
	d.started = false
	*d.stops = append(*d.stops, d.id)
	return nil
}
func (d *dummyAgent) HandleEvent(ctx context.Context, eventType string, data core.Payload) error {
	d.events++
	return nil
}

func TestSpawnAgent(t *testing.T) {
	var stops []string
	made := map[string]*dummyAgent{}
	kinds := Kinds{"dummy": func(id string) (core.Agent, error) {
		d := &dummyAgent{id: id, stops: &stops}
		made[id] = d
		return d, nil
	}}
	c := controller.New(nil)
	c.RegisterEventHandler("click", func(ctx context.Context, data core.Payload) error { return nil })
	s := NewSupervisor(kinds, c, nil)
	ctx := context.Background()
	for _, id := range []string{"a1", "a2"} {
		if err := s.Spawn(ctx, id, "dummy"); err != nil {
			t.Fatalf("spawn %s: %v", id, err)
		}
	}
	if !made["a1"].started {
		t.Fatal("agent should be started")
	}
	if ids := s.AgentIDs(); len(ids) != 2 || ids[0] != "a1" || ids[1] != "a2" {
		t.Fatalf("unexpected ids %v", ids)
	}
	c.HandleEvent(ctx, "click", nil)
	if made["a1"].events != 1 || made["a2"].events != 1 {
		t.Fatal("spawned agents should be subscribed")
	}
	if err := s.Spawn(ctx, "a1", "dummy"); err == nil {
		t.Fatal("expected duplicate id error")
	}
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if made["a1"].started || len(stops) != 2 || stops[0] != "a2" {
		t.Fatalf("expected reverse-order stop, got %v", stops)
	}
}

func TestSpawnUnknownKind(t *testing.T) {
	s := NewSupervisor(Kinds{}, controller.New(nil), nil)
	if err := s.Spawn(context.Background(), "x", "nope"); err == nil {
		t.Fatal("expected unknown kind error")
	}
	if len(s.AgentIDs()) != 0 {
		t.Fatal("failed spawn must not be recorded")
	}
}

func TestSpawnNilAgentRejected(t *testing.T) {
	kinds := Kinds{"nil": func(id string) (core.Agent, error) { return core.AgentFunc(nil), nil }}
	s := NewSupervisor(kinds, controller.New(nil), nil)
	err := s.Spawn(context.Background(), "x", "nil")
	var inv *controller.InvalidAgentError
	if !errors.As(err, &inv) {
		t.Fatalf("expected InvalidAgentError, got %v", err)
	}
}

type refusingRegistrar struct{}

func (refusingRegistrar) RegisterAgent(agent core.Agent) error { return errors.New("registry closed") }

func TestSpawnStopsAgentWhenRegistrationFails(t *testing.T) {
	var stops []string
	var made *dummyAgent
	kinds := Kinds{"dummy": func(id string) (core.Agent, error) {
		made = &dummyAgent{id: id, stops: &stops}
		return made, nil
	}}
	s := NewSupervisor(kinds, refusingRegistrar{}, nil)
	if err := s.Spawn(context.Background(), "a1", "dummy"); err == nil {
		t.Fatal("expected registration error")
	}
	if made.started || len(stops) != 1 || stops[0] != "a1" {
		t.Fatalf("started agent should be stopped, got %v", stops)
	}
	if len(s.AgentIDs()) != 0 {
		t.Fatal("failed spawn must not be recorded")
	}
}
