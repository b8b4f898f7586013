package agent

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"ezagent/internal/controller"
	"ezagent/internal/core"
)

func newTestAgent(t *testing.T) (*Agent, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	return New("a1", &logger), &buf
}

func TestNewRegistersItself(t *testing.T) {
	a, _ := newTestAgent(t)
	if a.Controller().Agents() != 1 {
		t.Fatalf("expected agent subscribed, got %d agents", a.Controller().Agents())
	}
}

func TestHandleEventBranches(t *testing.T) {
	a, buf := newTestAgent(t)
	ctx := context.Background()
	if err := a.HandleEvent(ctx, "click", core.Payload{"message": "hi"}); err != nil {
		t.Fatalf("click: %v", err)
	}
	if err := a.HandleEvent(ctx, "submit", core.Payload{"message": "go", "fields": map[string]interface{}{"x": 1}}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := a.HandleEvent(ctx, "scroll", nil); err != nil {
		t.Fatalf("scroll: %v", err)
	}
	st := a.Stats()
	if st.Clicks != 1 || st.Submits != 1 || st.Unhandled != 1 {
		t.Fatalf("unexpected stats %+v", st)
	}
	if !strings.Contains(buf.String(), "unhandled event type by agent") {
		t.Fatal("expected unhandled log line")
	}
}

func TestLooselyTypedPayloads(t *testing.T) {
	a, buf := newTestAgent(t)
	ctx := context.Background()
	if err := a.HandleEvent(ctx, "click", core.Payload{"message": 42}); err != nil {
		t.Fatalf("numeric message: %v", err)
	}
	if err := a.HandleEvent(ctx, "submit", core.Payload{"fields": "x"}); err != nil {
		t.Fatalf("scalar fields: %v", err)
	}
	st := a.Stats()
	if st.Clicks != 1 || st.Submits != 1 {
		t.Fatalf("every event should be counted, got %+v", st)
	}
	if !strings.Contains(buf.String(), `"message":"42"`) {
		t.Fatalf("expected converted message in log: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "submit payload not understood") {
		t.Fatal("expected warning for undecodable submit payload")
	}
}

func TestCustomHandlerProxiedThroughController(t *testing.T) {
	a, _ := newTestAgent(t)
	var bound *Agent
	var got core.Payload
	a.RegisterCustomEventHandler("customEvent", func(ctx context.Context, ag *Agent, data core.Payload) error {
		bound = ag
		got = data
		return nil
	})
	if !a.Controller().HasHandler("customEvent") {
		t.Fatal("handler should be registered on the controller")
	}
	a.Emit(context.Background(), "customEvent", core.Payload{"message": "This is a custom event"})
	if bound != a {
		t.Fatal("handler not bound to agent")
	}
	if got["message"] != "This is a custom event" {
		t.Fatalf("unexpected payload %v", got)
	}
	// the broadcast reaches the agent's own switch, which has no branch for it
	if a.Stats().Unhandled != 1 {
		t.Fatalf("expected one unhandled broadcast, got %d", a.Stats().Unhandled)
	}
}

func TestEmitRunsBothDispatchTables(t *testing.T) {
	a, _ := newTestAgent(t)
	a.Controller().RegisterDefaultHandlers()
	a.Emit(context.Background(), "click", core.Payload{"message": "x"})
	if a.Stats().Clicks != 1 {
		t.Fatalf("expected agent click branch to run once, got %d", a.Stats().Clicks)
	}
	a.Emit(context.Background(), "scroll", nil)
	if a.Stats().Unhandled != 0 {
		t.Fatal("unregistered type must not be broadcast")
	}
}

func TestSharedController(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	c := controller.New(&logger)
	c.RegisterDefaultHandlers()
	a1, err := NewWithController("one", c, &logger)
	if err != nil {
		t.Fatalf("one: %v", err)
	}
	a2, err := NewWithController("two", c, &logger)
	if err != nil {
		t.Fatalf("two: %v", err)
	}
	a1.Emit(context.Background(), "submit", core.Payload{"message": "m"})
	if a1.Stats().Submits != 1 || a2.Stats().Submits != 1 {
		t.Fatal("both agents should receive the broadcast")
	}
}

func TestSimulateEvents(t *testing.T) {
	a, _ := newTestAgent(t)
	if err := a.SimulateEvents(context.Background()); err != nil {
		t.Fatalf("simulate: %v", err)
	}
	st := a.Stats()
	if st.Clicks != 1 || st.Submits != 1 {
		t.Fatalf("unexpected stats %+v", st)
	}
}
