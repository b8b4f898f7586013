package meta

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"ezagent/internal/core"
)

// AgentFactory creates agents of various kinds.
type AgentFactory interface {
	Create(id, kind string) (core.Agent, error)
}

// Constructor builds one agent kind.
type Constructor func(id string) (core.Agent, error)

// Kinds is an AgentFactory keyed by kind name.
type Kinds map[string]Constructor

// Create implements AgentFactory.
func (k Kinds) Create(id, kind string) (core.Agent, error) {
	ctor, ok := k[kind]
	if !ok {
		return nil, fmt.Errorf("unknown agent kind %q (known: %v)", kind, k.Names())
	}
	return ctor(id)
}

// Names returns the registered kinds, sorted.
func (k Kinds) Names() []string {
	names := make([]string, 0, len(k))
	for n := range k {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Registrar accepts subscribers. *controller.Controller satisfies it.
type Registrar interface {
	RegisterAgent(agent core.Agent) error
}

// Supervisor creates agents, starts those with a lifecycle and subscribes
// them to a controller in spawn order.
type Supervisor struct {
	factory AgentFactory
	target  Registrar
	logger  *zerolog.Logger

	mu       sync.RWMutex
	registry map[string]core.Agent
	order    []string
}

// NewSupervisor returns a supervisor registering spawned agents on target.
func NewSupervisor(f AgentFactory, target Registrar, logger *zerolog.Logger) *Supervisor {
	if logger == nil {
		logger = &log.Logger
	}
	return &Supervisor{factory: f, target: target, logger: logger, registry: make(map[string]core.Agent)}
}

// Spawn creates, starts and registers a new agent.
func (s *Supervisor) Spawn(ctx context.Context, id, kind string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.registry[id]; dup {
		return fmt.Errorf("agent %s already spawned", id)
	}
	ag, err := s.factory.Create(id, kind)
	if err != nil {
		return fmt.Errorf("create agent: %w", err)
	}
	lc, hasLifecycle := ag.(core.Lifecycle)
	if hasLifecycle {
		if err := lc.Start(ctx); err != nil {
			return fmt.Errorf("start agent: %w", err)
		}
	}
	if err := s.target.RegisterAgent(ag); err != nil {
		if hasLifecycle {
			if serr := lc.Stop(ctx); serr != nil {
				s.logger.Error().Err(serr).Str("agent", id).Msg("agent stop failed")
			}
		}
		return fmt.Errorf("register agent: %w", err)
	}
	s.registry[id] = ag
	s.order = append(s.order, id)
	s.logger.Info().Str("agent", id).Str("kind", kind).Msg("agent spawned")
	return nil
}

// Agent returns a spawned agent by id.
func (s *Supervisor) Agent(id string) (core.Agent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ag, ok := s.registry[id]
	return ag, ok
}

// AgentIDs returns spawned agent ids in spawn order.
func (s *Supervisor) AgentIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

// Stop stops lifecycle agents in reverse spawn order. The controller keeps
// its references; stopped agents simply stop producing side effects.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var first error
	for i := len(s.order) - 1; i >= 0; i-- {
		lc, ok := s.registry[s.order[i]].(core.Lifecycle)
		if !ok {
			continue
		}
		if err := lc.Stop(ctx); err != nil {
			s.logger.Error().Err(err).Str("agent", s.order[i]).Msg("agent stop failed")
			if first == nil {
				first = err
			}
		}
	}
	return first
}
