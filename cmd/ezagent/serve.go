package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"ezagent/internal/agent"
	"ezagent/internal/config"
	"ezagent/internal/controller"
	"ezagent/internal/core"
	"ezagent/internal/eventbus"
	"ezagent/internal/httpapi"
	"ezagent/internal/meta"
)

func newServeCmd(f *rootFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Accept events over HTTP and broadcast them to configured agents",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := f.load(cmd)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			return serve(cmd.Context(), cfg, &logger)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address (overrides config)")
	return cmd
}

// service is everything serve wires together, exposed for tests.
type service struct {
	controller *controller.Controller
	supervisor *meta.Supervisor
	hub        *httpapi.Hub
	bus        *eventbus.RedisBus
	bridge     *eventbus.Bridge
	handler    http.Handler
}

func build(ctx context.Context, cfg config.Config, logger *zerolog.Logger) (*service, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	s := &service{}
	s.controller = controller.New(logger, controller.WithMetrics(controller.NewMetrics(reg)))
	s.controller.RegisterDefaultHandlers()
	bindEvents(s.controller, cfg.Events, logger)

	if cfg.Redis.Addr != "" {
		s.bus = eventbus.NewRedisBus(&redis.Options{Addr: cfg.Redis.Addr}, logger)
	}

	var relayIDs []string
	kinds := meta.Kinds{
		"log": func(id string) (core.Agent, error) { return agent.NewObserver(id, logger), nil },
		"ws": func(id string) (core.Agent, error) {
			if s.hub != nil {
				return nil, fmt.Errorf("ws agent already spawned as %s", s.hub.ID())
			}
			s.hub = httpapi.NewHub(id, cfg.AllowedOrigins, logger)
			return s.hub, nil
		},
		"relay": func(id string) (core.Agent, error) {
			if s.bus == nil {
				return nil, errors.New("relay agent requires redis.addr")
			}
			relayIDs = append(relayIDs, id)
			return eventbus.NewRelayAgent(id, s.bus, cfg.Redis.Prefix, logger), nil
		},
	}
	s.supervisor = meta.NewSupervisor(kinds, s.controller, logger)
	for _, spec := range cfg.Agents {
		if err := s.supervisor.Spawn(ctx, spec.ID, spec.Kind); err != nil {
			s.close(ctx)
			return nil, fmt.Errorf("agent %s: %w", spec.ID, err)
		}
	}

	if s.bus != nil {
		s.bridge = eventbus.NewBridge(s.bus, cfg.Redis.Prefix, relayIDs, s.controller, logger)
		if err := s.bridge.Start(ctx); err != nil {
			s.bridge = nil
			s.close(ctx)
			return nil, fmt.Errorf("start bridge: %w", err)
		}
	}

	s.handler = httpapi.NewMux(s.controller, httpapi.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		Gatherer:       reg,
		Hub:            s.hub,
		Logger:         logger,
	})
	return s, nil
}

// close releases whatever build managed to start; it is safe on a partially
// built service.
func (s *service) close(ctx context.Context) {
	if s.bridge != nil {
		_ = s.bridge.Stop(ctx)
	}
	if s.supervisor != nil {
		_ = s.supervisor.Stop(ctx)
	}
	if s.bus != nil {
		_ = s.bus.Close()
	}
}

func serve(ctx context.Context, cfg config.Config, logger *zerolog.Logger) error {
	s, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	srv := &http.Server{Addr: cfg.Addr, Handler: s.handler, ReadHeaderTimeout: 10 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", cfg.Addr).Strs("agents", s.supervisor.AgentIDs()).Msg("ezagent listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.close(shutdownCtx)
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
