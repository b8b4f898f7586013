package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"ezagent/internal/agent"
	"ezagent/internal/config"
	"ezagent/internal/controller"
	"ezagent/internal/core"
	"ezagent/internal/demo"
	"ezagent/internal/logging"
)

type rootFlags struct {
	configPath string
	logLevel   string
	console    bool
}

func newRootCmd() *cobra.Command {
	f := &rootFlags{}
	root := &cobra.Command{
		Use:           "ezagent",
		Short:         "Action-event controller with subscriber agents",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&f.configPath, "config", "", "Config file (.yaml, .json or .toml)")
	root.PersistentFlags().StringVar(&f.logLevel, "log-level", "", "Log level: debug|info|warn|error (overrides config)")
	root.PersistentFlags().BoolVar(&f.console, "console", false, "Human readable log output")

	root.AddCommand(newServeCmd(f), newDemoCmd(f))
	return root
}

// load resolves the config file and the logger shared by every subcommand.
func (f *rootFlags) load(cmd *cobra.Command) (config.Config, zerolog.Logger, error) {
	cfg := config.Default()
	if f.configPath != "" {
		var err error
		if cfg, err = config.Load(f.configPath); err != nil {
			return cfg, zerolog.Nop(), fmt.Errorf("load config: %w", err)
		}
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	if f.console {
		cfg.LogConsole = true
	}
	return cfg, logging.New(cfg.LogLevel, cmd.ErrOrStderr(), cfg.LogConsole), nil
}

func newDemoCmd(f *rootFlags) *cobra.Command {
	var simulate bool
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Forward page events read from stdin (\"<type> [detail]\" per line) to an agent",
		Example: "  printf 'click button\\nsubmit form\\n' | ezagent demo --console",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := f.load(cmd)
			if err != nil {
				return err
			}
			a := agent.New("page-agent", &logger)
			c := a.Controller()
			c.RegisterDefaultHandlers()
			bindEvents(c, cfg.Events, &logger)
			if simulate {
				if err := a.SimulateEvents(cmd.Context()); err != nil {
					return err
				}
			}
			n, err := demo.Run(cmd.Context(), cmd.InOrStdin(), a, &logger)
			if err != nil {
				return err
			}
			st := a.Stats()
			fmt.Fprintf(cmd.OutOrStdout(), "fired %d page events (clicks=%d submits=%d unhandled=%d)\n",
				n, st.Clicks, st.Submits, st.Unhandled)
			return nil
		},
	}
	cmd.Flags().BoolVar(&simulate, "simulate", false, "Run the simulated click and submit events first")
	return cmd
}

// bindEvents routes extra event types to a logging handler so that they are
// broadcast instead of rejected as unregistered.
func bindEvents(c *controller.Controller, events []string, logger *zerolog.Logger) {
	for _, e := range events {
		eventType := e
		c.RegisterEventHandler(eventType, func(ctx context.Context, data core.Payload) error {
			logger.Info().Str("type", eventType).Interface("data", data).Msg("event handled")
			return nil
		})
	}
}
