package demo

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"ezagent/internal/agent"
	"ezagent/internal/core"
)

// CustomEvent is the custom type registered by the page-load hook.
const CustomEvent = "customEvent"

// Run performs the page-load wiring for a, then fires one page event per
// non-empty input line of the form "<type> [detail]". Lines naming a kind
// the page does not listen for are reported and skipped.
func Run(ctx context.Context, r io.Reader, a *agent.Agent, logger *zerolog.Logger) (int, error) {
	if logger == nil {
		logger = &log.Logger
	}
	page := NewPage()
	Wire(page, a, func(kind core.Kind, err error) {
		logger.Error().Err(err).Str("type", string(kind)).Msg("agent rejected page event")
	})

	a.RegisterCustomEventHandler(CustomEvent, func(ctx context.Context, ag *agent.Agent, data core.Payload) error {
		logger.Info().Str("agent", ag.ID()).Interface("data", data).Msg("custom event handled by agent")
		return nil
	})
	if err := a.HandleEvent(ctx, CustomEvent, core.Payload{"message": "This is a custom event"}); err != nil {
		return 0, fmt.Errorf("custom event: %w", err)
	}

	fired := 0
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return fired, err
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		kind, detail, _ := strings.Cut(line, " ")
		if !page.Fire(ctx, core.Kind(kind), strings.TrimSpace(detail)) {
			logger.Warn().Str("type", kind).Msg("no page listener for event")
			continue
		}
		fired++
	}
	if err := sc.Err(); err != nil {
		return fired, fmt.Errorf("read events: %w", err)
	}
	return fired, nil
}
