package engineobs

import (
	"context"
	"time"

	"crypto-trading-bot/internal/interfaces"
	"crypto-trading-bot/internal/logger"
	"crypto-trading-bot/internal/trace"
	"crypto-trading-bot/internal/types"
)

type observableEngine struct {
	engine interfaces.Engine
	symbol string
}

var _ interfaces.Engine = (*observableEngine)(nil)

func Wrap(eng interfaces.Engine, symbol string) interfaces.Engine {
	return &observableEngine{
		engine: eng,
		symbol: symbol,
	}
}

func (oe *observableEngine) Run(ctx context.Context) (*types.Outcome, error) {
	ctx, span := trace.StartSpan(ctx, "engine.Run")
	defer span.End()

	start := time.Now()

	logger.InfoSkip(ctx, 1, "Starting decision cycle",
		"symbol", oe.symbol,
	)

	outcome, err := oe.engine.Run(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Decision cycle failed", err,
			"symbol", oe.symbol,
			"outcome", string(outcome.Kind),
			"step", outcome.Step,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return outcome, err
	}

	fields := []any{
		"symbol", oe.symbol,
		"outcome", string(outcome.Kind),
		"duration_ms", time.Since(start).Milliseconds(),
	}
	if outcome.Decision != nil {
		fields = append(fields, "action", string(outcome.Decision.Action), "reason", outcome.Decision.Reason)
	}
	logger.InfoSkip(ctx, 1, "Decision cycle completed", fields...)

	return outcome, nil
}
