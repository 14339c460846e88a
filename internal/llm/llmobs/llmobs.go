package llmobs

import (
	"context"
	"time"

	"crypto-trading-bot/internal/interfaces"
	"crypto-trading-bot/internal/logger"
	"crypto-trading-bot/internal/trace"
)

// observableAdvisor wraps an Advisor with observability (logging & tracing)
type observableAdvisor struct {
	advisor  interfaces.Advisor
	provider string
}

// Compile-time interface check
var _ interfaces.Advisor = (*observableAdvisor)(nil)

// Wrap wraps an advisor with observability middleware
func Wrap(advisor interfaces.Advisor, provider string) interfaces.Advisor {
	return &observableAdvisor{
		advisor:  advisor,
		provider: provider,
	}
}

// Advise requests advisory text with observability
func (oa *observableAdvisor) Advise(ctx context.Context, prompt string) (string, error) {
	ctx, span := trace.StartSpan(ctx, "llm.Advise")
	defer span.End()

	// Use DebugSkip(1) to report the actual caller, not this middleware wrapper
	logger.DebugSkip(ctx, 1, "Requesting trading advice",
		"provider", oa.provider,
		"prompt_bytes", len(prompt),
	)

	start := time.Now()
	text, err := oa.advisor.Advise(ctx, prompt)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to get trading advice", err,
			"provider", oa.provider,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return "", err
	}

	logger.InfoSkip(ctx, 1, "Trading advice received",
		"provider", oa.provider,
		"response_bytes", len(text),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	if logger.IsDebugEnabled() {
		logger.DebugSkip(ctx, 1, "Raw advice", "provider", oa.provider, "text", text)
	}
	return text, nil
}
