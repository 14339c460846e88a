package noop

import (
	"context"

	"crypto-trading-bot/internal/logger"
)

// Response is what the noop advisor always answers. It still goes through
// the signal parser like any provider output.
const Response = `{"decision":"hold","reason":"noop_advisor"}`

// NoopAdvisor is used when no LLM provider is configured
type NoopAdvisor struct{}

// NewNoopAdvisor returns a new instance that always advises hold
func NewNoopAdvisor() *NoopAdvisor {
	return &NoopAdvisor{}
}

// Advise implements the Advisor interface
func (a *NoopAdvisor) Advise(ctx context.Context, prompt string) (string, error) {
	logger.Debug(ctx, "Noop advisor called - always returns hold", "prompt_bytes", len(prompt))
	return Response, nil
}
