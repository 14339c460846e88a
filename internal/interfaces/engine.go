package interfaces

import (
	"context"

	"crypto-trading-bot/internal/types"
)

// Engine runs one decision cycle. The outcome is always non-nil; the error is
// set only for failure outcomes.
type Engine interface {
	Run(ctx context.Context) (*types.Outcome, error)
}
