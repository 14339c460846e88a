package interfaces

import (
	"context"

	"crypto-trading-bot/internal/types"
)

// Exchange is the authenticated gateway to the trading venue. Calls are
// synchronous and are never retried by the caller.
type Exchange interface {
	// Account returns the base and quote balances of the configured market
	Account(ctx context.Context) (types.AccountSnapshot, error)

	// Candles returns the newest count candles of a timeframe, oldest first
	Candles(ctx context.Context, timeframe string, count int) (types.CandleSeries, error)

	// PlaceOrder submits a market order
	PlaceOrder(ctx context.Context, req types.OrderRequest) (types.OrderResult, error)
}
