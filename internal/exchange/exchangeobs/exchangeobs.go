package exchangeobs

import (
	"context"

	"crypto-trading-bot/internal/interfaces"
	"crypto-trading-bot/internal/logger"
	"crypto-trading-bot/internal/trace"
	"crypto-trading-bot/internal/types"
)

// observableExchange wraps an Exchange with observability (logging & tracing)
type observableExchange struct {
	exchange interfaces.Exchange
}

// Compile-time interface check
var _ interfaces.Exchange = (*observableExchange)(nil)

// Wrap wraps an exchange with observability middleware
func Wrap(exchange interfaces.Exchange) interfaces.Exchange {
	return &observableExchange{
		exchange: exchange,
	}
}

// Account fetches balances with observability
func (oe *observableExchange) Account(ctx context.Context) (types.AccountSnapshot, error) {
	ctx, span := trace.StartSpan(ctx, "exchange.Account")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Fetching account balances")

	acct, err := oe.exchange.Account(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch account", err)
		return types.AccountSnapshot{}, err
	}

	logger.DebugSkip(ctx, 1, "Account fetched successfully",
		"base_balance", acct.Base.String(),
		"quote_balance", acct.Quote.String(),
		"base_avg_buy_price", acct.BaseAvgBuyPrice.String(),
	)
	return acct, nil
}

// Candles fetches candles with observability
func (oe *observableExchange) Candles(ctx context.Context, interval string, count int) (types.CandleSeries, error) {
	ctx, span := trace.StartSpan(ctx, "exchange.Candles")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Fetching candles", "interval", interval, "count", count)

	series, err := oe.exchange.Candles(ctx, interval, count)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch candles", err, "interval", interval, "count", count)
		return types.CandleSeries{}, err
	}

	fields := []any{"interval", interval, "count", len(series.Candles)}
	if latest, ok := series.Latest(); ok {
		fields = append(fields, "latest_close", latest.Close.String(), "latest_time", latest.Time)
	}
	logger.DebugSkip(ctx, 1, "Candles fetched successfully", fields...)
	return series, nil
}

// PlaceOrder places an order with observability
func (oe *observableExchange) PlaceOrder(ctx context.Context, req types.OrderRequest) (types.OrderResult, error) {
	ctx, span := trace.StartSpan(ctx, "exchange.PlaceOrder")
	defer span.End()

	logger.InfoSkip(ctx, 1, "Placing order",
		"side", string(req.Side),
		"quantity", req.Quantity.String(),
		"kind", string(req.Kind),
	)

	res, err := oe.exchange.PlaceOrder(ctx, req)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to place order", err,
			"side", string(req.Side),
			"quantity", req.Quantity.String(),
		)
		return types.OrderResult{}, err
	}

	logger.InfoSkip(ctx, 1, "Order placed successfully",
		"order_id", res.OrderID,
		"state", res.State,
		"simulated", res.Simulated,
	)
	return res, nil
}
