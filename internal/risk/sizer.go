package risk

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"crypto-trading-bot/internal/logger"
	"crypto-trading-bot/internal/store"
	"crypto-trading-bot/internal/types"
)

// ErrInvalidPrice is returned when a buy is sized against a non-positive price.
var ErrInvalidPrice = errors.New("reference price must be positive")

// Config holds the balance floors, fee buffer and exit bands.
type Config struct {
	MinQuoteBalance   decimal.Decimal
	MinBaseBalance    decimal.Decimal
	FeeBuffer         decimal.Decimal
	QuantityPrecision int32
	TakeProfitRatio   decimal.Decimal
	StopLossRatio     decimal.Decimal
}

// FromStore copies the risk section of the application config.
func FromStore(cfg *store.Config) Config {
	return Config{
		MinQuoteBalance:   cfg.Risk.MinQuoteBalance,
		MinBaseBalance:    cfg.Risk.MinBaseBalance,
		FeeBuffer:         cfg.Risk.FeeBuffer,
		QuantityPrecision: cfg.Risk.QuantityPrecision,
		TakeProfitRatio:   cfg.Risk.TakeProfitRatio,
		StopLossRatio:     cfg.Risk.StopLossRatio,
	}
}

// Sizer turns a decision into an order quantity.
type Sizer struct {
	cfg Config
}

func NewSizer(cfg Config) *Sizer {
	return &Sizer{cfg: cfg}
}

// Size computes the order for action against the given account snapshot.
//
// Buy spends the whole quote balance minus the fee buffer at price:
//
//	qty = quote * (1 - fee_buffer) / price
//
// Sell exits the whole base balance. Quantities are truncated to
// QuantityPrecision decimal places and never rounded up.
//
// Returns:
//   - nil, nil when the balance is at or below its floor, the truncated
//     quantity is zero, or action is Hold
//   - ErrInvalidPrice for a buy with price <= 0
func (s *Sizer) Size(ctx context.Context, action types.Action, account types.AccountSnapshot, price decimal.Decimal) (*types.OrderRequest, error) {
	var qty decimal.Decimal

	switch action {
	case types.Buy:
		if !account.Quote.GreaterThan(s.cfg.MinQuoteBalance) {
			logger.Debug(ctx, "Quote balance below buy floor",
				"quote_balance", account.Quote.String(),
				"min_quote_balance", s.cfg.MinQuoteBalance.String(),
			)
			return nil, nil
		}
		if !price.IsPositive() {
			return nil, ErrInvalidPrice
		}
		spend := account.Quote.Mul(decimal.NewFromInt(1).Sub(s.cfg.FeeBuffer))
		// QuoRem truncates toward zero at the requested precision.
		qty, _ = spend.QuoRem(price, s.cfg.QuantityPrecision)

	case types.Sell:
		if !account.Base.GreaterThan(s.cfg.MinBaseBalance) {
			logger.Debug(ctx, "Base balance below sell floor",
				"base_balance", account.Base.String(),
				"min_base_balance", s.cfg.MinBaseBalance.String(),
			)
			return nil, nil
		}
		qty = account.Base

	default:
		return nil, nil
	}

	qty = qty.Truncate(s.cfg.QuantityPrecision)
	if !qty.IsPositive() {
		logger.Debug(ctx, "Quantity truncates to zero", "side", string(action), "precision", s.cfg.QuantityPrecision)
		return nil, nil
	}

	return &types.OrderRequest{Side: action, Quantity: qty, Kind: types.Market}, nil
}
