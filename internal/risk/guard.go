package risk

import (
	"context"

	"github.com/shopspring/decimal"

	"crypto-trading-bot/internal/logger"
	"crypto-trading-bot/internal/types"
)

const (
	TriggerTakeProfit = "take_profit"
	TriggerStopLoss   = "stop_loss"
)

// Guard forces an exit when price leaves the band around the exchange's
// average buy price. It keeps no state between cycles.
type Guard struct {
	cfg Config
}

func NewGuard(cfg Config) *Guard {
	return &Guard{cfg: cfg}
}

// Enabled reports whether at least one exit ratio is configured.
func (g *Guard) Enabled() bool {
	return !g.cfg.TakeProfitRatio.IsZero() || !g.cfg.StopLossRatio.IsZero()
}

// Check compares price with the take-profit and stop-loss levels derived from
// account.BaseAvgBuyPrice.
//
// Returns:
//   - trigger: TriggerTakeProfit or TriggerStopLoss
//   - ok: false when no band is crossed, the guard is disabled, the average
//     price is unknown, or the base balance is at or below the sell floor
func (g *Guard) Check(ctx context.Context, account types.AccountSnapshot, price decimal.Decimal) (trigger string, ok bool) {
	if !g.Enabled() || !account.BaseAvgBuyPrice.IsPositive() || !price.IsPositive() {
		return "", false
	}
	if !account.Base.GreaterThan(g.cfg.MinBaseBalance) {
		return "", false
	}

	avg := account.BaseAvgBuyPrice
	if !g.cfg.TakeProfitRatio.IsZero() {
		if level := avg.Mul(g.cfg.TakeProfitRatio); price.GreaterThanOrEqual(level) {
			g.log(ctx, TriggerTakeProfit, account, price, level)
			return TriggerTakeProfit, true
		}
	}
	if !g.cfg.StopLossRatio.IsZero() {
		if level := avg.Mul(g.cfg.StopLossRatio); price.LessThanOrEqual(level) {
			g.log(ctx, TriggerStopLoss, account, price, level)
			return TriggerStopLoss, true
		}
	}
	return "", false
}

func (g *Guard) log(ctx context.Context, trigger string, account types.AccountSnapshot, price, level decimal.Decimal) {
	unrealized := price.Sub(account.BaseAvgBuyPrice).Mul(account.Base)
	logger.Warn(ctx, "Exit band crossed",
		"event", "POSITION_GUARD_TRIGGERED",
		"trigger", trigger,
		"current_price", price.String(),
		"level", level.String(),
		"position_qty", account.Base.String(),
		"position_avg", account.BaseAvgBuyPrice.String(),
		"unrealized_pnl", unrealized.StringFixed(0),
	)
}
