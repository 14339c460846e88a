package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"crypto-trading-bot/internal/interfaces"
	"crypto-trading-bot/internal/llm/prompt"
	"crypto-trading-bot/internal/logger"
	"crypto-trading-bot/internal/risk"
	"crypto-trading-bot/internal/signal"
	"crypto-trading-bot/internal/store"
	"crypto-trading-bot/internal/ta"
	"crypto-trading-bot/internal/types"
)

// Sentinel errors wrapped by Run for each failure outcome.
var (
	ErrDataUnavailable     = errors.New("market or account data unavailable")
	ErrAdvisoryUnavailable = errors.New("advisory service unavailable")
	ErrSignalInvalid       = errors.New("advisory signal invalid")
	ErrOrderFailed         = errors.New("order failed")
)

// Cycle step names reported on every outcome.
const (
	StepSnapshot       = "snapshot"
	StepGuard          = "guard"
	StepAdvise         = "advise"
	StepParse          = "parse"
	StepSize           = "size"
	StepReferencePrice = "reference_price"
	StepSubmit         = "submit"
)

// Recorder receives every finished outcome (journal, metrics).
type Recorder interface {
	RecordOutcome(ctx context.Context, o *types.Outcome)
}

type Options struct {
	Recorders []Recorder
	Now       func() time.Time
}

// Engine runs one decision cycle per Run call. It keeps no state between
// cycles.
type Engine struct {
	cfg       *store.Config
	exchange  interfaces.Exchange
	advisor   interfaces.Advisor
	sizer     *risk.Sizer
	guard     *risk.Guard
	prompt    prompt.Builder
	params    ta.Params
	recorders []Recorder
	now       func() time.Time
}

func newEngine(cfg *store.Config, ex interfaces.Exchange, adv interfaces.Advisor, opts Options) *Engine {
	rc := risk.FromStore(cfg)
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		cfg:      cfg,
		exchange: ex,
		advisor:  adv,
		sizer:    risk.NewSizer(rc),
		guard:    risk.NewGuard(rc),
		prompt: prompt.Builder{
			InstructionsFile: cfg.LLM.InstructionsFile,
			Base:             cfg.Market.Base,
			Quote:            cfg.Market.Quote,
		},
		params:    ta.DefaultParams(),
		recorders: opts.Recorders,
		now:       now,
	}
}

// Run executes snapshot, guard, advise, parse, size and submit in order. The
// returned outcome is never nil; the error is non-nil only for failure kinds
// and wraps the matching sentinel.
func (e *Engine) Run(ctx context.Context) (*types.Outcome, error) {
	o := &types.Outcome{Started: e.now()}
	err := e.run(ctx, o)
	o.Duration = e.now().Sub(o.Started)
	if err != nil {
		o.Error = err.Error()
	}

	logger.Outcome(ctx, o)
	for _, r := range e.recorders {
		r.RecordOutcome(ctx, o)
	}
	return o, err
}

func (e *Engine) run(ctx context.Context, o *types.Outcome) error {
	// 1. snapshot
	o.Step = StepSnapshot
	market, err := e.snapshot(ctx)
	if err != nil {
		o.Kind = types.DataUnavailable
		return fmt.Errorf("%w: %w", ErrDataUnavailable, err)
	}
	account, err := e.exchange.Account(ctx)
	if err != nil {
		o.Kind = types.DataUnavailable
		return fmt.Errorf("%w: account: %w", ErrDataUnavailable, err)
	}
	o.Account = &account

	shortest := e.cfg.ShortestTimeframe()
	if price, ok := market.LatestClose(shortest.Name); ok {
		o.Price = price
	}

	// 2. guard
	var decision types.Decision
	o.Step = StepGuard
	if trigger, hit := e.guard.Check(ctx, account, o.Price); hit {
		o.Trigger = trigger
		decision = types.Decision{Action: types.Sell, Reason: trigger}
	} else {
		// 3. advise
		o.Step = StepAdvise
		text, err := e.advise(ctx, market, account)
		o.RawAdvice = text
		if err != nil {
			o.Kind = types.AdvisoryUnavailable
			return fmt.Errorf("%w: %w", ErrAdvisoryUnavailable, err)
		}

		// 4. parse
		o.Step = StepParse
		decision, err = signal.Parse(text)
		if err != nil {
			o.Kind = types.SignalInvalid
			return fmt.Errorf("%w: %w", ErrSignalInvalid, err)
		}
	}
	o.Decision = &decision
	logger.Decision(ctx, decision, o.Trigger, "symbol", e.cfg.Symbol())

	// 5. hold
	if decision.Action == types.Hold {
		o.Kind = types.HeldNoAction
		return nil
	}

	// 6. size
	if decision.Action == types.Buy {
		o.Step = StepReferencePrice
		price, err := e.referencePrice(ctx, shortest)
		if err != nil {
			o.Kind = types.DataUnavailable
			return fmt.Errorf("%w: reference price: %w", ErrDataUnavailable, err)
		}
		o.Price = price
	}
	o.Step = StepSize
	req, err := e.sizer.Size(ctx, decision.Action, account, o.Price)
	if err != nil {
		o.Kind = types.DataUnavailable
		if decision.Action == types.Buy && errors.Is(err, risk.ErrInvalidPrice) {
			o.Step = StepReferencePrice
		}
		return fmt.Errorf("%w: %w", ErrDataUnavailable, err)
	}
	if req == nil {
		o.Kind = types.SkippedBelowThreshold
		return nil
	}
	o.Order = req

	// 7. submit, exactly once
	o.Step = StepSubmit
	res, err := e.exchange.PlaceOrder(ctx, *req)
	if err != nil {
		o.Kind = types.OrderFailed
		return fmt.Errorf("%w: %w", ErrOrderFailed, err)
	}
	o.Result = &res
	o.Kind = types.Executed
	logger.Trade(ctx, e.cfg.Symbol(), *req, res, "price", o.Price.String(), "reason", decision.Reason)
	return nil
}

// snapshot fetches every configured timeframe and computes its indicators.
func (e *Engine) snapshot(ctx context.Context) (types.MarketSnapshot, error) {
	snap := types.MarketSnapshot{TakenAt: e.now()}
	for _, tf := range e.cfg.Timeframes {
		series, err := e.exchange.Candles(ctx, tf.Interval, tf.Count)
		if err != nil {
			return types.MarketSnapshot{}, fmt.Errorf("%s candles: %w", tf.Name, err)
		}
		if len(series.Candles) == 0 {
			return types.MarketSnapshot{}, fmt.Errorf("%s candles: empty series", tf.Name)
		}
		series.Timeframe = tf.Name
		snap.Frames = append(snap.Frames, ta.BuildFrame(series, e.params))
	}
	return snap, nil
}

func (e *Engine) advise(ctx context.Context, market types.MarketSnapshot, account types.AccountSnapshot) (string, error) {
	p, err := e.prompt.Build(market, account)
	if p == "" {
		return "", err
	}
	if err != nil {
		logger.Warn(ctx, "Instructions file unreadable, using fallback", "file", e.prompt.InstructionsFile, "error", err)
	}

	text, err := e.advisor.Advise(ctx, p)
	if err != nil {
		return text, err
	}
	if strings.TrimSpace(text) == "" {
		return text, errors.New("empty advisory response")
	}
	return text, nil
}

// referencePrice is the latest close of the shortest timeframe, fetched at
// order time.
func (e *Engine) referencePrice(ctx context.Context, tf store.Timeframe) (decimal.Decimal, error) {
	series, err := e.exchange.Candles(ctx, tf.Interval, 1)
	if err != nil {
		return decimal.Zero, err
	}
	latest, ok := series.Latest()
	if !ok {
		return decimal.Zero, errors.New("no candles returned")
	}
	return latest.Close, nil
}
