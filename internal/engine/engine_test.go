package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"crypto-trading-bot/internal/risk"
	"crypto-trading-bot/internal/signal"
	"crypto-trading-bot/internal/store"
	"crypto-trading-bot/internal/types"
)

type fakeExchange struct {
	mu         sync.Mutex
	account    types.AccountSnapshot
	accountErr error
	close      decimal.Decimal
	refClose   decimal.Decimal
	candlesErr error
	refErr     error
	orderErr   error
	orders     []types.OrderRequest
}

func (f *fakeExchange) Account(ctx context.Context) (types.AccountSnapshot, error) {
	return f.account, f.accountErr
}

func (f *fakeExchange) Candles(ctx context.Context, timeframe string, count int) (types.CandleSeries, error) {
	if f.candlesErr != nil {
		return types.CandleSeries{}, f.candlesErr
	}
	px := f.close
	if count == 1 {
		if f.refErr != nil {
			return types.CandleSeries{}, f.refErr
		}
		if !f.refClose.IsZero() {
			px = f.refClose
		}
	}
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	s := types.CandleSeries{Timeframe: timeframe}
	for i := 0; i < count; i++ {
		s.Candles = append(s.Candles, types.Candle{
			Time:   start.Add(time.Duration(i) * time.Hour),
			Open:   px,
			High:   px,
			Low:    px,
			Close:  px,
			Volume: decimal.NewFromInt(1),
		})
	}
	return s, nil
}

func (f *fakeExchange) PlaceOrder(ctx context.Context, req types.OrderRequest) (types.OrderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders = append(f.orders, req)
	if f.orderErr != nil {
		return types.OrderResult{}, f.orderErr
	}
	return types.OrderResult{OrderID: "order-1", State: "wait"}, nil
}

type fakeAdvisor struct {
	text   string
	err    error
	calls  int
	prompt string
}

func (f *fakeAdvisor) Advise(ctx context.Context, prompt string) (string, error) {
	f.calls++
	f.prompt = prompt
	return f.text, f.err
}

type captureRecorder struct {
	outcomes []*types.Outcome
}

func (c *captureRecorder) RecordOutcome(ctx context.Context, o *types.Outcome) {
	c.outcomes = append(c.outcomes, o)
}

func testConfig(t *testing.T, yaml string) *store.Config {
	t.Helper()
	cfg, err := store.ParseConfig([]byte(yaml))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	cfg.LLM.InstructionsFile = t.TempDir() + "/missing.md"
	return cfg
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newFakes() (*fakeExchange, *fakeAdvisor) {
	ex := &fakeExchange{
		account: types.AccountSnapshot{Quote: d("1000000"), Base: d("0.5")},
		close:   d("50000000"),
	}
	return ex, &fakeAdvisor{text: `{"decision":"hold","reason":"flat"}`}
}

func TestRunHold(t *testing.T) {
	ex, adv := newFakes()
	rec := &captureRecorder{}
	eng := newEngine(testConfig(t, ""), ex, adv, Options{Recorders: []Recorder{rec}})

	o, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if o.Kind != types.HeldNoAction {
		t.Errorf("Expected HELD_NO_ACTION, got %s", o.Kind)
	}
	if len(ex.orders) != 0 {
		t.Errorf("Expected no orders, got %d", len(ex.orders))
	}
	if o.Decision == nil || o.Decision.Reason != "flat" {
		t.Errorf("Expected decision with reason, got %+v", o.Decision)
	}
	if len(rec.outcomes) != 1 || rec.outcomes[0] != o {
		t.Errorf("Expected recorder to receive the outcome once, got %d", len(rec.outcomes))
	}
	if adv.prompt == "" {
		t.Error("Expected advisor to receive a prompt")
	}
}

func TestRunBuy(t *testing.T) {
	ex, adv := newFakes()
	ex.refClose = d("40000000")
	adv.text = "```json\n{\"decision\":\"buy\",\"reason\":\"breakout\"}\n```"
	cfg := testConfig(t, "")
	eng := newEngine(cfg, ex, adv, Options{})

	o, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if o.Kind != types.Executed {
		t.Fatalf("Expected EXECUTED, got %s", o.Kind)
	}
	if len(ex.orders) != 1 {
		t.Fatalf("Expected exactly one order, got %d", len(ex.orders))
	}
	req := ex.orders[0]
	if req.Side != types.Buy || req.Kind != types.Market {
		t.Errorf("Expected market buy, got %+v", req)
	}
	// sized against the price fetched at order time
	if !o.Price.Equal(d("40000000")) {
		t.Errorf("Expected reference price 40000000, got %s", o.Price)
	}
	bound := ex.account.Quote.Mul(decimal.NewFromInt(1).Sub(cfg.Risk.FeeBuffer))
	if !req.Quantity.IsPositive() || req.Quantity.Mul(o.Price).GreaterThan(bound) {
		t.Errorf("Expected 0 < qty*price <= %s, got qty %s", bound, req.Quantity)
	}
	if !req.Quantity.Equal(d("0.0249875")) {
		t.Errorf("Expected qty 0.0249875, got %s", req.Quantity)
	}
	if o.Result == nil || o.Result.OrderID != "order-1" {
		t.Errorf("Expected order result, got %+v", o.Result)
	}
}

func TestRunSell(t *testing.T) {
	ex, adv := newFakes()
	adv.text = `{"decision":"sell","reason":"overbought"}`
	eng := newEngine(testConfig(t, ""), ex, adv, Options{})

	o, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if o.Kind != types.Executed || len(ex.orders) != 1 {
		t.Fatalf("Expected one executed order, got %s with %d orders", o.Kind, len(ex.orders))
	}
	if !ex.orders[0].Quantity.Equal(d("0.5")) || ex.orders[0].Side != types.Sell {
		t.Errorf("Expected full sell of 0.5, got %+v", ex.orders[0])
	}
}

func TestRunDataUnavailable(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*fakeExchange)
		step  string
	}{
		{"candles", func(f *fakeExchange) { f.candlesErr = errors.New("timeout") }, StepSnapshot},
		{"account", func(f *fakeExchange) { f.accountErr = errors.New("401") }, StepSnapshot},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex, adv := newFakes()
			adv.text = `{"decision":"buy","reason":"x"}`
			tt.setup(ex)
			eng := newEngine(testConfig(t, ""), ex, adv, Options{})

			o, err := eng.Run(context.Background())
			if !errors.Is(err, ErrDataUnavailable) {
				t.Fatalf("Expected ErrDataUnavailable, got %v", err)
			}
			if o == nil || o.Kind != types.DataUnavailable || o.Step != tt.step {
				t.Errorf("Expected DATA_UNAVAILABLE at %s, got %+v", tt.step, o)
			}
			if adv.calls != 0 || len(ex.orders) != 0 {
				t.Errorf("Expected no advice and no orders, got %d calls and %d orders", adv.calls, len(ex.orders))
			}
		})
	}
}

func TestRunReferencePriceUnavailable(t *testing.T) {
	ex, adv := newFakes()
	ex.refErr = errors.New("503")
	adv.text = `{"decision":"buy","reason":"x"}`
	eng := newEngine(testConfig(t, ""), ex, adv, Options{})

	o, err := eng.Run(context.Background())
	if !errors.Is(err, ErrDataUnavailable) {
		t.Fatalf("Expected ErrDataUnavailable, got %v", err)
	}
	if o.Step != StepReferencePrice || len(ex.orders) != 0 {
		t.Errorf("Expected failure at reference_price with no orders, got %s and %d orders", o.Step, len(ex.orders))
	}
}

func TestRunInvalidReferencePrice(t *testing.T) {
	ex, adv := newFakes()
	ex.refClose = d("-1")
	adv.text = `{"decision":"buy","reason":"x"}`
	eng := newEngine(testConfig(t, ""), ex, adv, Options{})

	o, err := eng.Run(context.Background())
	if !errors.Is(err, ErrDataUnavailable) || !errors.Is(err, risk.ErrInvalidPrice) {
		t.Fatalf("Expected ErrDataUnavailable wrapping ErrInvalidPrice, got %v", err)
	}
	if o.Kind != types.DataUnavailable || o.Step != StepReferencePrice || len(ex.orders) != 0 {
		t.Errorf("Expected DATA_UNAVAILABLE at reference_price with no orders, got %s at %s and %d orders", o.Kind, o.Step, len(ex.orders))
	}
}

func TestRunAdvisoryUnavailable(t *testing.T) {
	tests := []struct {
		name string
		text string
		err  error
	}{
		{"error", "", errors.New("quota exceeded")},
		{"blank", "   \n", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex, adv := newFakes()
			adv.text, adv.err = tt.text, tt.err
			eng := newEngine(testConfig(t, ""), ex, adv, Options{})

			o, err := eng.Run(context.Background())
			if !errors.Is(err, ErrAdvisoryUnavailable) {
				t.Fatalf("Expected ErrAdvisoryUnavailable, got %v", err)
			}
			if o.Kind != types.AdvisoryUnavailable || len(ex.orders) != 0 {
				t.Errorf("Expected ADVISORY_UNAVAILABLE with no orders, got %s and %d orders", o.Kind, len(ex.orders))
			}
		})
	}
}

func TestRunSignalInvalid(t *testing.T) {
	ex, adv := newFakes()
	adv.text = "I would buy here."
	eng := newEngine(testConfig(t, ""), ex, adv, Options{})

	o, err := eng.Run(context.Background())
	if !errors.Is(err, ErrSignalInvalid) || !errors.Is(err, signal.ErrInvalid) {
		t.Fatalf("Expected ErrSignalInvalid wrapping signal.ErrInvalid, got %v", err)
	}
	if o.Kind != types.SignalInvalid || o.RawAdvice != adv.text {
		t.Errorf("Expected SIGNAL_INVALID with raw advice kept, got %s %q", o.Kind, o.RawAdvice)
	}
	if len(ex.orders) != 0 {
		t.Errorf("Expected no orders, got %d", len(ex.orders))
	}
}

func TestRunOrderFailedNoRetry(t *testing.T) {
	ex, adv := newFakes()
	ex.orderErr = errors.New("insufficient_funds")
	adv.text = `{"decision":"sell","reason":"x"}`
	eng := newEngine(testConfig(t, ""), ex, adv, Options{})

	o, err := eng.Run(context.Background())
	if !errors.Is(err, ErrOrderFailed) {
		t.Fatalf("Expected ErrOrderFailed, got %v", err)
	}
	if o.Kind != types.OrderFailed || o.Step != StepSubmit {
		t.Errorf("Expected ORDER_FAILED at submit, got %s at %s", o.Kind, o.Step)
	}
	if len(ex.orders) != 1 {
		t.Errorf("Expected exactly one submission, got %d", len(ex.orders))
	}
}

func TestRunBelowThreshold(t *testing.T) {
	ex, adv := newFakes()
	ex.account.Quote = d("500")
	adv.text = `{"decision":"buy","reason":"x"}`
	eng := newEngine(testConfig(t, ""), ex, adv, Options{})

	o, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if o.Kind != types.SkippedBelowThreshold || len(ex.orders) != 0 {
		t.Errorf("Expected SKIPPED_BELOW_THRESHOLD with no orders, got %s and %d orders", o.Kind, len(ex.orders))
	}
}

func TestRunGuardSkipsAdvisor(t *testing.T) {
	tests := []struct {
		name    string
		avg     string
		trigger string
	}{
		{"take profit", "40000000", risk.TriggerTakeProfit},
		{"stop loss", "60000000", risk.TriggerStopLoss},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex, adv := newFakes()
			ex.account.BaseAvgBuyPrice = d(tt.avg)
			cfg := testConfig(t, "risk:\n  take_profit_ratio: 1.1\n  stop_loss_ratio: 0.9\n")
			eng := newEngine(cfg, ex, adv, Options{})

			o, err := eng.Run(context.Background())
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if adv.calls != 0 {
				t.Errorf("Expected advisor to be skipped, got %d calls", adv.calls)
			}
			if o.Trigger != tt.trigger || o.Kind != types.Executed {
				t.Errorf("Expected %s execution, got %s %s", tt.trigger, o.Trigger, o.Kind)
			}
			if len(ex.orders) != 1 || ex.orders[0].Side != types.Sell || !ex.orders[0].Quantity.Equal(d("0.5")) {
				t.Errorf("Expected one full sell, got %+v", ex.orders)
			}
		})
	}
}

func TestRunGuardInsideBandAsksAdvisor(t *testing.T) {
	ex, adv := newFakes()
	ex.account.BaseAvgBuyPrice = d("49000000")
	cfg := testConfig(t, "risk:\n  take_profit_ratio: 1.1\n  stop_loss_ratio: 0.9\n")
	eng := newEngine(cfg, ex, adv, Options{})

	o, _ := eng.Run(context.Background())
	if adv.calls != 1 || o.Trigger != "" {
		t.Errorf("Expected advisor call without trigger, got %d calls and trigger %q", adv.calls, o.Trigger)
	}
}
