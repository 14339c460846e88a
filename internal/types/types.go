package types

import (
	"encoding/json"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Candle is one OHLCV bar.
type Candle struct {
	Time                           time.Time
	Open, High, Low, Close, Volume decimal.Decimal
}

// CandleSeries is ordered oldest-first: Candles[0] is the oldest bar and the
// last element is the most recent one.
type CandleSeries struct {
	Timeframe string
	Candles   []Candle
}

// Latest returns the newest candle of the series.
func (s CandleSeries) Latest() (Candle, bool) {
	if len(s.Candles) == 0 {
		return Candle{}, false
	}
	return s.Candles[len(s.Candles)-1], true
}

// IndicatorRow is one candle plus the indicators computed up to and including
// it. Values are NaN until enough history exists.
type IndicatorRow struct {
	Candle
	SMA10      Float
	EMA10      Float
	RSI14      Float
	StochK     Float
	StochD     Float
	MACD       Float
	MACDSignal Float
	MACDHist   Float
	BBMiddle   Float
	BBUpper    Float
	BBLower    Float
}

// MarshalJSON flattens the candle fields next to the indicators.
func (r IndicatorRow) MarshalJSON() ([]byte, error) {
	type row struct {
		Time       int64           `json:"time"`
		Open       decimal.Decimal `json:"open"`
		High       decimal.Decimal `json:"high"`
		Low        decimal.Decimal `json:"low"`
		Close      decimal.Decimal `json:"close"`
		Volume     decimal.Decimal `json:"volume"`
		SMA10      Float           `json:"sma_10"`
		EMA10      Float           `json:"ema_10"`
		RSI14      Float           `json:"rsi_14"`
		StochK     Float           `json:"stoch_k"`
		StochD     Float           `json:"stoch_d"`
		MACD       Float           `json:"macd"`
		MACDSignal Float           `json:"macd_signal"`
		MACDHist   Float           `json:"macd_histogram"`
		BBMiddle   Float           `json:"bb_middle"`
		BBUpper    Float           `json:"bb_upper"`
		BBLower    Float           `json:"bb_lower"`
	}
	return json.Marshal(row{
		Time: r.Time.UnixMilli(), Open: r.Open, High: r.High, Low: r.Low, Close: r.Close, Volume: r.Volume,
		SMA10: r.SMA10, EMA10: r.EMA10, RSI14: r.RSI14, StochK: r.StochK, StochD: r.StochD,
		MACD: r.MACD, MACDSignal: r.MACDSignal, MACDHist: r.MACDHist,
		BBMiddle: r.BBMiddle, BBUpper: r.BBUpper, BBLower: r.BBLower,
	})
}

// Float is a float64 that encodes NaN and Inf as JSON null.
type Float float64

func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}

// Valid reports whether the value is a finite number.
func (f Float) Valid() bool {
	v := float64(f)
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// IndicatorFrame is a CandleSeries augmented with indicators, one row per candle.
type IndicatorFrame struct {
	Timeframe string         `json:"timeframe"`
	Rows      []IndicatorRow `json:"rows"`
}

// MarketSnapshot holds every configured timeframe captured in one cycle.
type MarketSnapshot struct {
	TakenAt time.Time        `json:"taken_at"`
	Frames  []IndicatorFrame `json:"frames"`
}

// LatestClose returns the close of the newest row of the named timeframe.
func (m MarketSnapshot) LatestClose(timeframe string) (decimal.Decimal, bool) {
	for _, f := range m.Frames {
		if f.Timeframe == timeframe && len(f.Rows) > 0 {
			return f.Rows[len(f.Rows)-1].Close, true
		}
	}
	return decimal.Zero, false
}

type AccountSnapshot struct {
	Base            decimal.Decimal `json:"base_balance"`
	Quote           decimal.Decimal `json:"quote_balance"`
	BaseAvgBuyPrice decimal.Decimal `json:"base_avg_buy_price"`
	Time            time.Time       `json:"time"`
}

type Action string

const (
	Buy  Action = "buy"
	Sell Action = "sell"
	Hold Action = "hold"
)

type Decision struct {
	Action Action `json:"decision"`
	Reason string `json:"reason"`
}

type OrderKind string

const Market OrderKind = "market"

type OrderRequest struct {
	Side     Action          `json:"side"`
	Quantity decimal.Decimal `json:"quantity"`
	Kind     OrderKind       `json:"order_kind"`
}

type OrderResult struct {
	OrderID   string `json:"order_id"`
	State     string `json:"state"`
	Simulated bool   `json:"simulated,omitempty"`
}

// OutcomeKind classifies how a decision cycle ended.
type OutcomeKind string

const (
	DataUnavailable       OutcomeKind = "DATA_UNAVAILABLE"
	AdvisoryUnavailable   OutcomeKind = "ADVISORY_UNAVAILABLE"
	SignalInvalid         OutcomeKind = "SIGNAL_INVALID"
	HeldNoAction          OutcomeKind = "HELD_NO_ACTION"
	SkippedBelowThreshold OutcomeKind = "SKIPPED_BELOW_THRESHOLD"
	Executed              OutcomeKind = "EXECUTED"
	OrderFailed           OutcomeKind = "ORDER_FAILED"
)

// Failed reports whether the kind is one of the failure outcomes.
func (k OutcomeKind) Failed() bool {
	switch k {
	case DataUnavailable, AdvisoryUnavailable, SignalInvalid, OrderFailed:
		return true
	}
	return false
}

// Outcome is the report of one decision cycle.
type Outcome struct {
	Kind      OutcomeKind      `json:"kind"`
	Step      string           `json:"step"`
	Trigger   string           `json:"trigger,omitempty"`
	Decision  *Decision        `json:"decision,omitempty"`
	Account   *AccountSnapshot `json:"account,omitempty"`
	Price     decimal.Decimal  `json:"price"`
	Order     *OrderRequest    `json:"order,omitempty"`
	Result    *OrderResult     `json:"result,omitempty"`
	RawAdvice string           `json:"raw_advice,omitempty"`
	Error     string           `json:"error,omitempty"`
	Started   time.Time        `json:"started"`
	Duration  time.Duration    `json:"duration"`
}
