package ta

import "crypto-trading-bot/internal/types"

// Params are the indicator lengths applied to every timeframe.
type Params struct {
	SMALength    int
	EMALength    int
	RSIPeriod    int
	StochK       int
	StochD       int
	StochSmoothK int
	MACDFast     int
	MACDSlow     int
	MACDSignal   int
	BBWindow     int
	BBStdDev     float64
}

func DefaultParams() Params {
	return Params{
		SMALength:    10,
		EMALength:    10,
		RSIPeriod:    14,
		StochK:       14,
		StochD:       3,
		StochSmoothK: 3,
		MACDFast:     12,
		MACDSlow:     26,
		MACDSignal:   9,
		BBWindow:     20,
		BBStdDev:     2,
	}
}

// BuildFrame augments an oldest-first candle series with indicators.
func BuildFrame(series types.CandleSeries, p Params) types.IndicatorFrame {
	n := len(series.Candles)
	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	for i, c := range series.Candles {
		closes[i] = c.Close.InexactFloat64()
		highs[i] = c.High.InexactFloat64()
		lows[i] = c.Low.InexactFloat64()
	}

	sma := SMA(closes, p.SMALength)
	ema := EMA(closes, p.EMALength)
	rsi := RSI(closes, p.RSIPeriod)
	stochK, stochD := Stochastic(highs, lows, closes, p.StochK, p.StochD, p.StochSmoothK)
	macd, sig, hist := MACD(closes, p.MACDFast, p.MACDSlow, p.MACDSignal)
	mid, up, low := Bollinger(closes, p.BBWindow, p.BBStdDev)

	rows := make([]types.IndicatorRow, n)
	for i, c := range series.Candles {
		rows[i] = types.IndicatorRow{
			Candle:     c,
			SMA10:      types.Float(sma[i]),
			EMA10:      types.Float(ema[i]),
			RSI14:      types.Float(rsi[i]),
			StochK:     types.Float(stochK[i]),
			StochD:     types.Float(stochD[i]),
			MACD:       types.Float(macd[i]),
			MACDSignal: types.Float(sig[i]),
			MACDHist:   types.Float(hist[i]),
			BBMiddle:   types.Float(mid[i]),
			BBUpper:    types.Float(up[i]),
			BBLower:    types.Float(low[i]),
		}
	}
	return types.IndicatorFrame{Timeframe: series.Timeframe, Rows: rows}
}
