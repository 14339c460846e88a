package ta

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"crypto-trading-bot/internal/types"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSMA(t *testing.T) {
	got := SMA([]float64{1, 2, 3, 4, 5}, 3)
	if !math.IsNaN(got[0]) || !math.IsNaN(got[1]) {
		t.Errorf("Expected NaN warm-up, got %v", got[:2])
	}
	want := []float64{2, 3, 4}
	for i, w := range want {
		if !approx(got[i+2], w) {
			t.Errorf("SMA[%d]: expected %v, got %v", i+2, w, got[i+2])
		}
	}
}

func TestEMASeededWithSMA(t *testing.T) {
	got := EMA([]float64{2, 4, 6, 8}, 3)
	if !math.IsNaN(got[1]) {
		t.Errorf("Expected NaN before seed, got %v", got[1])
	}
	if !approx(got[2], 4) {
		t.Errorf("Expected seed 4, got %v", got[2])
	}
	// alpha = 0.5
	if !approx(got[3], 6) {
		t.Errorf("Expected 6, got %v", got[3])
	}
}

func TestRSI(t *testing.T) {
	up := []float64{1, 2, 3, 4, 5, 6}
	got := RSI(up, 3)
	if !math.IsNaN(got[2]) {
		t.Errorf("Expected NaN before period, got %v", got[2])
	}
	if got[3] != 100 || got[5] != 100 {
		t.Errorf("Expected 100 for a rising series, got %v", got)
	}

	flat := RSI([]float64{5, 5, 5, 5}, 3)
	if flat[3] != 50 {
		t.Errorf("Expected 50 for a flat series, got %v", flat[3])
	}

	mixed := RSI([]float64{10, 11, 10, 11}, 3)
	// gains 2, losses 1 over 3 periods
	if !approx(mixed[3], 100-100/(1+2.0)) {
		t.Errorf("Unexpected RSI %v", mixed[3])
	}
}

func TestBollingerUsesSampleStdDev(t *testing.T) {
	mid, up, low := Bollinger([]float64{1, 2, 3}, 3, 2)
	if !approx(mid[2], 2) {
		t.Fatalf("Expected middle 2, got %v", mid[2])
	}
	// sample std of 1,2,3 is 1
	if !approx(up[2], 4) || !approx(low[2], 0) {
		t.Errorf("Expected bands 4/0, got %v/%v", up[2], low[2])
	}
	if !math.IsNaN(up[1]) {
		t.Errorf("Expected NaN warm-up, got %v", up[1])
	}
}

func TestStochastic(t *testing.T) {
	highs := []float64{10, 10, 10, 10, 10}
	lows := []float64{0, 0, 0, 0, 0}
	closes := []float64{5, 10, 0, 10, 5}
	k, d := Stochastic(highs, lows, closes, 2, 2, 1)
	if !approx(k[1], 100) || !approx(k[2], 0) {
		t.Errorf("Unexpected %%K %v", k)
	}
	if !approx(d[2], 50) {
		t.Errorf("Expected %%D 50, got %v", d[2])
	}
}

func TestMACDFlatSeriesIsZero(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100
	}
	macd, sig, hist := MACD(closes, 12, 26, 9)
	for i := range closes {
		if !approx(macd[i], 0) || !approx(sig[i], 0) || !approx(hist[i], 0) {
			t.Fatalf("Expected zero MACD at %d, got %v %v %v", i, macd[i], sig[i], hist[i])
		}
	}
}

func series(n int) types.CandleSeries {
	s := types.CandleSeries{Timeframe: "hourly"}
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		c := 100 + 10*math.Sin(float64(i)/3)
		s.Candles = append(s.Candles, types.Candle{
			Time:   start.Add(time.Duration(i) * time.Hour),
			Open:   decimal.NewFromFloat(c - 1),
			High:   decimal.NewFromFloat(c + 2),
			Low:    decimal.NewFromFloat(c - 2),
			Close:  decimal.NewFromFloat(c),
			Volume: decimal.NewFromInt(int64(i + 1)),
		})
	}
	return s
}

func TestBuildFrameHasNoLookAhead(t *testing.T) {
	full := BuildFrame(series(60), DefaultParams())
	if len(full.Rows) != 60 || full.Timeframe != "hourly" {
		t.Fatalf("Unexpected frame shape: %d rows, %s", len(full.Rows), full.Timeframe)
	}

	for _, cut := range []int{10, 25, 40} {
		prefix := BuildFrame(series(cut), DefaultParams())
		for i := 0; i < cut; i++ {
			a, b := prefix.Rows[i], full.Rows[i]
			pairs := [][2]types.Float{
				{a.SMA10, b.SMA10}, {a.EMA10, b.EMA10}, {a.RSI14, b.RSI14},
				{a.StochK, b.StochK}, {a.StochD, b.StochD},
				{a.MACD, b.MACD}, {a.MACDSignal, b.MACDSignal},
				{a.BBMiddle, b.BBMiddle}, {a.BBUpper, b.BBUpper},
			}
			for j, p := range pairs {
				x, y := float64(p[0]), float64(p[1])
				if math.IsNaN(x) != math.IsNaN(y) || (!math.IsNaN(x) && !approx(x, y)) {
					t.Fatalf("cut %d row %d field %d: %v != %v", cut, i, j, x, y)
				}
			}
		}
	}
}

func TestBuildFrameWarmUp(t *testing.T) {
	f := BuildFrame(series(30), DefaultParams())
	if f.Rows[8].SMA10.Valid() {
		t.Error("Expected SMA10 undefined at row 8")
	}
	if !f.Rows[9].SMA10.Valid() {
		t.Error("Expected SMA10 defined at row 9")
	}
	if f.Rows[18].BBUpper.Valid() || !f.Rows[19].BBUpper.Valid() {
		t.Error("Expected Bollinger bands to start at row 19")
	}
	if !f.Rows[29].RSI14.Valid() {
		t.Error("Expected RSI defined on the last row")
	}
}
