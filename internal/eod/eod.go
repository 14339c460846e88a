package eod

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"crypto-trading-bot/internal/tradelog"
	"crypto-trading-bot/internal/types"
)

// aggRow is one symbol's totals for a day.
type aggRow struct {
	Symbol    string
	Cycles    int
	Executed  int
	Held      int
	Skipped   int
	Failed    int
	BuyQty    decimal.Decimal
	BuyValue  decimal.Decimal
	SellQty   decimal.Decimal
	SellValue decimal.Decimal
}

type eodSummarizer struct {
	journal *tradelog.Journal
	now     func() time.Time
}

func (s *eodSummarizer) csvPath(t time.Time) string {
	return filepath.Join(s.journal.Dir(), "eod", t.In(tradelog.KST).Format("2006-01-02")+".csv")
}

// SummarizeDay aggregates the decision and trade journals of the KST day
// containing t. It returns "" when neither journal exists.
func (s *eodSummarizer) SummarizeDay(t time.Time) (string, error) {
	aggs := map[string]*aggRow{}
	row := func(symbol string) *aggRow {
		r := aggs[symbol]
		if r == nil {
			r = &aggRow{Symbol: symbol}
			aggs[symbol] = r
		}
		return r
	}

	err := scanLines(s.journal.DecisionFile(t), func(b []byte) {
		var e tradelog.DecisionEntry
		if json.Unmarshal(b, &e) != nil || e.Symbol == "" {
			return
		}
		r := row(e.Symbol)
		r.Cycles++
		switch kind := types.OutcomeKind(e.Outcome); {
		case kind == types.Executed:
			r.Executed++
		case kind == types.HeldNoAction:
			r.Held++
		case kind == types.SkippedBelowThreshold:
			r.Skipped++
		case kind.Failed():
			r.Failed++
		}
	})
	if err != nil {
		return "", err
	}

	err = scanLines(s.journal.TradeFile(t), func(b []byte) {
		var e tradelog.Entry
		if json.Unmarshal(b, &e) != nil || e.Symbol == "" {
			return
		}
		qty, err := decimal.NewFromString(e.Quantity)
		if err != nil {
			return
		}
		price, _ := decimal.NewFromString(e.Price)
		r := row(e.Symbol)
		switch types.Action(e.Side) {
		case types.Buy:
			r.BuyQty = r.BuyQty.Add(qty)
			r.BuyValue = r.BuyValue.Add(qty.Mul(price))
		case types.Sell:
			r.SellQty = r.SellQty.Add(qty)
			r.SellValue = r.SellValue.Add(qty.Mul(price))
		}
	})
	if err != nil {
		return "", err
	}

	if len(aggs) == 0 {
		return "", nil
	}
	return s.write(t, aggs)
}

func (s *eodSummarizer) write(t time.Time, aggs map[string]*aggRow) (string, error) {
	keys := make([]string, 0, len(aggs))
	for k := range aggs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	outPath := s.csvPath(t)
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", err
	}
	out, err := os.Create(outPath)
	if err != nil {
		return "", err
	}
	defer out.Close()

	w := csv.NewWriter(out)
	headers := []string{"symbol", "cycles", "executed", "held", "skipped", "failed",
		"buy_qty", "buy_avg", "sell_qty", "sell_avg", "realized_pnl", "gross_buy_value", "gross_sell_value"}
	if err := w.Write(headers); err != nil {
		return "", err
	}

	var total aggRow
	totalPnL := decimal.Zero
	for _, k := range keys {
		r := aggs[k]
		buyAvg, sellAvg := avg(r.BuyValue, r.BuyQty), avg(r.SellValue, r.SellQty)
		matched := decimal.Min(r.BuyQty, r.SellQty)
		pnl := matched.Mul(sellAvg.Sub(buyAvg))
		rec := []string{r.Symbol,
			strconv.Itoa(r.Cycles), strconv.Itoa(r.Executed), strconv.Itoa(r.Held), strconv.Itoa(r.Skipped), strconv.Itoa(r.Failed),
			r.BuyQty.String(), buyAvg.StringFixed(2), r.SellQty.String(), sellAvg.StringFixed(2),
			pnl.StringFixed(2), r.BuyValue.StringFixed(2), r.SellValue.StringFixed(2)}
		if err := w.Write(rec); err != nil {
			return "", err
		}
		total.Cycles += r.Cycles
		total.Executed += r.Executed
		total.Held += r.Held
		total.Skipped += r.Skipped
		total.Failed += r.Failed
		total.BuyValue = total.BuyValue.Add(r.BuyValue)
		total.SellValue = total.SellValue.Add(r.SellValue)
		totalPnL = totalPnL.Add(pnl)
	}
	_ = w.Write([]string{"TOTAL",
		strconv.Itoa(total.Cycles), strconv.Itoa(total.Executed), strconv.Itoa(total.Held), strconv.Itoa(total.Skipped), strconv.Itoa(total.Failed),
		"", "", "", "", totalPnL.StringFixed(2), total.BuyValue.StringFixed(2), total.SellValue.StringFixed(2)})

	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return outPath, nil
}

func (s *eodSummarizer) SummarizeToday() (string, error) {
	return s.SummarizeDay(s.now())
}

// ShouldRunNow checks the previous KST day: it has a decision journal and no
// summary CSV yet.
func (s *eodSummarizer) ShouldRunNow() (bool, time.Time) {
	day := s.now().In(tradelog.KST).AddDate(0, 0, -1)
	if _, err := os.Stat(s.journal.DecisionFile(day)); err != nil {
		return false, day
	}
	if _, err := os.Stat(s.csvPath(day)); errors.Is(err, os.ErrNotExist) {
		return true, day
	}
	return false, day
}

func avg(value, qty decimal.Decimal) decimal.Decimal {
	if !qty.IsPositive() {
		return decimal.Zero
	}
	return value.Div(qty)
}

// scanLines calls fn for every line of path. A missing file is not an error.
func scanLines(path string, fn func([]byte)) error {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		fn(sc.Bytes())
	}
	return sc.Err()
}
