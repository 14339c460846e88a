package tradelog

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"crypto-trading-bot/internal/logger"
	"crypto-trading-bot/internal/types"
)

// KST is the exchange's local time; daily files roll over at KST midnight.
var KST = time.FixedZone("KST", 9*3600)

const timeLayout = "2006-01-02 15:04:05"

// Entry is one accepted order, written to <dir>/YYYY-MM-DD.txt.
type Entry struct {
	Time      string
	Symbol    string
	Side      string
	Quantity  string
	Price     string
	OrderID   string
	State     string
	Simulated bool   `json:",omitempty"`
	Reason    string `json:",omitempty"`
	Trigger   string `json:",omitempty"`
}

// DecisionEntry is one finished cycle, written to <dir>/decisions/YYYY-MM-DD.txt.
type DecisionEntry struct {
	Time       string
	Symbol     string
	Outcome    string
	Step       string
	Trigger    string `json:",omitempty"`
	Action     string `json:",omitempty"`
	Reason     string `json:",omitempty"`
	Quantity   string `json:",omitempty"`
	Price      string `json:",omitempty"`
	OrderID    string `json:",omitempty"`
	RawAdvice  string `json:",omitempty"`
	Error      string `json:",omitempty"`
	DurationMs int64
}

// Journal appends JSON lines to daily files under Dir. It is diagnostics
// only; nothing in a cycle reads it back.
type Journal struct {
	dir    string
	symbol string
	mu     sync.Mutex
	now    func() time.Time
}

func New(dir, symbol string) *Journal {
	if dir == "" {
		dir = "logs"
	}
	return &Journal{dir: dir, symbol: symbol, now: time.Now}
}

func (j *Journal) Dir() string { return j.dir }

// TradeFile is the order log for the KST day containing t.
func (j *Journal) TradeFile(t time.Time) string {
	return filepath.Join(j.dir, t.In(KST).Format("2006-01-02")+".txt")
}

// DecisionFile is the cycle log for the KST day containing t.
func (j *Journal) DecisionFile(t time.Time) string {
	return filepath.Join(j.dir, "decisions", t.In(KST).Format("2006-01-02")+".txt")
}

func (j *Journal) Append(e Entry) error {
	now := j.now().In(KST)
	e.Time = now.Format(timeLayout)
	if e.Symbol == "" {
		e.Symbol = j.symbol
	}
	return j.appendLine(j.TradeFile(now), e)
}

func (j *Journal) AppendDecision(e DecisionEntry) error {
	now := j.now().In(KST)
	e.Time = now.Format(timeLayout)
	if e.Symbol == "" {
		e.Symbol = j.symbol
	}
	return j.appendLine(j.DecisionFile(now), e)
}

// RecordOutcome journals a finished cycle and, when an order was accepted,
// the trade itself. Write failures are logged and never fail the cycle.
func (j *Journal) RecordOutcome(ctx context.Context, o *types.Outcome) {
	d := DecisionEntry{
		Outcome:    string(o.Kind),
		Step:       o.Step,
		Trigger:    o.Trigger,
		RawAdvice:  o.RawAdvice,
		Error:      o.Error,
		DurationMs: o.Duration.Milliseconds(),
	}
	if o.Decision != nil {
		d.Action = string(o.Decision.Action)
		d.Reason = o.Decision.Reason
	}
	if o.Order != nil {
		d.Quantity = o.Order.Quantity.String()
	}
	if !o.Price.IsZero() {
		d.Price = o.Price.String()
	}
	if o.Result != nil {
		d.OrderID = o.Result.OrderID
	}
	if err := j.AppendDecision(d); err != nil {
		logger.Warn(ctx, "Failed to journal decision", "error", err)
	}

	if o.Kind != types.Executed || o.Order == nil || o.Result == nil {
		return
	}
	e := Entry{
		Side:      string(o.Order.Side),
		Quantity:  o.Order.Quantity.String(),
		Price:     o.Price.String(),
		OrderID:   o.Result.OrderID,
		State:     o.Result.State,
		Simulated: o.Result.Simulated,
		Trigger:   o.Trigger,
	}
	if o.Decision != nil {
		e.Reason = o.Decision.Reason
	}
	if err := j.Append(e); err != nil {
		logger.Warn(ctx, "Failed to journal trade", "error", err)
	}
}

func (j *Journal) appendLine(p string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = fmt.Fprintln(f, string(b))
	return err
}

// CompressOlder gzips .txt journal files last modified more than
// retentionDays ago and removes the originals.
func (j *Journal) CompressOlder(retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	cutoff := j.now().AddDate(0, 0, -retentionDays)
	return filepath.WalkDir(j.dir, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || filepath.Ext(p) != ".txt" {
			return nil
		}
		info, err := d.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			return nil
		}
		gz := p + ".gz"
		// an earlier run already compressed it
		if _, err := os.Stat(gz); err == nil {
			return os.Remove(p)
		}
		if err := gzipFile(p, gz); err != nil {
			return err
		}
		return os.Remove(p)
	})
}

func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	gw := gzip.NewWriter(out)
	if _, err := io.Copy(gw, in); err != nil {
		gw.Close()
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := gw.Close(); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}
