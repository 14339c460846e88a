package tradelog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"crypto-trading-bot/internal/logger"
	"crypto-trading-bot/internal/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS cycles (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	started_at  TEXT NOT NULL,
	symbol      TEXT NOT NULL,
	outcome     TEXT NOT NULL,
	step        TEXT NOT NULL,
	guard       TEXT,
	action      TEXT,
	reason      TEXT,
	quantity    TEXT,
	price       TEXT,
	order_id    TEXT,
	simulated   INTEGER DEFAULT 0,
	raw_advice  TEXT,
	error       TEXT,
	duration_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cycles_started_at ON cycles(started_at);
CREATE INDEX IF NOT EXISTS idx_cycles_outcome ON cycles(outcome);
`

// Store keeps one row per finished cycle in SQLite so recent history can be
// queried without scanning the daily files.
type Store struct {
	mu     sync.Mutex
	db     *sql.DB
	symbol string
}

// CycleRecord is one row of the cycles table.
type CycleRecord struct {
	ID         int64  `json:"id"`
	StartedAt  string `json:"started_at"`
	Symbol     string `json:"symbol"`
	Outcome    string `json:"outcome"`
	Step       string `json:"step"`
	Trigger    string `json:"trigger,omitempty"`
	Action     string `json:"action,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Quantity   string `json:"quantity,omitempty"`
	Price      string `json:"price,omitempty"`
	OrderID    string `json:"order_id,omitempty"`
	Simulated  bool   `json:"simulated,omitempty"`
	RawAdvice  string `json:"raw_advice,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// OpenStore opens (or creates) the SQLite database at dbPath.
func OpenStore(dbPath, symbol string) (*Store, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_sync=NORMAL&_busy_timeout=3000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Store{db: db, symbol: symbol}, nil
}

// RecordOutcome inserts one row. Failures are logged and never fail the cycle.
func (s *Store) RecordOutcome(ctx context.Context, o *types.Outcome) {
	var action, reason, quantity, price, orderID string
	var simulated bool
	if o.Decision != nil {
		action = string(o.Decision.Action)
		reason = o.Decision.Reason
	}
	if o.Order != nil {
		quantity = o.Order.Quantity.String()
	}
	if !o.Price.IsZero() {
		price = o.Price.String()
	}
	if o.Result != nil {
		orderID = o.Result.OrderID
		simulated = o.Result.Simulated
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(context.WithoutCancel(ctx),
		`INSERT INTO cycles (started_at, symbol, outcome, step, guard, action, reason, quantity, price,
		 order_id, simulated, raw_advice, error, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.Started.UTC().Format(time.RFC3339),
		s.symbol,
		string(o.Kind),
		o.Step,
		o.Trigger,
		action,
		reason,
		quantity,
		price,
		orderID,
		simulated,
		o.RawAdvice,
		o.Error,
		o.Duration.Milliseconds(),
	)
	if err != nil {
		logger.Warn(ctx, "Failed to store cycle", "error", err)
	}
}

// Recent returns the last limit cycles, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]CycleRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, symbol, outcome, step,
		 COALESCE(guard, ''), COALESCE(action, ''), COALESCE(reason, ''), COALESCE(quantity, ''),
		 COALESCE(price, ''), COALESCE(order_id, ''), simulated, COALESCE(raw_advice, ''),
		 COALESCE(error, ''), duration_ms
		 FROM cycles ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CycleRecord
	for rows.Next() {
		var r CycleRecord
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.Symbol, &r.Outcome, &r.Step,
			&r.Trigger, &r.Action, &r.Reason, &r.Quantity,
			&r.Price, &r.OrderID, &r.Simulated, &r.RawAdvice,
			&r.Error, &r.DurationMs); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
