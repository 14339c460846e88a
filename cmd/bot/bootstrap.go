package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"crypto-trading-bot/internal/engine"
	"crypto-trading-bot/internal/engine/engineobs"
	"crypto-trading-bot/internal/eod"
	"crypto-trading-bot/internal/eod/eodobs"
	"crypto-trading-bot/internal/exchange/bithumb"
	"crypto-trading-bot/internal/exchange/exchangeobs"
	"crypto-trading-bot/internal/interfaces"
	"crypto-trading-bot/internal/llm/claude"
	"crypto-trading-bot/internal/llm/gemini"
	"crypto-trading-bot/internal/llm/llmobs"
	"crypto-trading-bot/internal/llm/noop"
	"crypto-trading-bot/internal/llm/openai"
	"crypto-trading-bot/internal/lock"
	"crypto-trading-bot/internal/logger"
	"crypto-trading-bot/internal/metrics"
	"crypto-trading-bot/internal/store"
	"crypto-trading-bot/internal/trace"
	"crypto-trading-bot/internal/tradelog"
)

// app holds everything a command needs, built once from the config.
type app struct {
	cfg        *store.Config
	client     *bithumb.Client
	exchange   interfaces.Exchange
	advisor    interfaces.Advisor
	journal    *tradelog.Journal
	store      *tradelog.Store
	metrics    *metrics.Metrics
	engine     interfaces.Engine
	summarizer interfaces.EodSummarizer
	redis      *goredis.Client
}

// initializeSystem initializes logger and tracer
func initializeSystem() error {
	// Load environment variables before the config reads credentials
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}
	return nil
}

func shutdownSystem() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = trace.Shutdown(ctx)
}

// loadConfig loads and returns the configuration
func loadConfig(ctx context.Context, path string) (*store.Config, error) {
	cfg, err := store.LoadConfig(path)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err, "path", path)
		return nil, err
	}
	return cfg, nil
}

// initializeExchange builds the Bithumb client, wrapped with observability
func initializeExchange(ctx context.Context, cfg *store.Config) (*bithumb.Client, interfaces.Exchange) {
	client := bithumb.New(bithumb.ParamsFromConfig(cfg))

	if cfg.DryRun() {
		logger.Warn(ctx, "Running in DRY_RUN mode - orders will be simulated")
	} else {
		logger.Warn(ctx, "Running in LIVE mode - orders will be sent to the exchange", "market", client.Market())
	}

	return client, exchangeobs.Wrap(client)
}

// initializeAdvisor picks the advisory provider, wrapped with observability
func initializeAdvisor(ctx context.Context, cfg *store.Config) interfaces.Advisor {
	var advisor interfaces.Advisor

	switch cfg.LLM.Provider {
	case "GEMINI":
		advisor = gemini.NewGeminiAdvisor(cfg)
	case "OPENAI":
		advisor = openai.NewOpenAIAdvisor(cfg)
	case "CLAUDE":
		advisor = claude.NewClaudeAdvisor(cfg)
	default:
		advisor = noop.NewNoopAdvisor()
		logger.Warn(ctx, "No LLM provider configured - using Noop advisor (always HOLD)")
	}

	return llmobs.Wrap(advisor, cfg.LLM.Provider)
}

// initializeEngine wires the decision cycle with its recorders
func initializeEngine(cfg *store.Config, ex interfaces.Exchange, adv interfaces.Advisor, recorders ...engine.Recorder) interfaces.Engine {
	eng := engine.New(cfg, ex, adv, engine.Options{
		Recorders: recorders,
	})
	return engineobs.Wrap(eng, cfg.Symbol())
}

// initializeStore opens the SQLite cycle store when a path is configured.
func initializeStore(ctx context.Context, cfg *store.Config) *tradelog.Store {
	if cfg.Journal.SQLitePath == "" {
		return nil
	}
	st, err := tradelog.OpenStore(cfg.Journal.SQLitePath, cfg.Symbol())
	if err != nil {
		logger.Warn(ctx, "SQLite journal unavailable, continuing with files only", "path", cfg.Journal.SQLitePath, "error", err)
		return nil
	}
	return st
}

// initializeEOD builds the daily summarizer, wrapped with observability
func initializeEOD(journal *tradelog.Journal) interfaces.EodSummarizer {
	return eodobs.Wrap(eod.NewSummarizer(journal))
}

// compressOldLogs compresses old journal files if retention is configured
func compressOldLogs(ctx context.Context, cfg *store.Config, journal *tradelog.Journal) {
	if err := journal.CompressOlder(cfg.Journal.RetentionDays); err != nil {
		logger.Warn(ctx, "Failed to compress old logs", "error", err)
	}
}

// initializeLock connects to Redis when a lock address is configured.
func initializeLock(ctx context.Context, cfg *store.Config) (*goredis.Client, lock.Locker, error) {
	if cfg.Lock.RedisAddr == "" {
		return nil, nil, nil
	}
	client, err := lock.Dial(ctx, cfg.Lock.RedisAddr)
	if err != nil {
		return nil, nil, err
	}
	logger.Info(ctx, "Using redis cycle lock", "addr", cfg.Lock.RedisAddr, "key", cfg.Lock.Key, "ttl", cfg.Lock.TTL.String())
	return client, lock.NewRedis(client, cfg.Lock.Key, cfg.Lock.TTL), nil
}

func requireExchangeCredentials(cfg *store.Config) error {
	if cfg.Credentials.ExchangeAccessKey == "" || cfg.Credentials.ExchangeSecretKey == "" {
		return errors.New("BITHUMB_API_KEY and BITHUMB_API_SECRET must be set")
	}
	return nil
}

// newApp loads the config and builds every component a trading command needs.
func newApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := loadConfig(ctx, configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateCredentials(); err != nil {
		return nil, err
	}

	a := &app{cfg: cfg}
	a.client, a.exchange = initializeExchange(ctx, cfg)
	a.advisor = initializeAdvisor(ctx, cfg)
	a.journal = tradelog.New(cfg.Journal.Dir, cfg.Symbol())
	a.metrics = metrics.New(nil)
	recorders := []engine.Recorder{a.journal, a.metrics}
	if a.store = initializeStore(ctx, cfg); a.store != nil {
		recorders = append(recorders, a.store)
	}
	a.engine = initializeEngine(cfg, a.exchange, a.advisor, recorders...)
	a.summarizer = initializeEOD(a.journal)

	compressOldLogs(ctx, cfg, a.journal)
	return a, nil
}

func (a *app) Close() {
	if a.store != nil {
		a.store.Close()
	}
	if a.redis != nil {
		a.redis.Close()
	}
}
