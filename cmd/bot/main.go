package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"crypto-trading-bot/internal/logger"
	"crypto-trading-bot/internal/metrics"
	"crypto-trading-bot/internal/scheduler"
	"crypto-trading-bot/internal/tradelog"
	"crypto-trading-bot/internal/types"
)

func main() {
	if err := initializeSystem(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	shutdownSystem()
	if err != nil {
		os.Exit(1)
	}
}

// newRootCmd creates the root command
func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "bot",
		Short: "LLM-advised BTC/KRW trading bot for Bithumb",
		Long: `bot runs an hourly decision cycle: it captures candles and balances from Bithumb,
asks an LLM for a buy/sell/hold decision and places at most one market order per cycle.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScheduler(cmd.Context(), configPath)
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "Configuration file path")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run decision cycles on the configured schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScheduler(cmd.Context(), configPath)
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "once",
		Short: "Run a single decision cycle and print its outcome",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd.Context(), configPath)
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "balance",
		Short: "Print account balances",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBalance(cmd.Context(), configPath)
		},
	})
	rootCmd.AddCommand(newSummarizeCmd(&configPath))
	rootCmd.AddCommand(newHistoryCmd(&configPath))

	return rootCmd
}

func newSummarizeCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summarize",
		Short: "Write the daily CSV summary of the journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			date, _ := cmd.Flags().GetString("date")
			return runSummarize(cmd.Context(), *configPath, date)
		},
	}
	cmd.Flags().String("date", "", "Day in YYYY-MM-DD format, KST (today if not provided)")
	return cmd
}

func newHistoryCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print the most recent decision cycles from the SQLite journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			return runHistory(cmd.Context(), *configPath, limit)
		},
	}
	cmd.Flags().Int("limit", 24, "Number of cycles to show")
	return cmd
}

func runScheduler(ctx context.Context, configPath string) error {
	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	client, remote, err := initializeLock(ctx, a.cfg)
	if err != nil {
		return fmt.Errorf("redis lock: %w", err)
	}
	a.redis = client

	var srv *metrics.Server
	if a.cfg.Metrics.Addr != "" {
		srv = metrics.NewServer(a.cfg.Metrics.Addr, nil, a.metrics.Health())
		srv.Start(ctx)
	}

	opts := scheduler.Options{
		Interval:   a.cfg.Schedule.Interval,
		Offset:     a.cfg.Schedule.Offset,
		RunOnStart: a.cfg.Schedule.RunOnStart,
		Remote:     remote,
		OnSkip:     a.metrics.RecordSkip,
		AfterCycle: func(ctx context.Context, o *types.Outcome) {
			if ok, day := a.summarizer.ShouldRunNow(); ok {
				if _, err := a.summarizer.SummarizeDay(day); err != nil {
					logger.Warn(ctx, "EOD summary failed", "error", err)
				}
			}
		},
	}
	sched := scheduler.New(a.engine, opts)

	logger.Info(ctx, "Bot started",
		"symbol", a.cfg.Symbol(),
		"mode", a.cfg.Mode,
		"provider", a.cfg.LLM.Provider,
		"interval", a.cfg.Schedule.Interval.String(),
		"offset", a.cfg.Schedule.Offset.String(),
	)
	err = sched.Run(ctx)
	logger.Info(context.Background(), "Shutting down...")

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func runOnce(ctx context.Context, configPath string) error {
	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	outcome, runErr := a.engine.Run(ctx)
	printOutcomeHeader(os.Stderr, outcome)
	b, err := json.MarshalIndent(outcome, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return runErr
}

func runBalance(ctx context.Context, configPath string) error {
	cfg, err := loadConfig(ctx, configPath)
	if err != nil {
		return err
	}
	if err := requireExchangeCredentials(cfg); err != nil {
		return err
	}
	client, _ := initializeExchange(ctx, cfg)

	balances, err := client.Balances(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch balances: %w", err)
	}
	printBalances(os.Stdout, client.Market(), balances)
	return nil
}

func runSummarize(ctx context.Context, configPath, date string) error {
	cfg, err := loadConfig(ctx, configPath)
	if err != nil {
		return err
	}

	day := time.Now().In(tradelog.KST)
	if date != "" {
		day, err = time.ParseInLocation("2006-01-02", date, tradelog.KST)
		if err != nil {
			return fmt.Errorf("invalid date format, use YYYY-MM-DD: %w", err)
		}
	}

	summarizer := initializeEOD(tradelog.New(cfg.Journal.Dir, cfg.Symbol()))
	path, err := summarizer.SummarizeDay(day)
	if err != nil {
		return err
	}
	if path == "" {
		fmt.Println("No journal for", day.Format("2006-01-02"))
		return nil
	}
	fmt.Println("EOD CSV written:", path)
	return nil
}

func runHistory(ctx context.Context, configPath string, limit int) error {
	cfg, err := loadConfig(ctx, configPath)
	if err != nil {
		return err
	}
	if cfg.Journal.SQLitePath == "" {
		return errors.New("journal.sqlite_path is not configured")
	}
	if limit <= 0 {
		return fmt.Errorf("limit must be positive, got %d", limit)
	}

	st, err := tradelog.OpenStore(cfg.Journal.SQLitePath, cfg.Symbol())
	if err != nil {
		return err
	}
	defer st.Close()

	records, err := st.Recent(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}
	printHistory(os.Stdout, records)
	return nil
}
