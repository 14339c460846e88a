package store

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type Timeframe struct {
	Name     string `yaml:"name"`
	Interval string `yaml:"interval"`
	Count    int    `yaml:"count"`
}

// Duration parses the exchange interval ("1m", "1h", "24h") as a Go duration.
func (t Timeframe) Duration() (time.Duration, error) {
	return time.ParseDuration(t.Interval)
}

// Credentials are read from the environment, never from the yaml file.
type Credentials struct {
	ExchangeAccessKey string `yaml:"-"`
	ExchangeSecretKey string `yaml:"-"`
	GeminiAPIKey      string `yaml:"-"`
	OpenAIAPIKey      string `yaml:"-"`
	ClaudeAPIKey      string `yaml:"-"`
}

type Config struct {
	Mode   string `yaml:"mode"`
	Market struct {
		Base  string `yaml:"base"`
		Quote string `yaml:"quote"`
	} `yaml:"market"`
	Exchange struct {
		BaseURL        string `yaml:"base_url"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"exchange"`
	Timeframes []Timeframe `yaml:"timeframes"`
	Risk       struct {
		MinQuoteBalance   decimal.Decimal `yaml:"min_quote_balance"`
		MinBaseBalance    decimal.Decimal `yaml:"min_base_balance"`
		FeeBuffer         decimal.Decimal `yaml:"fee_buffer"`
		QuantityPrecision int32           `yaml:"quantity_precision"`
		TakeProfitRatio   decimal.Decimal `yaml:"take_profit_ratio"`
		StopLossRatio     decimal.Decimal `yaml:"stop_loss_ratio"`
	} `yaml:"risk"`
	LLM struct {
		Provider         string  `yaml:"provider"`
		Model            string  `yaml:"model"`
		Endpoint         string  `yaml:"endpoint"`
		MaxTokens        int     `yaml:"max_tokens"`
		Temperature      float32 `yaml:"temperature"`
		System           string  `yaml:"system"`
		InstructionsFile string  `yaml:"instructions_file"`
		TimeoutSeconds   int     `yaml:"timeout_seconds"`
	} `yaml:"llm"`
	Schedule struct {
		Interval   time.Duration `yaml:"interval"`
		Offset     time.Duration `yaml:"offset"`
		RunOnStart bool          `yaml:"run_on_start"`
	} `yaml:"schedule"`
	Lock struct {
		RedisAddr string        `yaml:"redis_addr"`
		Key       string        `yaml:"key"`
		TTL       time.Duration `yaml:"ttl"`
	} `yaml:"lock"`
	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
	Journal struct {
		Dir           string `yaml:"dir"`
		RetentionDays int    `yaml:"retention_days"`
		SQLitePath    string `yaml:"sqlite_path"`
	} `yaml:"journal"`

	Credentials Credentials `yaml:"-"`
}

// Symbol is the market identifier used by the order endpoint, e.g. KRW-BTC.
func (c *Config) Symbol() string {
	return c.Market.Quote + "-" + c.Market.Base
}

// ShortestTimeframe returns the configured timeframe with the smallest interval.
func (c *Config) ShortestTimeframe() Timeframe {
	tfs := append([]Timeframe(nil), c.Timeframes...)
	sort.SliceStable(tfs, func(i, j int) bool {
		di, _ := tfs[i].Duration()
		dj, _ := tfs[j].Duration()
		return di < dj
	})
	return tfs[0]
}

func (c *Config) DryRun() bool {
	return c.Mode == "DRY_RUN"
}

func (c *Config) Validate() error {
	if c.Mode != "DRY_RUN" && c.Mode != "LIVE" {
		return fmt.Errorf("invalid mode '%s': must be 'DRY_RUN' or 'LIVE'", c.Mode)
	}
	if c.Market.Base == "" || c.Market.Quote == "" {
		return errors.New("market.base and market.quote are required")
	}
	if len(c.Timeframes) == 0 {
		return errors.New("timeframes cannot be empty")
	}
	seen := map[string]bool{}
	for _, tf := range c.Timeframes {
		if tf.Name == "" {
			return errors.New("timeframe name cannot be empty")
		}
		if seen[tf.Name] {
			return fmt.Errorf("duplicate timeframe '%s'", tf.Name)
		}
		seen[tf.Name] = true
		if d, err := tf.Duration(); err != nil || d <= 0 {
			return fmt.Errorf("timeframe '%s': invalid interval '%s'", tf.Name, tf.Interval)
		}
		if tf.Count <= 0 {
			return fmt.Errorf("timeframe '%s': count must be positive, got %d", tf.Name, tf.Count)
		}
	}
	one := decimal.NewFromInt(1)
	if c.Risk.FeeBuffer.IsNegative() || c.Risk.FeeBuffer.GreaterThanOrEqual(one) {
		return fmt.Errorf("risk.fee_buffer must be in [0, 1), got %s", c.Risk.FeeBuffer)
	}
	if c.Risk.MinQuoteBalance.IsNegative() || c.Risk.MinBaseBalance.IsNegative() {
		return errors.New("risk balance floors cannot be negative")
	}
	if c.Risk.QuantityPrecision < 0 {
		return fmt.Errorf("risk.quantity_precision cannot be negative, got %d", c.Risk.QuantityPrecision)
	}
	if !c.Risk.TakeProfitRatio.IsZero() && c.Risk.TakeProfitRatio.LessThanOrEqual(one) {
		return fmt.Errorf("risk.take_profit_ratio must be above 1, got %s", c.Risk.TakeProfitRatio)
	}
	if !c.Risk.StopLossRatio.IsZero() && (c.Risk.StopLossRatio.GreaterThanOrEqual(one) || c.Risk.StopLossRatio.IsNegative()) {
		return fmt.Errorf("risk.stop_loss_ratio must be in (0, 1), got %s", c.Risk.StopLossRatio)
	}
	switch c.LLM.Provider {
	case "GEMINI", "OPENAI", "CLAUDE", "NOOP":
	default:
		return fmt.Errorf("llm.provider must be 'GEMINI', 'OPENAI', 'CLAUDE' or 'NOOP', got '%s'", c.LLM.Provider)
	}
	if c.Schedule.Interval <= 0 {
		return fmt.Errorf("schedule.interval must be positive, got %s", c.Schedule.Interval)
	}
	if c.Schedule.Offset < 0 || c.Schedule.Offset >= c.Schedule.Interval {
		return fmt.Errorf("schedule.offset must be in [0, interval), got %s", c.Schedule.Offset)
	}
	return nil
}

// ValidateCredentials checks that the secrets needed for live operation are present.
func (c *Config) ValidateCredentials() error {
	if c.Credentials.ExchangeAccessKey == "" || c.Credentials.ExchangeSecretKey == "" {
		return errors.New("BITHUMB_API_KEY and BITHUMB_API_SECRET must be set")
	}
	switch c.LLM.Provider {
	case "GEMINI":
		if c.Credentials.GeminiAPIKey == "" {
			return errors.New("GEMINI_API_KEY missing")
		}
	case "OPENAI":
		if c.Credentials.OpenAIAPIKey == "" {
			return errors.New("OPENAI_API_KEY missing")
		}
	case "CLAUDE":
		if c.Credentials.ClaudeAPIKey == "" {
			return errors.New("CLAUDE_API_KEY missing")
		}
	}
	return nil
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(b)
}

// ParseConfig decodes yaml, applies defaults, reads credentials from the
// environment and validates the result.
func ParseConfig(b []byte) (*Config, error) {
	var c Config
	seedRiskDefaults(&c)
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	applyDefaults(&c)
	c.Credentials = credentialsFromEnv()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &c, nil
}

// seedRiskDefaults fills the sizing thresholds before decoding, so only keys
// absent from the file keep them. Zero is a legal explicit value for each.
func seedRiskDefaults(c *Config) {
	c.Risk.MinQuoteBalance = decimal.NewFromInt(1000)
	c.Risk.MinBaseBalance = decimal.RequireFromString("0.00005")
	c.Risk.FeeBuffer = decimal.RequireFromString("0.0005")
	c.Risk.QuantityPrecision = 8
}

func applyDefaults(c *Config) {
	if c.Mode == "" {
		c.Mode = "DRY_RUN"
	}
	if c.Market.Base == "" {
		c.Market.Base = "BTC"
	}
	if c.Market.Quote == "" {
		c.Market.Quote = "KRW"
	}
	c.Market.Base = strings.ToUpper(c.Market.Base)
	c.Market.Quote = strings.ToUpper(c.Market.Quote)
	if c.Exchange.BaseURL == "" {
		c.Exchange.BaseURL = "https://api.bithumb.com"
	}
	if c.Exchange.TimeoutSeconds == 0 {
		c.Exchange.TimeoutSeconds = 10
	}
	if len(c.Timeframes) == 0 {
		c.Timeframes = []Timeframe{
			{Name: "daily", Interval: "24h", Count: 30},
			{Name: "hourly", Interval: "1h", Count: 24},
		}
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = "GEMINI"
	}
	c.LLM.Provider = strings.ToUpper(c.LLM.Provider)
	if c.LLM.Model == "" {
		switch c.LLM.Provider {
		case "OPENAI":
			c.LLM.Model = "gpt-4o-mini"
		case "CLAUDE":
			c.LLM.Model = "claude-3-5-haiku-latest"
		default:
			c.LLM.Model = "gemini-2.0-flash"
		}
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 512
	}
	if c.LLM.InstructionsFile == "" {
		c.LLM.InstructionsFile = "instructions.md"
	}
	if c.LLM.TimeoutSeconds == 0 {
		c.LLM.TimeoutSeconds = 60
	}
	if c.Schedule.Interval == 0 {
		c.Schedule.Interval = time.Hour
		if c.Schedule.Offset == 0 {
			c.Schedule.Offset = time.Minute
		}
	}
	if c.Lock.Key == "" {
		c.Lock.Key = "crypto-trading-bot:cycle:" + c.Symbol()
	}
	if c.Lock.TTL == 0 {
		c.Lock.TTL = 10 * time.Minute
	}
	if c.Journal.Dir == "" {
		c.Journal.Dir = "logs"
	}
}

func credentialsFromEnv() Credentials {
	return Credentials{
		ExchangeAccessKey: strings.TrimSpace(os.Getenv("BITHUMB_API_KEY")),
		ExchangeSecretKey: strings.TrimSpace(os.Getenv("BITHUMB_API_SECRET")),
		GeminiAPIKey:      strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		OpenAIAPIKey:      strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		ClaudeAPIKey:      strings.TrimSpace(os.Getenv("CLAUDE_API_KEY")),
	}
}
