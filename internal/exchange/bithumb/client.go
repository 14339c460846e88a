package bithumb

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"crypto-trading-bot/internal/interfaces"
	"crypto-trading-bot/internal/store"
)

type Params struct {
	BaseURL   string
	AccessKey string
	SecretKey string
	Base      string // e.g. BTC
	Quote     string // e.g. KRW
	DryRun    bool
	Timeout   time.Duration
}

// ParamsFromConfig builds client parameters from the application config.
func ParamsFromConfig(cfg *store.Config) Params {
	return Params{
		BaseURL:   cfg.Exchange.BaseURL,
		AccessKey: cfg.Credentials.ExchangeAccessKey,
		SecretKey: cfg.Credentials.ExchangeSecretKey,
		Base:      cfg.Market.Base,
		Quote:     cfg.Market.Quote,
		DryRun:    cfg.DryRun(),
		Timeout:   time.Duration(cfg.Exchange.TimeoutSeconds) * time.Second,
	}
}

// Client talks to the Bithumb REST API for a single market.
type Client struct {
	p    Params
	http *resty.Client
	now  func() time.Time
}

var _ interfaces.Exchange = (*Client)(nil)

func New(p Params) *Client {
	if p.Timeout <= 0 {
		p.Timeout = 10 * time.Second
	}
	c := resty.New()
	c.SetBaseURL(strings.TrimRight(p.BaseURL, "/"))
	c.SetTimeout(p.Timeout)
	c.SetHeader("Accept", "application/json")

	return &Client{p: p, http: c, now: time.Now}
}

// Market returns the order-endpoint market code, e.g. KRW-BTC.
func (c *Client) Market() string {
	return c.p.Quote + "-" + c.p.Base
}

// pair returns the public-endpoint pair, e.g. BTC_KRW.
func (c *Client) pair() string {
	return c.p.Base + "_" + c.p.Quote
}

// APIError is a non-success reply from the exchange.
type APIError struct {
	StatusCode int
	Name       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Name == "" && e.Message == "" {
		return fmt.Sprintf("bithumb: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("bithumb: HTTP %d: %s: %s", e.StatusCode, e.Name, e.Message)
}

type errorBody struct {
	Error struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"error"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// checkResponse converts a non-2xx reply into an *APIError.
func checkResponse(resp *resty.Response) error {
	if resp.IsSuccess() {
		return nil
	}
	apiErr := &APIError{StatusCode: resp.StatusCode()}
	var body errorBody
	if err := json.Unmarshal(resp.Body(), &body); err == nil {
		apiErr.Name = body.Error.Name
		apiErr.Message = body.Error.Message
		if apiErr.Name == "" && body.Status != "" {
			apiErr.Name = body.Status
			apiErr.Message = body.Message
		}
	}
	if apiErr.Name == "" && apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(resp.String())
	}
	return apiErr
}
