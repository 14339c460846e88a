package bithumb

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"

	"crypto-trading-bot/internal/types"
)

const (
	testAccess = "access-key"
	testSecret = "secret-key"
)

func newTestClient(t *testing.T, h http.HandlerFunc, dryRun bool) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := New(Params{
		BaseURL:   srv.URL,
		AccessKey: testAccess,
		SecretKey: testSecret,
		Base:      "BTC",
		Quote:     "KRW",
		DryRun:    dryRun,
		Timeout:   2 * time.Second,
	})
	c.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return c
}

// parseToken runs inside handlers, so it reports with Errorf rather than Fatalf.
func parseToken(t *testing.T, header string) jwt.MapClaims {
	t.Helper()
	if !strings.HasPrefix(header, "Bearer ") {
		t.Errorf("Expected bearer token, got %q", header)
		return jwt.MapClaims{}
	}
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(strings.TrimPrefix(header, "Bearer "), claims, func(tok *jwt.Token) (any, error) {
		if tok.Method != jwt.SigningMethodHS256 {
			t.Errorf("Unexpected signing method %v", tok.Method)
		}
		return []byte(testSecret), nil
	})
	if err != nil {
		t.Errorf("Invalid token: %v", err)
	}
	return claims
}

func TestAccount(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/v1/accounts" {
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
		claims := parseToken(t, r.Header.Get("Authorization"))
		if claims["access_key"] != testAccess {
			t.Errorf("Unexpected access_key %v", claims["access_key"])
		}
		if claims["nonce"] == "" || claims["timestamp"] != float64(1700000000000) {
			t.Errorf("Unexpected nonce/timestamp %v %v", claims["nonce"], claims["timestamp"])
		}
		if _, ok := claims["query_hash"]; ok {
			t.Error("Expected no query_hash on a body-less request")
		}
		io.WriteString(w, `[
			{"currency":"KRW","balance":"1500000.5","locked":"0","avg_buy_price":"0","unit_currency":"KRW"},
			{"currency":"BTC","balance":"0.0123","locked":"0.001","avg_buy_price":"95000000","unit_currency":"KRW"},
			{"currency":"ETH","balance":"2","locked":"0","avg_buy_price":"3000000","unit_currency":"KRW"}
		]`)
	}, false)

	acct, err := c.Account(context.Background())
	if err != nil {
		t.Fatalf("Account: %v", err)
	}
	if !acct.Quote.Equal(decimal.RequireFromString("1500000.5")) {
		t.Errorf("Unexpected quote balance %s", acct.Quote)
	}
	if !acct.Base.Equal(decimal.RequireFromString("0.0123")) {
		t.Errorf("Unexpected base balance %s", acct.Base)
	}
	if !acct.BaseAvgBuyPrice.Equal(decimal.NewFromInt(95000000)) {
		t.Errorf("Unexpected avg buy price %s", acct.BaseAvgBuyPrice)
	}
}

func TestAccountMissingCurrencyIsZero(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[{"currency":"KRW","balance":"10","locked":"0","avg_buy_price":"0","unit_currency":"KRW"}]`)
	}, false)
	acct, err := c.Account(context.Background())
	if err != nil {
		t.Fatalf("Account: %v", err)
	}
	if !acct.Base.IsZero() {
		t.Errorf("Expected zero base balance, got %s", acct.Base)
	}
}

func TestAccountAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":{"name":"invalid_access_key","message":"bad key"}}`)
	}, false)
	_, err := c.Account(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != 401 || apiErr.Name != "invalid_access_key" || apiErr.Message != "bad key" {
		t.Errorf("Unexpected error %+v", apiErr)
	}
}

func TestAccountRequiresCredentials(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("Expected no request without credentials")
	}, false)
	c.p.SecretKey = ""
	if _, err := c.Account(context.Background()); err == nil {
		t.Error("Expected error without credentials")
	}
}

func TestCandles(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/public/candlestick/BTC_KRW/1h" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "" {
			t.Error("Expected public endpoint to be unauthenticated")
		}
		io.WriteString(w, `{"status":"0000","data":[
			[1700000000000,"100","110","120","90","1.5"],
			[1700003600000,"110","105","115","100","2"],
			[1700007200000,105,130,131,104,"3.25"],
			["1700010800000","130","128","135","125","0.5"]
		]}`)
	}, false)

	s, err := c.Candles(context.Background(), "1h", 3)
	if err != nil {
		t.Fatalf("Candles: %v", err)
	}
	if len(s.Candles) != 3 || s.Timeframe != "1h" {
		t.Fatalf("Expected 3 hourly candles, got %d %s", len(s.Candles), s.Timeframe)
	}
	first, last := s.Candles[0], s.Candles[2]
	if first.Time.UnixMilli() != 1700003600000 || last.Time.UnixMilli() != 1700010800000 {
		t.Errorf("Expected the newest three oldest-first, got %v .. %v", first.Time, last.Time)
	}
	mid := s.Candles[1]
	if !mid.Open.Equal(decimal.NewFromInt(105)) || !mid.Close.Equal(decimal.NewFromInt(130)) ||
		!mid.High.Equal(decimal.NewFromInt(131)) || !mid.Low.Equal(decimal.NewFromInt(104)) ||
		!mid.Volume.Equal(decimal.RequireFromString("3.25")) {
		t.Errorf("Unexpected field mapping %+v", mid)
	}
}

func TestCandlesErrors(t *testing.T) {
	cases := map[string]string{
		"status":    `{"status":"5600","message":"bad pair"}`,
		"empty":     `{"status":"0000","data":[]}`,
		"short row": `{"status":"0000","data":[[1700000000000,"1","2"]]}`,
		"bad value": `{"status":"0000","data":[[1700000000000,"x","2","3","4","5"]]}`,
		"not json":  `<html>`,
	}
	for name, body := range cases {
		body := body
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, body)
		}, false)
		if _, err := c.Candles(context.Background(), "24h", 30); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestPlaceOrder(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/orders" {
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
		raw, _ := io.ReadAll(r.Body)
		var body map[string]string
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Errorf("Invalid body %s: %v", raw, err)
		}
		want := map[string]string{"market": "KRW-BTC", "side": "bid", "volume": "0.00123456", "ord_type": "market"}
		for k, v := range want {
			if body[k] != v {
				t.Errorf("body[%s]: expected %q, got %q", k, v, body[k])
			}
		}

		claims := parseToken(t, r.Header.Get("Authorization"))
		sum := sha512.Sum512([]byte("market=KRW-BTC&side=bid&volume=0.00123456&ord_type=market"))
		if claims["query_hash"] != hex.EncodeToString(sum[:]) {
			t.Errorf("Unexpected query_hash %v", claims["query_hash"])
		}
		if claims["query_hash_alg"] != "SHA512" {
			t.Errorf("Unexpected query_hash_alg %v", claims["query_hash_alg"])
		}
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"uuid":"C0101000000001","side":"bid","ord_type":"market","state":"wait"}`)
	}, false)

	res, err := c.PlaceOrder(context.Background(), types.OrderRequest{
		Side: types.Buy, Quantity: decimal.RequireFromString("0.00123456"), Kind: types.Market,
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if res.OrderID != "C0101000000001" || res.State != "wait" || res.Simulated {
		t.Errorf("Unexpected result %+v", res)
	}
}

func TestPlaceOrderRejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":{"name":"insufficient_funds_ask","message":"not enough"}}`)
	}, false)
	_, err := c.PlaceOrder(context.Background(), types.OrderRequest{Side: types.Sell, Quantity: decimal.NewFromInt(1)})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Name != "insufficient_funds_ask" {
		t.Fatalf("Expected insufficient_funds_ask, got %v", err)
	}
}

func TestPlaceOrderDryRun(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}, true)
	res, err := c.PlaceOrder(context.Background(), types.OrderRequest{Side: types.Sell, Quantity: decimal.NewFromInt(1)})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if !res.Simulated || !strings.HasPrefix(res.OrderID, "SIM-") {
		t.Errorf("Expected simulated result, got %+v", res)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Error("Expected no request in dry-run mode")
	}
}

func TestPlaceOrderValidation(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("Expected no request for an invalid order")
	}, false)
	if _, err := c.PlaceOrder(context.Background(), types.OrderRequest{Side: types.Hold, Quantity: decimal.NewFromInt(1)}); err == nil {
		t.Error("Expected hold to be rejected")
	}
	if _, err := c.PlaceOrder(context.Background(), types.OrderRequest{Side: types.Buy}); err == nil {
		t.Error("Expected zero quantity to be rejected")
	}
}
