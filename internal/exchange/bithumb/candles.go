package bithumb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"crypto-trading-bot/internal/types"
)

type candlestickResponse struct {
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Data    []json.RawMessage `json:"data"`
}

// Candles returns the newest count candles for interval ("1m", "1h", "24h"...),
// ordered oldest-first. The returned series is labelled with interval.
func (c *Client) Candles(ctx context.Context, interval string, count int) (types.CandleSeries, error) {
	if count <= 0 {
		return types.CandleSeries{}, fmt.Errorf("candle count must be positive, got %d", count)
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParams(map[string]string{"pair": c.pair(), "interval": interval}).
		Get("/public/candlestick/{pair}/{interval}")
	if err != nil {
		return types.CandleSeries{}, fmt.Errorf("failed to fetch %s candles: %w", interval, err)
	}
	if err := checkResponse(resp); err != nil {
		return types.CandleSeries{}, err
	}

	var body candlestickResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return types.CandleSeries{}, fmt.Errorf("failed to parse candlestick response: %w", err)
	}
	if body.Status != "0000" {
		return types.CandleSeries{}, &APIError{StatusCode: resp.StatusCode(), Name: body.Status, Message: body.Message}
	}
	if len(body.Data) == 0 {
		return types.CandleSeries{}, fmt.Errorf("no %s candles returned", interval)
	}

	candles := make([]types.Candle, 0, len(body.Data))
	for i, raw := range body.Data {
		cd, err := parseCandle(raw)
		if err != nil {
			return types.CandleSeries{}, fmt.Errorf("candle %d: %w", i, err)
		}
		candles = append(candles, cd)
	}
	sort.SliceStable(candles, func(i, j int) bool { return candles[i].Time.Before(candles[j].Time) })
	if len(candles) > count {
		candles = candles[len(candles)-count:]
	}
	return types.CandleSeries{Timeframe: interval, Candles: candles}, nil
}

// parseCandle decodes [ms, open, close, high, low, volume]. Values may be
// JSON strings or numbers.
func parseCandle(raw json.RawMessage) (types.Candle, error) {
	var row []json.RawMessage
	if err := json.Unmarshal(raw, &row); err != nil {
		return types.Candle{}, err
	}
	if len(row) < 6 {
		return types.Candle{}, fmt.Errorf("expected 6 fields, got %d", len(row))
	}

	ms, err := strconv.ParseInt(string(bytes.Trim(row[0], `"`)), 10, 64)
	if err != nil {
		return types.Candle{}, fmt.Errorf("invalid timestamp %s", row[0])
	}

	vals := make([]decimal.Decimal, 5)
	for i := range vals {
		if err := vals[i].UnmarshalJSON(row[i+1]); err != nil {
			return types.Candle{}, fmt.Errorf("field %d: %w", i+1, err)
		}
	}
	return types.Candle{
		Time:   time.UnixMilli(ms).UTC(),
		Open:   vals[0],
		Close:  vals[1],
		High:   vals[2],
		Low:    vals[3],
		Volume: vals[4],
	}, nil
}
