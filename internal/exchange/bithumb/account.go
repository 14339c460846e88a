package bithumb

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"crypto-trading-bot/internal/types"
)

type accountEntry struct {
	Currency     string          `json:"currency"`
	Balance      decimal.Decimal `json:"balance"`
	Locked       decimal.Decimal `json:"locked"`
	AvgBuyPrice  decimal.Decimal `json:"avg_buy_price"`
	UnitCurrency string          `json:"unit_currency"`
}

// Balance is one currency line of the account, as printed by the balance command.
type Balance struct {
	Currency    string
	Balance     decimal.Decimal
	Locked      decimal.Decimal
	AvgBuyPrice decimal.Decimal
}

// Balances returns every currency held by the account.
func (c *Client) Balances(ctx context.Context) ([]Balance, error) {
	entries, err := c.accounts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Balance, 0, len(entries))
	for _, e := range entries {
		out = append(out, Balance{Currency: e.Currency, Balance: e.Balance, Locked: e.Locked, AvgBuyPrice: e.AvgBuyPrice})
	}
	return out, nil
}

// Account returns the free balances of the configured base and quote assets.
// A currency missing from the reply counts as zero.
func (c *Client) Account(ctx context.Context) (types.AccountSnapshot, error) {
	entries, err := c.accounts(ctx)
	if err != nil {
		return types.AccountSnapshot{}, err
	}
	snap := types.AccountSnapshot{Time: c.now()}
	for _, e := range entries {
		switch e.Currency {
		case c.p.Base:
			snap.Base = e.Balance
			snap.BaseAvgBuyPrice = e.AvgBuyPrice
		case c.p.Quote:
			snap.Quote = e.Balance
		}
	}
	return snap, nil
}

func (c *Client) accounts(ctx context.Context) ([]accountEntry, error) {
	auth, err := c.authorization(nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Authorization", auth).
		Get("/v1/accounts")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch accounts: %w", err)
	}
	if err := checkResponse(resp); err != nil {
		return nil, err
	}

	var entries []accountEntry
	if err := json.Unmarshal(resp.Body(), &entries); err != nil {
		return nil, fmt.Errorf("failed to parse accounts response: %w", err)
	}
	return entries, nil
}
