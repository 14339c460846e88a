package bithumb

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"crypto-trading-bot/internal/types"
)

// orderBody is sent as JSON; its field order matches orderParams so the
// query hash covers the same fields in the same order.
type orderBody struct {
	Market  string `json:"market"`
	Side    string `json:"side"`
	Volume  string `json:"volume"`
	OrdType string `json:"ord_type"`
}

type orderResponse struct {
	UUID  string `json:"uuid"`
	State string `json:"state"`
	Side  string `json:"side"`
}

func side(a types.Action) (string, error) {
	switch a {
	case types.Buy:
		return "bid", nil
	case types.Sell:
		return "ask", nil
	}
	return "", fmt.Errorf("unsupported order side %q", a)
}

func (b orderBody) params() []param {
	return []param{
		{"market", b.Market},
		{"side", b.Side},
		{"volume", b.Volume},
		{"ord_type", b.OrdType},
	}
}

// PlaceOrder submits one market order. In dry-run mode nothing is sent and a
// simulated result is returned.
func (c *Client) PlaceOrder(ctx context.Context, req types.OrderRequest) (types.OrderResult, error) {
	s, err := side(req.Side)
	if err != nil {
		return types.OrderResult{}, err
	}
	if !req.Quantity.IsPositive() {
		return types.OrderResult{}, fmt.Errorf("order quantity must be positive, got %s", req.Quantity)
	}
	kind := req.Kind
	if kind == "" {
		kind = types.Market
	}
	body := orderBody{
		Market:  c.Market(),
		Side:    s,
		Volume:  req.Quantity.String(),
		OrdType: string(kind),
	}

	if c.p.DryRun {
		return types.OrderResult{OrderID: "SIM-" + uuid.NewString(), State: "simulated", Simulated: true}, nil
	}

	auth, err := c.authorization(body.params())
	if err != nil {
		return types.OrderResult{}, err
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return types.OrderResult{}, err
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Authorization", auth).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post("/v1/orders")
	if err != nil {
		return types.OrderResult{}, fmt.Errorf("failed to submit order: %w", err)
	}
	if err := checkResponse(resp); err != nil {
		return types.OrderResult{}, err
	}

	var out orderResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return types.OrderResult{}, fmt.Errorf("failed to parse order response: %w", err)
	}
	if out.UUID == "" {
		return types.OrderResult{}, fmt.Errorf("order response carried no id: %s", resp.String())
	}
	return types.OrderResult{OrderID: out.UUID, State: out.State}, nil
}
