package prompt

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"crypto-trading-bot/internal/types"
)

// FallbackInstructions is used when the instructions file cannot be read.
const FallbackInstructions = "No analysis instructions are available. Decide using the market data and account state below."

// ResponseFormat tells the model the exact shape of its answer.
const ResponseFormat = `Respond with JSON only, in exactly this format:
{
  "decision": "buy" | "sell" | "hold",
  "reason": "short reason"
}`

// Builder assembles the advisory prompt. The instructions file is re-read on
// every call so it can be edited while the bot runs.
type Builder struct {
	InstructionsFile string
	Base             string
	Quote            string
}

type accountView struct {
	BaseCurrency    string `json:"base_currency"`
	QuoteCurrency   string `json:"quote_currency"`
	BaseBalance     string `json:"base_balance"`
	QuoteBalance    string `json:"quote_balance"`
	BaseAvgBuyPrice string `json:"base_avg_buy_price"`
}

// Instructions returns the instructions file content, or FallbackInstructions
// when the file is missing or empty.
func (b Builder) Instructions() (string, error) {
	if b.InstructionsFile == "" {
		return FallbackInstructions, nil
	}
	data, err := os.ReadFile(b.InstructionsFile)
	if errors.Is(err, fs.ErrNotExist) {
		return FallbackInstructions, nil
	}
	if err != nil {
		return FallbackInstructions, err
	}
	s := strings.TrimSpace(string(data))
	if s == "" {
		return FallbackInstructions, nil
	}
	return s, nil
}

// Build renders instructions, the market snapshot JSON, the account JSON and
// the response format into one prompt. A read error on the instructions file
// is returned alongside a prompt built with the fallback text.
func (b Builder) Build(market types.MarketSnapshot, account types.AccountSnapshot) (string, error) {
	instructions, readErr := b.Instructions()

	marketJSON, err := json.Marshal(market)
	if err != nil {
		return "", fmt.Errorf("failed to encode market snapshot: %w", err)
	}
	accountJSON, err := json.Marshal(accountView{
		BaseCurrency:    b.Base,
		QuoteCurrency:   b.Quote,
		BaseBalance:     account.Base.String(),
		QuoteBalance:    account.Quote.String(),
		BaseAvgBuyPrice: account.BaseAvgBuyPrice.String(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode account snapshot: %w", err)
	}

	var sb strings.Builder
	sb.WriteString(instructions)
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "Market data for %s/%s:\n", b.Base, b.Quote)
	sb.Write(marketJSON)
	sb.WriteString("\n\nCurrent account state:\n")
	sb.Write(accountJSON)
	sb.WriteString("\n\n")
	sb.WriteString(ResponseFormat)
	sb.WriteString("\n")
	return sb.String(), readErr
}
