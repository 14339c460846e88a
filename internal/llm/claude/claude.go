package claude

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"crypto-trading-bot/internal/interfaces"
	"crypto-trading-bot/internal/store"
	"crypto-trading-bot/internal/trace"
)

const anthropicVersion = "2023-06-01"

// ClaudeAdvisor implements the Advisor interface using the Anthropic Messages API
type ClaudeAdvisor struct {
	cfg      *store.Config
	endpoint string
	client   *resty.Client
}

var _ interfaces.Advisor = (*ClaudeAdvisor)(nil)

// NewClaudeAdvisor creates a new Claude-based advisor
func NewClaudeAdvisor(cfg *store.Config) *ClaudeAdvisor {
	// default messages endpoint (public Anthropic); proxies set llm.endpoint
	endpoint := "https://api.anthropic.com/v1/messages"
	if cfg.LLM.Endpoint != "" {
		endpoint = cfg.LLM.Endpoint
	}
	client := resty.New()
	client.SetTimeout(time.Duration(cfg.LLM.TimeoutSeconds) * time.Second)
	return &ClaudeAdvisor{cfg: cfg, endpoint: endpoint, client: client}
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

// Advise sends prompt as one user message and returns the joined text blocks
func (a *ClaudeAdvisor) Advise(ctx context.Context, prompt string) (string, error) {
	// Create span for LLM API call
	ctx, span := trace.StartSpan(ctx, "claude-api-call")
	defer span.End()

	apiKey := a.cfg.Credentials.ClaudeAPIKey
	if apiKey == "" {
		return "", errors.New("CLAUDE_API_KEY missing")
	}

	reqBody := map[string]any{
		"model": a.cfg.LLM.Model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"max_tokens":  a.cfg.LLM.MaxTokens,
		"temperature": a.cfg.LLM.Temperature,
	}
	if a.cfg.LLM.System != "" {
		reqBody["system"] = a.cfg.LLM.System
	}

	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("x-api-key", apiKey).
		SetHeader("anthropic-version", anthropicVersion).
		SetHeader("Content-Type", "application/json").
		SetBody(reqBody).
		Post(a.endpoint)
	if err != nil {
		return "", err
	}
	if resp.StatusCode() >= 300 {
		return "", fmt.Errorf("claude http %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}

	var r messagesResponse
	if err := json.Unmarshal(resp.Body(), &r); err != nil {
		return "", fmt.Errorf("failed to parse claude response: %w", err)
	}

	var sb strings.Builder
	for _, block := range r.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}
