package openai

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

type OpenAIAdvisor struct {
	cfg      *store.Config
	endpoint string
	client   *resty.Client
}

var _ interfaces.Advisor = (*OpenAIAdvisor)(nil)

func NewOpenAIAdvisor(cfg *store.Config) *OpenAIAdvisor {
	endpoint := "https://api.openai.com/v1/chat/completions"
	if cfg.LLM.Endpoint != "" {
		endpoint = cfg.LLM.Endpoint
	}
	client := resty.New()
	client.SetTimeout(time.Duration(cfg.LLM.TimeoutSeconds) * time.Second)
	return &OpenAIAdvisor{cfg: cfg, endpoint: endpoint, client: client}
}

func (a *OpenAIAdvisor) Advise(ctx context.Context, prompt string) (string, error) {
	ctx, span := trace.StartSpan(ctx, "openai-api-call")
	defer span.End()

	apiKey := a.cfg.Credentials.OpenAIAPIKey
	if apiKey == "" {
		return "", errors.New("OPENAI_API_KEY missing")
	}

	messages := []map[string]string{}
	if a.cfg.LLM.System != "" {
		messages = append(messages, map[string]string{"role": "system", "content": a.cfg.LLM.System})
	}
	messages = append(messages, map[string]string{"role": "user", "content": prompt})

	body := map[string]any{
		"model":       a.cfg.LLM.Model,
		"messages":    messages,
		"temperature": a.cfg.LLM.Temperature,
		"max_tokens":  a.cfg.LLM.MaxTokens,
	}

	resp, err := a.client.R().
		SetContext(ctx).
		SetAuthToken(apiKey).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(a.endpoint)
	if err != nil {
		return "", err
	}
	if !resp.IsSuccess() {
		return "", fmt.Errorf("openai http %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}

	var r struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(resp.Body(), &r); err != nil {
		return "", err
	}
	if len(r.Choices) == 0 {
		return "", errors.New("no choices")
	}
	return r.Choices[0].Message.Content, nil
}
