package gemini

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

const defaultEndpoint = "https://generativelanguage.googleapis.com/v1beta"

// GeminiAdvisor calls the Gemini generateContent API.
type GeminiAdvisor struct {
	cfg    *store.Config
	apiKey string
	client *resty.Client
}

var _ interfaces.Advisor = (*GeminiAdvisor)(nil)

func NewGeminiAdvisor(cfg *store.Config) *GeminiAdvisor {
	endpoint := defaultEndpoint
	if cfg.LLM.Endpoint != "" {
		endpoint = cfg.LLM.Endpoint
	}
	client := resty.New()
	client.SetBaseURL(strings.TrimRight(endpoint, "/"))
	client.SetTimeout(time.Duration(cfg.LLM.TimeoutSeconds) * time.Second)

	return &GeminiAdvisor{cfg: cfg, apiKey: cfg.Credentials.GeminiAPIKey, client: client}
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	Temperature     float32 `json:"temperature"`
}

type generateRequest struct {
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	Contents          []content        `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// Advise sends prompt as a single user turn and returns the concatenated text
// of the first candidate.
func (a *GeminiAdvisor) Advise(ctx context.Context, prompt string) (string, error) {
	ctx, span := trace.StartSpan(ctx, "gemini-api-call")
	defer span.End()

	if a.apiKey == "" {
		return "", errors.New("GEMINI_API_KEY missing")
	}

	body := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			MaxOutputTokens: a.cfg.LLM.MaxTokens,
			Temperature:     a.cfg.LLM.Temperature,
		},
	}
	if a.cfg.LLM.System != "" {
		body.SystemInstruction = &content{Parts: []part{{Text: a.cfg.LLM.System}}}
	}

	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetQueryParam("key", a.apiKey).
		SetPathParam("model", a.cfg.LLM.Model).
		SetBody(body).
		Post("/models/{model}:generateContent")
	if err != nil {
		return "", err
	}
	if !resp.IsSuccess() {
		return "", fmt.Errorf("gemini http %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}

	var r generateResponse
	if err := json.Unmarshal(resp.Body(), &r); err != nil {
		return "", fmt.Errorf("failed to parse gemini response: %w", err)
	}
	if r.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("gemini blocked the prompt: %s", r.PromptFeedback.BlockReason)
	}
	if len(r.Candidates) == 0 {
		return "", errors.New("no candidates")
	}

	var sb strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}
