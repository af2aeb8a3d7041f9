package claim

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/srs/internal/model"
)

const defaultAnthropicModel = "claude-3-5-haiku-latest"

// AnthropicJudge asks a Claude model through the Messages API
type AnthropicJudge struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	Temperature float64            `json:"temperature"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Model string `json:"model"`
}

type anthropicError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewAnthropicJudge creates a judge backed by the Anthropic Messages API
func NewAnthropicJudge(cfg model.LLMConfig) (*AnthropicJudge, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	m := cfg.Model
	if m == "" {
		m = defaultAnthropicModel
	}

	return &AnthropicJudge{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		model:      m,
		httpClient: &http.Client{Timeout: judgeTimeout(cfg, 30*time.Second)},
	}, nil
}

// Name returns the provider name
func (j *AnthropicJudge) Name() string {
	return "anthropic"
}

// Judge classifies text with the model
func (j *AnthropicJudge) Judge(ctx context.Context, text string) (model.Judgment, error) {
	req := anthropicRequest{
		Model:     j.model,
		MaxTokens: 5,
		System:    judgeSystem,
		Messages: []anthropicMessage{
			{Role: "user", Content: fmt.Sprintf(judgePrompt, text)},
		},
	}
	headers := map[string]string{
		"x-api-key":         j.apiKey,
		"anthropic-version": "2023-06-01",
	}

	var resp anthropicResponse
	err := postJSON(ctx, j.httpClient, j.baseURL+"/v1/messages", headers, req, &resp, func(body []byte) string {
		var apiErr anthropicError
		if json.Unmarshal(body, &apiErr) != nil || apiErr.Error.Message == "" {
			return ""
		}
		return apiErr.Error.Type + " - " + apiErr.Error.Message
	})
	if err != nil {
		return 0, fmt.Errorf("Anthropic API error: %w", err)
	}
	if len(resp.Content) == 0 {
		return 0, fmt.Errorf("no content in Anthropic response")
	}
	return parseAnswer(resp.Content[0].Text)
}
