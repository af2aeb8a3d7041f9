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

// OllamaJudge asks a local model served by Ollama
type OllamaJudge struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	System  string        `json:"system,omitempty"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"` // max tokens
}

type ollamaResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

type ollamaError struct {
	Error string `json:"error"`
}

// NewOllamaJudge creates a judge for an Ollama server. The model must be
// named since Ollama has no default.
func NewOllamaJudge(cfg model.LLMConfig) (*OllamaJudge, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("ollama model must be specified (e.g., llama3.1:8b, mistral)")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	return &OllamaJudge{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   cfg.Model,
		// local models can be slow to load
		httpClient: &http.Client{Timeout: judgeTimeout(cfg, 60*time.Second)},
	}, nil
}

// Name returns the provider name
func (j *OllamaJudge) Name() string {
	return "ollama"
}

// Judge classifies text with the model
func (j *OllamaJudge) Judge(ctx context.Context, text string) (model.Judgment, error) {
	req := ollamaRequest{
		Model:   j.model,
		Prompt:  fmt.Sprintf(judgePrompt, text),
		System:  judgeSystem,
		Options: ollamaOptions{NumPredict: 5},
	}

	var resp ollamaResponse
	err := postJSON(ctx, j.httpClient, j.baseURL+"/api/generate", nil, req, &resp, func(body []byte) string {
		var apiErr ollamaError
		if json.Unmarshal(body, &apiErr) != nil {
			return ""
		}
		return apiErr.Error
	})
	if err != nil {
		return 0, fmt.Errorf("ollama API error: %w", err)
	}
	return parseAnswer(resp.Response)
}
