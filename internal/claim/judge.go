package claim

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/srs/internal/model"
	"github.com/sashabaranov/go-openai"
)

// Judge decides a claim's judgment when none of the text rules match
type Judge interface {
	Name() string
	Judge(ctx context.Context, text string) (model.Judgment, error)
}

// NewJudge creates a Judge from configuration. It returns nil when no
// provider is configured.
func NewJudge(cfg model.LLMConfig) (Judge, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return NewOpenAIJudge(cfg)
	case "anthropic", "claude":
		return NewAnthropicJudge(cfg)
	case "ollama":
		return NewOllamaJudge(cfg)
	case "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai, anthropic, ollama)", cfg.Provider)
	}
}

const judgePrompt = `A consumer campaign made the following statement about a company or brand.
Answer with exactly one word: "good" if it recommends the company, "bad" if it
recommends avoiding it, or "mixed" if it is hedged or partial.

Statement: %s`

// OpenAIJudge asks an OpenAI chat model for a judgment
type OpenAIJudge struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewOpenAIJudge creates a judge backed by the Chat Completions API
func NewOpenAIJudge(cfg model.LLMConfig) (*OpenAIJudge, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	m := cfg.Model
	if m == "" {
		m = openai.GPT4oMini
	}
	return &OpenAIJudge{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   m,
		timeout: judgeTimeout(cfg, 30*time.Second),
	}, nil
}

// Name returns the provider name
func (j *OpenAIJudge) Name() string {
	return "openai"
}

// Judge classifies text with the model
func (j *OpenAIJudge) Judge(ctx context.Context, text string) (model.Judgment, error) {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	resp, err := j.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: j.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: judgeSystem,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: fmt.Sprintf(judgePrompt, text),
			},
		},
		MaxTokens:   3,
		Temperature: 0,
	})
	if err != nil {
		return 0, fmt.Errorf("OpenAI API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return 0, fmt.Errorf("no response from OpenAI")
	}

	return parseAnswer(resp.Choices[0].Message.Content)
}

// ClassifyWithJudge classifies with the text rules and falls back to the
// judge only when no rule matched
func ClassifyWithJudge(ctx context.Context, text string, def model.Judgment, judge Judge) (model.Judgment, error) {
	if judge == nil || Matched(text) {
		return Classify(text, def), nil
	}
	j, err := judge.Judge(ctx, text)
	if err != nil {
		return def, err
	}
	return j, nil
}

// Explain classifies text like ClassifyWithJudge and records which step
// decided the judgment
func Explain(ctx context.Context, text string, def model.Judgment, judge Judge) (model.ClassifiedClaim, error) {
	c := model.ClassifiedClaim{Text: text}
	switch {
	case Matched(text):
		c.Judgment, c.Source = Classify(text, def), model.ClaimSourceRules
	case judge != nil:
		j, err := judge.Judge(ctx, text)
		if err != nil {
			return c, fmt.Errorf("judge %s: %w", judge.Name(), err)
		}
		c.Judgment, c.Source = j, model.ClaimSourceJudge
	default:
		c.Judgment, c.Source = def, model.ClaimSourceDefault
	}
	c.Label = c.Judgment.String()
	return c, nil
}
