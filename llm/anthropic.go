package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const anthropicVersion = "2023-06-01"

// anthropicProvider implements Provider for the Anthropic Messages API.
// Anthropic has no embeddings endpoint; Embed always fails with
// ErrEmbeddingUnsupported.
type anthropicProvider struct {
	base httpClient
}

// NewAnthropic creates a provider for Anthropic.
func NewAnthropic(cfg Config) Provider {
	cfg.Provider = "anthropic"
	return &anthropicProvider{base: newHTTPClient(cfg.Resolved())}
}

type anthropicRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
}

type anthropicResponse struct {
	Content []struct {
		Type string  `json:"type"`
		Text *string `json:"text"`
	} `json:"content"`
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (p *anthropicProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.base.cfg.Model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = MaxTokens
	}

	system, rest := splitMessages(req.Messages)
	if len(rest) == 0 {
		rest = []Message{{Role: "user", Content: system}}
		system = ""
	}

	header := http.Header{}
	header.Set("x-api-key", p.base.cfg.APIKey)
	header.Set("anthropic-version", anthropicVersion)

	body := anthropicRequest{
		Model:       model,
		MaxTokens:   maxTokens,
		System:      system,
		Messages:    rest,
		Temperature: req.Temperature,
	}

	respBody, err := p.base.doPost(ctx, p.base.cfg.BaseURL+"/v1/messages", header, body)
	if err != nil {
		return nil, err
	}

	var resp anthropicResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("%w: decoding anthropic response: %v", ErrGenerationFailed, err)
	}
	if len(resp.Content) == 0 || resp.Content[0].Text == nil {
		return nil, fmt.Errorf("%w: no content[0].text in response", ErrGenerationFailed)
	}

	return &ChatResponse{
		Content:          *resp.Content[0].Text,
		Model:            resp.Model,
		FinishReason:     resp.StopReason,
		PromptTokens:     resp.Usage.InputTokens,
		CompletionTokens: resp.Usage.OutputTokens,
		TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
	}, nil
}

func (p *anthropicProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, ErrEmbeddingUnsupported
}
