// Package llm adapts the supported text-generation backends to a single
// request/response shape.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrGenerationFailed is returned for any backend failure: transport
// errors, non-2xx statuses, timeouts and bodies missing the expected text
// field.
var ErrGenerationFailed = errors.New("llm: generation failed")

// ErrEmbeddingUnsupported is returned by backends without an embeddings API.
var ErrEmbeddingUnsupported = errors.New("llm: embeddings not supported by provider")

const (
	// Temperature is fixed for every generation call.
	Temperature = 0.1
	// MaxTokens is the output ceiling for every generation call.
	MaxTokens = 1000
	// DefaultTimeout bounds a single generation call.
	DefaultTimeout = 30 * time.Second
)

// Provider is the interface for LLM interactions.
type Provider interface {
	// Chat sends a chat completion request.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// Embed generates embeddings for a batch of texts.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// ChatRequest is a chat completion request.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatResponse is the response from a chat completion.
type ChatResponse struct {
	Content          string `json:"content"`
	Model            string `json:"model"`
	FinishReason     string `json:"finish_reason"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens"`
}

// Config configures an LLM provider.
type Config struct {
	Provider string        `json:"provider" yaml:"provider"` // gemini, openai, anthropic, groq
	Model    string        `json:"model" yaml:"model"`
	BaseURL  string        `json:"base_url" yaml:"base_url"`
	APIKey   string        `json:"api_key" yaml:"api_key"`
	Timeout  time.Duration `json:"timeout" yaml:"timeout"`
}

var defaultModels = map[string]string{
	"gemini":    "gemini-1.5-flash",
	"openai":    "gpt-4",
	"anthropic": "claude-3-sonnet-20240229",
	"groq":      "llama-3.1-8b-instant",
}

var defaultBaseURLs = map[string]string{
	"gemini":    "https://generativelanguage.googleapis.com/v1beta",
	"openai":    "https://api.openai.com",
	"anthropic": "https://api.anthropic.com",
	"groq":      "https://api.groq.com/openai",
}

// Resolved returns a copy of cfg with the backend's default model, base URL
// and timeout filled in where unset.
func (cfg Config) Resolved() Config {
	name := strings.ToLower(cfg.Provider)
	if cfg.Model == "" {
		cfg.Model = defaultModels[name]
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURLs[name]
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return cfg
}

// NewProvider creates an LLM provider from configuration.
func NewProvider(cfg Config) (Provider, error) {
	cfg = cfg.Resolved()
	switch strings.ToLower(cfg.Provider) {
	case "gemini":
		return NewGemini(cfg), nil
	case "openai":
		return NewOpenAI(cfg), nil
	case "anthropic":
		return NewAnthropic(cfg), nil
	case "groq":
		return NewGroq(cfg), nil
	case "":
		return nil, fmt.Errorf("llm provider not specified")
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
	}
}

// Generate sends one system/user exchange with the fixed sampling settings
// and returns the raw response text. Every failure is reported as
// ErrGenerationFailed; there is no retry.
func Generate(ctx context.Context, p Provider, system, user string) (string, error) {
	if p == nil {
		return "", fmt.Errorf("%w: no provider configured", ErrGenerationFailed)
	}
	resp, err := p.Chat(ctx, ChatRequest{
		Messages: []Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: Temperature,
		MaxTokens:   MaxTokens,
	})
	if err != nil {
		if errors.Is(err, ErrGenerationFailed) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	return resp.Content, nil
}

// Status describes the configured backend without contacting it.
type Status struct {
	Provider  string `json:"provider"`
	Model     string `json:"model"`
	BaseURL   string `json:"baseUrl"`
	HasAPIKey bool   `json:"hasApiKey"`
	Supported bool   `json:"supported"`
}

// StatusOf reports the resolved backend settings.
func StatusOf(cfg Config) Status {
	r := cfg.Resolved()
	_, ok := defaultModels[strings.ToLower(r.Provider)]
	return Status{
		Provider:  r.Provider,
		Model:     r.Model,
		BaseURL:   r.BaseURL,
		HasAPIKey: r.APIKey != "",
		Supported: ok,
	}
}

// splitMessages separates the system instruction from the conversation
// turns for backends that take it out of band.
func splitMessages(msgs []Message) (system string, rest []Message) {
	var sys []string
	for _, m := range msgs {
		if m.Role == "system" {
			sys = append(sys, m.Content)
			continue
		}
		rest = append(rest, m)
	}
	return strings.Join(sys, "\n\n"), rest
}
