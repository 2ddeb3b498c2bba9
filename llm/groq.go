package llm

import "context"

// groqProvider implements Provider for Groq's inference API.
// Groq serves the OpenAI-compatible API under /openai/v1.
type groqProvider struct {
	base openAICompatClient
}

// NewGroq creates a provider for Groq.
func NewGroq(cfg Config) Provider {
	cfg.Provider = "groq"
	return &groqProvider{base: newOpenAICompatClient(cfg.Resolved())}
}

func (p *groqProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	return p.base.chat(ctx, req)
}

func (p *groqProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return p.base.embed(ctx, texts)
}
