package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// geminiProvider implements Provider for Google's native Gemini API
// (models/{model}:generateContent). The API key travels in the query
// string and the system prompt is sent as the first part of the single
// user turn.
type geminiProvider struct {
	base httpClient
}

// NewGemini creates a provider for Google Gemini.
func NewGemini(cfg Config) Provider {
	cfg.Provider = "gemini"
	return &geminiProvider{base: newHTTPClient(cfg.Resolved())}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	TopP            float64 `json:"topP,omitempty"`
	TopK            int     `json:"topK,omitempty"`
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text *string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	ModelVersion  string `json:"modelVersion"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

func (p *geminiProvider) endpoint(model, method string) string {
	return fmt.Sprintf("%s/models/%s:%s?key=%s",
		p.base.cfg.BaseURL, url.PathEscape(model), method, url.QueryEscape(p.base.cfg.APIKey))
}

func (p *geminiProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.base.cfg.Model
	}

	system, rest := splitMessages(req.Messages)
	texts := make([]string, 0, len(rest)+1)
	if system != "" {
		texts = append(texts, system)
	}
	for _, m := range rest {
		texts = append(texts, m.Content)
	}

	body := geminiRequest{
		Contents: []geminiContent{{
			Parts: []geminiPart{{Text: strings.Join(texts, "\n\n")}},
		}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxTokens,
			TopP:            0.8,
			TopK:            40,
		},
	}

	respBody, err := p.base.doPost(ctx, p.endpoint(model, "generateContent"), nil, body)
	if err != nil {
		return nil, err
	}

	var resp geminiResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("%w: decoding gemini response: %v", ErrGenerationFailed, err)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 ||
		resp.Candidates[0].Content.Parts[0].Text == nil {
		return nil, fmt.Errorf("%w: no candidates[0].content.parts[0].text in response", ErrGenerationFailed)
	}

	usedModel := resp.ModelVersion
	if usedModel == "" {
		usedModel = model
	}
	return &ChatResponse{
		Content:          *resp.Candidates[0].Content.Parts[0].Text,
		Model:            usedModel,
		FinishReason:     resp.Candidates[0].FinishReason,
		PromptTokens:     resp.UsageMetadata.PromptTokenCount,
		CompletionTokens: resp.UsageMetadata.CandidatesTokenCount,
		TotalTokens:      resp.UsageMetadata.TotalTokenCount,
	}, nil
}

type geminiEmbedRequest struct {
	Requests []geminiEmbedItem `json:"requests"`
}

type geminiEmbedItem struct {
	Model   string        `json:"model"`
	Content geminiContent `json:"content"`
}

type geminiEmbedResponse struct {
	Embeddings []struct {
		Values []float32 `json:"values"`
	} `json:"embeddings"`
}

// Embed uses batchEmbedContents with the configured model, e.g.
// text-embedding-004.
func (p *geminiProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	model := p.base.cfg.Model
	items := make([]geminiEmbedItem, len(texts))
	for i, t := range texts {
		items[i] = geminiEmbedItem{
			Model:   "models/" + model,
			Content: geminiContent{Parts: []geminiPart{{Text: t}}},
		}
	}

	respBody, err := p.base.doPost(ctx, p.endpoint(model, "batchEmbedContents"), nil, geminiEmbedRequest{Requests: items})
	if err != nil {
		return nil, err
	}

	var resp geminiEmbedResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("decoding embedding response: %w", err)
	}

	embeddings := make([][]float32, len(texts))
	for i, e := range resp.Embeddings {
		if i < len(embeddings) {
			embeddings[i] = e.Values
		}
	}
	return embeddings, nil
}
