package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const (
	geminiDefaultChatModel  = "gemini-1.5-flash"
	geminiDefaultEmbedModel = "embedding-001"
)

type GeminiProvider struct {
	client *genai.Client
}

func NewGeminiProvider(ctx context.Context, apiKey string) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &GeminiProvider{client: client}, nil
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) Models() []string {
	return []string{geminiDefaultChatModel, "gemini-1.5-pro", geminiDefaultEmbedModel, "text-embedding-004"}
}

func (p *GeminiProvider) Close() error {
	return p.client.Close()
}

func (p *GeminiProvider) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	start := time.Now()

	modelName := req.Model
	if modelName == "" {
		modelName = geminiDefaultChatModel
	}
	m := p.client.GenerativeModel(modelName)
	if req.Temperature > 0 {
		m.SetTemperature(float32(req.Temperature))
	}
	if req.MaxTokens > 0 {
		m.SetMaxOutputTokens(int32(req.MaxTokens))
	}

	var system []genai.Part
	var prompt []genai.Part
	for _, msg := range req.Messages {
		switch msg.Role {
		case "system":
			system = append(system, genai.Text(msg.Content))
		default:
			prompt = append(prompt, genai.Text(msg.Content))
		}
	}
	if len(system) > 0 {
		m.SystemInstruction = &genai.Content{Parts: system}
	}
	if len(prompt) == 0 {
		return nil, fmt.Errorf("gemini chat: no prompt messages")
	}

	resp, err := m.GenerateContent(ctx, prompt...)
	if err != nil {
		return nil, fmt.Errorf("gemini chat: %w", err)
	}

	var b strings.Builder
	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if t, ok := part.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
	}

	return &ChatResponse{
		Provider:  p.Name(),
		Model:     modelName,
		Content:   b.String(),
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}

func (p *GeminiProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*EmbeddingResponse, error) {
	modelName := req.Model
	if modelName == "" {
		modelName = geminiDefaultEmbedModel
	}
	em := p.client.EmbeddingModel(modelName)

	var embeddings [][]float32
	switch len(req.Input) {
	case 0:
	case 1:
		resp, err := em.EmbedContent(ctx, genai.Text(req.Input[0]))
		if err != nil {
			return nil, fmt.Errorf("gemini embed: %w", err)
		}
		if resp.Embedding == nil {
			return nil, fmt.Errorf("gemini embed: empty embedding")
		}
		embeddings = [][]float32{resp.Embedding.Values}
	default:
		batch := em.NewBatch()
		for _, t := range req.Input {
			batch.AddContent(genai.Text(t))
		}
		resp, err := em.BatchEmbedContents(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("gemini batch embed: %w", err)
		}
		embeddings = make([][]float32, 0, len(resp.Embeddings))
		for _, e := range resp.Embeddings {
			embeddings = append(embeddings, e.Values)
		}
	}

	return &EmbeddingResponse{
		Provider:   p.Name(),
		Model:      modelName,
		Embeddings: embeddings,
	}, nil
}
