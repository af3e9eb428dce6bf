package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	name      string
	chatErr   error
	embedErr  error
	chatCalls int
	lastModel string
}

func (f *fakeProvider) Name() string     { return f.name }
func (f *fakeProvider) Models() []string { return []string{f.name + "-model"} }

func (f *fakeProvider) ChatCompletion(_ context.Context, req ChatRequest) (*ChatResponse, error) {
	f.chatCalls++
	f.lastModel = req.Model
	if f.chatErr != nil {
		return nil, f.chatErr
	}
	return &ChatResponse{Provider: f.name, Content: "answer from " + f.name}, nil
}

func (f *fakeProvider) GenerateEmbedding(_ context.Context, req EmbeddingRequest) (*EmbeddingResponse, error) {
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	out := make([][]float32, len(req.Input))
	for i := range out {
		out[i] = []float32{float32(i), 1}
	}
	return &EmbeddingResponse{Provider: f.name, Embeddings: out}, nil
}

func TestGateway_ChatDefaultProvider(t *testing.T) {
	primary := &fakeProvider{name: "primary"}
	gw := NewGatewayWithProviders(GatewayOptions{DefaultProvider: "primary"}, primary)

	resp, err := gw.Chat(context.Background(), ChatRequest{Messages: []Message{{Role: "user", Content: "hi"}}})
	require.NoError(t, err)
	assert.Equal(t, "answer from primary", resp.Content)
	assert.Equal(t, 1, primary.chatCalls)
}

func TestGateway_ChatFallback(t *testing.T) {
	primary := &fakeProvider{name: "primary", chatErr: errors.New("overloaded")}
	secondary := &fakeProvider{name: "secondary"}
	gw := NewGatewayWithProviders(GatewayOptions{DefaultProvider: "primary", FallbackProvider: "secondary"}, primary, secondary)

	resp, err := gw.Chat(context.Background(), ChatRequest{Model: "primary-model"})
	require.NoError(t, err)
	assert.Equal(t, "secondary", resp.Provider)
	assert.Empty(t, secondary.lastModel, "fallback uses its own default model")
}

func TestGateway_Retries(t *testing.T) {
	primary := &fakeProvider{name: "primary", chatErr: errors.New("flaky")}
	gw := NewGatewayWithProviders(GatewayOptions{DefaultProvider: "primary", MaxRetries: 2}, primary)

	_, err := gw.Chat(context.Background(), ChatRequest{})
	require.Error(t, err)
	assert.Equal(t, 3, primary.chatCalls)
}

func TestGateway_NoRetryByDefault(t *testing.T) {
	primary := &fakeProvider{name: "primary", chatErr: errors.New("flaky")}
	gw := NewGatewayWithProviders(GatewayOptions{DefaultProvider: "primary"}, primary)

	_, err := gw.Chat(context.Background(), ChatRequest{})
	require.Error(t, err)
	assert.Equal(t, 1, primary.chatCalls)
	assert.ErrorContains(t, err, "flaky")
}

func TestGateway_BreakerOpens(t *testing.T) {
	primary := &fakeProvider{name: "primary", chatErr: errors.New("down")}
	gw := NewGatewayWithProviders(GatewayOptions{DefaultProvider: "primary"}, primary)

	for i := 0; i < 5; i++ {
		_, _ = gw.Chat(context.Background(), ChatRequest{})
	}
	_, err := gw.Chat(context.Background(), ChatRequest{})
	require.Error(t, err)
	assert.Equal(t, 5, primary.chatCalls, "open breaker short-circuits the sixth call")
}

func TestGateway_UnknownProvider(t *testing.T) {
	gw := NewGatewayWithProviders(GatewayOptions{DefaultProvider: "missing"})
	_, err := gw.Embed(context.Background(), EmbeddingRequest{Input: []string{"x"}})
	assert.ErrorContains(t, err, `provider "missing" not configured`)
}

func TestGateway_EmbedUnsupportedIsNotRetried(t *testing.T) {
	p := &fakeProvider{name: "chat-only", embedErr: ErrEmbeddingsUnsupported}
	gw := NewGatewayWithProviders(GatewayOptions{DefaultProvider: "chat-only", MaxRetries: 3}, p)

	_, err := gw.Embed(context.Background(), EmbeddingRequest{Input: []string{"x"}})
	assert.ErrorIs(t, err, ErrEmbeddingsUnsupported)
}

func TestGateway_ListModels(t *testing.T) {
	gw := NewGatewayWithProviders(GatewayOptions{}, &fakeProvider{name: "b"}, &fakeProvider{name: "a"})
	assert.Equal(t, []ModelInfo{{Provider: "a", Model: "a-model"}, {Provider: "b", Model: "b-model"}}, gw.ListModels())
}

func TestOllamaProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/embed":
			var req ollamaEmbedReq
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "nomic-embed-text", req.Model)
			json.NewEncoder(w).Encode(ollamaEmbedResp{Embeddings: [][]float32{{0.1, 0.2}}})
		case "/api/chat":
			json.NewEncoder(w).Encode(ollamaChatResp{Message: ollamaMessage{Role: "assistant", Content: "hola"}, Done: true, PromptEvalCount: 3, EvalCount: 2})
		default:
			http.Error(w, "nope", http.StatusNotFound)
		}
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL + "/")

	emb, err := p.GenerateEmbedding(context.Background(), EmbeddingRequest{Input: []string{"x"}})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0.1, 0.2}}, emb.Embeddings)

	chat, err := p.ChatCompletion(context.Background(), ChatRequest{Messages: []Message{{Role: "user", Content: "hi"}}})
	require.NoError(t, err)
	assert.Equal(t, "hola", chat.Content)
	assert.Equal(t, 5, chat.TotalTokens)
}

func TestOllamaProvider_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewOllamaProvider(srv.URL).GenerateEmbedding(context.Background(), EmbeddingRequest{Input: []string{"x"}})
	assert.ErrorContains(t, err, "status 404")
}

func TestCalculateCost(t *testing.T) {
	assert.InDelta(t, 0.0002, CalculateCost("text-embedding-3-small", 10000, 0), 1e-9)
	assert.Zero(t, CalculateCost("unknown-model", 1000, 1000))
}
