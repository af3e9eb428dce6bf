package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nikhilbhutani/docchat/internal/cache"
	"github.com/nikhilbhutani/docchat/internal/llm"
)

// Service embeds text with a single provider/model pair, so documents and
// queries always land in the same vector space.
type Service struct {
	gateway  llm.Gateway
	provider string
	model    string
	cache    *cache.Cache
	cacheTTL time.Duration
}

func NewService(gw llm.Gateway, provider, model string) *Service {
	return &Service{gateway: gw, provider: provider, model: model}
}

// WithQueryCache enables caching of query embeddings.
func (s *Service) WithQueryCache(c *cache.Cache, ttl time.Duration) *Service {
	s.cache = c
	s.cacheTTL = ttl
	return s
}

func (s *Service) Model() string { return s.model }

func (s *Service) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	// Batch in groups of 100 for API limits
	const batchSize = 100
	var allEmbeddings [][]float32

	for i := 0; i < len(texts); i += batchSize {
		end := min(i+batchSize, len(texts))

		resp, err := s.gateway.Embed(ctx, llm.EmbeddingRequest{
			Provider: s.provider,
			Model:    s.model,
			Input:    texts[i:end],
		})
		if err != nil {
			return nil, fmt.Errorf("embed batch %d: %w", i/batchSize, err)
		}
		if len(resp.Embeddings) != end-i {
			return nil, fmt.Errorf("embed batch %d: got %d embeddings for %d inputs", i/batchSize, len(resp.Embeddings), end-i)
		}

		allEmbeddings = append(allEmbeddings, resp.Embeddings...)
	}

	return allEmbeddings, nil
}

func (s *Service) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := s.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings[0]) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return embeddings[0], nil
}

// EmbedQuery embeds a user query, consulting the query cache when configured.
// Cache failures are logged and never fail the query.
func (s *Service) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	if s.cache == nil {
		return s.EmbedSingle(ctx, query)
	}

	key := s.queryKey(query)
	var cached []float32
	err := s.cache.Get(ctx, key, &cached)
	if err == nil && len(cached) > 0 {
		return cached, nil
	}
	if err != nil && !errors.Is(err, cache.ErrMiss) {
		slog.Warn("query embedding cache read failed", "error", err)
	}

	vec, err := s.EmbedSingle(ctx, query)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, key, vec, s.cacheTTL); err != nil {
		slog.Warn("query embedding cache write failed", "error", err)
	}
	return vec, nil
}

func (s *Service) queryKey(query string) string {
	sum := sha256.Sum256([]byte(query))
	return fmt.Sprintf("embedding:query:%s:%s:%s", s.provider, s.model, hex.EncodeToString(sum[:]))
}
