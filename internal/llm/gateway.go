package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/nikhilbhutani/docchat/internal/config"
)

type GatewayOptions struct {
	DefaultProvider  string
	FallbackProvider string
	// MaxRetries is the number of extra attempts per provider. Zero disables retry.
	MaxRetries int
}

type gateway struct {
	providers        map[string]Provider
	breakers         map[string]*gobreaker.CircuitBreaker
	defaultProvider  string
	fallbackProvider string
	maxRetries       int
}

// NewGateway builds a gateway from every provider with credentials in cfg.
func NewGateway(ctx context.Context, cfg config.LLMConfig) (Gateway, error) {
	var providers []Provider

	if cfg.OpenAIKey != "" {
		providers = append(providers, NewOpenAIProvider(cfg.OpenAIKey))
	}
	if cfg.AnthropicKey != "" {
		providers = append(providers, NewAnthropicProvider(cfg.AnthropicKey))
	}
	if cfg.GeminiKey != "" {
		p, err := NewGeminiProvider(ctx, cfg.GeminiKey)
		if err != nil {
			return nil, fmt.Errorf("init gemini provider: %w", err)
		}
		providers = append(providers, p)
	}
	if cfg.OllamaURL != "" {
		providers = append(providers, NewOllamaProvider(cfg.OllamaURL))
	}

	return NewGatewayWithProviders(GatewayOptions{
		DefaultProvider:  cfg.DefaultProvider,
		FallbackProvider: cfg.FallbackProvider,
		MaxRetries:       cfg.MaxRetries,
	}, providers...), nil
}

func NewGatewayWithProviders(opts GatewayOptions, providers ...Provider) Gateway {
	g := &gateway{
		providers:        make(map[string]Provider, len(providers)),
		breakers:         make(map[string]*gobreaker.CircuitBreaker, len(providers)),
		defaultProvider:  opts.DefaultProvider,
		fallbackProvider: opts.FallbackProvider,
		maxRetries:       opts.MaxRetries,
	}

	for _, p := range providers {
		g.providers[p.Name()] = p
		g.breakers[p.Name()] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "llm-" + p.Name(),
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				slog.Warn("llm circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			},
		})
	}
	return g
}

func (g *gateway) Provider(name string) (Provider, error) {
	p, ok := g.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %q not configured", name)
	}
	return p, nil
}

func (g *gateway) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	providerName := req.Provider
	if providerName == "" {
		providerName = g.defaultProvider
	}

	resp, err := call(ctx, g, providerName, func(p Provider) (*ChatResponse, error) {
		return p.ChatCompletion(ctx, req)
	})
	if err != nil && g.fallbackProvider != "" && g.fallbackProvider != providerName && ctx.Err() == nil {
		slog.Warn("primary provider failed, trying fallback",
			"primary", providerName,
			"fallback", g.fallbackProvider,
			"error", err,
		)
		// The request model belongs to the primary provider; the fallback uses its own default.
		fallbackReq := req
		fallbackReq.Model = ""
		return call(ctx, g, g.fallbackProvider, func(p Provider) (*ChatResponse, error) {
			return p.ChatCompletion(ctx, fallbackReq)
		})
	}
	return resp, err
}

func (g *gateway) Embed(ctx context.Context, req EmbeddingRequest) (*EmbeddingResponse, error) {
	providerName := req.Provider
	if providerName == "" {
		providerName = g.defaultProvider
	}

	return call(ctx, g, providerName, func(p Provider) (*EmbeddingResponse, error) {
		return p.GenerateEmbedding(ctx, req)
	})
}

// call runs fn against the named provider through its breaker, retrying with
// exponential backoff up to maxRetries times.
func call[T any](ctx context.Context, g *gateway, providerName string, fn func(Provider) (T, error)) (T, error) {
	var zero T
	p, err := g.Provider(providerName)
	if err != nil {
		return zero, err
	}
	cb := g.breakers[providerName]

	var out T
	attempt := 0
	op := func() error {
		if attempt > 0 {
			slog.Debug("retrying LLM call", "provider", providerName, "attempt", attempt)
		}
		attempt++

		v, err := cb.Execute(func() (interface{}, error) {
			return fn(p)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) ||
				errors.Is(err, ErrEmbeddingsUnsupported) {
				return backoff.Permanent(err)
			}
			return err
		}
		out = v.(T)
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(max(g.maxRetries, 0))), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return zero, fmt.Errorf("%s: %w", providerName, err)
	}
	return out, nil
}

func (g *gateway) ListModels() []ModelInfo {
	var models []ModelInfo
	for _, p := range g.providers {
		for _, m := range p.Models() {
			models = append(models, ModelInfo{Provider: p.Name(), Model: m})
		}
	}
	sort.Slice(models, func(i, j int) bool {
		if models[i].Provider != models[j].Provider {
			return models[i].Provider < models[j].Provider
		}
		return models[i].Model < models[j].Model
	})
	return models
}
