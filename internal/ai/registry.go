package ai

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/hanzhi-dmd/companion/internal/config"
)

// ProviderFactory builds a provider; an empty model selects the configured default.
type ProviderFactory func(ctx context.Context, model string) (Provider, error)

type Registry struct {
	mu        sync.RWMutex
	factories map[string]ProviderFactory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]ProviderFactory)}
}

// DefaultRegistry registers every built-in provider against cfg.
func DefaultRegistry(cfg config.Config) *Registry {
	r := NewRegistry()
	r.Register("ollama", func(_ context.Context, model string) (Provider, error) {
		return NewOllamaProvider(cfg.OllamaBaseURL, pick(model, cfg.OllamaModel), cfg.HTTPTimeout), nil
	})
	r.Register("openrouter", func(_ context.Context, model string) (Provider, error) {
		return NewOpenRouterProvider(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey, pick(model, cfg.OpenRouterModel),
			cfg.OpenRouterSiteURL, cfg.OpenRouterAppName, cfg.HTTPTimeout), nil
	})
	r.Register("gemini", func(_ context.Context, model string) (Provider, error) {
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("gemini: GEMINI_API_KEY is not set")
		}
		return NewGeminiProvider(cfg.GeminiBaseURL, cfg.GeminiAPIKey, pick(model, cfg.GeminiModel), cfg.HTTPTimeout), nil
	})
	return r
}

func (r *Registry) Register(name string, f ProviderFactory) {
	name = strings.ToLower(strings.TrimSpace(name))
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

func (r *Registry) Get(ctx context.Context, name string, model string) (Provider, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown ai provider: %s", name)
	}
	return f(ctx, model)
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for n := range r.factories {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func pick(model, def string) string {
	if m := strings.TrimSpace(model); m != "" {
		return m
	}
	return def
}
