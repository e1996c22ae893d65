package model

import (
	"context"
	"log/slog"
	"sync"

	"github.com/akindolabs/akindo/internal/config"
	"github.com/akindolabs/akindo/internal/errors"
	"github.com/akindolabs/akindo/internal/logger"
	"github.com/akindolabs/akindo/internal/model/contract"
	anthropicProvider "github.com/akindolabs/akindo/internal/model/providers/anthropic"
	geminiProvider "github.com/akindolabs/akindo/internal/model/providers/gemini"
	openaiProvider "github.com/akindolabs/akindo/internal/model/providers/openai"
)

const defaultOllamaBaseURL = "http://localhost:11434/v1"

// DefaultRouter implements Router. It resolves a model name against the
// configured registry and falls back to the configured fallback model when
// the primary provider fails.
type DefaultRouter struct {
	cfg       config.ModelsConfig
	providers map[string]Provider
	mu        sync.RWMutex
	log       *slog.Logger
}

func NewRouter(cfg config.ModelsConfig) (*DefaultRouter, error) {
	router := &DefaultRouter{
		cfg:       cfg,
		providers: make(map[string]Provider),
		log:       logger.Component("model_router"),
	}

	if err := router.initProviders(); err != nil {
		return nil, err
	}

	return router, nil
}

func (r *DefaultRouter) Route(ctx context.Context, model string, req contract.CompletionRequest) (*contract.CompletionResponse, error) {
	if model == "" {
		model = r.cfg.Default
	}
	req.Model = model

	provider, err := r.resolveProvider(ctx, model)
	if err != nil {
		return nil, err
	}

	return r.executeWithFallback(ctx, model, provider, req)
}

func (r *DefaultRouter) ListModels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	models := make([]string, 0, len(r.providers))
	for name := range r.providers {
		models = append(models, name)
	}
	return models
}

func (r *DefaultRouter) Health(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for name, provider := range r.providers {
		if err := provider.Health(ctx); err != nil {
			r.log.Warn("Provider unhealthy", "provider", name, "error", err)
			return errors.Integration("PROVIDER_UNHEALTHY", "provider "+name+" unhealthy").WithCause(err)
		}
	}
	return nil
}

func (r *DefaultRouter) initProviders() error {
	for _, entry := range r.cfg.Registry {
		provider, err := r.createProvider(entry)
		if err != nil {
			r.log.Warn("Failed to create provider", "provider", entry.Provider, "model", entry.Name, "error", err)
			continue
		}

		r.providers[entry.Name] = provider
		r.log.Info("Provider initialized", "name", entry.Name, "type", entry.Provider)
	}

	if len(r.providers) == 0 && len(r.cfg.Registry) > 0 {
		return errors.Validation("NO_PROVIDERS", "no model providers initialized")
	}
	return nil
}

func (r *DefaultRouter) resolveProvider(ctx context.Context, model string) (Provider, error) {
	select {
	case <-ctx.Done():
		return nil, errors.From(ctx.Err())
	default:
	}

	r.mu.RLock()
	provider, exists := r.providers[model]
	r.mu.RUnlock()

	if exists {
		return provider, nil
	}

	r.log.Warn("Model not found", "model", model)
	if r.cfg.Fallback != "" && model != r.cfg.Fallback {
		r.mu.RLock()
		fallback, ok := r.providers[r.cfg.Fallback]
		r.mu.RUnlock()
		if ok {
			r.log.Info("Using fallback model", "model", model, "fallback", r.cfg.Fallback)
			return fallback, nil
		}
	}
	return nil, errors.NotFound("MODEL_NOT_FOUND", "model "+model+" not registered")
}

func (r *DefaultRouter) executeWithFallback(ctx context.Context, model string, provider Provider, req contract.CompletionRequest) (*contract.CompletionResponse, error) {
	maxAttempts := r.cfg.MaxFallbackAttempts
	if maxAttempts < 1 {
		maxAttempts = config.DefaultModelMaxFallbackAttempts
	}

	currentModel := model
	currentProvider := provider

	for attempt := 0; attempt < maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, errors.From(ctx.Err())
		default:
		}

		req.Model = currentModel
		resp, err := currentProvider.Generate(ctx, req)
		if err == nil {
			r.log.Info("Completion finished", "model", currentModel, "attempt", attempt+1)
			return resp, nil
		}

		r.log.Error("Provider request failed", "model", currentModel, "attempt", attempt+1, "error", err)

		if r.cfg.Fallback == "" || currentModel == r.cfg.Fallback {
			return nil, errors.Model("MODEL_REQUEST_FAILED", "provider request failed").WithCause(err)
		}

		r.mu.RLock()
		fallbackProvider, exists := r.providers[r.cfg.Fallback]
		r.mu.RUnlock()
		if !exists {
			return nil, errors.NotFound("MODEL_NOT_FOUND", "fallback model "+r.cfg.Fallback+" not registered")
		}

		r.log.Info("Attempting fallback", "from", currentModel, "to", r.cfg.Fallback)
		currentModel = r.cfg.Fallback
		currentProvider = fallbackProvider
	}

	return nil, errors.Model("MODEL_FALLBACK_EXHAUSTED", "all model attempts failed")
}

func (r *DefaultRouter) createProvider(entry config.ModelRegistry) (Provider, error) {
	switch entry.Provider {
	case "openai":
		if entry.APIKey == "" {
			return nil, errors.Validation("MISSING_API_KEY", "API key required for OpenAI provider")
		}
		return &ProviderAdapter{
			provider:     openaiProvider.New(entry.APIKey, entry.BaseURL, entry.Name),
			name:         entry.Name,
			providerType: "openai",
		}, nil

	case "ollama":
		baseURL := entry.BaseURL
		if baseURL == "" {
			baseURL = defaultOllamaBaseURL
		}
		apiKey := entry.APIKey
		if apiKey == "" {
			apiKey = "ollama"
		}
		return &ProviderAdapter{
			provider:     openaiProvider.New(apiKey, baseURL, entry.Name),
			name:         entry.Name,
			providerType: "ollama",
		}, nil

	case "anthropic":
		if entry.APIKey == "" {
			return nil, errors.Validation("MISSING_API_KEY", "API key required for Anthropic provider")
		}
		return &ProviderAdapter{
			provider:     anthropicProvider.New(entry.APIKey),
			name:         entry.Name,
			providerType: "anthropic",
		}, nil

	case "gemini":
		if entry.APIKey == "" {
			return nil, errors.Validation("MISSING_API_KEY", "API key required for Gemini provider")
		}
		provider, err := geminiProvider.New(entry.APIKey)
		if err != nil {
			return nil, errors.Integration("PROVIDER_INIT_FAILED", "create Gemini provider").WithCause(err)
		}
		return &ProviderAdapter{
			provider:     provider,
			name:         entry.Name,
			providerType: "gemini",
		}, nil

	default:
		return nil, errors.Validation("UNKNOWN_PROVIDER", "unknown provider type: "+entry.Provider)
	}
}
